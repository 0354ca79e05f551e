package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/config"
	"github.com/sealedbid/tender-service/internal/constants"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/testhelpers"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

type paymentFixture struct {
	*awardFixture
	svc    *PaymentService
	params []*stripe.PaymentIntentParams
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	af := newAwardFixture(t)
	cfg := &config.Config{StripeSecretKey: "sk_test_x", StripeWebhookSecret: "whsec_x", StripeCurrency: "INR"}
	f := &paymentFixture{awardFixture: af}
	f.svc = NewPaymentService(cfg, af.tenders, af.bids, testhelpers.NewVault(t), NewAuditService(af.audits))
	f.svc.createIntent = func(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		f.params = append(f.params, p)
		return &stripe.PaymentIntent{ID: "pi_test_1", ClientSecret: "pi_test_1_secret"}, nil
	}
	return f
}

// awarded returns a closed tender whose winning bid of amount belongs to the
// returned bid's contractor.
func (f *paymentFixture) awarded(t *testing.T, amount string) (*models.Tender, *models.Bid) {
	t.Helper()
	tender := f.expiredTender(t)
	bid := f.addBid(t, tender.ID, amount, f.now.Add(-time.Hour))
	_, err := f.awardFixture.svc.AdvanceExpiredTenders(context.Background())
	require.NoError(t, err)
	return tender, bid
}

func TestCreateOrderForWinner(t *testing.T) {
	f := newPaymentFixture(t)
	tender, bid := f.awarded(t, "1234.565")

	order, err := f.svc.CreateOrder(context.Background(), bid.ContractorID, tender.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_test_1", order.OrderID)
	assert.Equal(t, int64(123457), order.Amount)
	assert.Equal(t, "inr", order.Currency)

	require.Len(t, f.params, 1)
	assert.Equal(t, int64(123457), *f.params[0].Amount)
	assert.Equal(t, bid.ID.String(), f.params[0].Metadata[constants.PaymentMetadataBidIDKey])

	stored, _ := f.bids.GetByID(context.Background(), bid.ID)
	require.NotNil(t, stored.PaymentOrderID)
	assert.Equal(t, "pi_test_1", *stored.PaymentOrderID)
	assert.NotNil(t, f.audits.Last(models.AuditPaymentOrder))
}

func TestCreateOrderGuards(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	tender, bid := f.awarded(t, "50")

	_, err := f.svc.CreateOrder(ctx, uuid.New(), tender.ID)
	assert.ErrorIs(t, err, utils.ErrNotWinner)

	_, err = f.svc.CreateOrder(ctx, bid.ContractorID, uuid.New())
	assert.ErrorIs(t, err, utils.ErrTenderNotFound)

	open := testhelpers.NewTender(uuid.New(), f.now.Add(time.Hour))
	require.NoError(t, f.tenders.Create(ctx, open))
	_, err = f.svc.CreateOrder(ctx, bid.ContractorID, open.ID)
	assert.ErrorIs(t, err, utils.ErrNoWinner)

	f.svc.createIntent = func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		return nil, errors.New("card network down")
	}
	_, err = f.svc.CreateOrder(ctx, bid.ContractorID, tender.ID)
	assert.ErrorIs(t, err, utils.ErrExternalServiceFailure)
}

func TestHandlePaymentSucceededIsIdempotent(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	tender, bid := f.awarded(t, "75")
	_, err := f.svc.CreateOrder(ctx, bid.ContractorID, tender.ID)
	require.NoError(t, err)

	pi := &stripe.PaymentIntent{ID: "pi_test_1", LatestCharge: &stripe.Charge{ID: "ch_1"}}
	require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, pi))
	require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, pi))

	stored, _ := f.bids.GetByID(ctx, bid.ID)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, "ch_1", *stored.PaymentID)

	recorded := 0
	for _, a := range f.audits.Actions() {
		if a == models.AuditPaymentRecorded {
			recorded++
		}
	}
	assert.Equal(t, 1, recorded)

	_, err = f.svc.CreateOrder(ctx, bid.ContractorID, tender.ID)
	assert.ErrorIs(t, err, utils.ErrAlreadyPaid)

	assert.ErrorIs(t, f.svc.HandlePaymentSucceeded(ctx, &stripe.PaymentIntent{ID: "pi_unknown"}), utils.ErrBidNotFound)
}
