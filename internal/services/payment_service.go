package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/config"
	"github.com/sealedbid/tender-service/internal/constants"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/sealedbid/tender-service/internal/vault"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// PaymentOrder is a Stripe PaymentIntent raised for a winning bid.
type PaymentOrder struct {
	OrderID      string
	ClientSecret string
	Amount       int64
	Currency     string
}

// PaymentService lets the winning contractor settle the award through
// Stripe and records the confirmation delivered by webhook.
type PaymentService struct {
	tenderRepo    repositories.TenderRepository
	bidRepo       repositories.BidRepository
	vault         *vault.BidVault
	audit         AuditService
	currency      string
	webhookSecret string

	createIntent func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func NewPaymentService(
	cfg *config.Config,
	tenderRepo repositories.TenderRepository,
	bidRepo repositories.BidRepository,
	bidVault *vault.BidVault,
	audit AuditService,
) *PaymentService {
	stripe.Key = cfg.StripeSecretKey
	return &PaymentService{
		tenderRepo:    tenderRepo,
		bidRepo:       bidRepo,
		vault:         bidVault,
		audit:         audit,
		currency:      strings.ToLower(cfg.StripeCurrency),
		webhookSecret: cfg.StripeWebhookSecret,
		createIntent:  paymentintent.New,
	}
}

func (s *PaymentService) WebhookSecret() string {
	return s.webhookSecret
}

// CreateOrder raises a PaymentIntent for the winning bid of a closed tender.
// Only the contractor who submitted the winning bid may call it.
func (s *PaymentService) CreateOrder(ctx context.Context, contractorID, tenderID uuid.UUID) (*PaymentOrder, error) {
	tender, err := s.tenderRepo.GetByID(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if tender == nil {
		return nil, utils.ErrTenderNotFound
	}
	if tender.Status != models.TenderStatusClosed || tender.WinnerBidID == nil {
		return nil, utils.ErrNoWinner
	}

	bid, err := s.bidRepo.GetByID(ctx, *tender.WinnerBidID)
	if err != nil {
		return nil, err
	}
	if bid == nil {
		return nil, utils.ErrBidNotFound
	}
	if bid.ContractorID != contractorID {
		return nil, utils.ErrNotWinner
	}
	if bid.PaymentStatus == models.PaymentStatusPaid {
		return nil, utils.ErrAlreadyPaid
	}

	_, amount, err := s.vault.DecryptAmount(bid.EncryptedAmount)
	if err != nil {
		return nil, err
	}
	minor, err := utils.ToMinorUnits(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidAmount, err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(s.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(constants.PaymentMetadataBidIDKey, bid.ID.String())
	params.AddMetadata(constants.PaymentMetadataTenderIDKey, tender.ID.String())
	params.AddMetadata(constants.PaymentMetadataPayerKey, contractorID.String())

	pi, err := s.createIntent(params)
	if err != nil {
		return nil, fmt.Errorf("%w: creating payment intent: %v", utils.ErrExternalServiceFailure, err)
	}

	if err := s.bidRepo.SetPaymentOrder(ctx, bid.ID, pi.ID); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, models.AuditPaymentOrder, &contractorID, map[string]any{
		"bidId":    bid.ID,
		"tenderId": tender.ID,
		"orderId":  pi.ID,
		"amount":   minor,
		"currency": s.currency,
	})

	return &PaymentOrder{
		OrderID:      pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       minor,
		Currency:     s.currency,
	}, nil
}

// HandlePaymentSucceeded marks the bid behind a succeeded PaymentIntent as
// paid. Redelivered events are ignored.
func (s *PaymentService) HandlePaymentSucceeded(ctx context.Context, pi *stripe.PaymentIntent) error {
	paymentID := pi.ID
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		paymentID = pi.LatestCharge.ID
	}

	bid, updated, err := s.bidRepo.MarkPaid(ctx, pi.ID, paymentID)
	if err != nil {
		utils.Logger.WithError(err).Errorf("Could not record payment for PaymentIntent %s", pi.ID)
		return err
	}
	if !updated {
		utils.Logger.Infof("PaymentIntent %s already recorded for bid %s", pi.ID, bid.ID)
		return nil
	}

	_ = s.audit.Record(ctx, models.AuditPaymentRecorded, &bid.ContractorID, map[string]any{
		"bidId":     bid.ID,
		"orderId":   pi.ID,
		"paymentId": paymentID,
	})
	return nil
}
