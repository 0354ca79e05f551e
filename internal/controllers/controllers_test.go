package controllers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sealedbid/tender-service/internal/config"
	"github.com/sealedbid/tender-service/internal/dtos"
	"github.com/sealedbid/tender-service/internal/keyexchange"
	"github.com/sealedbid/tender-service/internal/middleware"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/routes"
	"github.com/sealedbid/tender-service/internal/services"
	"github.com/sealedbid/tender-service/internal/testhelpers"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type harness struct {
	router     *mux.Router
	agreement  *keyexchange.KeyAgreement
	jwt        services.JWTService
	users      *testhelpers.MemUserRepo
	tenders    *testhelpers.MemTenderRepo
	bids       *testhelpers.MemBidRepo
	audits     *testhelpers.MemAuditLogRepo
	notifier   *testhelpers.CaptureNotifier
	officer    *models.User
	contractor *models.User
	auditor    *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	agreement, err := keyexchange.Initialize(keyexchange.MODP1024(), nil)
	require.NoError(t, err)
	bidVault := testhelpers.NewVault(t)

	h := &harness{
		agreement: agreement,
		jwt:       services.NewJWTService(key, time.Hour),
		users:     testhelpers.NewMemUserRepo(),
		tenders:   testhelpers.NewMemTenderRepo(),
		bids:      testhelpers.NewMemBidRepo(),
		audits:    testhelpers.NewMemAuditLogRepo(),
		notifier:  &testhelpers.CaptureNotifier{},
	}
	h.officer = testhelpers.NewUser(models.RoleOfficer)
	h.contractor = testhelpers.NewUser(models.RoleContractor)
	h.auditor = testhelpers.NewUser(models.RoleAuditor)
	for _, u := range []*models.User{h.officer, h.contractor, h.auditor} {
		require.NoError(t, h.users.Create(ctx, u))
	}

	audit := services.NewAuditService(h.audits)
	otp := services.NewOTPService(repositories.NewMemoryChallengeStore(), h.notifier)
	award := services.NewAwardService(h.tenders, h.bids, bidVault, audit)
	cfg := &config.Config{StripeCurrency: "usd", StripeWebhookSecret: testWebhookSecret}

	authController := NewAuthController(services.NewAuthService(h.users, otp, h.jwt, audit, "let-me-in"), agreement)
	tenderController := NewTenderController(services.NewTenderService(h.tenders, award, audit))
	bidController := NewBidController(services.NewBidService(
		agreement, bidVault, h.tenders, h.bids, h.users, testhelpers.NewMemDocumentStore(), otp, audit,
	))
	auditLogController := NewAuditLogController(audit)
	paymentController := NewPaymentController(services.NewPaymentService(cfg, h.tenders, h.bids, bidVault, audit))

	router := mux.NewRouter()
	router.HandleFunc(routes.AuthDHKey, authController.DHKeyHandler).Methods(http.MethodGet)
	router.HandleFunc(routes.AuthRegister, authController.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc(routes.StripeWebhook, paymentController.StripeWebhookHandler).Methods(http.MethodPost)

	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(&key.PublicKey))
	secured.HandleFunc(routes.Tenders, tenderController.ListTendersHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.Bids, bidController.ListBidsHandler).Methods(http.MethodGet)

	officer := secured.NewRoute().Subrouter()
	officer.Use(middleware.RequireRole(models.RoleOfficer))
	officer.HandleFunc(routes.Tenders, tenderController.CreateTenderHandler).Methods(http.MethodPost)
	officer.HandleFunc(routes.TenderClose, tenderController.CloseTenderHandler).Methods(http.MethodPost)
	officer.HandleFunc(routes.BidRequestUnseal, bidController.RequestUnsealOTPHandler).Methods(http.MethodPost)
	officer.HandleFunc(routes.BidUnseal, bidController.UnsealBidHandler).Methods(http.MethodPost)
	officer.HandleFunc(routes.BidReseal, bidController.ResealBidHandler).Methods(http.MethodPost)

	contractor := secured.NewRoute().Subrouter()
	contractor.Use(middleware.RequireRole(models.RoleContractor))
	contractor.HandleFunc(routes.Bids, bidController.SubmitBidHandler).Methods(http.MethodPost)
	contractor.HandleFunc(routes.PaymentOrders, paymentController.CreateOrderHandler).Methods(http.MethodPost)

	oversight := secured.NewRoute().Subrouter()
	oversight.Use(middleware.RequireRole(models.RoleOfficer, models.RoleAuditor))
	oversight.HandleFunc(routes.AuditLogs, auditLogController.ListAuditLogsHandler).Methods(http.MethodGet)

	h.router = router
	return h
}

func (h *harness) do(t *testing.T, method, path string, as *models.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, err := h.jwt.GenerateAccessToken(as)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (h *harness) createTender(t *testing.T) *models.Tender {
	t.Helper()
	rr := h.do(t, http.MethodPost, routes.Tenders, h.officer, dtos.CreateTenderRequest{
		Title:    "Bridge repair",
		Deadline: time.Now().Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tender := decode[models.Tender](t, rr)
	return &tender
}

func (h *harness) sealedBid(t *testing.T, tenderID, amount string) dtos.SubmitBidRequest {
	t.Helper()
	rr := h.do(t, http.MethodGet, routes.AuthDHKey, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	keys := decode[dtos.DHKeyResponse](t, rr)

	serverPub, err := keyexchange.DecodeInt(keys.PublicKey)
	require.NoError(t, err)
	client, err := keyexchange.NewClientSession(h.agreement.Parameters(), serverPub, nil)
	require.NoError(t, err)
	ct, err := client.SealAmount(amount, false)
	require.NoError(t, err)
	return dtos.SubmitBidRequest{
		ProjectID:          tenderID,
		Amount:             ct,
		SupportingDocument: "data:text/plain;base64,cXVvdGU=",
		ClientPublicKey:    keyexchange.EncodeInt(client.Public),
	}
}

func withID(route, id string) string {
	return strings.Replace(route, "{id}", id, 1)
}

func TestHealthCheckHandler(t *testing.T) {
	ok := NewHealthController(pingerFunc(func(context.Context) error { return nil }))
	rr := httptest.NewRecorder()
	ok.HealthCheckHandler(rr, httptest.NewRequest(http.MethodGet, routes.Health, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", decode[dtos.HealthResponse](t, rr).Status)

	down := NewHealthController(pingerFunc(func(context.Context) error { return errors.New("connection refused") }))
	rr = httptest.NewRecorder()
	down.HealthCheckHandler(rr, httptest.NewRequest(http.MethodGet, routes.Health, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestDHKeyHandlerPublishesGroup(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, http.MethodGet, routes.AuthDHKey, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	keys := decode[dtos.DHKeyResponse](t, rr)
	p, err := keyexchange.DecodeInt(keys.Prime)
	require.NoError(t, err)
	g, err := keyexchange.DecodeInt(keys.Generator)
	require.NoError(t, err)
	assert.Zero(t, p.Cmp(keyexchange.MODP1024().P))
	assert.Zero(t, g.Cmp(keyexchange.MODP1024().G))
}

func TestSecuredRoutesRequireTokenAndRole(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, routes.Tenders, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(t, http.MethodPost, routes.Tenders, h.contractor, dtos.CreateTenderRequest{
		Title: "x", Deadline: time.Now().Add(time.Hour),
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = h.do(t, http.MethodGet, routes.AuditLogs, h.contractor, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = h.do(t, http.MethodGet, routes.AuditLogs, h.auditor, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCreateTenderRejectsBadPayloads(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, routes.Tenders, h.officer, "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, utils.ErrCodeInvalidPayload, decode[utils.ErrorResponse](t, rr).Code)

	rr = h.do(t, http.MethodPost, routes.Tenders, h.officer, map[string]any{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, utils.ErrCodeValidation, decode[utils.ErrorResponse](t, rr).Code)

	rr = h.do(t, http.MethodPost, routes.Tenders, h.officer, dtos.CreateTenderRequest{
		Title: "Past", Deadline: time.Now().Add(-time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSealedBidLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	tender := h.createTender(t)

	rr := h.do(t, http.MethodPost, routes.Bids, h.contractor, h.sealedBid(t, tender.ID.String(), "2450.75"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	submitted := decode[dtos.SubmitBidResponse](t, rr)
	assert.NotEmpty(t, submitted.DocumentHash)

	rr = h.do(t, http.MethodGet, routes.Bids, h.contractor, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	listed := decode[[]models.Bid](t, rr)
	require.Len(t, listed, 1)
	assert.Equal(t, models.BidStatusSealed, listed[0].Status)
	assert.NotContains(t, rr.Body.String(), "2450.75")

	rr = h.do(t, http.MethodPost, withID(routes.BidUnseal, submitted.BidID), h.officer, dtos.UnsealBidRequest{OTP: "123456"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, utils.ErrCodeNoChallengePending, decode[utils.ErrorResponse](t, rr).Code)

	rr = h.do(t, http.MethodPost, withID(routes.BidRequestUnseal, submitted.BidID), h.officer, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	code := h.notifier.LastCode()
	require.Len(t, code, 6)

	rr = h.do(t, http.MethodPost, withID(routes.BidUnseal, submitted.BidID), h.officer, dtos.UnsealBidRequest{OTP: code})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	unsealed := decode[dtos.UnsealBidResponse](t, rr)
	assert.Equal(t, "2450.75", unsealed.Amount)
	assert.Equal(t, "data:text/plain;base64,cXVvdGU=", unsealed.SupportingDocument)

	rr = h.do(t, http.MethodPost, withID(routes.BidReseal, submitted.BidID), h.officer, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, http.MethodPost, withID(routes.TenderClose, tender.ID.String()), h.officer, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	closed := decode[dtos.CloseTenderResponse](t, rr)
	require.NotNil(t, closed.WinnerBidID)
	assert.Equal(t, submitted.BidID, *closed.WinnerBidID)

	rr = h.do(t, http.MethodPost, routes.Bids, h.contractor, h.sealedBid(t, tender.ID.String(), "10"))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, utils.ErrCodeTenderClosed, decode[utils.ErrorResponse](t, rr).Code)

	assert.Equal(t, []models.AuditAction{
		models.AuditCreateTender,
		models.AuditSubmitBid,
		models.AuditRequestUnsealOTP,
		models.AuditUnsealBid,
		models.AuditResealBid,
		models.AuditCloseTender,
	}, h.audits.Actions())
}

func TestSubmitBidRejectsTrivialPeer(t *testing.T) {
	h := newHarness(t)
	tender := h.createTender(t)

	req := h.sealedBid(t, tender.ID.String(), "100")
	req.ClientPublicKey = "AQ==" // 1

	rr := h.do(t, http.MethodPost, routes.Bids, h.contractor, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, utils.ErrCodeInvalidPeerValue, decode[utils.ErrorResponse](t, rr).Code)
}

func TestUnsealRejectsMalformedPathID(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, http.MethodPost, withID(routes.BidReseal, "not-a-uuid"), h.officer, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListAuditLogsLimit(t *testing.T) {
	h := newHarness(t)
	h.createTender(t)
	h.createTender(t)

	rr := h.do(t, http.MethodGet, routes.AuditLogs+"?limit=1", h.auditor, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]models.AuditLog](t, rr), 1)

	rr = h.do(t, http.MethodGet, routes.AuditLogs+"?limit=zero", h.auditor, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, http.MethodGet, routes.AuditLogs+"?limit=-4", h.officer, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func signedStripeEvent(t *testing.T, eventType string, object map[string]any) (body []byte, header string) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":          "evt_test",
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: raw,
		Secret:  testWebhookSecret,
	})
	return signed.Payload, signed.Header
}

func (h *harness) webhook(t *testing.T, body []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, routes.StripeWebhook, bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func TestStripeWebhookRecordsPayment(t *testing.T) {
	h := newHarness(t)
	bid := testhelpers.NewSealedBid(t, testhelpers.NewVault(t), h.createTender(t).ID, "99.50", time.Now())
	bid.ContractorID = h.contractor.ID
	orderID := "pi_webhook_1"
	bid.PaymentOrderID = &orderID
	h.bids.Put(bid)

	body, sig := signedStripeEvent(t, string(stripe.EventTypePaymentIntentSucceeded), map[string]any{
		"id":            orderID,
		"object":        "payment_intent",
		"latest_charge": "ch_webhook_1",
	})

	rr := h.webhook(t, body, sig)
	assert.Equal(t, http.StatusOK, rr.Code)

	stored, err := h.bids.GetByID(context.Background(), bid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, "ch_webhook_1", *stored.PaymentID)

	// Redelivery is acknowledged without a second audit entry.
	rr = h.webhook(t, body, sig)
	assert.Equal(t, http.StatusOK, rr.Code)
	recorded := 0
	for _, a := range h.audits.Actions() {
		if a == models.AuditPaymentRecorded {
			recorded++
		}
	}
	assert.Equal(t, 1, recorded)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	body, _ := signedStripeEvent(t, string(stripe.EventTypePaymentIntentSucceeded), map[string]any{"id": "pi_x"})

	assert.Equal(t, http.StatusBadRequest, h.webhook(t, body, "").Code)
	bogus := fmt.Sprintf("t=%d,v1=%s", time.Now().Unix(), "deadbeef")
	assert.Equal(t, http.StatusBadRequest, h.webhook(t, body, bogus).Code)
}
