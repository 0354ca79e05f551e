package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/dtos"
	"github.com/sealedbid/tender-service/internal/services"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type PaymentController struct {
	paymentService *services.PaymentService
	validate       *validator.Validate
}

func NewPaymentController(paymentService *services.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		validate:       validator.New(),
	}
}

// POST /api/v1/payments/orders
func (c *PaymentController) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	contractorID, err := callerID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	var req dtos.CreatePaymentOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", err.Error(), err)
		return
	}
	tenderID := uuid.MustParse(req.TenderID)

	order, err := c.paymentService.CreateOrder(r.Context(), contractorID, tenderID)
	if err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Could not create payment order"))
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dtos.CreatePaymentOrderResponse{
		OrderID:      order.OrderID,
		ClientSecret: order.ClientSecret,
		Amount:       order.Amount,
		Currency:     order.Currency,
	})
}

// POST /api/v1/payments/stripe/webhook
func (c *PaymentController) StripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		utils.Logger.Warn("Stripe webhook missing signature header")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		utils.Logger.WithError(err).Error("Failed to read Stripe webhook body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(payload, sig, c.paymentService.WebhookSecret())
	if err != nil {
		utils.Logger.WithError(err).Warn("Stripe webhook signature verification failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			utils.Logger.WithError(err).Error("Failed to decode payment_intent.succeeded")
			break
		}
		if err := c.paymentService.HandlePaymentSucceeded(r.Context(), &pi); err != nil {
			utils.Logger.WithError(err).WithField("payment_intent", pi.ID).Error("Failed to record payment")
		}
	default:
		utils.Logger.WithField("event_type", event.Type).Debug("Ignoring Stripe event")
	}

	w.WriteHeader(http.StatusOK)
}
