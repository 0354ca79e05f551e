package dtos

type CreatePaymentOrderRequest struct {
	TenderID string `json:"tenderId" validate:"required,uuid"`
}

// CreatePaymentOrderResponse hands the client what it needs to confirm the
// Stripe PaymentIntent.
type CreatePaymentOrderResponse struct {
	OrderID      string `json:"orderId"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}
