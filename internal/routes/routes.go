package routes

const (
	// Health
	Health = "/health"

	// ───────────────────────────────
	// Auth
	// ───────────────────────────────
	AuthRegister    = "/api/v1/auth/register"
	AuthLogin       = "/api/v1/auth/login"
	AuthVerifyLogin = "/api/v1/auth/login/verify"
	AuthDHKey       = "/api/v1/auth/dh-key"

	// ───────────────────────────────
	// Tenders
	// ───────────────────────────────
	Tenders     = "/api/v1/tenders"
	TenderClose = "/api/v1/tenders/{id}/close"

	// ───────────────────────────────
	// Bids
	// ───────────────────────────────
	Bids             = "/api/v1/bids"
	BidRequestUnseal = "/api/v1/bids/{id}/request-otp"
	BidUnseal        = "/api/v1/bids/{id}/unseal"
	BidReseal        = "/api/v1/bids/{id}/reseal"

	// ───────────────────────────────
	// Audit log
	// ───────────────────────────────
	AuditLogs = "/api/v1/logs"

	// ───────────────────────────────
	// Payments
	// ───────────────────────────────
	PaymentOrders = "/api/v1/payments/orders"
	StripeWebhook = "/api/v1/payments/stripe/webhook"
)
