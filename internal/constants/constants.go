package constants

import "time"

// One-time passcodes
const (
	OTPMin       = 100000
	OTPMax       = 999999
	LoginOTPTTL  = 5 * time.Minute
	UnsealOTPTTL = 10 * time.Minute

	// MaxOTPAttempts wrong submissions invalidate a pending code.
	MaxOTPAttempts = 5
)

// Award sweep scheduling
const (
	AwardSweepCronSpec = "@every 1m"
	AwardSweepTimeout  = 2 * time.Minute
)

// Stripe payment intent metadata keys
const (
	PaymentMetadataBidIDKey    = "bid_id"
	PaymentMetadataTenderIDKey = "tender_id"
	PaymentMetadataPayerKey    = "contractor_id"
)

// Email subjects and SMS bodies
const (
	EmailSubjectLoginCode  = "Your tender portal sign-in code"
	EmailSubjectUnsealCode = "Bid unseal authorisation code"
	SMSBodyLoginCode       = "Your tender portal sign-in code is %s. It expires in %d minutes."
	SMSBodyUnsealCode      = "Unseal code for bid %s: %s. It expires in %d minutes."
)

// Listing limits
const (
	DefaultAuditLogLimit = 100
	MaxAuditLogLimit     = 1000
)

// CORS
const (
	CORSLowSecurityAllowedOriginLocalhost = "http://localhost:3000"
)
