package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	// Key agreement / transport
	ErrInvalidPeerValue  = errors.New("invalid_peer_value")
	ErrHandshakeMismatch = errors.New("handshake_mismatch")

	// At-rest storage
	ErrCorruptCiphertext = errors.New("corrupt_ciphertext")
	ErrInvalidAmount     = errors.New("invalid_amount")

	// Tender lifecycle
	ErrTenderNotFound       = errors.New("tender_not_found")
	ErrTenderClosed         = errors.New("tender_closed")
	ErrDeadlinePassed       = errors.New("deadline_passed")
	ErrDataIntegrityFailure = errors.New("data_integrity_failure")

	// One-time passcodes
	ErrNoChallengePending  = errors.New("no_challenge_pending")
	ErrOTPExpired          = errors.New("otp_expired")
	ErrOTPMismatch         = errors.New("code_mismatch")
	ErrOTPAttemptsExceeded = errors.New("otp_attempts_exceeded")

	// Bid lifecycle
	ErrBidNotFound       = errors.New("bid_not_found")
	ErrNotUnsealed       = errors.New("not_unsealed")
	ErrDocumentIntegrity = errors.New("document_integrity_failure")
	ErrNoWinner          = errors.New("no_winner")
	ErrNotWinner         = errors.New("not_winner")
	ErrAlreadyPaid       = errors.New("already_paid")

	// Accounts
	ErrInvalidCredentials      = errors.New("invalid_credentials")
	ErrUsernameExists          = errors.New("username_exists")
	ErrInvalidRegistrationCode = errors.New("invalid_registration_code")
	ErrForbidden               = errors.New("forbidden")

	// For concurrency conflicts
	ErrRowVersionConflict = errors.New("row_version_conflict")

	// For external service failures (e.g., Twilio, SendGrid, Stripe)
	ErrExternalServiceFailure = errors.New("external_service_failure")

	ErrNoRowsUpdated = errors.New("no_rows_updated")
)

// AppError for structured error handling from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}

type domainErrorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var domainErrorTable = []domainErrorMapping{
	{ErrInvalidPeerValue, http.StatusBadRequest, ErrCodeInvalidPeerValue, "Client public key is outside the accepted range; restart the key exchange"},
	{ErrHandshakeMismatch, http.StatusBadRequest, ErrCodeHandshakeMismatch, "Bid amount could not be decrypted; derive the session key again and resubmit"},
	{ErrInvalidAmount, http.StatusBadRequest, ErrCodeInvalidAmount, "Bid amount must be a positive decimal number"},
	{ErrCorruptCiphertext, http.StatusInternalServerError, ErrCodeCorruptCiphertext, "Stored bid amount could not be decrypted"},
	{ErrTenderNotFound, http.StatusNotFound, ErrCodeNotFound, "Tender not found"},
	{ErrBidNotFound, http.StatusNotFound, ErrCodeNotFound, "Bid not found"},
	{ErrTenderClosed, http.StatusConflict, ErrCodeTenderClosed, "Tender is closed"},
	{ErrDeadlinePassed, http.StatusConflict, ErrCodeDeadlinePassed, "Tender deadline has passed"},
	{ErrDataIntegrityFailure, http.StatusConflict, ErrCodeDataIntegrityFailure, "No bid for this tender could be decrypted"},
	{ErrNoChallengePending, http.StatusBadRequest, ErrCodeNoChallengePending, "No code has been requested; request a new code"},
	{ErrOTPExpired, http.StatusBadRequest, ErrCodeOTPExpired, "Code has expired; request a new code"},
	{ErrOTPMismatch, http.StatusBadRequest, ErrCodeCodeMismatch, "Code does not match"},
	{ErrOTPAttemptsExceeded, http.StatusTooManyRequests, ErrCodeOTPAttemptsExceeded, "Too many incorrect codes; request a new code"},
	{ErrNotUnsealed, http.StatusConflict, ErrCodeNotUnsealed, "Bid is not unsealed"},
	{ErrDocumentIntegrity, http.StatusConflict, ErrCodeDocumentIntegrity, "Supporting document digest does not match"},
	{ErrNoWinner, http.StatusConflict, ErrCodeNoWinner, "No winner has been declared for this tender"},
	{ErrNotWinner, http.StatusForbidden, ErrCodeNotWinner, "Only the winning contractor can pay for this bid"},
	{ErrAlreadyPaid, http.StatusConflict, ErrCodeAlreadyPaid, "Bid is already paid"},
	{ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid username or password"},
	{ErrUsernameExists, http.StatusConflict, ErrCodeConflict, "Username already taken"},
	{ErrInvalidRegistrationCode, http.StatusForbidden, ErrCodeInvalidRegistrationCode, "Invalid registration code for privileged role"},
	{ErrForbidden, http.StatusForbidden, ErrCodeForbidden, "Insufficient permissions"},
	{ErrRowVersionConflict, http.StatusConflict, ErrCodeRowVersionConflict, "Record was modified concurrently; retry"},
	{ErrExternalServiceFailure, http.StatusBadGateway, ErrCodeExternalServiceFailure, "Upstream provider failed"},
}

// ToAppError maps a service error onto its HTTP representation. Unknown
// errors become 500s carrying the fallback message.
func ToAppError(err error, fallback string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range domainErrorTable {
		if errors.Is(err, m.err) {
			return &AppError{StatusCode: m.status, Code: m.code, Message: m.message, Err: err}
		}
	}
	return &AppError{StatusCode: http.StatusInternalServerError, Code: ErrCodeInternal, Message: fallback, Err: err}
}
