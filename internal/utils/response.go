package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	ErrCodeInvalidPayload         = "invalid_payload"
	ErrCodeValidation             = "validation_error"
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeForbidden              = "forbidden"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeInvalidCredentials     = "invalid_credentials"
	ErrCodeInternal               = "internal_server_error"
	ErrCodeNotFound               = "not_found"
	ErrCodeConflict               = "conflict"
	ErrCodeRowVersionConflict     = "row_version_conflict"
	ErrCodeExternalServiceFailure = "external_service_failure"

	// Sealed-bid protocol failures. Each maps to exactly one sentinel in errors.go.
	ErrCodeInvalidPeerValue     = "invalid_peer_value"
	ErrCodeHandshakeMismatch    = "handshake_mismatch"
	ErrCodeCorruptCiphertext    = "corrupt_ciphertext"
	ErrCodeInvalidAmount        = "invalid_amount"
	ErrCodeTenderClosed         = "tender_closed"
	ErrCodeDeadlinePassed       = "deadline_passed"
	ErrCodeNoChallengePending   = "no_challenge_pending"
	ErrCodeOTPExpired           = "otp_expired"
	ErrCodeCodeMismatch         = "code_mismatch"
	ErrCodeOTPAttemptsExceeded  = "otp_attempts_exceeded"
	ErrCodeNotUnsealed          = "not_unsealed"
	ErrCodeDataIntegrityFailure = "data_integrity_failure"
	ErrCodeDocumentIntegrity    = "document_integrity_failure"
	ErrCodeNoWinner             = "no_winner"
	ErrCodeNotWinner            = "not_winner"
	ErrCodeAlreadyPaid          = "already_paid"

	ErrCodeInvalidRegistrationCode = "invalid_registration_code"
)

// ErrorResponse carries a stable machine code, a human message and
// optional details (validation failures, current entity state).
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RespondErrorWithCode builds a JSON error response with a standard
// code and message. The optional `details` is included if non-nil.
func RespondErrorWithCode(
	w http.ResponseWriter,
	status int,
	errorCode string,
	publicMessage string,
	details any,
	devErrs ...error,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errBody := ErrorResponse{
		Code:    errorCode,
		Message: publicMessage,
	}
	if details != nil {
		errBody.Details = details
	}
	_ = json.NewEncoder(w).Encode(errBody)

	fields := logrus.Fields{
		"status": status,
		"code":   errorCode,
	}
	if len(devErrs) > 0 && devErrs[0] != nil {
		fields["error"] = devErrs[0].Error()
	}
	if status >= http.StatusInternalServerError {
		Logger.WithFields(fields).Error(publicMessage)
	} else {
		Logger.WithFields(fields).Warn(publicMessage)
	}
}

// RespondWithJSON for successful cases
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
