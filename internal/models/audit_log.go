package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditLogin            AuditAction = "LOGIN"
	AuditRegister         AuditAction = "REGISTER"
	AuditCreateTender     AuditAction = "CREATE_TENDER"
	AuditCloseTender      AuditAction = "CLOSE_TENDER"
	AuditSubmitBid        AuditAction = "SUBMIT_BID"
	AuditRequestUnsealOTP AuditAction = "REQUEST_UNSEAL_OTP"
	AuditUnsealBid        AuditAction = "UNSEAL_BID"
	AuditResealBid        AuditAction = "RESEAL_BID"
	AuditAutoAward        AuditAction = "AUTO_AWARD"
	AuditPaymentOrder     AuditAction = "PAYMENT_ORDER"
	AuditPaymentRecorded  AuditAction = "PAYMENT_RECORDED"
)

// AuditLog is append-only. PerformedBy is nil for system actions such as
// the award sweep.
type AuditLog struct {
	ID          uuid.UUID        `json:"id"`
	Action      AuditAction      `json:"action"`
	PerformedBy *uuid.UUID       `json:"performedBy,omitempty"`
	Details     *json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}
