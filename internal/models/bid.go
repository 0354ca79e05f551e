package models

import (
	"time"

	"github.com/google/uuid"
)

type BidStatus string

const (
	BidStatusSealed   BidStatus = "sealed"
	BidStatusUnsealed BidStatus = "unsealed"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// UnsealRecord is who last exposed the amount and when.
type UnsealRecord struct {
	By uuid.UUID `json:"by"`
	At time.Time `json:"at"`
}

// Bid is a sealed bid. EncryptedAmount is always master-key ciphertext.
// Unsealed is the most recent unseal and is kept after a reseal; Resealed
// is the most recent reseal. PendingOTP is the outstanding unseal
// challenge, if any.
type Bid struct {
	Versioned
	ID              uuid.UUID     `json:"id"`
	TenderID        uuid.UUID     `json:"tenderId"`
	ContractorID    uuid.UUID     `json:"contractorId"`
	EncryptedAmount string        `json:"encryptedAmount"`
	DocumentHash    string        `json:"documentHash"`
	DocumentRef     string        `json:"-"`
	Status          BidStatus     `json:"status"`
	Unsealed        *UnsealRecord `json:"unsealed,omitempty"`
	Resealed        *UnsealRecord `json:"resealed,omitempty"`
	PendingOTP      *OTPChallenge `json:"-"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	PaymentOrderID  *string       `json:"paymentOrderId,omitempty"`
	PaymentID       *string       `json:"paymentId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

func (b *Bid) GetID() string { return b.ID.String() }
