package models

import (
	"time"

	"github.com/google/uuid"
)

type TenderStatus string

const (
	TenderStatusOpen   TenderStatus = "open"
	TenderStatusClosed TenderStatus = "closed"
)

// Tender is a call for bids. WinnerBidID and ClosedAt are only set once
// Status is closed, and never change afterwards.
type Tender struct {
	Versioned
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Deadline    time.Time    `json:"deadline"`
	CreatedBy   uuid.UUID    `json:"createdBy"`
	Status      TenderStatus `json:"status"`
	WinnerBidID *uuid.UUID   `json:"winnerBidId,omitempty"`
	ClosedAt    *time.Time   `json:"closedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (t *Tender) GetID() string { return t.ID.String() }

// IsExpired reports whether the tender is still open past its deadline.
func (t *Tender) IsExpired(now time.Time) bool {
	return t.Status == TenderStatusOpen && now.After(t.Deadline)
}
