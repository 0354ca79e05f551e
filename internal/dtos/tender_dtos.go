package dtos

import "time"

type CreateTenderRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=255"`
	Description string    `json:"description" validate:"max=10000"`
	Deadline    time.Time `json:"deadline" validate:"required"`
}

type CloseTenderResponse struct {
	Message     string  `json:"message"`
	Closed      bool    `json:"closed"`
	WinnerBidID *string `json:"winnerBidId,omitempty"`
}
