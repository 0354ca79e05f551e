package dtos

import "time"

// SubmitBidRequest is the contractor's sealed submission. Amount is the
// session-key ciphertext and ClientPublicKey the client's DH public value.
type SubmitBidRequest struct {
	ProjectID          string `json:"projectId" validate:"required,uuid"`
	Amount             string `json:"amount" validate:"required"`
	SupportingDocument string `json:"supportingDocument" validate:"required"`
	ClientPublicKey    string `json:"clientPublicKey" validate:"required"`
}

type SubmitBidResponse struct {
	Message      string `json:"message"`
	BidID        string `json:"bidId"`
	DocumentHash string `json:"documentHash"`
}

type RequestOTPResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type UnsealBidRequest struct {
	OTP string `json:"otp" validate:"required,len=6,numeric"`
}

type UnsealBidResponse struct {
	Amount             string `json:"amount"`
	SupportingDocument string `json:"supportingDocument"`
}

type ResealBidResponse struct {
	Message string `json:"message"`
}
