package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sealedbid/tender-service/internal/dtos"
	"github.com/sealedbid/tender-service/internal/services"
	"github.com/sealedbid/tender-service/internal/utils"
)

type BidController struct {
	bidService services.BidService
	validate   *validator.Validate
}

func NewBidController(bidService services.BidService) *BidController {
	return &BidController{
		bidService: bidService,
		validate:   validator.New(),
	}
}

// POST /api/v1/bids
func (c *BidController) SubmitBidHandler(w http.ResponseWriter, r *http.Request) {
	contractorID, err := callerID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	var req dtos.SubmitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", err.Error(), err)
		return
	}

	bid, err := c.bidService.Submit(r.Context(), contractorID, req)
	if err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Could not submit bid"))
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dtos.SubmitBidResponse{
		Message:      "Bid submitted",
		BidID:        bid.ID.String(),
		DocumentHash: bid.DocumentHash,
	})
}

// GET /api/v1/bids
func (c *BidController) ListBidsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	bids, err := c.bidService.List(r.Context(), userID, callerRole(r))
	if err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Could not list bids"))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, bids)
}

// POST /api/v1/bids/{id}/request-otp
func (c *BidController) RequestUnsealOTPHandler(w http.ResponseWriter, r *http.Request) {
	officerID, err := callerID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	bidID, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	challenge, err := c.bidService.RequestUnsealOTP(r.Context(), officerID, bidID)
	if err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Could not issue unseal code"))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.RequestOTPResponse{
		Message:   "Unseal code sent",
		ExpiresAt: challenge.ExpiresAt,
	})
}

// POST /api/v1/bids/{id}/unseal
func (c *BidController) UnsealBidHandler(w http.ResponseWriter, r *http.Request) {
	officerID, err := callerID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	bidID, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	var req dtos.UnsealBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", err.Error(), err)
		return
	}

	res, err := c.bidService.Unseal(r.Context(), officerID, bidID, req.OTP)
	if err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Could not unseal bid"))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.UnsealBidResponse{
		Amount:             res.Amount,
		SupportingDocument: res.SupportingDocument,
	})
}

// POST /api/v1/bids/{id}/reseal
func (c *BidController) ResealBidHandler(w http.ResponseWriter, r *http.Request) {
	officerID, err := callerID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	bidID, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	if _, err := c.bidService.Reseal(r.Context(), officerID, bidID); err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Could not reseal bid"))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.ResealBidResponse{Message: "Bid resealed"})
}
