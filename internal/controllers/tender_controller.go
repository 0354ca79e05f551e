package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sealedbid/tender-service/internal/dtos"
	"github.com/sealedbid/tender-service/internal/services"
	"github.com/sealedbid/tender-service/internal/utils"
)

type TenderController struct {
	tenderService services.TenderService
	validate      *validator.Validate
}

func NewTenderController(tenderService services.TenderService) *TenderController {
	return &TenderController{
		tenderService: tenderService,
		validate:      validator.New(),
	}
}

// POST /api/v1/tenders
func (c *TenderController) CreateTenderHandler(w http.ResponseWriter, r *http.Request) {
	officerID, err := callerID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	var req dtos.CreateTenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", err.Error(), err)
		return
	}

	tender, err := c.tenderService.Create(r.Context(), officerID, req)
	if err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Could not create tender"))
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, tender)
}

// GET /api/v1/tenders
func (c *TenderController) ListTendersHandler(w http.ResponseWriter, r *http.Request) {
	tenders, err := c.tenderService.List(r.Context())
	if err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Could not list tenders"))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, tenders)
}

// POST /api/v1/tenders/{id}/close
func (c *TenderController) CloseTenderHandler(w http.ResponseWriter, r *http.Request) {
	officerID, err := callerID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	tenderID, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	res, err := c.tenderService.Close(r.Context(), officerID, tenderID)
	if err != nil && !errors.Is(err, utils.ErrDataIntegrityFailure) {
		utils.HandleAppError(w, utils.ToAppError(err, "Could not close tender"))
		return
	}

	resp := dtos.CloseTenderResponse{Message: "Tender closed", Closed: true}
	if res != nil && res.WinnerBidID != nil {
		id := res.WinnerBidID.String()
		resp.WinnerBidID = &id
	} else {
		resp.Message = "Tender closed without a winner"
	}
	if errors.Is(err, utils.ErrDataIntegrityFailure) {
		resp.Message = "Tender closed; no bid amount could be decrypted"
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
