package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/dtos"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/utils"
)

type TenderService interface {
	Create(ctx context.Context, officerID uuid.UUID, req dtos.CreateTenderRequest) (*models.Tender, error)

	// List first advances expired tenders, then returns every tender.
	// Award failures are logged and do not fail the listing.
	List(ctx context.Context) ([]*models.Tender, error)

	// Close ends bidding early and awards immediately.
	Close(ctx context.Context, officerID, tenderID uuid.UUID) (*AwardResult, error)
}

type tenderService struct {
	tenderRepo repositories.TenderRepository
	award      AwardService
	audit      AuditService
	now        func() time.Time
}

func NewTenderService(
	tenderRepo repositories.TenderRepository,
	award AwardService,
	audit AuditService,
) TenderService {
	return &tenderService{
		tenderRepo: tenderRepo,
		award:      award,
		audit:      audit,
		now:        time.Now,
	}
}

func (s *tenderService) Create(
	ctx context.Context,
	officerID uuid.UUID,
	req dtos.CreateTenderRequest,
) (*models.Tender, error) {
	now := s.now().UTC()
	if !req.Deadline.After(now) {
		return nil, &utils.AppError{
			StatusCode: http.StatusBadRequest,
			Code:       utils.ErrCodeValidation,
			Message:    "Deadline must be in the future",
		}
	}

	tender := &models.Tender{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Deadline:    req.Deadline.UTC(),
		CreatedBy:   officerID,
		Status:      models.TenderStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tenderRepo.Create(ctx, tender); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, models.AuditCreateTender, &officerID, map[string]any{
		"tenderId": tender.ID,
		"deadline": tender.Deadline,
	})
	return tender, nil
}

func (s *tenderService) List(ctx context.Context) ([]*models.Tender, error) {
	if _, err := s.award.AdvanceExpiredTenders(ctx); err != nil {
		utils.Logger.WithError(err).Error("Advancing expired tenders failed")
	}
	return s.tenderRepo.List(ctx)
}

func (s *tenderService) Close(ctx context.Context, officerID, tenderID uuid.UUID) (*AwardResult, error) {
	tender, err := s.tenderRepo.GetByID(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if tender == nil {
		return nil, utils.ErrTenderNotFound
	}
	if tender.Status == models.TenderStatusClosed {
		return nil, utils.ErrTenderClosed
	}

	res, err := s.award.AwardTender(ctx, tender, &officerID)
	if err != nil && !errors.Is(err, utils.ErrDataIntegrityFailure) {
		return nil, err
	}
	if res != nil && !res.Closed {
		return nil, utils.ErrTenderClosed
	}
	return res, err
}
