package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/utils"
)

// AuditService writes structured records to the audit sink.
type AuditService interface {
	Record(ctx context.Context, action models.AuditAction, performedBy *uuid.UUID, details any) error
	List(ctx context.Context, limit int) ([]*models.AuditLog, error)
}

type auditService struct {
	repo repositories.AuditLogRepository
	now  func() time.Time
}

func NewAuditService(repo repositories.AuditLogRepository) AuditService {
	return &auditService{repo: repo, now: time.Now}
}

func (s *auditService) Record(
	ctx context.Context,
	action models.AuditAction,
	performedBy *uuid.UUID,
	details any,
) error {
	entry := &models.AuditLog{
		ID:          uuid.New(),
		Action:      action,
		PerformedBy: performedBy,
		CreatedAt:   s.now().UTC(),
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return err
		}
		msg := json.RawMessage(raw)
		entry.Details = &msg
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		utils.Logger.WithError(err).WithField("action", action).Error("Failed to write audit log")
		return err
	}
	return nil
}

func (s *auditService) List(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	return s.repo.List(ctx, limit)
}
