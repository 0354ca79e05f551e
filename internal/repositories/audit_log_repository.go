package repositories

import (
	"context"
	"encoding/json"

	"github.com/sealedbid/tender-service/internal/models"
)

// AuditLogRepository is the audit sink. Entries are append-only.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, limit int) ([]*models.AuditLog, error)
}

type auditLogRepo struct {
	db DB
}

func NewAuditLogRepository(db DB) AuditLogRepository {
	return &auditLogRepo{db: db}
}

func (r *auditLogRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	q := `
		INSERT INTO audit_logs (
			id, action, performed_by, details, created_at
		) VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, q,
		entry.ID,
		string(entry.Action),
		entry.PerformedBy,
		entry.Details,
		entry.CreatedAt,
	)
	return err
}

func (r *auditLogRepo) List(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, action, performed_by, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		var action string
		var details []byte
		if err := rows.Scan(&e.ID, &action, &e.PerformedBy, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = models.AuditAction(action)
		if details != nil {
			raw := json.RawMessage(details)
			e.Details = &raw
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
