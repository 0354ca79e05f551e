package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/sealedbid/tender-service/internal/models"
)

type TenderRepository interface {
	Create(ctx context.Context, t *models.Tender) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tender, error)
	List(ctx context.Context) ([]*models.Tender, error)
	ListExpiredOpen(ctx context.Context, now time.Time) ([]*models.Tender, error)

	// CloseIfOpen moves an open tender to closed and records the winner in
	// one conditional update. It reports false when the tender was already
	// closed (or missing), in which case nothing is written.
	CloseIfOpen(ctx context.Context, id uuid.UUID, winner *uuid.UUID, closedAt time.Time) (bool, error)
}

type tenderRepo struct {
	db DB
}

func NewTenderRepository(db DB) TenderRepository {
	return &tenderRepo{db: db}
}

func (r *tenderRepo) Create(ctx context.Context, t *models.Tender) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tenders (
			id,title,description,deadline,created_by,status,
			created_at,updated_at,row_version
		) VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW(),1)`,
		t.ID, t.Title, t.Description, t.Deadline, t.CreatedBy, string(t.Status),
	)
	return err
}

func (r *tenderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tender, error) {
	return scanTender(r.db.QueryRow(ctx, baseSelectTender()+" WHERE id=$1", id))
}

func (r *tenderRepo) List(ctx context.Context) ([]*models.Tender, error) {
	return r.query(ctx, baseSelectTender()+" ORDER BY created_at DESC")
}

func (r *tenderRepo) ListExpiredOpen(ctx context.Context, now time.Time) ([]*models.Tender, error) {
	return r.query(ctx,
		baseSelectTender()+" WHERE status='open' AND deadline < $1 ORDER BY deadline",
		now,
	)
}

func (r *tenderRepo) CloseIfOpen(
	ctx context.Context,
	id uuid.UUID,
	winner *uuid.UUID,
	closedAt time.Time,
) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tenders SET
			status='closed',winner_bid_id=$2,closed_at=$3,
			updated_at=NOW(),row_version=row_version+1
		WHERE id=$1 AND status='open'`,
		id, winner, closedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *tenderRepo) query(ctx context.Context, sql string, args ...any) ([]*models.Tender, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Tender
	for rows.Next() {
		t, err := scanTender(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func baseSelectTender() string {
	return `
		SELECT id,title,description,deadline,created_by,status,
		       winner_bid_id,closed_at,row_version,created_at,updated_at
		FROM tenders`
}

func scanTender(row pgx.Row) (*models.Tender, error) {
	var t models.Tender
	var status string
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Deadline, &t.CreatedBy, &status,
		&t.WinnerBidID, &t.ClosedAt, &t.RowVersion, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Status = models.TenderStatus(status)
	return &t, nil
}
