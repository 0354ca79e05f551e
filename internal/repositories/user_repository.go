package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/utils"
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.User, error)

	UpdateIfVersion(ctx context.Context, u *models.User, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.User) error) error
}

type userRepo struct {
	*BaseVersionedRepo[*models.User]
	db DB
}

func NewUserRepository(db DB) UserRepository {
	r := &userRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectUser()+" WHERE id=$1", r.scanUser)
	return r
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id,username,email,phone_number,password_hash,role,
			created_at,updated_at,row_version
		) VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW(),1)`,
		u.ID, u.Username, u.Email, u.PhoneNumber, u.PasswordHash, string(u.Role),
	)
	if isUniqueViolation(err) {
		return utils.ErrUsernameExists
	}
	return err
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.scanUser(r.db.QueryRow(ctx, baseSelectUser()+" WHERE id=$1", id))
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.scanUser(r.db.QueryRow(ctx, baseSelectUser()+" WHERE username=$1", username))
}

func (r *userRepo) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, baseSelectUser()+" WHERE role=$1 ORDER BY created_at", string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepo) UpdateIfVersion(ctx context.Context, u *models.User, expected int64) (pgconn.CommandTag, error) {
	return r.db.Exec(ctx, `
		UPDATE users SET
			email=$1,phone_number=$2,password_hash=$3,last_login_at=$4,
			updated_at=NOW(),row_version=row_version+1
		WHERE id=$5 AND row_version=$6`,
		u.Email, u.PhoneNumber, u.PasswordHash, u.LastLoginAt, u.ID, expected,
	)
}

func (r *userRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.User) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}

func baseSelectUser() string {
	return `
		SELECT id,username,email,phone_number,password_hash,role,
		       last_login_at,row_version,created_at,updated_at
		FROM users`
}

func (r *userRepo) scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PhoneNumber, &u.PasswordHash, &role,
		&u.LastLoginAt, &u.RowVersion, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}
