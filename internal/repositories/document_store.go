package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
)

// ErrDocumentNotFound is returned by DocumentStore.Get for an unknown ref.
var ErrDocumentNotFound = errors.New("document_not_found")

// DocumentStore keeps bid supporting documents. Put returns an opaque ref
// that is stored on the bid. Delete of an unknown ref is not an error.
type DocumentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

type pgDocumentStore struct {
	db DB
}

func NewPostgresDocumentStore(db DB) DocumentStore {
	return &pgDocumentStore{db: db}
}

func (s *pgDocumentStore) Put(ctx context.Context, data []byte) (string, error) {
	id := uuid.New()
	_, err := s.db.Exec(ctx,
		`INSERT INTO bid_documents (id, data, created_at) VALUES ($1, $2, NOW())`,
		id, data,
	)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *pgDocumentStore) Get(ctx context.Context, ref string) ([]byte, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	var data []byte
	err = s.db.QueryRow(ctx, `SELECT data FROM bid_documents WHERE id=$1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	return data, err
}

func (s *pgDocumentStore) Delete(ctx context.Context, ref string) error {
	id, err := uuid.Parse(ref)
	if err != nil {
		return nil
	}
	_, err = s.db.Exec(ctx, `DELETE FROM bid_documents WHERE id=$1`, id)
	return err
}
