// Package testhelpers holds in-memory repositories and fixtures for unit
// tests. The fakes mirror the conditional-update semantics of the Postgres
// repositories so that service-level races behave the same way.
package testhelpers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/sealedbid/tender-service/internal/constants"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/utils"
)

/* ------------------------------------------------------------------
   Users
------------------------------------------------------------------ */

type MemUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

var _ repositories.UserRepository = (*MemUserRepo)(nil)

func NewMemUserRepo() *MemUserRepo {
	return &MemUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *MemUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return utils.ErrUsernameExists
		}
	}
	cp := *u
	cp.RowVersion = 1
	r.users[u.ID] = &cp
	return nil
}

func (r *MemUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *MemUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemUserRepo) ListByRole(_ context.Context, role models.Role) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.users {
		if u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemUserRepo) UpdateIfVersion(_ context.Context, u *models.User, expected int64) (pgconn.CommandTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[u.ID]
	if !ok || cur.RowVersion != expected {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	cp := *u
	cp.RowVersion = expected + 1
	r.users[u.ID] = &cp
	return pgconn.CommandTag("UPDATE 1"), nil
}

func (r *MemUserRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.User) error) error {
	return repositories.WithRetry[*models.User](ctx, 3, id.String(),
		func(ctx context.Context, _ string) (*models.User, error) { return r.GetByID(ctx, id) },
		r.UpdateIfVersion,
		mutate,
	)
}

/* ------------------------------------------------------------------
   Tenders
------------------------------------------------------------------ */

type MemTenderRepo struct {
	mu      sync.Mutex
	tenders map[uuid.UUID]*models.Tender
}

var _ repositories.TenderRepository = (*MemTenderRepo)(nil)

func NewMemTenderRepo() *MemTenderRepo {
	return &MemTenderRepo{tenders: make(map[uuid.UUID]*models.Tender)}
}

func (r *MemTenderRepo) Create(_ context.Context, t *models.Tender) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	cp.RowVersion = 1
	r.tenders[t.ID] = &cp
	return nil
}

func (r *MemTenderRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Tender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tenders[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *MemTenderRepo) List(_ context.Context) ([]*models.Tender, error) {
	return r.filter(func(*models.Tender) bool { return true }), nil
}

func (r *MemTenderRepo) ListExpiredOpen(_ context.Context, now time.Time) ([]*models.Tender, error) {
	return r.filter(func(t *models.Tender) bool { return t.IsExpired(now) }), nil
}

func (r *MemTenderRepo) CloseIfOpen(_ context.Context, id uuid.UUID, winner *uuid.UUID, closedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenders[id]
	if !ok || t.Status != models.TenderStatusOpen {
		return false, nil
	}
	t.Status = models.TenderStatusClosed
	t.WinnerBidID = winner
	t.ClosedAt = &closedAt
	t.RowVersion++
	return true, nil
}

func (r *MemTenderRepo) filter(keep func(*models.Tender) bool) []*models.Tender {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tender
	for _, t := range r.tenders {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

/* ------------------------------------------------------------------
   Bids
------------------------------------------------------------------ */

type MemBidRepo struct {
	mu   sync.Mutex
	bids map[uuid.UUID]*models.Bid
}

var _ repositories.BidRepository = (*MemBidRepo)(nil)

func NewMemBidRepo() *MemBidRepo {
	return &MemBidRepo{bids: make(map[uuid.UUID]*models.Bid)}
}

func copyBid(b *models.Bid) *models.Bid {
	cp := *b
	if b.PendingOTP != nil {
		otp := *b.PendingOTP
		cp.PendingOTP = &otp
	}
	return &cp
}

func (r *MemBidRepo) Create(_ context.Context, b *models.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := copyBid(b)
	cp.RowVersion = 1
	r.bids[b.ID] = cp
	return nil
}

// Put stores b as-is, for fixtures that need a bid in a particular state.
func (r *MemBidRepo) Put(b *models.Bid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids[b.ID] = copyBid(b)
}

func (r *MemBidRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bids[id]; ok {
		return copyBid(b), nil
	}
	return nil, nil
}

func (r *MemBidRepo) GetByPaymentOrderID(_ context.Context, orderID string) (*models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bids {
		if b.PaymentOrderID != nil && *b.PaymentOrderID == orderID {
			return copyBid(b), nil
		}
	}
	return nil, nil
}

func (r *MemBidRepo) ListByTender(_ context.Context, tenderID uuid.UUID) ([]*models.Bid, error) {
	out := r.filter(func(b *models.Bid) bool { return b.TenderID == tenderID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *MemBidRepo) ListByContractor(_ context.Context, contractorID uuid.UUID) ([]*models.Bid, error) {
	return r.newestFirst(r.filter(func(b *models.Bid) bool { return b.ContractorID == contractorID })), nil
}

func (r *MemBidRepo) ListAll(_ context.Context) ([]*models.Bid, error) {
	return r.newestFirst(r.filter(func(*models.Bid) bool { return true })), nil
}

func (r *MemBidRepo) SetUnsealChallenge(_ context.Context, bidID uuid.UUID, code string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[bidID]
	if !ok {
		return utils.ErrBidNotFound
	}
	b.PendingOTP = &models.OTPChallenge{
		Subject:   bidID.String(),
		Purpose:   models.OTPPurposeUnseal,
		Code:      utils.HashToken(code),
		ExpiresAt: expiresAt,
	}
	b.RowVersion++
	return nil
}

func (r *MemBidRepo) ConsumeUnsealChallenge(
	_ context.Context,
	bidID uuid.UUID,
	code string,
	officerID uuid.UUID,
	now time.Time,
) (*models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[bidID]
	if !ok {
		return nil, utils.ErrBidNotFound
	}
	err := b.PendingOTP.Check(utils.HashToken(code), now)
	switch {
	case errors.Is(err, utils.ErrOTPExpired):
		b.PendingOTP = nil
	case errors.Is(err, utils.ErrOTPMismatch):
		if b.PendingOTP.RecordMismatch(constants.MaxOTPAttempts) {
			b.PendingOTP = nil
			return nil, utils.ErrOTPAttemptsExceeded
		}
	}
	if err != nil {
		return nil, err
	}
	b.PendingOTP = nil
	b.Status = models.BidStatusUnsealed
	b.Unsealed = &models.UnsealRecord{By: officerID, At: now}
	b.RowVersion++
	return copyBid(b), nil
}

func (r *MemBidRepo) Reseal(_ context.Context, bidID, officerID uuid.UUID, now time.Time) (*models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[bidID]
	if !ok {
		return nil, utils.ErrBidNotFound
	}
	if b.Status != models.BidStatusUnsealed {
		return nil, utils.ErrNotUnsealed
	}
	b.Status = models.BidStatusSealed
	b.Resealed = &models.UnsealRecord{By: officerID, At: now}
	b.RowVersion++
	return copyBid(b), nil
}

func (r *MemBidRepo) SetPaymentOrder(_ context.Context, bidID uuid.UUID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[bidID]
	if !ok || b.PaymentStatus != models.PaymentStatusPending {
		return utils.ErrAlreadyPaid
	}
	b.PaymentOrderID = &orderID
	b.RowVersion++
	return nil
}

func (r *MemBidRepo) MarkPaid(_ context.Context, orderID, paymentID string) (*models.Bid, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bids {
		if b.PaymentOrderID == nil || *b.PaymentOrderID != orderID {
			continue
		}
		if b.PaymentStatus == models.PaymentStatusPaid {
			return copyBid(b), false, nil
		}
		b.PaymentStatus = models.PaymentStatusPaid
		b.PaymentID = &paymentID
		b.RowVersion++
		return copyBid(b), true, nil
	}
	return nil, false, utils.ErrBidNotFound
}

func (r *MemBidRepo) filter(keep func(*models.Bid) bool) []*models.Bid {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Bid
	for _, b := range r.bids {
		if keep(b) {
			out = append(out, copyBid(b))
		}
	}
	return out
}

func (r *MemBidRepo) newestFirst(bids []*models.Bid) []*models.Bid {
	sort.Slice(bids, func(i, j int) bool { return bids[i].CreatedAt.After(bids[j].CreatedAt) })
	return bids
}

/* ------------------------------------------------------------------
   Audit log
------------------------------------------------------------------ */

type MemAuditLogRepo struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

var _ repositories.AuditLogRepository = (*MemAuditLogRepo)(nil)

func NewMemAuditLogRepo() *MemAuditLogRepo {
	return &MemAuditLogRepo{}
}

func (r *MemAuditLogRepo) Create(_ context.Context, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *MemAuditLogRepo) List(_ context.Context, limit int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.entries[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Actions returns the recorded actions in insertion order.
func (r *MemAuditLogRepo) Actions() []models.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AuditAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// Last returns the most recent entry with the given action, or nil.
func (r *MemAuditLogRepo) Last(action models.AuditAction) *models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Action == action {
			cp := *r.entries[i]
			return &cp
		}
	}
	return nil
}

/* ------------------------------------------------------------------
   Documents
------------------------------------------------------------------ */

type MemDocumentStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

var _ repositories.DocumentStore = (*MemDocumentStore)(nil)

func NewMemDocumentStore() *MemDocumentStore {
	return &MemDocumentStore{docs: make(map[string][]byte)}
}

func (s *MemDocumentStore) Put(_ context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := uuid.NewString()
	s.docs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *MemDocumentStore) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[ref]
	if !ok {
		return nil, repositories.ErrDocumentNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemDocumentStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, ref)
	return nil
}

// Len is the number of stored documents.
func (s *MemDocumentStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Tamper overwrites a stored document in place.
func (s *MemDocumentStore) Tamper(ref string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[ref] = data
}
