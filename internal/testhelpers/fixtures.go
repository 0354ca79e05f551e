package testhelpers

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/vault"
	"github.com/stretchr/testify/require"
)

// MasterKey is a fixed 32-byte key for tests.
var MasterKey = bytes.Repeat([]byte{0x42}, vault.MasterKeySize)

func NewVault(t *testing.T) *vault.BidVault {
	t.Helper()
	v, err := vault.NewBidVault(MasterKey)
	require.NoError(t, err)
	return v
}

func NewUser(role models.Role) *models.User {
	now := time.Now().UTC()
	id := uuid.New()
	return &models.User{
		ID:        id,
		Username:  string(role) + id.String()[:8],
		Email:     string(role) + "@example.test",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewTender(createdBy uuid.UUID, deadline time.Time) *models.Tender {
	now := time.Now().UTC()
	return &models.Tender{
		ID:        uuid.New(),
		Title:     "Road resurfacing",
		Deadline:  deadline,
		CreatedBy: createdBy,
		Status:    models.TenderStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewSealedBid encrypts amount with v and returns a sealed, unpaid bid.
func NewSealedBid(t *testing.T, v *vault.BidVault, tenderID uuid.UUID, amount string, createdAt time.Time) *models.Bid {
	t.Helper()
	ct, err := v.Encrypt(amount)
	require.NoError(t, err)
	return &models.Bid{
		ID:              uuid.New(),
		TenderID:        tenderID,
		ContractorID:    uuid.New(),
		EncryptedAmount: ct,
		Status:          models.BidStatusSealed,
		PaymentStatus:   models.PaymentStatusPending,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// SentCode is one code delivered through CaptureNotifier.
type SentCode struct {
	To      uuid.UUID
	Purpose models.OTPPurpose
	Subject string
	Code    string
}

// CaptureNotifier records delivered codes instead of sending them.
type CaptureNotifier struct {
	mu   sync.Mutex
	sent []SentCode
	Err  error
}

func (n *CaptureNotifier) SendCode(_ context.Context, to *models.User, c *models.OTPChallenge) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, SentCode{To: to.ID, Purpose: c.Purpose, Subject: c.Subject, Code: c.Code})
	return nil
}

// LastCode returns the most recently delivered code, or "" if none.
func (n *CaptureNotifier) LastCode() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return ""
	}
	return n.sent[len(n.sent)-1].Code
}

func (n *CaptureNotifier) Sent() []SentCode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentCode(nil), n.sent...)
}
