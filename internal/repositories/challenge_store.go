package repositories

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sealedbid/tender-service/internal/constants"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/utils"
)

// ChallengeStore holds login OTP challenges keyed by subject. Consume
// classifies the submission and, on success, deletes the challenge in the
// same step. Expired challenges are deleted when they are found, and a
// challenge is discarded after constants.MaxOTPAttempts wrong codes.
type ChallengeStore interface {
	Put(ctx context.Context, c *models.OTPChallenge) error
	Consume(ctx context.Context, purpose models.OTPPurpose, subject, code string, now time.Time) error
}

type memoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*models.OTPChallenge
}

func NewMemoryChallengeStore() ChallengeStore {
	return &memoryChallengeStore{challenges: make(map[string]*models.OTPChallenge)}
}

func challengeKey(purpose models.OTPPurpose, subject string) string {
	return "otp:" + string(purpose) + ":" + subject
}

func (s *memoryChallengeStore) Put(_ context.Context, c *models.OTPChallenge) error {
	cp := *c
	cp.Code = utils.HashToken(c.Code)
	cp.Attempts = 0
	s.mu.Lock()
	s.challenges[challengeKey(c.Purpose, c.Subject)] = &cp
	s.mu.Unlock()
	return nil
}

func (s *memoryChallengeStore) Consume(
	_ context.Context,
	purpose models.OTPPurpose,
	subject, code string,
	now time.Time,
) error {
	key := challengeKey(purpose, subject)

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.challenges[key]
	err := c.Check(utils.HashToken(code), now)
	switch {
	case err == nil, errors.Is(err, utils.ErrOTPExpired):
		delete(s.challenges, key)
	case errors.Is(err, utils.ErrOTPMismatch):
		if c.RecordMismatch(constants.MaxOTPAttempts) {
			delete(s.challenges, key)
			return utils.ErrOTPAttemptsExceeded
		}
	}
	return err
}
