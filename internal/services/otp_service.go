package services

import (
	"context"
	"strconv"
	"time"

	"github.com/sealedbid/tender-service/internal/constants"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/utils"
)

// OTPService issues six-digit codes and tracks login challenges. Unseal
// challenges are stored on the bid row by BidService, but are drawn and
// delivered here.
type OTPService interface {
	NewChallenge(purpose models.OTPPurpose, subject string) (*models.OTPChallenge, error)
	Deliver(ctx context.Context, to *models.User, c *models.OTPChallenge) error

	IssueLogin(ctx context.Context, user *models.User) (*models.OTPChallenge, error)
	VerifyLogin(ctx context.Context, user *models.User, code string) error
}

type otpService struct {
	store    repositories.ChallengeStore
	notifier Notifier
	now      func() time.Time
}

func NewOTPService(store repositories.ChallengeStore, notifier Notifier) OTPService {
	return &otpService{store: store, notifier: notifier, now: time.Now}
}

func otpTTL(purpose models.OTPPurpose) time.Duration {
	if purpose == models.OTPPurposeUnseal {
		return constants.UnsealOTPTTL
	}
	return constants.LoginOTPTTL
}

// generateCode draws uniformly from [OTPMin, OTPMax].
func generateCode() (string, error) {
	n, err := utils.RandomIntInRange(constants.OTPMin, constants.OTPMax)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

func (s *otpService) NewChallenge(purpose models.OTPPurpose, subject string) (*models.OTPChallenge, error) {
	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	return &models.OTPChallenge{
		Subject:   subject,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: s.now().Add(otpTTL(purpose)),
	}, nil
}

func (s *otpService) Deliver(ctx context.Context, to *models.User, c *models.OTPChallenge) error {
	return s.notifier.SendCode(ctx, to, c)
}

func (s *otpService) IssueLogin(ctx context.Context, user *models.User) (*models.OTPChallenge, error) {
	c, err := s.NewChallenge(models.OTPPurposeLogin, user.ID.String())
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, c); err != nil {
		return nil, err
	}
	if err := s.Deliver(ctx, user, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *otpService) VerifyLogin(ctx context.Context, user *models.User, code string) error {
	return s.store.Consume(ctx, models.OTPPurposeLogin, user.ID.String(), code, s.now())
}
