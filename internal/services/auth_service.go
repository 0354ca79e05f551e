package services

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/dtos"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/utils"
)

// AuthService handles registration and the two-step password + OTP login.
type AuthService interface {
	Register(ctx context.Context, req dtos.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.OTPChallenge, error)
	VerifyLogin(ctx context.Context, username, code string) (*models.User, string, error)
}

type authService struct {
	userRepo         repositories.UserRepository
	otp              OTPService
	jwt              JWTService
	audit            AuditService
	registrationCode string
	now              func() time.Time
}

func NewAuthService(
	userRepo repositories.UserRepository,
	otp OTPService,
	jwt JWTService,
	audit AuditService,
	registrationCode string,
) AuthService {
	return &authService{
		userRepo:         userRepo,
		otp:              otp,
		jwt:              jwt,
		audit:            audit,
		registrationCode: registrationCode,
		now:              time.Now,
	}
}

func (s *authService) Register(ctx context.Context, req dtos.RegisterRequest) (*models.User, error) {
	role := models.Role(req.Role)
	if !role.Valid() {
		return nil, utils.ErrForbidden
	}
	if role.Privileged() && !s.validRegistrationCode(req.RegistrationCode) {
		return nil, utils.ErrInvalidRegistrationCode
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, models.AuditRegister, &user.ID, map[string]any{
		"username": user.Username,
		"role":     user.Role,
	})
	return user, nil
}

// validRegistrationCode fails closed when no code is configured.
func (s *authService) validRegistrationCode(code string) bool {
	if s.registrationCode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(s.registrationCode)) == 1
}

func (s *authService) Login(ctx context.Context, username, password string) (*models.OTPChallenge, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !utils.CheckPasswordHash(password, user.PasswordHash) {
		utils.Logger.WithField("username", username).Warn("Failed login attempt")
		return nil, utils.ErrInvalidCredentials
	}
	return s.otp.IssueLogin(ctx, user)
}

func (s *authService) VerifyLogin(ctx context.Context, username, code string) (*models.User, string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", utils.ErrNoChallengePending
	}

	if err := s.otp.VerifyLogin(ctx, user, code); err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	if err := s.userRepo.UpdateWithRetry(ctx, user.ID, func(u *models.User) error {
		u.LastLoginAt = &now
		return nil
	}); err != nil {
		utils.Logger.WithError(err).Warnf("Failed to record last login for user %s", user.ID)
	} else {
		user.LastLoginAt = &now
	}

	token, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, "", err
	}

	_ = s.audit.Record(ctx, models.AuditLogin, &user.ID, map[string]any{
		"username": user.Username,
	})
	return user, token, nil
}
