package services

import (
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/middleware"
	"github.com/sealedbid/tender-service/internal/models"
)

type JWTService interface {
	GenerateAccessToken(user *models.User) (string, error)
}

type jwtService struct {
	privateKey  *rsa.PrivateKey
	tokenExpiry time.Duration
}

func NewJWTService(privateKey *rsa.PrivateKey, tokenExpiry time.Duration) JWTService {
	return &jwtService{privateKey: privateKey, tokenExpiry: tokenExpiry}
}

func (j *jwtService) GenerateAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  middleware.TokenIssuer,
		"sub":  user.ID.String(),
		"exp":  now.Add(j.tokenExpiry).Unix(),
		"iat":  now.Unix(),
		"jti":  uuid.NewString(),
		"role": string(user.Role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(j.privateKey)
}
