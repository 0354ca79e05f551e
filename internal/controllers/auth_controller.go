package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sealedbid/tender-service/internal/dtos"
	"github.com/sealedbid/tender-service/internal/keyexchange"
	"github.com/sealedbid/tender-service/internal/services"
	"github.com/sealedbid/tender-service/internal/utils"
)

type AuthController struct {
	authService services.AuthService
	agreement   *keyexchange.KeyAgreement
	validate    *validator.Validate
}

func NewAuthController(authService services.AuthService, agreement *keyexchange.KeyAgreement) *AuthController {
	return &AuthController{
		authService: authService,
		agreement:   agreement,
		validate:    validator.New(),
	}
}

// POST /api/v1/auth/register
func (c *AuthController) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", err.Error(), err)
		return
	}

	user, err := c.authService.Register(r.Context(), req)
	if err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Registration failed"))
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dtos.RegisterResponse{
		Message: "User registered",
		UserID:  user.ID.String(),
	})
}

// POST /api/v1/auth/login
func (c *AuthController) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", err.Error(), err)
		return
	}

	challenge, err := c.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Login failed"))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.LoginResponse{
		Message:   "Verification code sent",
		ExpiresAt: challenge.ExpiresAt,
	})
}

// POST /api/v1/auth/login/verify
func (c *AuthController) VerifyLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.VerifyLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := c.validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", err.Error(), err)
		return
	}

	user, token, err := c.authService.VerifyLogin(r.Context(), req.Username, req.OTP)
	if err != nil {
		utils.HandleAppError(w, utils.ToAppError(err, "Login verification failed"))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.VerifyLoginResponse{
		Token:  token,
		Role:   string(user.Role),
		UserID: user.ID.String(),
	})
}

// GET /api/v1/auth/dh-key
func (c *AuthController) DHKeyHandler(w http.ResponseWriter, _ *http.Request) {
	p, g, pub := c.agreement.PublicParameters()
	utils.RespondWithJSON(w, http.StatusOK, dtos.DHKeyResponse{
		Prime:     keyexchange.EncodeInt(p),
		Generator: keyexchange.EncodeInt(g),
		PublicKey: keyexchange.EncodeInt(pub),
	})
}
