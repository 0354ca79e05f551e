package dtos

import "time"

// ----------------------
// Requests
// ----------------------

type RegisterRequest struct {
	Username         string  `json:"username" validate:"required,min=3,max=64,alphanum"`
	Email            string  `json:"email" validate:"required,email"`
	PhoneNumber      *string `json:"phoneNumber,omitempty" validate:"omitempty,e164"`
	Password         string  `json:"password" validate:"required,min=8,max=72"`
	Role             string  `json:"role" validate:"required,oneof=contractor officer auditor"`
	RegistrationCode string  `json:"registrationCode,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type VerifyLoginRequest struct {
	Username string `json:"username" validate:"required"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
}

// ----------------------
// Responses
// ----------------------

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type LoginResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VerifyLoginResponse struct {
	Token  string `json:"token"`
	Role   string `json:"role"`
	UserID string `json:"userId"`
}

// DHKeyResponse carries the group and the server public value, each as
// standard Base64 of the big-endian integer.
type DHKeyResponse struct {
	Prime     string `json:"prime"`
	Generator string `json:"generator"`
	PublicKey string `json:"publicKey"`
}
