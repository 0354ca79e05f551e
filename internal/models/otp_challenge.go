package models

import (
	"crypto/subtle"
	"time"

	"github.com/sealedbid/tender-service/internal/utils"
)

type OTPPurpose string

const (
	OTPPurposeLogin  OTPPurpose = "login"
	OTPPurposeUnseal OTPPurpose = "unseal"
)

// OTPChallenge is a pending one-time code for one subject (a user for
// login, a bid for unseal).
type OTPChallenge struct {
	Subject   string     `json:"subject"`
	Purpose   OTPPurpose `json:"purpose"`
	Code      string     `json:"-"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Attempts  int        `json:"-"`
}

// Check classifies a submission against c. A nil challenge means none is
// pending. Expiry wins over a matching code.
func (c *OTPChallenge) Check(code string, now time.Time) error {
	if c == nil {
		return utils.ErrNoChallengePending
	}
	if !now.Before(c.ExpiresAt) {
		return utils.ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) != 1 {
		return utils.ErrOTPMismatch
	}
	return nil
}

// RecordMismatch counts one wrong submission and reports whether the
// challenge has now used up its maxAttempts and must be discarded.
func (c *OTPChallenge) RecordMismatch(maxAttempts int) bool {
	c.Attempts++
	return c.Attempts >= maxAttempts
}
