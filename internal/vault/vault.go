// Package vault keeps bid amounts encrypted at rest under the server's
// master key.
package vault

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/sealedbid/tender-service/internal/utils"
)

// MasterKeySize is the AES-256 master key length in bytes.
const MasterKeySize = 32

// BidVault encrypts and decrypts amounts under one static master key.
type BidVault struct {
	masterKey []byte
}

// NewBidVault copies masterKey, which must be MasterKeySize bytes.
func NewBidVault(masterKey []byte) (*BidVault, error) {
	if len(masterKey) != MasterKeySize {
		return nil, errors.New("bid master key must be 32 bytes")
	}
	k := make([]byte, MasterKeySize)
	copy(k, masterKey)
	return &BidVault{masterKey: k}, nil
}

// Encrypt stores amount under the master key. amount must already be a
// validated decimal string.
func (v *BidVault) Encrypt(amount string) (string, error) {
	if _, err := utils.ParseNonNegativeDecimal(amount); err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrInvalidAmount, err)
	}
	return utils.Encrypt(v.masterKey, amount)
}

// Decrypt returns the plaintext amount, or ErrCorruptCiphertext when the
// ciphertext fails authentication or does not hold a non-negative decimal.
func (v *BidVault) Decrypt(ciphertext string) (string, error) {
	pt, err := utils.Decrypt(v.masterKey, ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrCorruptCiphertext, err)
	}
	if _, err := utils.ParseNonNegativeDecimal(pt); err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrCorruptCiphertext, err)
	}
	return pt, nil
}

// DecryptAmount is Decrypt followed by exact parsing.
func (v *BidVault) DecryptAmount(ciphertext string) (string, *big.Rat, error) {
	pt, err := v.Decrypt(ciphertext)
	if err != nil {
		return "", nil, err
	}
	r, _ := utils.ParseNonNegativeDecimal(pt)
	return pt, r, nil
}
