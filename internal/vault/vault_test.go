package vault

import (
	"crypto/rand"
	"testing"

	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *BidVault {
	t.Helper()
	key := make([]byte, MasterKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	v, err := NewBidVault(key)
	require.NoError(t, err)
	return v
}

func TestNewBidVaultKeyLength(t *testing.T) {
	_, err := NewBidVault(make([]byte, 16))
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	v := newTestVault(t)
	for _, amount := range []string{"0", "500", "1500.50", "0.01", "123456789012345.6789"} {
		ct, err := v.Encrypt(amount)
		require.NoError(t, err)
		assert.NotContains(t, ct, amount)

		pt, err := v.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, amount, pt)
	}
}

func TestEncryptRejectsInvalidAmount(t *testing.T) {
	v := newTestVault(t)
	for _, amount := range []string{"", "abc", "-1"} {
		_, err := v.Encrypt(amount)
		assert.ErrorIs(t, err, utils.ErrInvalidAmount, amount)
	}
}

func TestDecryptCorruptCiphertext(t *testing.T) {
	v := newTestVault(t)
	other := newTestVault(t)

	ct, err := v.Encrypt("42")
	require.NoError(t, err)

	_, err = other.Decrypt(ct)
	assert.ErrorIs(t, err, utils.ErrCorruptCiphertext)

	_, err = v.Decrypt("not-a-ciphertext")
	assert.ErrorIs(t, err, utils.ErrCorruptCiphertext)

	// Authentic ciphertext whose plaintext is not an amount.
	bogus, err := utils.Encrypt(v.masterKey, "n/a")
	require.NoError(t, err)
	_, err = v.Decrypt(bogus)
	assert.ErrorIs(t, err, utils.ErrCorruptCiphertext)

	negative, err := utils.Encrypt(v.masterKey, "-10")
	require.NoError(t, err)
	_, err = v.Decrypt(negative)
	assert.ErrorIs(t, err, utils.ErrCorruptCiphertext)
}

func TestDecryptAmount(t *testing.T) {
	v := newTestVault(t)
	ct, err := v.Encrypt("99.5")
	require.NoError(t, err)

	s, r, err := v.DecryptAmount(ct)
	require.NoError(t, err)
	assert.Equal(t, "99.5", s)
	assert.Equal(t, "199/2", r.String())
}

func TestNewBidVaultCopiesKey(t *testing.T) {
	key := make([]byte, MasterKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	v, err := NewBidVault(key)
	require.NoError(t, err)
	ct, err := v.Encrypt("77")
	require.NoError(t, err)

	for i := range key {
		key[i] = 0
	}
	pt, err := v.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "77", pt)
}
