package keyexchange

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/sealedbid/tender-service/internal/utils"
)

// SessionKeySize is the length of keys produced by DeriveKey.
const SessionKeySize = sha256.Size

// CanonicalBytes is the byte form both ends hash: the minimal hex form of the
// secret, left-padded to an even number of nibbles, hex-decoded.
func CanonicalBytes(secret *big.Int) []byte {
	h := secret.Text(16)
	if len(h)%2 == 1 {
		h = "0" + h
	}
	b, _ := hex.DecodeString(h)
	return b
}

// DeriveKey hashes the canonical secret bytes into a 32-byte AES key.
func DeriveKey(secret *big.Int) []byte {
	sum := sha256.Sum256(CanonicalBytes(secret))
	return sum[:]
}

// legacyPassphrase is what CryptoJS clients pass as the AES passphrase: the
// lowercase hex of the derived key.
func legacyPassphrase(key []byte) []byte {
	return []byte(hex.EncodeToString(key))
}

// SessionEncrypt seals a short plaintext under the session key with
// AES-256-GCM, returning Base64(nonce||ciphertext||tag).
func SessionEncrypt(plaintext string, key []byte) (string, error) {
	blob, err := utils.SealGCM(key, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// SessionEncryptLegacy produces the OpenSSL "Salted__" envelope emitted by
// CryptoJS.AES.encrypt(plaintext, hex(key)).
func SessionEncryptLegacy(plaintext string, key []byte) (string, error) {
	return utils.EncryptOpenSSLSalted(utils.SaltedKDFLegacyMD5, legacyPassphrase(key), plaintext)
}

// SessionDecrypt opens either envelope and checks the plaintext is a
// decimal number. Every failure is reported as ErrHandshakeMismatch because a
// wrong key on either side is indistinguishable from tampering.
func SessionDecrypt(ciphertext string, key []byte) (string, error) {
	if len(key) != SessionKeySize {
		return "", fmt.Errorf("%w: session key must be %d bytes", utils.ErrHandshakeMismatch, SessionKeySize)
	}
	ciphertext = strings.TrimSpace(ciphertext)
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext is not base64", utils.ErrHandshakeMismatch)
	}

	var plaintext string
	if utils.IsOpenSSLSalted(raw) {
		plaintext, err = openSalted(ciphertext, key)
	} else {
		var out []byte
		out, err = utils.OpenGCM(key, raw)
		plaintext = string(out)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrHandshakeMismatch, err)
	}

	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return "", fmt.Errorf("%w: empty plaintext", utils.ErrHandshakeMismatch)
	}
	if _, err := utils.ParseDecimal(plaintext); err != nil {
		return "", fmt.Errorf("%w: plaintext is not a decimal number", utils.ErrHandshakeMismatch)
	}
	return plaintext, nil
}

// openSalted tries the CryptoJS key derivation first, then the one
// `openssl enc -pbkdf2` uses. A wrong derivation can still unpad cleanly,
// so a candidate only counts when it yields a decimal.
func openSalted(ciphertext string, key []byte) (string, error) {
	var firstErr error
	for _, kdf := range []utils.SaltedKDF{utils.SaltedKDFLegacyMD5, utils.SaltedKDFPBKDF2} {
		pt, err := utils.DecryptOpenSSLSalted(kdf, legacyPassphrase(key), ciphertext)
		if err == nil {
			if _, perr := utils.ParseDecimal(strings.TrimSpace(pt)); perr == nil {
				return pt, nil
			}
			err = errors.New("plaintext is not a decimal number")
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return "", firstErr
}
