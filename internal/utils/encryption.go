package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// -----------------------------------------
// 1) AES-256-GCM
//    [nonce(12 bytes) || ciphertext... || tag(16 bytes)]
// ------------------------------------------

// SealGCM encrypts plaintext with AES-256-GCM under a 32-byte key and
// returns nonce||ciphertext||tag.
func SealGCM(encryptionKey, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(encryptionKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// OpenGCM reverses SealGCM. Any tampering surfaces as an error.
func OpenGCM(encryptionKey, blob []byte) ([]byte, error) {
	gcm, err := newGCM(encryptionKey)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize+gcm.Overhead() {
		return nil, errors.New("malformed ciphertext (too short for nonce and tag)")
	}
	return gcm.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
}

func newGCM(encryptionKey []byte) (cipher.AEAD, error) {
	if len(encryptionKey) != 32 {
		return nil, errors.New("encryption key must be 32 bytes for AES-256")
	}
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts text with AES-256-GCM and returns it as one
// URL-safe Base64 string. Used for values stored in the database.
func Encrypt(encryptionKey []byte, text string) (string, error) {
	data, err := SealGCM(encryptionKey, []byte(text))
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decrypt decrypts data produced by Encrypt.
func Decrypt(encryptionKey []byte, encoded string) (string, error) {
	if len(encryptionKey) != 32 {
		return "", errors.New("encryption key must be 32 bytes for AES-256")
	}
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	plaintext, err := OpenGCM(encryptionKey, raw)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// ---------------------------------------------
// 2) "Salted__" Format (AES-256-CBC)
//    Output: Base64("Salted__" + 8-byte salt + ciphertext)
// ---------------------------------------------
//
// Two key derivations are supported:
//
//   SaltedKDFPBKDF2 matches `openssl enc -aes-256-cbc -pbkdf2 -iter 10000 -md sha256`
//   SaltedKDFLegacyMD5 matches `openssl enc -aes-256-cbc -md md5` and the
//   browser CryptoJS.AES.encrypt(message, passphrase) default.

type SaltedKDF int

const (
	SaltedKDFPBKDF2 SaltedKDF = iota
	SaltedKDFLegacyMD5
)

const (
	saltedHeader      = "Salted__"
	saltedPBKDF2Iters = 10000
)

func deriveSaltedKeyIV(kdf SaltedKDF, passphrase, salt []byte) ([]byte, []byte, error) {
	switch kdf {
	case SaltedKDFPBKDF2:
		derived := pbkdf2.Key(passphrase, salt, saltedPBKDF2Iters, 48, sha256.New)
		return derived[:32], derived[32:], nil
	case SaltedKDFLegacyMD5:
		derived := evpBytesToKeyMD5(passphrase, salt, 48)
		return derived[:32], derived[32:], nil
	default:
		return nil, nil, errors.New("unknown salted key derivation")
	}
}

// evpBytesToKeyMD5 is OpenSSL's EVP_BytesToKey with MD5 and one iteration:
// D_i = MD5(D_{i-1} || passphrase || salt), concatenated until n bytes.
func evpBytesToKeyMD5(passphrase, salt []byte, n int) []byte {
	var out, prev []byte
	for len(out) < n {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		out = append(out, prev...)
	}
	return out[:n]
}

// EncryptOpenSSLSalted produces the OpenSSL salted envelope with a random
// salt, AES-256-CBC and PKCS#7 padding, standard Base64 encoded.
func EncryptOpenSSLSalted(kdf SaltedKDF, passphrase []byte, text string) (string, error) {
	if len(passphrase) == 0 {
		return "", errors.New("passphrase cannot be empty")
	}

	salt := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key, iv, err := deriveSaltedKeyIV(kdf, passphrase, salt)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	plaintext := []byte(text)
	blockSize := block.BlockSize()
	paddingLen := blockSize - (len(plaintext) % blockSize)
	plaintext = append(plaintext, bytes.Repeat([]byte{byte(paddingLen)}, paddingLen)...)

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)

	full := make([]byte, 0, 16+len(ciphertext))
	full = append(full, saltedHeader...)
	full = append(full, salt...)
	full = append(full, ciphertext...)
	return base64.StdEncoding.EncodeToString(full), nil
}

// DecryptOpenSSLSalted decrypts a standard Base64 "Salted__" envelope.
func DecryptOpenSSLSalted(kdf SaltedKDF, passphrase []byte, b64Cipher string) (string, error) {
	if len(passphrase) == 0 {
		return "", errors.New("passphrase cannot be empty")
	}
	if b64Cipher == "" {
		return "", errors.New("ciphertext cannot be empty")
	}

	raw, err := base64.StdEncoding.DecodeString(b64Cipher)
	if err != nil {
		return "", err
	}
	if !IsOpenSSLSalted(raw) {
		return "", errors.New("data does not begin with 'Salted__' and salt")
	}

	salt := raw[8:16]
	ciphertext := raw[16:]
	if len(ciphertext) == 0 {
		return "", errors.New("no ciphertext data")
	}

	key, iv, err := deriveSaltedKeyIV(kdf, passphrase, salt)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	if len(ciphertext)%block.BlockSize() != 0 {
		return "", errors.New("ciphertext not multiple of block size")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	paddingLen := int(plaintext[len(plaintext)-1])
	if paddingLen < 1 || paddingLen > block.BlockSize() {
		return "", errors.New("invalid padding length")
	}
	for _, b := range plaintext[len(plaintext)-paddingLen:] {
		if int(b) != paddingLen {
			return "", errors.New("invalid padding bytes")
		}
	}
	return string(plaintext[:len(plaintext)-paddingLen]), nil
}

// IsOpenSSLSalted reports whether raw (already Base64-decoded) carries the
// "Salted__" header followed by a full 8-byte salt.
func IsOpenSSLSalted(raw []byte) bool {
	return len(raw) >= 16 && string(raw[:8]) == saltedHeader
}
