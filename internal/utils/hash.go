package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// HashToken hashes one-time codes and other opaque tokens before they
// are written anywhere persistent.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.URLEncoding.EncodeToString(sum[:])
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data. Supporting
// documents are fingerprinted with it at submission time.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
