package utils

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// RandomIntInRange draws uniformly from [min, max] using crypto/rand.
func RandomIntInRange(min, max int64) (int64, error) {
	if max < min {
		return 0, errors.New("empty range")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, err
	}
	return min + n.Int64(), nil
}
