package utils

import (
	"errors"
	"math/big"
	"regexp"
	"strings"
)

var decimalPattern = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)

// ParseDecimal parses a plain decimal string ("1500", "99.95", "-3") into an
// exact rational. Exponents, hex, NaN and Inf are rejected.
func ParseDecimal(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return nil, errors.New("not a decimal number")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, errors.New("not a decimal number")
	}
	return r, nil
}

// ParseNonNegativeDecimal is ParseDecimal restricted to values >= 0.
func ParseNonNegativeDecimal(s string) (*big.Rat, error) {
	r, err := ParseDecimal(s)
	if err != nil {
		return nil, err
	}
	if r.Sign() < 0 {
		return nil, errors.New("negative amount")
	}
	return r, nil
}

// ToMinorUnits converts an amount into integer minor currency units
// (paise, cents), rounding half away from zero.
func ToMinorUnits(amount *big.Rat) (int64, error) {
	scaled := new(big.Rat).Mul(amount, big.NewRat(100, 1))
	num := new(big.Int).Set(scaled.Num())
	den := scaled.Denom()

	q, m := new(big.Int).QuoRem(num, den, new(big.Int))
	if new(big.Int).Mul(new(big.Int).Abs(m), big.NewInt(2)).Cmp(den) >= 0 {
		if num.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	if !q.IsInt64() {
		return 0, errors.New("amount out of range")
	}
	return q.Int64(), nil
}
