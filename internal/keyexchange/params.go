// Package keyexchange implements the finite-field Diffie-Hellman handshake
// that protects a bid amount between the contractor's client and the server,
// and the session cipher keyed from the resulting shared secret.
package keyexchange

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Group names accepted by config (DH_GROUP).
const (
	GroupMODP1024 = "modp1024"
	GroupMODP2048 = "modp2048"
)

// MinPrimeBits is the smallest modulus accepted by Validate.
const MinPrimeBits = 1024

// RFC 2409 section 6.2 (Oakley group 2).
const modp1024Hex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381" +
	"FFFFFFFFFFFFFFFF"

// RFC 3526 section 3 (group 14).
const modp2048Hex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
	"DE2BCBF6955817183995497CEA956AE515D2261898FA0510" +
	"15728E5A8AACAA68FFFFFFFFFFFFFFFF"

// Parameters is a DH group: safe prime P and generator G.
// Values are never mutated after construction.
type Parameters struct {
	Name string
	P    *big.Int
	G    *big.Int
}

func mustParams(name, pHex string) Parameters {
	p, ok := new(big.Int).SetString(pHex, 16)
	if !ok {
		panic("keyexchange: bad prime constant for " + name)
	}
	return Parameters{Name: name, P: p, G: big.NewInt(2)}
}

var (
	modp1024 = mustParams(GroupMODP1024, modp1024Hex)
	modp2048 = mustParams(GroupMODP2048, modp2048Hex)
)

// MODP1024 returns the 1024-bit group. Adequate for demos only.
func MODP1024() Parameters { return modp1024 }

// MODP2048 returns the 2048-bit group used in production.
func MODP2048() Parameters { return modp2048 }

// GroupByName resolves a DH_GROUP value. Empty selects MODP2048.
func GroupByName(name string) (Parameters, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", GroupMODP2048:
		return modp2048, nil
	case GroupMODP1024:
		return modp1024, nil
	default:
		return Parameters{}, fmt.Errorf("unknown DH group %q", name)
	}
}

// Validate checks structural sanity of P and G. It does not re-prove
// primality; the built-in groups are published safe primes.
func (p Parameters) Validate() error {
	if p.P == nil || p.G == nil {
		return errors.New("dh parameters are incomplete")
	}
	if p.P.BitLen() < MinPrimeBits {
		return fmt.Errorf("dh prime is %d bits, need at least %d", p.P.BitLen(), MinPrimeBits)
	}
	if p.P.Bit(0) == 0 {
		return errors.New("dh prime is even")
	}
	pMinus1 := new(big.Int).Sub(p.P, one)
	if p.G.Cmp(one) <= 0 || p.G.Cmp(pMinus1) >= 0 {
		return errors.New("dh generator out of range")
	}
	return nil
}

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)
