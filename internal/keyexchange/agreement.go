package keyexchange

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/sealedbid/tender-service/internal/utils"
)

// KeyAgreement holds the server's long-lived DH key pair for the lifetime of
// the process. It is built once at startup and shared read-only by handlers.
type KeyAgreement struct {
	params  Parameters
	private *big.Int
	public  *big.Int
}

// Initialize generates a fresh key pair over params. Each call yields a new
// pair; callers construct one at startup and inject it. A nil random uses
// crypto/rand.
func Initialize(params Parameters, random io.Reader) (*KeyAgreement, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	private, err := randomExponent(params.P, random)
	if err != nil {
		return nil, fmt.Errorf("generating dh private exponent: %w", err)
	}
	return &KeyAgreement{
		params:  params,
		private: private,
		public:  new(big.Int).Exp(params.G, private, params.P),
	}, nil
}

// randomExponent draws x uniformly from [2, P-2].
func randomExponent(p *big.Int, random io.Reader) (*big.Int, error) {
	if random == nil {
		random = rand.Reader
	}
	span := new(big.Int).Sub(p, big.NewInt(3))
	x, err := rand.Int(random, span)
	if err != nil {
		return nil, err
	}
	return x.Add(x, two), nil
}

// Parameters returns the DH group the key pair lives in.
func (k *KeyAgreement) Parameters() Parameters { return k.params }

// PublicParameters returns copies of P, G and the server public value.
func (k *KeyAgreement) PublicParameters() (p, g, serverPublic *big.Int) {
	return new(big.Int).Set(k.params.P), new(big.Int).Set(k.params.G), new(big.Int).Set(k.public)
}

// ComputeSharedSecret returns peer^x mod P. The result is key material and
// must never be logged or persisted.
func (k *KeyAgreement) ComputeSharedSecret(peer *big.Int) (*big.Int, error) {
	if err := ValidatePeer(k.params, peer); err != nil {
		return nil, err
	}
	return new(big.Int).Exp(peer, k.private, k.params.P), nil
}

// ValidatePeer rejects 0, 1, P-1 and anything >= P. With a safe prime those
// are the only members of the trivial subgroups.
func ValidatePeer(params Parameters, peer *big.Int) error {
	if peer == nil || peer.Sign() <= 0 || peer.Cmp(one) == 0 {
		return utils.ErrInvalidPeerValue
	}
	if peer.Cmp(params.P) >= 0 {
		return utils.ErrInvalidPeerValue
	}
	if peer.Cmp(new(big.Int).Sub(params.P, one)) == 0 {
		return utils.ErrInvalidPeerValue
	}
	return nil
}

// EncodeInt renders a non-negative integer as standard Base64 of its
// big-endian bytes. Zero encodes as a single 0x00 byte.
func EncodeInt(v *big.Int) string {
	b := v.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeInt parses EncodeInt output. Padding-less and URL-safe variants are
// tolerated since browser clients are inconsistent about both.
func DecodeInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty integer encoding")
	}
	var (
		raw []byte
		err error
	)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		if raw, err = enc.DecodeString(s); err == nil {
			return new(big.Int).SetBytes(raw), nil
		}
	}
	return nil, err
}
