package keyexchange

import (
	"fmt"
	"io"
	"math/big"
)

// ClientSession is the contractor side of the handshake: an ephemeral
// exponent, its public value and the derived session key. tenderctl and the
// tests use it to build submissions the same way a browser client does.
type ClientSession struct {
	Public *big.Int
	key    []byte
}

// NewClientSession runs the client half of the exchange against the
// server's published values.
func NewClientSession(params Parameters, serverPublic *big.Int, random io.Reader) (*ClientSession, error) {
	if err := ValidatePeer(params, serverPublic); err != nil {
		return nil, fmt.Errorf("server public value: %w", err)
	}
	y, err := randomExponent(params.P, random)
	if err != nil {
		return nil, err
	}
	secret := new(big.Int).Exp(serverPublic, y, params.P)
	return &ClientSession{
		Public: new(big.Int).Exp(params.G, y, params.P),
		key:    DeriveKey(secret),
	}, nil
}

// Key returns a copy of the derived session key.
func (c *ClientSession) Key() []byte {
	out := make([]byte, len(c.key))
	copy(out, c.key)
	return out
}

// SealAmount encrypts amount for transport. legacy selects the CryptoJS
// compatible envelope instead of AES-GCM.
func (c *ClientSession) SealAmount(amount string, legacy bool) (string, error) {
	if legacy {
		return SessionEncryptLegacy(amount, c.key)
	}
	return SessionEncrypt(amount, c.key)
}
