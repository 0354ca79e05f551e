package keyexchange

import (
	"bytes"
	"encoding/hex"
	"math/big"
	mathrand "math/rand"
	"os/exec"
	"strings"
	"testing"

	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltInGroupsAreSafePrimes(t *testing.T) {
	for _, params := range []Parameters{MODP1024(), MODP2048()} {
		require.NoError(t, params.Validate(), params.Name)
		assert.True(t, params.P.ProbablyPrime(20), "%s: P not prime", params.Name)
		q := new(big.Int).Rsh(new(big.Int).Sub(params.P, one), 1)
		assert.True(t, q.ProbablyPrime(20), "%s: (P-1)/2 not prime", params.Name)
	}
	assert.Equal(t, 1024, MODP1024().P.BitLen())
	assert.Equal(t, 2048, MODP2048().P.BitLen())
}

func TestGroupByName(t *testing.T) {
	p, err := GroupByName("")
	require.NoError(t, err)
	assert.Equal(t, GroupMODP2048, p.Name)

	p, err = GroupByName("MODP1024")
	require.NoError(t, err)
	assert.Equal(t, GroupMODP1024, p.Name)

	_, err = GroupByName("modp768")
	assert.Error(t, err)
}

func TestValidateRejectsWeakParameters(t *testing.T) {
	small := Parameters{Name: "tiny", P: big.NewInt(23), G: big.NewInt(5)}
	assert.Error(t, small.Validate())

	badG := MODP1024()
	badG.G = big.NewInt(1)
	assert.Error(t, badG.Validate())

	_, err := Initialize(small, nil)
	assert.Error(t, err)
}

func TestSharedSecretAgreement(t *testing.T) {
	for _, params := range []Parameters{MODP1024(), MODP2048()} {
		t.Run(params.Name, func(t *testing.T) {
			server, err := Initialize(params, nil)
			require.NoError(t, err)

			_, _, serverPub := server.PublicParameters()
			client, err := NewClientSession(params, serverPub, nil)
			require.NoError(t, err)

			secret, err := server.ComputeSharedSecret(client.Public)
			require.NoError(t, err)
			assert.Equal(t, client.Key(), DeriveKey(secret))
		})
	}
}

func TestInitializeIsDeterministicUnderInjectedRandomness(t *testing.T) {
	a, err := Initialize(MODP1024(), mathrand.New(mathrand.NewSource(7)))
	require.NoError(t, err)
	b, err := Initialize(MODP1024(), mathrand.New(mathrand.NewSource(7)))
	require.NoError(t, err)
	c, err := Initialize(MODP1024(), nil)
	require.NoError(t, err)

	_, _, pubA := a.PublicParameters()
	_, _, pubB := b.PublicParameters()
	_, _, pubC := c.PublicParameters()
	assert.Equal(t, 0, pubA.Cmp(pubB))
	assert.NotEqual(t, 0, pubA.Cmp(pubC))
}

func TestPublicParametersAreCopies(t *testing.T) {
	server, err := Initialize(MODP1024(), nil)
	require.NoError(t, err)

	p, g, pub := server.PublicParameters()
	p.SetInt64(0)
	g.SetInt64(0)
	pub.SetInt64(0)

	p2, g2, pub2 := server.PublicParameters()
	assert.Equal(t, 0, p2.Cmp(MODP1024().P))
	assert.Equal(t, 0, g2.Cmp(big.NewInt(2)))
	assert.NotEqual(t, 0, pub2.Sign())
}

func TestComputeSharedSecretRejectsInvalidPeers(t *testing.T) {
	params := MODP1024()
	server, err := Initialize(params, nil)
	require.NoError(t, err)

	pMinus1 := new(big.Int).Sub(params.P, one)
	pPlus1 := new(big.Int).Add(params.P, one)
	for name, peer := range map[string]*big.Int{
		"nil":      nil,
		"zero":     big.NewInt(0),
		"one":      big.NewInt(1),
		"negative": big.NewInt(-5),
		"p-1":      pMinus1,
		"p":        new(big.Int).Set(params.P),
		"p+1":      pPlus1,
	} {
		_, err := server.ComputeSharedSecret(peer)
		assert.ErrorIs(t, err, utils.ErrInvalidPeerValue, name)
	}

	_, err = server.ComputeSharedSecret(big.NewInt(2))
	assert.NoError(t, err)
}

func TestCanonicalBytesPadsOddHex(t *testing.T) {
	// 0xabc has an odd-length hex form; both ends must hash 0x0a 0xbc.
	secret := big.NewInt(0xabc)
	assert.Equal(t, []byte{0x0a, 0xbc}, CanonicalBytes(secret))
	assert.Equal(t,
		"1870348e36542f82a2bb6b134f9bda817cbc1f946dda37a0cce5b5221b9f0304",
		hex.EncodeToString(DeriveKey(secret)))

	assert.Equal(t, []byte{0x00}, CanonicalBytes(big.NewInt(0)))

	server, err := Initialize(MODP1024(), nil)
	require.NoError(t, err)
	_, _, pub := server.PublicParameters()
	assert.Equal(t, pub.Bytes(), CanonicalBytes(pub))
}

func TestSessionCipherRoundTrip(t *testing.T) {
	key := DeriveKey(big.NewInt(123456789))
	for _, amount := range []string{"0", "1", "500", "1500.50", "99999999999.9999"} {
		for _, legacy := range []bool{false, true} {
			var (
				ct  string
				err error
			)
			if legacy {
				ct, err = SessionEncryptLegacy(amount, key)
			} else {
				ct, err = SessionEncrypt(amount, key)
			}
			require.NoError(t, err)

			pt, err := SessionDecrypt(ct, key)
			require.NoError(t, err)
			assert.Equal(t, amount, pt)
		}
	}
}

func TestSessionDecryptHandshakeMismatch(t *testing.T) {
	key := DeriveKey(big.NewInt(42))
	wrong := DeriveKey(big.NewInt(43))

	ct, err := SessionEncrypt("750", key)
	require.NoError(t, err)
	_, err = SessionDecrypt(ct, wrong)
	assert.ErrorIs(t, err, utils.ErrHandshakeMismatch)

	legacy, err := SessionEncryptLegacy("750", key)
	require.NoError(t, err)
	_, err = SessionDecrypt(legacy, wrong)
	assert.ErrorIs(t, err, utils.ErrHandshakeMismatch)

	empty, err := SessionEncrypt("", key)
	require.NoError(t, err)
	_, err = SessionDecrypt(empty, key)
	assert.ErrorIs(t, err, utils.ErrHandshakeMismatch)

	word, err := SessionEncrypt("seven hundred", key)
	require.NoError(t, err)
	_, err = SessionDecrypt(word, key)
	assert.ErrorIs(t, err, utils.ErrHandshakeMismatch)

	_, err = SessionDecrypt("%%% not base64 %%%", key)
	assert.ErrorIs(t, err, utils.ErrHandshakeMismatch)

	_, err = SessionDecrypt(ct, key[:16])
	assert.ErrorIs(t, err, utils.ErrHandshakeMismatch)
}

func TestClientSealsAcrossHandshake(t *testing.T) {
	params := MODP1024()
	server, err := Initialize(params, nil)
	require.NoError(t, err)
	_, _, serverPub := server.PublicParameters()

	client, err := NewClientSession(params, serverPub, nil)
	require.NoError(t, err)

	for _, legacy := range []bool{false, true} {
		sealed, err := client.SealAmount("1234.56", legacy)
		require.NoError(t, err)

		secret, err := server.ComputeSharedSecret(client.Public)
		require.NoError(t, err)
		got, err := SessionDecrypt(sealed, DeriveKey(secret))
		require.NoError(t, err)
		assert.Equal(t, "1234.56", got)
	}

	_, err = NewClientSession(params, big.NewInt(1), nil)
	assert.ErrorIs(t, err, utils.ErrInvalidPeerValue)
}

func TestIntEncoding(t *testing.T) {
	v := new(big.Int).Lsh(big.NewInt(1), 1000)
	v.Add(v, big.NewInt(12345))

	enc := EncodeInt(v)
	got, err := DecodeInt(enc)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(got))

	got, err = DecodeInt(strings.TrimRight(enc, "="))
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(got))

	zero, err := DecodeInt(EncodeInt(big.NewInt(0)))
	require.NoError(t, err)
	assert.Equal(t, 0, zero.Sign())

	_, err = DecodeInt("")
	assert.Error(t, err)
	_, err = DecodeInt("***")
	assert.Error(t, err)
}

// A browser client running CryptoJS.AES.encrypt(amount, sha256hex) produces
// the same envelope as `openssl enc -aes-256-cbc -md md5 -pass pass:<hex>`.
func TestSessionDecryptAcceptsOpenSSLLegacyEnvelope(t *testing.T) {
	if _, err := exec.LookPath("openssl"); err != nil {
		t.Skipf("OpenSSL CLI not found in PATH: %v", err)
	}
	key := DeriveKey(big.NewInt(987654321))

	cmd := exec.Command("openssl", "enc", "-aes-256-cbc", "-md", "md5", "-salt", "-base64", "-A",
		"-pass", "pass:"+hex.EncodeToString(key))
	cmd.Stdin = strings.NewReader("2500.25")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("openssl failed: %v\n%s", err, stderr.String())
	}

	got, err := SessionDecrypt(out.String(), key)
	require.NoError(t, err)
	assert.Equal(t, "2500.25", got)
}

func TestSessionDecryptAcceptsPBKDF2Envelope(t *testing.T) {
	key := DeriveKey(big.NewInt(123456789))
	ct, err := utils.EncryptOpenSSLSalted(utils.SaltedKDFPBKDF2, legacyPassphrase(key), "880.10")
	require.NoError(t, err)

	got, err := SessionDecrypt(ct, key)
	require.NoError(t, err)
	assert.Equal(t, "880.10", got)

	_, err = SessionDecrypt(ct, DeriveKey(big.NewInt(5)))
	assert.ErrorIs(t, err, utils.ErrHandshakeMismatch)
}
