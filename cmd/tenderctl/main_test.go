package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sealedbid/tender-service/internal/dtos"
	"github.com/sealedbid/tender-service/internal/keyexchange"
	"github.com/sealedbid/tender-service/internal/routes"
	"github.com/sealedbid/tender-service/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dhKeyServer(t *testing.T, agreement *keyexchange.KeyAgreement) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != routes.AuthDHKey {
			http.NotFound(w, r)
			return
		}
		p, g, pub := agreement.PublicParameters()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dtos.DHKeyResponse{
			Prime:     keyexchange.EncodeInt(p),
			Generator: keyexchange.EncodeInt(g),
			PublicKey: keyexchange.EncodeInt(pub),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openSealed(t *testing.T, agreement *keyexchange.KeyAgreement, req *dtos.SubmitBidRequest) string {
	t.Helper()
	peer, err := keyexchange.DecodeInt(req.ClientPublicKey)
	require.NoError(t, err)
	secret, err := agreement.ComputeSharedSecret(peer)
	require.NoError(t, err)
	amount, err := keyexchange.SessionDecrypt(req.Amount, keyexchange.DeriveKey(secret))
	require.NoError(t, err)
	return amount
}

func TestSealAgainstServer(t *testing.T) {
	agreement, err := keyexchange.Initialize(keyexchange.MODP1024(), nil)
	require.NoError(t, err)
	srv := dhKeyServer(t, agreement)

	for _, legacy := range []bool{false, true} {
		req, err := seal(context.Background(), srv.URL+"/", "tender-1", "1250.75", "ZG9j", legacy)
		require.NoError(t, err)
		assert.Equal(t, "tender-1", req.ProjectID)
		assert.Equal(t, "ZG9j", req.SupportingDocument)
		assert.NotContains(t, req.Amount, "1250.75")
		assert.Equal(t, "1250.75", openSealed(t, agreement, req), "legacy=%v", legacy)
	}
}

func TestSealRejectsBadServerResponses(t *testing.T) {
	ctx := context.Background()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	_, err := seal(ctx, down.URL, "tender-1", "10", "", false)
	assert.ErrorContains(t, err, "unexpected status 503")

	weak := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(dtos.DHKeyResponse{
			Prime:     keyexchange.EncodeInt(big.NewInt(23)),
			Generator: keyexchange.EncodeInt(big.NewInt(5)),
			PublicKey: keyexchange.EncodeInt(big.NewInt(8)),
		})
	}))
	defer weak.Close()
	_, err = seal(ctx, weak.URL, "tender-1", "10", "", false)
	assert.Error(t, err)

	garbled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"prime":"%%%","generator":"Ag==","publicKey":"Ag=="}`))
	}))
	defer garbled.Close()
	_, err = seal(ctx, garbled.URL, "tender-1", "10", "", false)
	assert.ErrorContains(t, err, "dh-key prime")
}

func TestKeygenOutputLoads(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, keygen(&out, 1024))

	env := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		k, v, ok := strings.Cut(line, "=")
		require.True(t, ok, line)
		env[k] = v
	}
	require.Len(t, env, 3)

	master, err := base64.StdEncoding.DecodeString(env["BID_MASTER_KEY_BASE64"])
	require.NoError(t, err)
	_, err = vault.NewBidVault(master)
	require.NoError(t, err)

	privPEM, err := base64.StdEncoding.DecodeString(env["RSA_PRIVATE_KEY_BASE64"])
	require.NoError(t, err)
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	require.NoError(t, err)

	pubPEM, err := base64.StdEncoding.DecodeString(env["RSA_PUBLIC_KEY_BASE64"])
	require.NoError(t, err)
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))
}
