package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func claimsFor(sub string, role models.Role, exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":  TokenIssuer,
		"sub":  sub,
		"role": string(role),
		"iat":  time.Now().Unix(),
		"exp":  exp.Unix(),
	}
}

// echo reports what AuthMiddleware put on the context.
var echo = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	sub, _ := r.Context().Value(ContextKeyUserID).(string)
	role, _ := r.Context().Value(ContextKeyRole).(models.Role)
	w.Header().Set("X-Sub", sub)
	w.Header().Set("X-Role", string(role))
	w.WriteHeader(http.StatusNoContent)
})

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	key := newKey(t)
	h := AuthMiddleware(&key.PublicKey)(echo)

	rr := serve(h, sign(t, key, claimsFor("user-1", models.RoleOfficer, time.Now().Add(time.Hour))))
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "user-1", rr.Header().Get("X-Sub"))
	assert.Equal(t, "officer", rr.Header().Get("X-Role"))
}

func TestAuthMiddlewareRejections(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	h := AuthMiddleware(&key.PublicKey)(echo)

	wrongIssuer := claimsFor("u", models.RoleAuditor, time.Now().Add(time.Hour))
	wrongIssuer["iss"] = "someone-else"
	noRole := claimsFor("u", models.RoleAuditor, time.Now().Add(time.Hour))
	delete(noRole, "role")

	cases := []struct {
		name  string
		token string
		code  string
	}{
		{"missing header", "", utils.ErrCodeUnauthorized},
		{"garbage", "not.a.jwt", utils.ErrCodeUnauthorized},
		{"foreign key", sign(t, other, claimsFor("u", models.RoleOfficer, time.Now().Add(time.Hour))), utils.ErrCodeUnauthorized},
		{"expired", sign(t, key, claimsFor("u", models.RoleOfficer, time.Now().Add(-time.Minute))), utils.ErrCodeTokenExpired},
		{"wrong issuer", sign(t, key, wrongIssuer), utils.ErrCodeUnauthorized},
		{"no role", sign(t, key, noRole), utils.ErrCodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(h, tc.token)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	key := newKey(t)
	h := AuthMiddleware(&key.PublicKey)(RequireRole(models.RoleOfficer, models.RoleAuditor)(echo))
	exp := time.Now().Add(time.Hour)

	assert.Equal(t, http.StatusNoContent, serve(h, sign(t, key, claimsFor("a", models.RoleAuditor, exp))).Code)
	assert.Equal(t, http.StatusNoContent, serve(h, sign(t, key, claimsFor("o", models.RoleOfficer, exp))).Code)
	assert.Equal(t, http.StatusForbidden, serve(h, sign(t, key, claimsFor("c", models.RoleContractor, exp))).Code)
}
