package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://auth.example"
	testAudience = "dujjonku-admin"
	testKid      = "key-1"
)

func jwksServer(t *testing.T, key *rsa.PublicKey) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]jwk{"keys": {{
			Kty: "RSA",
			Kid: testKid,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return s
}

func TestRequireAuth(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv := jwksServer(t, &key.PublicKey)

	var gotSub string
	h := RequireAuth(AuthConfig{Issuer: testIssuer, Audience: testAudience, JWKSURL: srv.URL})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSub = Operator(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	valid := jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": "operator-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	wrongAud := jwt.MapClaims{
		"iss": testIssuer,
		"aud": "someone-else",
		"sub": "operator-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	expired := jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": "operator-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"wrong audience", "Bearer " + signToken(t, key, wrongAud), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, key, expired), http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, key, valid), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSub = ""
			req := httptest.NewRequest(http.MethodGet, "/admin/snapshots", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusNoContent && gotSub != "operator-1" {
				t.Errorf("Operator = %q, want %q", gotSub, "operator-1")
			}
		})
	}
}
