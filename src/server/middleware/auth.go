package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type operatorKey struct{}

// OperatorClaims identifies who called an operator route.
type OperatorClaims struct {
	Subject string
	Email   string
}

type AuthConfig struct {
	Issuer   string
	Audience string

	// JWKSURL defaults to <Issuer>/.well-known/jwks.json.
	JWKSURL string
}

func (c AuthConfig) jwksURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return strings.TrimSuffix(c.Issuer, "/") + "/.well-known/jwks.json"
}

// Operator returns the subject of the verified token, or "" on open routes.
func Operator(ctx context.Context) string {
	c, _ := ctx.Value(operatorKey{}).(OperatorClaims)
	return c.Subject
}

// OperatorFromContext returns the verified caller, if any.
func OperatorFromContext(ctx context.Context) (OperatorClaims, bool) {
	c, ok := ctx.Value(operatorKey{}).(OperatorClaims)
	return c, ok
}

// RequireAuth guards the operator routes with RS256 bearer tokens signed by
// the configured issuer.
func RequireAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	keys := newKeySet(cfg.jwksURL(), 15*time.Minute)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			claims := jwt.MapClaims{}
			_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				kid, _ := t.Header["kid"].(string)
				if kid == "" {
					return nil, errors.New("token has no kid")
				}
				return keys.Key(r.Context(), kid)
			})
			if err != nil {
				slog.Debug("Operator token rejected", "error", err)
				unauthorized(w, "invalid token")
				return
			}

			op := OperatorClaims{}
			op.Subject, _ = claims.GetSubject()
			op.Email, _ = claims["email"].(string)

			ctx := context.WithValue(r.Context(), operatorKey{}, op)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="operator"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
