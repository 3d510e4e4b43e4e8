// Package auth resolves the calling principal for inspector endpoints from
// a bearer token. The token's subject claim carries the caller address; the
// identity provider that issues these tokens is outside the core.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "sealedger/pkg/domain"
	"sealedger/pkg/requestcontext"
)

// TokenVerifier validates bearer tokens and extracts the caller address.
type TokenVerifier struct {
	signingKey []byte
}

func NewTokenVerifier(signingKey string) *TokenVerifier {
	return &TokenVerifier{signingKey: []byte(signingKey)}
}

// CallerFromToken parses and validates an HS256 token, returning the caller
// address from the subject claim.
func (v *TokenVerifier) CallerFromToken(tokenString string) (id.Address, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	addr := id.Address(subject)
	if addr.IsZero() {
		return "", fmt.Errorf("token subject is the zero address")
	}
	return addr, nil
}

// IssueToken mints a caller token. Exposed for tests and local tooling; a
// real deployment issues tokens from its identity provider.
func (v *TokenVerifier) IssueToken(addr id.Address, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   addr.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

// RequireCaller authenticates the bearer token and stores the caller address
// in the request context.
func RequireCaller(verifier *TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				unauthorized(w, "bearer token required")
				return
			}
			caller, err := verifier.CallerFromToken(tokenString)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "caller token rejected",
					"request_id", requestcontext.RequestID(ctx), "err", err)
				unauthorized(w, "invalid token")
				return
			}
			ctx := requestcontext.WithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":"unauthorized","error_description":%q}`, description)
}
