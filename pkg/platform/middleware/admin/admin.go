package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	id "sealedger/pkg/domain"
	"sealedger/pkg/requestcontext"
)

// RequireAdminToken gates owner-only endpoints. A matching token establishes
// the owner as the request's caller, which is what the services' owner
// checks run against.
func RequireAdminToken(expectedToken string, owner id.Address, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			// Constant-time comparison to prevent timing attacks.
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}
			ctx := requestcontext.WithCaller(r.Context(), owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
