// Package requestmeta stamps every request with a correlation id and the
// observed request time. Services read both through pkg/requestcontext; the
// request time is what record timestamps are taken from, so one operation
// sees one consistent clock reading.
package requestmeta

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"sealedger/pkg/requestcontext"
)

// Middleware injects request id and request time into the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
