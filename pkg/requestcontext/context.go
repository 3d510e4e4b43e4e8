// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets the caller address, request id and
// request time; services only ever read them from the context, which keeps
// the domain packages free of net/http and makes time injectable in tests.
package requestcontext

import (
	"context"
	"time"

	id "sealedger/pkg/domain"
)

type (
	callerKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// WithCaller records the authenticated caller address.
func WithCaller(ctx context.Context, addr id.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// Caller returns the authenticated caller address, or the zero Address when
// no caller was established.
func Caller(ctx context.Context) id.Address {
	addr, _ := ctx.Value(callerKey{}).(id.Address)
	return addr
}

// WithRequestID stores the correlation id for the current request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation id, or "" if none was set.
func RequestID(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

// WithTime pins the observed request time. Tests use this to make record
// timestamps deterministic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}
