// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values set by middleware and read by services.
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//	approver := requestcontext.Approver(ctx)
package requestcontext

import (
	"context"
	"time"

	id "efrn/pkg/domain"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	approverKey    struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyApprover    = approverKey{}
)

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() when unset (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// Approver retrieves the approver identity proven by a bearer token.
// Returns the empty value when the request carried no verified token.
func Approver(ctx context.Context) id.ApproverID {
	if a, ok := ctx.Value(ContextKeyApprover).(id.ApproverID); ok {
		return a
	}
	return ""
}

// WithApprover injects a verified approver identity into the context.
func WithApprover(ctx context.Context, approver id.ApproverID) context.Context {
	return context.WithValue(ctx, ContextKeyApprover, approver)
}
