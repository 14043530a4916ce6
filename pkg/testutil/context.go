package testutil

import (
	"context"
	"net/http"
	"time"

	id "efrn/pkg/domain"
	"efrn/pkg/requestcontext"
)

// WithApprover places a verified approver on the request context, as the
// bearer middleware does after validating a token.
func WithApprover(req *http.Request, approver string) *http.Request {
	parsed, err := id.ParseApproverID(approver)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithApprover(req.Context(), parsed))
}

// WithRequestID sets the correlation id on the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// FixedTime returns a context whose request time is t.
func FixedTime(ctx context.Context, t time.Time) context.Context {
	return requestcontext.WithTime(ctx, t)
}
