// Package auth verifies approver bearer tokens on override routes.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "efrn/pkg/domain"
	request "efrn/pkg/platform/middleware/request"
	"efrn/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the approver it proves.
type TokenValidator interface {
	ValidateApproverToken(token string) (id.ApproverID, error)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireApprover rejects requests without a valid approver bearer token and
// stores the proven approver identity in the request context. A nil validator
// disables the check, which is how deployments without a signing key run.
func RequireApprover(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "override rejected - missing approver token",
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			approver, err := validator.ValidateApproverToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "override rejected - invalid approver token",
					"request_id", request.GetRequestID(ctx),
					"error", err,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithApprover(ctx, approver)))
		})
	}
}
