package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"warden/internal/auth"
	derrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
	"warden/pkg/requestcontext"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(tokenString string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token and records the
// token subject as the acting identity for downstream handlers.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access, missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, derrors.New(derrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, derrors.New(derrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx = requestcontext.WithActor(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
