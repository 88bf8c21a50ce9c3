package middleware

import (
	"context"
	"net/http"
	"strings"

	appidentity "github.com/dharun-sukumar/Audio-Rag/application/identity"
	"github.com/dharun-sukumar/Audio-Rag/domain/identity"
	"github.com/dharun-sukumar/Audio-Rag/pkg/auth"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"go.uber.org/zap"
)

// GuestIDHeader carries the client generated guest identity.
const GuestIDHeader = "X-Guest-ID"

// IdentityResolver maps request credentials to a user record.
type IdentityResolver interface {
	Resolve(ctx context.Context, creds appidentity.Credentials) (*identity.User, error)
}

// Identify resolves the caller of every request and stores it on the
// context. Requests without usable credentials never reach next.
func Identify(resolver IdentityResolver, errs *appErrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.Resolve(r.Context(), appidentity.Credentials{
				BearerToken: extractToken(r),
				GuestID:     r.Header.Get(GuestIDHeader),
			})
			if err != nil {
				errs.Handle(w, r, err)
				return
			}

			caller := common.Caller{
				UserID:  user.ID,
				IsGuest: user.IsGuest,
				GuestID: user.GuestID,
				Email:   user.Email,
			}
			logger.Debug("request identified",
				zap.String("user_id", caller.UserID.String()),
				zap.Bool("guest", caller.IsGuest),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(common.WithCaller(r.Context(), caller)))
		})
	}
}

// RequireAuthenticated rejects guest callers. It must run after Identify.
func RequireAuthenticated(errs *appErrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := common.GetCaller(r.Context())
			if !ok || caller.IsGuest {
				errs.Handle(w, r, appErrors.NewUnauthorizedError("authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies a per client IP limit of requestsPerMinute.
func RateLimit(limiter auth.RateLimiter, requestsPerMinute int, errs *appErrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			allowed, err := limiter.Allow(r.Context(), clientIP)
			if err != nil {
				logger.Error("Rate limiter error", zap.Error(err))
				errs.Handle(w, r, appErrors.NewInternalError("rate limiter unavailable").WithCause(err))
				return
			}
			if !allowed {
				errs.Handle(w, r, appErrors.NewRateLimitError(requestsPerMinute, "minute"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken returns the bearer token of the Authorization header.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
