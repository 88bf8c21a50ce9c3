// Package identity resolves the caller of a request to exactly one user record.
package identity

import (
	"context"
	"strings"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/identity"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"go.uber.org/zap"
)

// Generic messages keep rejected requests from revealing whether an account exists.
const (
	msgAuthRequired  = "authentication required"
	msgInvalidCreds  = "invalid credentials"
	msgAccessDenied  = "access denied"
	msgResolveFailed = "failed to resolve identity"
)

// Credentials are the identity headers of one request.
type Credentials struct {
	BearerToken string
	GuestID     string
}

// Resolver implements the identity resolution rules: a bearer token always
// wins over a guest id, and every authorization check happens before any
// write so a rejected request leaves no trace.
type Resolver struct {
	users    ports.UserRepository
	verifier ports.TokenVerifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewResolver creates a resolver.
func NewResolver(users ports.UserRepository, verifier ports.TokenVerifier, logger *zap.Logger) *Resolver {
	return &Resolver{
		users:    users,
		verifier: verifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns the effective user for creds.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (*identity.User, error) {
	token := strings.TrimSpace(creds.BearerToken)
	guestID := strings.TrimSpace(creds.GuestID)

	switch {
	case token != "":
		return r.resolveToken(ctx, token)
	case guestID != "":
		return r.resolveGuest(ctx, guestID)
	default:
		return nil, appErrors.NewUnauthorizedError(msgAuthRequired)
	}
}

// ResolveAuthenticated is Resolve restricted to the bearer token path.
func (r *Resolver) ResolveAuthenticated(ctx context.Context, token string) (*identity.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.NewUnauthorizedError(msgAuthRequired)
	}
	return r.resolveToken(ctx, token)
}

func (r *Resolver) resolveToken(ctx context.Context, token string) (*identity.User, error) {
	claims, err := r.verifier.Verify(ctx, token)
	if err != nil {
		r.logger.Debug("token verification failed", zap.Error(err))
		return nil, appErrors.NewUnauthorizedError(msgInvalidCreds).WithCause(err)
	}

	email := identity.NormalizeEmail(claims.Email)
	if claims.Subject == "" && email == "" {
		return nil, appErrors.NewUnauthorizedError(msgInvalidCreds)
	}
	claims.Email = email

	user, err := r.findByClaims(ctx, claims)
	switch {
	case err == nil:
	case appErrors.IsNotFound(err):
		user, err = r.createAuthenticated(ctx, claims)
		if err != nil {
			return nil, err
		}
		return user, nil
	default:
		return nil, r.internal("lookup user by token", err)
	}

	// A token must never land on a guest record.
	if !user.IsAuthenticated() {
		r.logger.Warn("token resolved to guest record", zap.String("user_id", user.ID.String()))
		return nil, appErrors.NewForbiddenError(msgAccessDenied)
	}

	if claims.Subject != "" && user.ExternalUID != claims.Subject {
		if err := r.users.AttachExternalUID(ctx, user.ID, claims.Subject, claims.Name, claims.Picture); err != nil {
			return nil, r.internal("attach external uid", err)
		}
		user.ExternalUID = claims.Subject
	}

	r.touch(ctx, user)
	return user, nil
}

func (r *Resolver) findByClaims(ctx context.Context, claims identity.Claims) (*identity.User, error) {
	if claims.Subject != "" {
		user, err := r.users.GetByExternalUID(ctx, claims.Subject)
		if err == nil || !appErrors.IsNotFound(err) {
			return user, err
		}
	}
	if claims.Email == "" {
		return nil, appErrors.NewNotFoundError("user")
	}
	return r.users.GetByEmail(ctx, claims.Email)
}

// createAuthenticated inserts a user for first time logins. Two concurrent
// first logins race on the unique email; the loser re-reads the winner's row.
func (r *Resolver) createAuthenticated(ctx context.Context, claims identity.Claims) (*identity.User, error) {
	if claims.Email == "" {
		return nil, appErrors.NewUnauthorizedError(msgInvalidCreds)
	}

	user := identity.NewAuthenticatedUser(claims, r.now())
	err := r.users.Create(ctx, user)
	if err == nil {
		r.logger.Info("created user", zap.String("user_id", user.ID.String()))
		return user, nil
	}
	if !appErrors.IsConflict(err) {
		return nil, r.internal("create user", err)
	}

	existing, err := r.findByClaims(ctx, claims)
	if err != nil {
		return nil, r.internal("re-read user after create race", err)
	}
	if !existing.IsAuthenticated() {
		return nil, appErrors.NewForbiddenError(msgAccessDenied)
	}
	return existing, nil
}

func (r *Resolver) resolveGuest(ctx context.Context, guestID string) (*identity.User, error) {
	if !identity.ValidGuestID(guestID) {
		return nil, appErrors.NewUnauthorizedError(msgInvalidCreds)
	}

	user, err := r.users.GetByGuestID(ctx, guestID)
	switch {
	case err == nil:
	case appErrors.IsNotFound(err):
		return r.createGuest(ctx, guestID)
	default:
		return nil, r.internal("lookup guest", err)
	}

	if user.IsAuthenticated() {
		return nil, appErrors.NewForbiddenError(msgAccessDenied)
	}

	r.touch(ctx, user)
	return user, nil
}

func (r *Resolver) createGuest(ctx context.Context, guestID string) (*identity.User, error) {
	user := identity.NewGuestUser(guestID, r.now())
	err := r.users.Create(ctx, user)
	if err == nil {
		return user, nil
	}
	if !appErrors.IsConflict(err) {
		return nil, r.internal("create guest", err)
	}

	existing, err := r.users.GetByGuestID(ctx, guestID)
	if err != nil {
		return nil, r.internal("re-read guest after create race", err)
	}
	if existing.IsAuthenticated() {
		return nil, appErrors.NewForbiddenError(msgAccessDenied)
	}
	return existing, nil
}

// touch records activity. It runs only after every check has passed and a
// failure here does not fail the request.
func (r *Resolver) touch(ctx context.Context, user *identity.User) {
	now := r.now()
	if err := r.users.TouchLastSeen(ctx, user.ID, now); err != nil {
		r.logger.Warn("failed to update last_seen_at", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	user.LastSeenAt = &now
}

func (r *Resolver) internal(op string, err error) error {
	r.logger.Error("identity resolution failed", zap.String("op", op), zap.Error(err))
	return appErrors.NewInternalError(msgResolveFailed).WithCause(err)
}
