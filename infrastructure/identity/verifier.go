// Package identity adapts bearer token validation to the identity resolver.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/identity"
	"github.com/dharun-sukumar/Audio-Rag/pkg/auth"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// TokenValidator parses and checks a raw token.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// CacheMetrics observes cache lookups.
type CacheMetrics interface {
	RecordTokenCache(hit bool)
}

type cachedClaims struct {
	claims identity.Claims
}

// Verifier implements ports.TokenVerifier. Verified claims are cached by
// token hash until the smaller of the configured TTL and the token expiry,
// so a hot token costs one signature check per TTL.
type Verifier struct {
	validator TokenValidator
	cache     *ristretto.Cache
	ttl       time.Duration
	metrics   CacheMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewVerifier creates a verifier. A non-positive ttl disables caching.
func NewVerifier(validator TokenValidator, ttl time.Duration, metrics CacheMetrics, logger *zap.Logger) (*Verifier, error) {
	v := &Verifier{
		validator: validator,
		ttl:       ttl,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
	if ttl <= 0 {
		return v, nil
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}
	v.cache = cache
	return v, nil
}

// Verify implements ports.TokenVerifier.
func (v *Verifier) Verify(ctx context.Context, token string) (identity.Claims, error) {
	key := tokenKey(token)

	if v.cache != nil {
		if cached, ok := v.cache.Get(key); ok {
			v.record(true)
			return cached.(cachedClaims).claims, nil
		}
		v.record(false)
	}

	c, err := v.validator.ValidateToken(token)
	if err != nil {
		return identity.Claims{}, err
	}

	claims := identity.Claims{
		Subject: c.Subject,
		Email:   c.Email,
		Name:    c.Name,
		Picture: c.Picture,
	}

	if v.cache != nil {
		ttl := v.ttl
		if c.ExpiresAt != nil {
			if left := c.ExpiresAt.Time.Sub(v.now()); left < ttl {
				ttl = left
			}
		}
		if ttl > 0 {
			v.cache.SetWithTTL(key, cachedClaims{claims: claims}, 1, ttl)
		}
	}
	return claims, nil
}

// Close releases the cache.
func (v *Verifier) Close() {
	if v.cache != nil {
		v.cache.Close()
	}
}

func (v *Verifier) record(hit bool) {
	if v.metrics != nil {
		v.metrics.RecordTokenCache(hit)
	}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
