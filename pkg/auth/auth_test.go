package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTValidator(t *testing.T) {
	v, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256", SecretKey: "s3cret", Issuer: "audio-rag", Audience: []string{"api"}})
	require.NoError(t, err)

	t.Run("ValidToken", func(t *testing.T) {
		tok, err := NewJWTGenerator("s3cret", "audio-rag", []string{"api"}, time.Hour).GenerateToken("uid-1", "a@example.com", "Ann")
		require.NoError(t, err)

		claims, err := v.ValidateToken("Bearer " + tok)
		require.NoError(t, err)
		assert.Equal(t, "uid-1", claims.Subject)
		assert.Equal(t, "a@example.com", claims.Email)
		assert.Equal(t, "Ann", claims.Name)
	})

	t.Run("Expired", func(t *testing.T) {
		tok, err := NewJWTGenerator("s3cret", "audio-rag", []string{"api"}, -time.Hour).GenerateToken("uid-1", "", "")
		require.NoError(t, err)
		_, err = v.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		tok, err := NewJWTGenerator("other", "audio-rag", []string{"api"}, time.Hour).GenerateToken("uid-1", "", "")
		require.NoError(t, err)
		_, err = v.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		tok, err := NewJWTGenerator("s3cret", "someone-else", []string{"api"}, time.Hour).GenerateToken("uid-1", "", "")
		require.NoError(t, err)
		_, err = v.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("WrongAudience", func(t *testing.T) {
		tok, err := NewJWTGenerator("s3cret", "audio-rag", []string{"web"}, time.Hour).GenerateToken("uid-1", "", "")
		require.NoError(t, err)
		_, err = v.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("NoneAlgorithmRejected", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = v.ValidateToken(tok)
		assert.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := v.ValidateToken("  ")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("ConfigErrors", func(t *testing.T) {
		_, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256"})
		assert.Error(t, err)
		_, err = NewJWTValidator(JWTConfig{SigningMethod: "ES512", SecretKey: "x"})
		assert.Error(t, err)
	})
}

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "other")
	assert.True(t, ok, "keys are independent")

	now = now.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok, "window slides")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, l.Prune())

	require.NoError(t, l.Reset(ctx, "k"))
}

func TestIPRateLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	l := NewIPRateLimiter(1)
	l.limiter.now = func() time.Time { return now }

	var _ RateLimiter = l

	t.Run("LimitsPerIP", func(t *testing.T) {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, _ = l.Allow(ctx, "10.0.0.1")
		assert.False(t, ok)

		ok, _ = l.Allow(ctx, "10.0.0.2")
		assert.True(t, ok)
	})

	t.Run("Reset", func(t *testing.T) {
		require.NoError(t, l.Reset(ctx, "10.0.0.1"))
		ok, _ := l.Allow(ctx, "10.0.0.1")
		assert.True(t, ok)
	})

	t.Run("PruneDropsIdleIPs", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		assert.Equal(t, 2, l.Prune())
		assert.Empty(t, l.limiter.windows)
	})

	t.Run("PruneEveryStopsWithContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			l.PruneEvery(ctx, time.Millisecond)
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("PruneEvery did not return after cancel")
		}
	})
}
