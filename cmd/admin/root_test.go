package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dharun-sukumar/Audio-Rag/infrastructure/config"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/di"
	"github.com/dharun-sukumar/Audio-Rag/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(cfg *config.Config) *app {
	return &app{
		loadConfig: func() (*config.Config, error) { return cfg, nil },
		container: func(context.Context, *config.Config) (*di.Container, error) {
			return nil, errors.New("container not available in tests")
		},
	}
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test", a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.2.3", testApp(config.Default()))

	assert.Equal(t, "audio-rag-admin", cmd.Use)
	assert.Equal(t, "1.2.3", cmd.Version)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "sweep", "reprocess", "token"}, names)
}

func TestTokenCmd(t *testing.T) {
	t.Run("SignsTokenTheAPIAccepts", func(t *testing.T) {
		cfg := config.Default()
		cfg.JWTSecret = "test-secret"
		cfg.JWTAudience = "audio-rag-api"

		out, err := execute(t, testApp(cfg), "token", "user-123", "--email", "a@example.com")
		require.NoError(t, err)

		validator, err := auth.NewJWTValidator(auth.JWTConfig{
			SigningMethod: "HS256",
			SecretKey:     "test-secret",
			Issuer:        cfg.JWTIssuer,
			Audience:      []string{"audio-rag-api"},
		})
		require.NoError(t, err)

		claims, err := validator.ValidateToken(strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.Subject)
		assert.Equal(t, "a@example.com", claims.Email)
	})

	t.Run("DevelopmentSecretWhenUnset", func(t *testing.T) {
		cfg := config.Default()

		out, err := execute(t, testApp(cfg), "token", "user-123")
		require.NoError(t, err)

		validator, err := auth.NewJWTValidator(auth.JWTConfig{
			SigningMethod: "HS256",
			SecretKey:     di.SigningSecret(cfg),
			Issuer:        cfg.JWTIssuer,
		})
		require.NoError(t, err)
		_, err = validator.ValidateToken(strings.TrimSpace(out))
		assert.NoError(t, err)
	})

	t.Run("RefusedInProduction", func(t *testing.T) {
		cfg := config.Default()
		cfg.Environment = "production"
		cfg.JWTSecret = "prod"

		_, err := execute(t, testApp(cfg), "token", "user-123")
		assert.ErrorContains(t, err, "production")
	})

	t.Run("RequiresSubject", func(t *testing.T) {
		_, err := execute(t, testApp(config.Default()), "token")
		assert.Error(t, err)
	})
}

func TestMigrateCmd(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.DatabasePath = filepath.Join(t.TempDir(), "admin.db")

	out, err := execute(t, testApp(cfg), "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, cfg.DatabasePath)

	// Running again is a no-op.
	_, err = execute(t, testApp(cfg), "migrate")
	assert.NoError(t, err)
}

func TestReprocessCmd(t *testing.T) {
	t.Run("InvalidID", func(t *testing.T) {
		_, err := execute(t, testApp(config.Default()), "reprocess", "not-a-uuid")
		assert.ErrorContains(t, err, "invalid memory id")
	})

	t.Run("ContainerFailure", func(t *testing.T) {
		_, err := execute(t, testApp(config.Default()), "reprocess", "6f1c2b9e-3a4d-4e5f-8a9b-0c1d2e3f4a5b")
		assert.ErrorContains(t, err, "container not available")
	})
}
