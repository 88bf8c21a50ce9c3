package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.GuestConversationCap)
		assert.Equal(t, StorageLocal, cfg.StorageBackend)
		assert.Equal(t, IngestionPool, cfg.IngestionMode)
		assert.Equal(t, ":8080", cfg.Address())
	})

	t.Run("FileThenEnvironment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
stage_timeout_transcribe: 20m
guest_conversation_limit: 5
cors_allowed_origins: ["https://app.example.com"]
`), 0o600))

		t.Setenv("CONFIG_FILE", path)
		t.Setenv("PORT", "7070")
		t.Setenv("STAGE_TIMEOUT_INDEX", "30s")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Port)
		assert.Equal(t, 20*time.Minute, cfg.TranscribeTimeout)
		assert.Equal(t, 30*time.Second, cfg.IndexTimeout)
		assert.Equal(t, 5, cfg.GuestConversationCap)
		assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
		assert.Equal(t, []string{"defaults", path, "environment"}, cfg.LoadedFrom)
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "S3WithoutBucket", mutate: func(c *Config) { c.StorageBackend = StorageS3 }},
		{name: "UnknownStorage", mutate: func(c *Config) { c.StorageBackend = "ftp" }},
		{name: "EventBridgeWithoutEvents", mutate: func(c *Config) { c.IngestionMode = IngestionEventBridge }},
		{name: "ProductionWithoutSecret", mutate: func(c *Config) { c.Environment = "production" }},
		{name: "ZeroGuestLimit", mutate: func(c *Config) { c.GuestConversationCap = 0 }},
		{name: "ZeroTimeout", mutate: func(c *Config) { c.IndexTimeout = 0 }},
		{name: "UnknownLLM", mutate: func(c *Config) { c.LLMProvider = "oracle" }},
		{name: "LLMWithoutKey", mutate: func(c *Config) { c.LLMProvider = LLMAnthropic; c.LLMModel = "m" }},
		{name: "LLMWithoutModel", mutate: func(c *Config) { c.LLMProvider = LLMOpenAI; c.LLMAPIKey = "k" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
