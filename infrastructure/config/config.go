package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Ingestion modes. "pool" runs pipelines in process; "eventbridge" hands
// them to the ingest worker Lambda.
const (
	IngestionPool        = "pool"
	IngestionEventBridge = "eventbridge"
)

// Language model providers for question answering. "openai" covers any
// OpenAI compatible endpoint, such as Groq, through LLM_BASE_URL.
const (
	LLMNone      = "none"
	LLMAnthropic = "anthropic"
	LLMOpenAI    = "openai"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Environment string `yaml:"environment"`
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`

	// Relational store
	DatabasePath string `yaml:"database_path"`

	// Authentication
	JWTSecret      string        `yaml:"jwt_secret"`
	JWTIssuer      string        `yaml:"jwt_issuer"`
	JWTAudience    string        `yaml:"jwt_audience"`
	TokenCacheTTL  time.Duration `yaml:"token_cache_ttl"`
	RateLimitRPM   int           `yaml:"rate_limit_rpm"`
	CORSOrigins    []string      `yaml:"cors_allowed_origins"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`

	// Object storage
	StorageBackend string `yaml:"storage_backend"`
	StorageDir     string `yaml:"storage_dir"`
	S3Bucket       string `yaml:"s3_bucket"`

	// AWS configuration
	AWSRegion    string `yaml:"aws_region"`
	EventBusName string `yaml:"event_bus_name"`

	// Ingestion
	IngestionMode        string        `yaml:"ingestion_mode"`
	IngestionWorkers     int           `yaml:"ingestion_workers"`
	IngestionQueueSize   int           `yaml:"ingestion_queue_size"`
	ExtractTimeout       time.Duration `yaml:"stage_timeout_extract"`
	TranscribeTimeout    time.Duration `yaml:"stage_timeout_transcribe"`
	IndexTimeout         time.Duration `yaml:"stage_timeout_index"`
	PendingSweepEvery    time.Duration `yaml:"pending_sweep_interval"`
	PendingSweepAge      time.Duration `yaml:"pending_sweep_age"`
	FFmpegPath           string        `yaml:"ffmpeg_path"`
	TranscriberURL       string        `yaml:"transcriber_url"`
	TranscriberAPIKey    string        `yaml:"transcriber_api_key"`
	TranscriberPoll      time.Duration `yaml:"transcriber_poll_interval"`
	IndexPath            string        `yaml:"index_path"`
	OpenAIAPIKey         string        `yaml:"openai_api_key"`
	GuestConversationCap int           `yaml:"guest_conversation_limit"`

	// Question answering
	LLMProvider  string        `yaml:"llm_provider"`
	LLMAPIKey    string        `yaml:"llm_api_key"`
	LLMModel     string        `yaml:"llm_model"`
	LLMBaseURL   string        `yaml:"llm_base_url"`
	LLMTimeout   time.Duration `yaml:"llm_timeout"`
	LLMMaxTokens int           `yaml:"llm_max_tokens"`

	// WebSocket status notifications
	ConnectionsTable  string `yaml:"connections_table"`
	WebSocketEndpoint string `yaml:"websocket_endpoint"`

	// Feature flags
	EnableEvents  bool   `yaml:"enable_events"`
	EnableTracing bool   `yaml:"enable_tracing"`
	EnableMetrics bool   `yaml:"enable_metrics"`
	MetricsNS     string `yaml:"metrics_namespace"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Environment:          "development",
		Port:                 8080,
		LogLevel:             "info",
		DatabasePath:         "audio-rag.db",
		JWTIssuer:            "audio-rag",
		TokenCacheTTL:        5 * time.Minute,
		RateLimitRPM:         120,
		CORSOrigins:          []string{"*"},
		MaxUploadBytes:       500 << 20,
		StorageBackend:       StorageLocal,
		StorageDir:           "data/uploads",
		AWSRegion:            "us-west-2",
		EventBusName:         "audio-rag-events",
		IngestionMode:        IngestionPool,
		ExtractTimeout:       5 * time.Minute,
		TranscribeTimeout:    15 * time.Minute,
		IndexTimeout:         2 * time.Minute,
		PendingSweepEvery:    time.Minute,
		PendingSweepAge:      5 * time.Minute,
		FFmpegPath:           "ffmpeg",
		TranscriberURL:       "https://api.assemblyai.com/v2",
		TranscriberPoll:      3 * time.Second,
		IndexPath:            "data/index",
		GuestConversationCap: 3,
		LLMProvider:          LLMNone,
		LLMTimeout:           time.Minute,
		LLMMaxTokens:         1024,
		ConnectionsTable:     "audio-rag-connections",
		MetricsNS:            "AudioRag",
	}
}

// LoadConfig loads configuration from defaults, the YAML file named by
// CONFIG_FILE (if any), then environment variables, and validates it.
func LoadConfig() (*Config, error) {
	cfg := Default()
	cfg.LoadedFrom = []string{"defaults"}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnvironment()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	c.LoadedFrom = append(c.LoadedFrom, path)
	return nil
}

func (c *Config) loadEnvironment() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.Port = getEnvInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.JWTAudience = getEnv("JWT_AUDIENCE", c.JWTAudience)
	c.TokenCacheTTL = getEnvDuration("TOKEN_CACHE_TTL", c.TokenCacheTTL)
	c.RateLimitRPM = getEnvInt("RATE_LIMIT_RPM", c.RateLimitRPM)
	c.CORSOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.CORSOrigins)
	c.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))

	c.StorageBackend = getEnv("STORAGE_BACKEND", c.StorageBackend)
	c.StorageDir = getEnv("STORAGE_DIR", c.StorageDir)
	c.S3Bucket = getEnv("S3_BUCKET", c.S3Bucket)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.IngestionMode = getEnv("INGESTION_MODE", c.IngestionMode)
	c.IngestionWorkers = getEnvInt("INGESTION_WORKERS", c.IngestionWorkers)
	c.IngestionQueueSize = getEnvInt("INGESTION_QUEUE_SIZE", c.IngestionQueueSize)
	c.ExtractTimeout = getEnvDuration("STAGE_TIMEOUT_EXTRACT", c.ExtractTimeout)
	c.TranscribeTimeout = getEnvDuration("STAGE_TIMEOUT_TRANSCRIBE", c.TranscribeTimeout)
	c.IndexTimeout = getEnvDuration("STAGE_TIMEOUT_INDEX", c.IndexTimeout)
	c.PendingSweepEvery = getEnvDuration("PENDING_SWEEP_INTERVAL", c.PendingSweepEvery)
	c.PendingSweepAge = getEnvDuration("PENDING_SWEEP_AGE", c.PendingSweepAge)
	c.FFmpegPath = getEnv("FFMPEG_PATH", c.FFmpegPath)
	c.TranscriberURL = getEnv("TRANSCRIBER_URL", c.TranscriberURL)
	c.TranscriberAPIKey = getEnv("TRANSCRIBER_API_KEY", c.TranscriberAPIKey)
	c.TranscriberPoll = getEnvDuration("TRANSCRIBER_POLL_INTERVAL", c.TranscriberPoll)
	c.IndexPath = getEnv("INDEX_PATH", c.IndexPath)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.GuestConversationCap = getEnvInt("GUEST_CONVERSATION_LIMIT", c.GuestConversationCap)

	c.LLMProvider = getEnv("LLM_PROVIDER", c.LLMProvider)
	c.LLMAPIKey = getEnv("LLM_API_KEY", c.LLMAPIKey)
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.LLMBaseURL = getEnv("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMTimeout = getEnvDuration("LLM_TIMEOUT", c.LLMTimeout)
	c.LLMMaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLMMaxTokens)

	c.ConnectionsTable = getEnv("CONNECTIONS_TABLE", c.ConnectionsTable)
	c.WebSocketEndpoint = getEnv("WEBSOCKET_ENDPOINT", c.WebSocketEndpoint)

	c.EnableEvents = getEnvBool("ENABLE_EVENTS", c.EnableEvents)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.MetricsNS = getEnv("METRICS_NAMESPACE", c.MetricsNS)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.IngestionMode {
	case IngestionPool:
	case IngestionEventBridge:
		if !c.EnableEvents {
			return fmt.Errorf("INGESTION_MODE=eventbridge requires ENABLE_EVENTS")
		}
	default:
		return fmt.Errorf("unknown INGESTION_MODE %q", c.IngestionMode)
	}

	switch c.LLMProvider {
	case LLMNone, "":
	case LLMAnthropic, LLMOpenAI:
		if c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required when LLM_PROVIDER=%s", c.LLMProvider)
		}
		if c.LLMModel == "" {
			return fmt.Errorf("LLM_MODEL is required when LLM_PROVIDER=%s", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.GuestConversationCap < 1 {
		return fmt.Errorf("GUEST_CONVERSATION_LIMIT must be positive")
	}
	if c.ExtractTimeout <= 0 || c.TranscribeTimeout <= 0 || c.IndexTimeout <= 0 {
		return fmt.Errorf("stage timeouts must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.EnableEvents && c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
	}
	return nil
}

// Address is the listen address for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
