// Package llm adapts hosted language models to ports.LanguageModel.
package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"

	"go.uber.org/zap"
)

// Providers understood by New.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

const defaultMaxTokens = 1024

// ErrEmptyReply is returned when the model answers without any text.
var ErrEmptyReply = errors.New("language model returned no text")

// Config selects and configures a model.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// New builds the model named by cfg.Provider. It returns nil when question
// answering is disabled. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (ports.LanguageModel, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	switch cfg.Provider {
	case "", ProviderNone:
		logger.Info("question answering disabled")
		return nil, nil
	case ProviderAnthropic:
		return NewAnthropicModel(cfg, httpClient), nil
	case ProviderOpenAI:
		return NewOpenAIModel(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unknown language model provider %q", cfg.Provider)
	}
}
