package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIModel implements ports.LanguageModel against any OpenAI compatible
// chat completions endpoint. Groq is reached with
// BaseURL https://api.groq.com/openai/v1.
type OpenAIModel struct {
	llm       *openai.LLM
	maxTokens int
}

// NewOpenAIModel creates the model. httpClient may be nil.
func NewOpenAIModel(cfg Config, httpClient *http.Client) (*OpenAIModel, error) {
	opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, openai.WithHTTPClient(httpClient))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &OpenAIModel{llm: client, maxTokens: maxTokens}, nil
}

// Complete implements ports.LanguageModel.
func (m *OpenAIModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := m.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithTemperature(0), llms.WithMaxTokens(m.maxTokens))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Content, nil
}
