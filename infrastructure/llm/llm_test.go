package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		model, err := New(Config{Provider: ProviderNone}, nil, zap.NewNop())
		require.NoError(t, err)
		assert.Nil(t, model)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		_, err := New(Config{Provider: "oracle"}, nil, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("Providers", func(t *testing.T) {
		model, err := New(Config{Provider: ProviderAnthropic, APIKey: "k", Model: "m"}, nil, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &AnthropicModel{}, model)

		model, err = New(Config{Provider: ProviderOpenAI, APIKey: "k", Model: "m"}, nil, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &OpenAIModel{}, model)
	})
}

func TestAnthropicModel(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		if got["model"] == "missing" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"unknown model"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "m",
			"content": [{"type": "text", "text": "You went to the lake"}, {"type": "text", "text": " in May."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	t.Run("JoinsTextBlocks", func(t *testing.T) {
		model := NewAnthropicModel(Config{APIKey: "secret", Model: "m", BaseURL: srv.URL + "/", MaxTokens: 64}, srv.Client())

		reply, err := model.Complete(context.Background(), "be brief", "where did I go?")
		require.NoError(t, err)
		assert.Equal(t, "You went to the lake in May.", reply)

		assert.Equal(t, "m", got["model"])
		assert.EqualValues(t, 64, got["max_tokens"])
		system := got["system"].([]interface{})
		require.Len(t, system, 1)
		assert.Equal(t, "be brief", system[0].(map[string]interface{})["text"])
		messages := got["messages"].([]interface{})
		require.Len(t, messages, 1)
		assert.Equal(t, "user", messages[0].(map[string]interface{})["role"])
	})

	t.Run("ProviderError", func(t *testing.T) {
		model := NewAnthropicModel(Config{APIKey: "secret", Model: "missing", BaseURL: srv.URL + "/"}, srv.Client())

		_, err := model.Complete(context.Background(), "s", "p")
		assert.Error(t, err)
	})
}

func TestOpenAIModel(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	reply := "You went to the lake."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   got.Model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 4, "total_tokens": 9},
		})
	}))
	defer srv.Close()

	model, err := NewOpenAIModel(Config{APIKey: "secret", Model: "llama-3.1-8b-instant", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	t.Run("SendsSystemAndUser", func(t *testing.T) {
		out, err := model.Complete(context.Background(), "be brief", "where did I go?")
		require.NoError(t, err)
		assert.Equal(t, "You went to the lake.", out)

		assert.Equal(t, "llama-3.1-8b-instant", got.Model)
		require.Len(t, got.Messages, 2)
		assert.Equal(t, "system", got.Messages[0].Role)
		assert.Equal(t, "be brief", got.Messages[0].Content)
		assert.Equal(t, "user", got.Messages[1].Role)
		assert.Equal(t, "where did I go?", got.Messages[1].Content)
	})

	t.Run("EmptyReply", func(t *testing.T) {
		reply = ""
		_, err := model.Complete(context.Background(), "s", "p")
		assert.ErrorIs(t, err, ErrEmptyReply)
	})
}
