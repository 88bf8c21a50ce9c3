package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	polls      int32
	pendingFor int32
	finalError string
	uploaded   string
}

func (p *fakeProvider) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		p.uploaded = string(b)
		_ = json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn/audio"})
	})
	mux.HandleFunc("/transcript", func(w http.ResponseWriter, r *http.Request) {
		var req transcriptRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://cdn/audio", req.AudioURL)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": statusQueued})
	})
	mux.HandleFunc("/transcript/tr-1", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&p.polls, 1)
		if n <= p.pendingFor {
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": statusProcessing})
			return
		}
		if p.finalError != "" {
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": statusError, "error": p.finalError})
			return
		}
		_ = json.NewEncoder(w).Encode(transcriptResponse{
			ID:     "tr-1",
			Status: statusCompleted,
			Text:   "hello world",
			Words: []ports.Word{
				{Text: "hello", Start: 0, End: 400, Confidence: 0.9},
				{Text: "world", Start: 450, End: 900, Confidence: 0.8},
			},
		})
	})
	return mux
}

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url, APIKey: "secret", PollInterval: time.Millisecond}, nil, zap.NewNop())
}

func TestClient(t *testing.T) {
	t.Run("PollsUntilCompleted", func(t *testing.T) {
		p := &fakeProvider{pendingFor: 2}
		srv := httptest.NewServer(p.handler(t))
		defer srv.Close()

		tr, err := newTestClient(srv.URL).Transcribe(context.Background(), strings.NewReader("mp3"))
		require.NoError(t, err)
		assert.Equal(t, "mp3", p.uploaded)
		assert.Equal(t, "hello world", tr.Text)
		require.Len(t, tr.Words, 2)
		assert.Equal(t, int64(450), tr.Words[1].Start)
		assert.Equal(t, int32(3), atomic.LoadInt32(&p.polls))
	})

	t.Run("ProviderErrorIsReturned", func(t *testing.T) {
		p := &fakeProvider{finalError: "audio too short"}
		srv := httptest.NewServer(p.handler(t))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Transcribe(context.Background(), strings.NewReader("mp3"))
		assert.ErrorIs(t, err, ErrTranscriptionFailed)
		assert.Contains(t, err.Error(), "audio too short")
	})

	t.Run("NonSuccessStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad key", http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Transcribe(context.Background(), strings.NewReader("mp3"))
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusUnauthorized, se.Code)
	})

	t.Run("ContextEndsPolling", func(t *testing.T) {
		p := &fakeProvider{pendingFor: 1 << 30}
		srv := httptest.NewServer(p.handler(t))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err := newTestClient(srv.URL).Transcribe(ctx, strings.NewReader("mp3"))
		assert.Error(t, err)
		assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	})
}

type failingTranscriber struct{ calls int }

func (f *failingTranscriber) Transcribe(context.Context, io.Reader) (*ports.Transcript, error) {
	f.calls++
	return nil, errors.New("provider down")
}

func TestBreaker(t *testing.T) {
	next := &failingTranscriber{}
	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 2
	cfg.FailureThreshold = 0.5
	b := NewBreaker(next, cfg, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := b.Transcribe(context.Background(), strings.NewReader(""))
		assert.EqualError(t, err, "provider down")
	}

	_, err := b.Transcribe(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, "open", b.State())
}
