// Package transcription talks to an AssemblyAI compatible speech-to-text API.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"

	"go.uber.org/zap"
)

const (
	statusQueued     = "queued"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusError      = "error"
)

// ErrTranscriptionFailed is wrapped by errors the provider reports for a job.
var ErrTranscriptionFailed = errors.New("transcription failed")

// Config configures a Client.
type Config struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	SpeechModel  string
}

// Client implements ports.Transcriber with upload, submit and poll calls.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = "universal"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL      string   `json:"audio_url"`
	SpeechModels  []string `json:"speech_models,omitempty"`
	SpeakerLabels bool     `json:"speaker_labels"`
}

type transcriptResponse struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	Text       string            `json:"text"`
	Error      string            `json:"error"`
	Words      []ports.Word      `json:"words"`
	Utterances []ports.Utterance `json:"utterances"`
}

// Transcribe uploads audio, requests a transcript and polls until the job
// finishes or ctx ends.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader) (*ports.Transcript, error) {
	var up uploadResponse
	if err := c.do(ctx, http.MethodPost, "/upload", "application/octet-stream", audio, &up); err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}
	if up.UploadURL == "" {
		return nil, fmt.Errorf("upload audio: empty upload_url")
	}

	body, err := json.Marshal(transcriptRequest{
		AudioURL:      up.UploadURL,
		SpeechModels:  []string{c.cfg.SpeechModel},
		SpeakerLabels: true,
	})
	if err != nil {
		return nil, err
	}

	var job transcriptResponse
	if err := c.do(ctx, http.MethodPost, "/transcript", "application/json", bytes.NewReader(body), &job); err != nil {
		return nil, fmt.Errorf("request transcript: %w", err)
	}
	c.logger.Debug("transcript requested", zap.String("transcript_id", job.ID))

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		switch job.Status {
		case statusCompleted:
			return &ports.Transcript{
				ID:         job.ID,
				Text:       job.Text,
				Words:      job.Words,
				Utterances: job.Utterances,
			}, nil
		case statusError:
			return nil, fmt.Errorf("%w: %s", ErrTranscriptionFailed, job.Error)
		case statusQueued, statusProcessing, "":
		default:
			return nil, fmt.Errorf("unexpected transcript status %q", job.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if err := c.do(ctx, http.MethodGet, "/transcript/"+job.ID, "", nil, &job); err != nil {
			return nil, fmt.Errorf("poll transcript %s: %w", job.ID, err)
		}
	}
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transcriber returned %d: %s", e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
