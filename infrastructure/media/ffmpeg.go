// Package media extracts audio tracks from uploaded video with the ffmpeg CLI.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds one ffmpeg run.
const DefaultTimeout = 300 * time.Second

// ErrNoAudio is returned when ffmpeg succeeds but writes nothing.
var ErrNoAudio = errors.New("ffmpeg produced no audio")

// FFmpegExtractor implements ports.AudioExtractor.
type FFmpegExtractor struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewFFmpegExtractor creates an extractor running binary. A zero timeout
// takes DefaultTimeout.
func NewFFmpegExtractor(binary string, timeout time.Duration, logger *zap.Logger) *FFmpegExtractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FFmpegExtractor{binary: binary, timeout: timeout, logger: logger}
}

// Args returns the ffmpeg arguments that convert input to a stereo 192k MP3 at output.
func Args(input, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "44100",
		"-ac", "2",
		"-b:a", "192k",
		"-y", output,
	}
}

// ExtractAudio writes the audio track of video to audio as MP3. Containers
// like MP4 need a seekable input, so both sides go through temp files.
func (e *FFmpegExtractor) ExtractAudio(ctx context.Context, video io.Reader, audio io.Writer) error {
	dir, err := os.MkdirTemp("", "extract-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input")
	output := filepath.Join(dir, "output.mp3")

	if err := writeFile(input, video); err != nil {
		return fmt.Errorf("stage video: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, Args(input, output)...)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg timed out after %s: %w", e.timeout, ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, lastLine(stderr.String()))
	}

	f, err := os.Open(output)
	if err != nil {
		return fmt.Errorf("open ffmpeg output: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(audio, f)
	if err != nil {
		return fmt.Errorf("copy ffmpeg output: %w", err)
	}
	if n == 0 {
		return ErrNoAudio
	}

	e.logger.Debug("audio extracted", zap.Int64("bytes", n), zap.Duration("duration", time.Since(start)))
	return nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
