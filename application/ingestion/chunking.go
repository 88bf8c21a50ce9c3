package ingestion

import (
	"strings"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/domain/memory"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	WordsPerChunk    = 40
	TextChunkSize    = 1000
	TextChunkOverlap = 200
)

// ChunkTranscript groups transcript words into fixed size chunks carrying
// their start and end offsets in seconds.
func ChunkTranscript(t *ports.Transcript, wordsPerChunk int) []ports.Chunk {
	if t == nil {
		return nil
	}
	if len(t.Words) == 0 {
		if text := strings.TrimSpace(t.Text); text != "" {
			return []ports.Chunk{{Text: text}}
		}
		return nil
	}
	if wordsPerChunk <= 0 {
		wordsPerChunk = WordsPerChunk
	}

	var (
		chunks []ports.Chunk
		buf    []string
		start  float64
	)
	for i, w := range t.Words {
		if len(buf) == 0 {
			start = msToSeconds(w.Start)
		}
		buf = append(buf, w.Text)

		if len(buf) >= wordsPerChunk || i == len(t.Words)-1 {
			end := msToSeconds(w.End)
			s := start
			chunks = append(chunks, ports.Chunk{Text: strings.Join(buf, " "), Start: &s, End: &end})
			buf = buf[:0]
		}
	}
	return chunks
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}

// SplitText splits raw text into overlapping chunks, preferring paragraph,
// line and word boundaries.
func SplitText(text string) ([]ports.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(TextChunkSize),
		textsplitter.WithChunkOverlap(TextChunkOverlap),
	)
	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	chunks := make([]ports.Chunk, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			chunks = append(chunks, ports.Chunk{Text: p})
		}
	}
	return chunks, nil
}

// headerChunk indexes the user supplied title and description so a memory
// is searchable by them even when its body is empty.
func headerChunk(m *memory.Memory) (ports.Chunk, bool) {
	var parts []string
	if t := strings.TrimSpace(m.Title); t != "" {
		parts = append(parts, t)
	}
	if d := strings.TrimSpace(m.Description); d != "" {
		parts = append(parts, d)
	}
	if t := strings.TrimSpace(m.Topic); t != "" {
		parts = append(parts, "Topic: "+t)
	}
	if len(m.People) > 0 {
		parts = append(parts, "People: "+strings.Join(m.People, ", "))
	}
	if len(parts) == 0 {
		return ports.Chunk{}, false
	}
	return ports.Chunk{Text: strings.Join(parts, "\n")}, true
}
