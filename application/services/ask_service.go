package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AskContextChunks is how many indexed chunks are handed to the model.
const AskContextChunks = 5

// noRelevantMemory tells the model the user has nothing on the subject.
const noRelevantMemory = "NO_RELEVANT_MEMORY"

const askSystemPrompt = `You are a helpful assistant for a personal memory platform.
You help users explore their memories and draw insights from them.

Rules:
1. Answer only from the Context. You do not know things outside the user's own memories. For a general question such as "How do I sleep better?" do not give generic advice.
2. When the Context does not cover the question, acknowledge it kindly, explain that your answers are personal and based on their memories, and suggest they record a text, audio or video memory about the topic.
3. Answer greetings warmly and offer to look back at their memories.
4. If the Context is "NO_RELEVANT_MEMORY", follow rule 2. Never invent memories.

Tone: empathetic and eager to help, but disciplined about scope.`

// Answer is a model reply grounded on the cited chunks.
type Answer struct {
	Answer  string
	Sources []ports.SearchHit
}

// AskService answers questions from a user's indexed memories.
type AskService struct {
	searcher ports.MemorySearcher
	model    ports.LanguageModel
	logger   *zap.Logger
}

// NewAskService creates an ask service. model may be nil, in which case Ask
// reports the feature as unavailable.
func NewAskService(searcher ports.MemorySearcher, model ports.LanguageModel, logger *zap.Logger) *AskService {
	return &AskService{searcher: searcher, model: model, logger: logger}
}

// Ask retrieves the chunks of userID's memories closest to question and
// has the model answer from them alone.
func (s *AskService) Ask(ctx context.Context, userID uuid.UUID, question string) (*Answer, error) {
	if s.model == nil {
		return nil, appErrors.NewUnavailableError("question answering is not configured")
	}
	question = strings.TrimSpace(question)

	hits, err := s.searcher.Search(ctx, userID, question, AskContextChunks)
	if err != nil {
		return nil, err
	}

	grounding := noRelevantMemory
	if len(hits) > 0 {
		blocks := make([]string, 0, len(hits))
		for _, h := range hits {
			blocks = append(blocks, h.Text)
		}
		grounding = strings.Join(blocks, "\n\n")
	}

	reply, err := s.model.Complete(ctx, askSystemPrompt, fmt.Sprintf("Context:\n%s\n\nUser Question:\n%s", grounding, question))
	if err != nil {
		s.logger.Error("language model failed", zap.String("user_id", userID.String()), zap.Error(err))
		if appErrors.GetAppError(err) != nil {
			return nil, err
		}
		return nil, appErrors.NewExternalError("language model", err)
	}

	if hits == nil {
		hits = []ports.SearchHit{}
	}
	return &Answer{Answer: strings.TrimSpace(reply), Sources: hits}, nil
}
