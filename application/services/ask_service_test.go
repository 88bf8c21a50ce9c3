package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSearcher struct {
	hits  []ports.SearchHit
	limit int
}

func (s *stubSearcher) Search(_ context.Context, _ uuid.UUID, _ string, limit int) ([]ports.SearchHit, error) {
	s.limit = limit
	return s.hits, nil
}

type stubModel struct {
	system, prompt string
	reply          string
	err            error
}

func (m *stubModel) Complete(_ context.Context, system, prompt string) (string, error) {
	m.system, m.prompt = system, prompt
	return m.reply, m.err
}

func TestAskService(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()

	t.Run("JoinsChunksIntoContext", func(t *testing.T) {
		searcher := &stubSearcher{hits: []ports.SearchHit{{Text: "first"}, {Text: "second"}}}
		model := &stubModel{reply: "  answer \n"}
		svc := services.NewAskService(searcher, model, zap.NewNop())

		answer, err := svc.Ask(ctx, user, " what happened? ")
		require.NoError(t, err)
		assert.Equal(t, "answer", answer.Answer)
		assert.Len(t, answer.Sources, 2)
		assert.Equal(t, services.AskContextChunks, searcher.limit)
		assert.Equal(t, "Context:\nfirst\n\nsecond\n\nUser Question:\nwhat happened?", model.prompt)
		assert.NotEmpty(t, model.system)
	})

	t.Run("NoHits", func(t *testing.T) {
		model := &stubModel{reply: "nothing yet"}
		svc := services.NewAskService(&stubSearcher{}, model, zap.NewNop())

		answer, err := svc.Ask(ctx, user, "hi")
		require.NoError(t, err)
		assert.NotNil(t, answer.Sources)
		assert.Contains(t, model.prompt, "Context:\nNO_RELEVANT_MEMORY\n")
	})

	t.Run("WithoutModel", func(t *testing.T) {
		_, err := services.NewAskService(&stubSearcher{}, nil, zap.NewNop()).Ask(ctx, user, "hi")
		require.Error(t, err)
		assert.Equal(t, 503, appErrors.GetAppError(err).HTTPStatus)
	})

	t.Run("ModelFailure", func(t *testing.T) {
		model := &stubModel{err: errors.New("rate limited")}
		_, err := services.NewAskService(&stubSearcher{}, model, zap.NewNop()).Ask(ctx, user, "hi")
		require.Error(t, err)
		assert.Equal(t, 502, appErrors.GetAppError(err).HTTPStatus)
	})
}
