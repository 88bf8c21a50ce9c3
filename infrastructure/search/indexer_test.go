package search

import (
	"context"
	"testing"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seconds(v float64) *float64 { return &v }

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	x, err := NewIndex("", HashEmbedding, zap.NewNop())
	require.NoError(t, err)
	return x
}

func TestIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("IndexReplacesPreviousChunks", func(t *testing.T) {
		x := newTestIndex(t)
		user, mem := uuid.New(), uuid.New()

		require.NoError(t, x.IndexMemory(ctx, user, mem, []ports.Chunk{{Text: "one"}, {Text: "two"}, {Text: "three"}}))
		require.NoError(t, x.IndexMemory(ctx, user, mem, []ports.Chunk{{Text: "beach trip with grandma", Start: seconds(1.5), End: seconds(9)}}))

		col, err := x.collection(user)
		require.NoError(t, err)
		assert.Equal(t, 1, col.Count())

		hits, err := x.Search(ctx, user, "grandma beach", 5)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, mem, hits[0].MemoryID)
		require.NotNil(t, hits[0].Start)
		assert.InDelta(t, 1.5, *hits[0].Start, 0.001)
	})

	t.Run("DeleteOnlyTouchesOneMemory", func(t *testing.T) {
		x := newTestIndex(t)
		user, a, b := uuid.New(), uuid.New(), uuid.New()

		require.NoError(t, x.IndexMemory(ctx, user, a, []ports.Chunk{{Text: "alpha"}}))
		require.NoError(t, x.IndexMemory(ctx, user, b, []ports.Chunk{{Text: "bravo"}, {Text: "charlie"}}))
		require.NoError(t, x.DeleteMemory(ctx, user, a))
		require.NoError(t, x.DeleteMemory(ctx, uuid.New(), a))

		col, _ := x.collection(user)
		assert.Equal(t, 2, col.Count())
	})

	t.Run("ReassignOwnerMovesDocuments", func(t *testing.T) {
		x := newTestIndex(t)
		guest, owner := uuid.New(), uuid.New()
		moved, kept := uuid.New(), uuid.New()

		require.NoError(t, x.IndexMemory(ctx, guest, moved, []ports.Chunk{{Text: "first"}, {Text: "second"}}))
		require.NoError(t, x.IndexMemory(ctx, guest, kept, []ports.Chunk{{Text: "stay"}}))

		require.NoError(t, x.ReassignOwner(ctx, guest, owner, []uuid.UUID{moved}))

		hits, err := x.Search(ctx, owner, "second", 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		for _, h := range hits {
			assert.Equal(t, moved, h.MemoryID)
		}

		hits, err = x.Search(ctx, guest, "stay", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, kept, hits[0].MemoryID)
	})

	t.Run("SearchEmptyCollection", func(t *testing.T) {
		hits, err := newTestIndex(t).Search(ctx, uuid.New(), "anything", 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestHashEmbedding(t *testing.T) {
	a, err := HashEmbedding(context.Background(), "Hello, world")
	require.NoError(t, err)
	b, _ := HashEmbedding(context.Background(), "hello WORLD")
	assert.Equal(t, a, b)
	assert.Len(t, a, HashDimensions)

	empty, _ := HashEmbedding(context.Background(), "   ")
	assert.Equal(t, float32(1), empty[0])
}
