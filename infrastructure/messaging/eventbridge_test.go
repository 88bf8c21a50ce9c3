package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEventBridge struct {
	inputs []*eventbridge.PutEventsInput
	failed int32
}

func (f *fakeEventBridge) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.inputs = append(f.inputs, in)
	out := &eventbridge.PutEventsOutput{FailedEntryCount: f.failed}
	for range in.Entries {
		entry := types.PutEventsResultEntry{}
		if f.failed > 0 {
			entry.ErrorCode = aws.String("ThrottlingException")
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func TestEventBridgePublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("SplitsIntoBatchesOfTen", func(t *testing.T) {
		client := &fakeEventBridge{}
		p := NewEventBridgePublisher(client, "bus", zap.NewNop())

		batch := make([]events.DomainEvent, 23)
		for i := range batch {
			batch[i] = events.NewMemoryDeleted(uuid.New(), uuid.New(), time.Now())
		}
		require.NoError(t, p.PublishBatch(ctx, batch))

		require.Len(t, client.inputs, 3)
		assert.Len(t, client.inputs[0].Entries, 10)
		assert.Len(t, client.inputs[2].Entries, 3)
	})

	t.Run("EntryCarriesEventDetail", func(t *testing.T) {
		client := &fakeEventBridge{}
		p := NewEventBridgePublisher(client, "bus", zap.NewNop())
		memoryID, userID := uuid.New(), uuid.New()

		require.NoError(t, p.Publish(ctx, events.NewMemoryIngestionRequested(memoryID, userID, time.Now())))

		entry := client.inputs[0].Entries[0]
		assert.Equal(t, "bus", aws.ToString(entry.EventBusName))
		assert.Equal(t, Source, aws.ToString(entry.Source))
		assert.Equal(t, events.TypeMemoryIngestionRequested, aws.ToString(entry.DetailType))

		var decoded events.MemoryIngestionRequested
		require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &decoded))
		assert.Equal(t, memoryID, decoded.MemoryID)
		assert.Equal(t, userID, decoded.UserID)
	})

	t.Run("FailedEntriesAreAnError", func(t *testing.T) {
		client := &fakeEventBridge{failed: 1}
		p := NewEventBridgePublisher(client, "bus", zap.NewNop())
		assert.Error(t, p.Publish(ctx, events.NewMemoryDeleted(uuid.New(), uuid.New(), time.Now())))
	})
}
