package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func TestCommandMetrics(t *testing.T) {
	t.Run("RecordsStatusDimension", func(t *testing.T) {
		cw := &fakeCloudWatch{}
		m := NewCommandMetrics("AudioRag/test", cw, zap.NewNop())

		m.RecordCommandExecution(context.Background(), "UploadMemoryCommand", 250*time.Millisecond, nil)
		m.RecordCommandExecution(context.Background(), "MergeGuestCommand", time.Second, errors.New("boom"))

		require.Len(t, cw.inputs, 2)
		assert.Equal(t, "AudioRag/test", aws.ToString(cw.inputs[0].Namespace))

		exec := cw.inputs[0].MetricData[0]
		assert.Equal(t, "CommandExecution", aws.ToString(exec.MetricName))
		assert.Equal(t, float64(250), aws.ToFloat64(exec.Value))
		assert.Equal(t, "success", aws.ToString(exec.Dimensions[1].Value))
		assert.Equal(t, "failure", aws.ToString(cw.inputs[1].MetricData[1].Dimensions[1].Value))
	})

	t.Run("SendErrorsAreSwallowed", func(t *testing.T) {
		m := NewCommandMetrics("ns", &fakeCloudWatch{err: errors.New("throttled")}, zap.NewNop())
		assert.NotPanics(t, func() {
			m.RecordCommandExecution(context.Background(), "X", time.Millisecond, nil)
		})
	})

	t.Run("NilIsNoop", func(t *testing.T) {
		var m *CommandMetrics
		assert.NotPanics(t, func() {
			m.RecordCommandExecution(context.Background(), "X", time.Millisecond, nil)
		})
	})
}
