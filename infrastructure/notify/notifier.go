package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostToConnectionAPI is the API Gateway management call the notifier uses.
type PostToConnectionAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Connections is the connection registry the notifier reads and prunes.
type Connections interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Connection, error)
	Delete(ctx context.Context, connectionID string) error
}

// Message is the frame sent to clients.
type Message struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Notifier forwards memory status events to the owner's WebSocket connections.
type Notifier struct {
	connections Connections
	api         PostToConnectionAPI
	logger      *zap.Logger
	now         func() time.Time
}

// NewNotifier creates a notifier.
func NewNotifier(connections Connections, api PostToConnectionAPI, logger *zap.Logger) *Notifier {
	return &Notifier{connections: connections, api: api, logger: logger, now: time.Now}
}

// NewAPIClient builds a management API client for a deployed stage, given as
// "<domain>/<stage>".
func NewAPIClient(cfg aws.Config, endpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String("https://" + endpoint)
	})
}

// Relevant reports whether events of detailType are pushed to clients.
func Relevant(detailType string) bool {
	switch detailType {
	case events.TypeMemoryProcessed, events.TypeMemoryProcessingFailed, events.TypeMemoryDeleted:
		return true
	}
	return false
}

// HandleEvent pushes one EventBridge detail to the user it names.
func (n *Notifier) HandleEvent(ctx context.Context, detailType string, detail json.RawMessage) error {
	if !Relevant(detailType) {
		n.logger.Debug("ignoring event", zap.String("detail_type", detailType))
		return nil
	}

	var owner struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.Unmarshal(detail, &owner); err != nil {
		return fmt.Errorf("decode %s detail: %w", detailType, err)
	}
	if owner.UserID == uuid.Nil {
		return fmt.Errorf("%s event has no user_id", detailType)
	}

	frame, err := json.Marshal(Message{Type: detailType, Timestamp: n.now().Unix(), Data: detail})
	if err != nil {
		return err
	}
	return n.Send(ctx, owner.UserID, frame)
}

// Send posts frame to every connection of userID. Gone connections are
// pruned. It fails only when every post failed.
func (n *Notifier) Send(ctx context.Context, userID uuid.UUID, frame []byte) error {
	conns, err := n.connections.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	sent, failed := 0, 0
	for _, c := range conns {
		_, err := n.api.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(c.ConnectionID),
			Data:         frame,
		})
		var gone *apigwTypes.GoneException
		switch {
		case err == nil:
			sent++
		case errors.As(err, &gone):
			if derr := n.connections.Delete(ctx, c.ConnectionID); derr != nil {
				n.logger.Warn("failed to prune gone connection", zap.String("connection_id", c.ConnectionID), zap.Error(derr))
			}
		default:
			failed++
			n.logger.Warn("failed to post to connection", zap.String("connection_id", c.ConnectionID), zap.Error(err))
		}
	}

	n.logger.Debug("status pushed",
		zap.String("user_id", userID.String()),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
	if failed > 0 && sent == 0 {
		return fmt.Errorf("all %d posts to user %s failed", failed, userID)
	}
	return nil
}
