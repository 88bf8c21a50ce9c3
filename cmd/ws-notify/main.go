// Package main implements the Lambda that pushes memory status events from
// EventBridge to the owner's open WebSocket connections.
package main

import (
	"context"
	"log"

	"github.com/dharun-sukumar/Audio-Rag/infrastructure/config"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/di"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/notify"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

var notifier *notify.Notifier

func init() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.WebSocketEndpoint == "" {
		log.Fatal("WEBSOCKET_ENDPOINT is required")
	}

	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	connections := notify.NewConnectionStore(dynamodb.NewFromConfig(awsCfg), cfg.ConnectionsTable)
	notifier = notify.NewNotifier(connections, notify.NewAPIClient(awsCfg, cfg.WebSocketEndpoint), logger)
}

func handler(ctx context.Context, event events.CloudWatchEvent) error {
	return notifier.HandleEvent(ctx, event.DetailType, event.Detail)
}

func main() {
	lambda.Start(handler)
}
