// Package main implements the WebSocket $disconnect Lambda.
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/dharun-sukumar/Audio-Rag/infrastructure/config"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/di"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/notify"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

var (
	logger      *zap.Logger
	connections *notify.ConnectionStore
)

// init avoids the full container; a disconnect only touches DynamoDB.
func init() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err = di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	connections = notify.NewConnectionStore(dynamodb.NewFromConfig(awsCfg), cfg.ConnectionsTable)
}

func handler(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := req.RequestContext.ConnectionID
	if err := connections.Delete(ctx, connectionID); err != nil {
		// The TTL removes the record eventually.
		logger.Warn("Failed to remove connection", zap.String("connection_id", connectionID), zap.Error(err))
	} else {
		logger.Info("WebSocket connection closed", zap.String("connection_id", connectionID))
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

func main() {
	lambda.Start(handler)
}
