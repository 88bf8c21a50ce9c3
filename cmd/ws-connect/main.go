// Package main implements the WebSocket $connect Lambda. It resolves the
// caller the same way the REST API does and records the connection so
// status changes can be pushed to them.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	appidentity "github.com/dharun-sukumar/Audio-Rag/application/identity"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/config"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/di"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/notify"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

var (
	container   *di.Container
	connections *notify.ConnectionStore
)

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	connections = notify.NewConnectionStore(dynamodb.NewFromConfig(container.AWSConfig), cfg.ConnectionsTable)
	container.Logger.Info("WebSocket connect handler initialized")
}

// credentials reads identity from the query string, since browsers cannot
// set headers on a WebSocket upgrade, falling back to the headers.
func credentials(req events.APIGatewayWebsocketProxyRequest) appidentity.Credentials {
	creds := appidentity.Credentials{
		BearerToken: req.QueryStringParameters["token"],
		GuestID:     req.QueryStringParameters["guest_id"],
	}
	if creds.BearerToken == "" {
		auth := req.Headers["Authorization"]
		if auth == "" {
			auth = req.Headers["authorization"]
		}
		creds.BearerToken = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if creds.GuestID == "" {
		creds.GuestID = req.Headers["X-Guest-ID"]
	}
	return creds
}

func handler(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := container.Logger.With(zap.String("connection_id", req.RequestContext.ConnectionID))

	user, err := container.Resolver.Resolve(ctx, credentials(req))
	if err != nil {
		status := http.StatusInternalServerError
		if appErr := appErrors.GetAppError(err); appErr != nil && appErr.HTTPStatus < 500 {
			status = appErr.HTTPStatus
		}
		logger.Warn("WebSocket connection rejected", zap.Int("status", status), zap.Error(err))
		return events.APIGatewayProxyResponse{StatusCode: status}, nil
	}

	conn := notify.Connection{
		ConnectionID: req.RequestContext.ConnectionID,
		UserID:       user.ID,
		Endpoint:     fmt.Sprintf("%s/%s", req.RequestContext.DomainName, req.RequestContext.Stage),
		ConnectedAt:  time.Now().UTC(),
	}
	if err := connections.Save(ctx, conn); err != nil {
		logger.Error("Failed to store connection", zap.Error(err))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}

	logger.Info("WebSocket connection established", zap.String("user_id", user.ID.String()))
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

func main() {
	lambda.Start(handler)
}
