// Package main implements the Lambda that runs memory ingestion pipelines
// requested over EventBridge. A schedule rule targeting the same function
// triggers recovery sweeps of stuck pending and processing memories.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/dharun-sukumar/Audio-Rag/domain/events"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/config"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/di"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var container *di.Container

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	container.Logger.Info("Ingest worker initialized")
}

// scheduledEvent is the detail type EventBridge schedule rules deliver.
const scheduledEvent = "Scheduled Event"

// handler runs one pipeline. Returning an error makes EventBridge retry.
func handler(ctx context.Context, event awsevents.CloudWatchEvent) error {
	if event.DetailType == scheduledEvent {
		n, err := container.Sweeper.SweepOnce(ctx)
		if err != nil {
			return fmt.Errorf("recovery sweep: %w", err)
		}
		container.Logger.Info("recovery sweep finished", zap.Int("resubmitted", n))
		return nil
	}
	if event.DetailType != events.TypeMemoryIngestionRequested {
		container.Logger.Warn("ignoring unexpected event", zap.String("detail_type", event.DetailType))
		return nil
	}

	var req events.MemoryIngestionRequested
	if err := json.Unmarshal(event.Detail, &req); err != nil {
		// A malformed event will never parse; retrying would not help.
		container.Logger.Error("malformed ingestion request", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	if err := container.Worker.Handle(ctx, req); err != nil {
		return fmt.Errorf("ingest memory %s: %w", req.MemoryID, err)
	}
	return nil
}

func main() {
	lambda.Start(handler)
}
