package di

import (
	"context"
	"errors"

	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	appidentity "github.com/dharun-sukumar/Audio-Rag/application/identity"
	"github.com/dharun-sukumar/Audio-Rag/application/ingestion"
	"github.com/dharun-sukumar/Audio-Rag/application/merge"
	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	querybus "github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/concurrency"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/config"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/identity"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/persistence/sqlstore"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/search"
	"github.com/dharun-sukumar/Audio-Rag/interfaces/http/rest"
	"github.com/dharun-sukumar/Audio-Rag/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	AWSConfig aws.Config

	Store     *sqlstore.Store
	Storage   ports.ObjectStorage
	Index     *search.Index
	Publisher ports.EventPublisher
	Metrics   *observability.Collector
	Tracer    *observability.Tracer

	Verifier *identity.Verifier
	Resolver *appidentity.Resolver

	Pipeline  *ingestion.Pipeline
	Pool      *concurrency.Pool
	Scheduler ingestion.Scheduler
	Sweeper   *ingestion.Sweeper
	Worker    *ingestion.Worker

	Memories      *services.MemoryService
	Tags          *services.TagService
	Conversations *services.ConversationService
	Merges        *merge.Coordinator

	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
}

// Router builds the REST router over the container's buses.
func (c *Container) Router() *rest.Router {
	return rest.NewRouter(
		c.CommandBus,
		c.QueryBus,
		c.Resolver,
		c.Store,
		c.Metrics,
		rest.Options{
			CORSOrigins:    c.Config.CORSOrigins,
			MaxUploadBytes: c.Config.MaxUploadBytes,
			RateLimitRPM:   c.Config.RateLimitRPM,
			Debug:          c.Config.IsDevelopment(),
		},
		c.Logger,
	)
}

// Start launches background processing for the in-process ingestion mode.
func (c *Container) Start(ctx context.Context) {
	if c.Config.IngestionMode != config.IngestionPool {
		return
	}
	c.Pool.Start()
	c.Sweeper.Start(ctx)
}

// Close stops background work and releases resources. Running pipelines get
// until ctx ends to finish.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.Config.IngestionMode == config.IngestionPool {
		c.Sweeper.Stop()
		if err := c.Pool.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.Verifier.Close()
	if err := c.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	_ = c.Logger.Sync()
	return errors.Join(errs...)
}
