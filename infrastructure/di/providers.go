package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	commandhandlers "github.com/dharun-sukumar/Audio-Rag/application/commands/handlers"
	appidentity "github.com/dharun-sukumar/Audio-Rag/application/identity"
	"github.com/dharun-sukumar/Audio-Rag/application/ingestion"
	"github.com/dharun-sukumar/Audio-Rag/application/merge"
	"github.com/dharun-sukumar/Audio-Rag/application/ports"
	querybus "github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	queryhandlers "github.com/dharun-sukumar/Audio-Rag/application/queries/handlers"
	"github.com/dharun-sukumar/Audio-Rag/application/services"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/concurrency"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/config"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/identity"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/llm"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/media"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/messaging"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/persistence/sqlstore"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/search"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/storage"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/transcription"
	"github.com/dharun-sukumar/Audio-Rag/pkg/auth"
	"github.com/dharun-sukumar/Audio-Rag/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideStore opens the relational store and applies migrations.
func ProvideStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(sqlstore.Config{
		Path:       cfg.DatabasePath,
		LogQueries: cfg.IsDevelopment() && cfg.LogLevel == "debug",
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// ProvideCollector creates the Prometheus collector.
func ProvideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.MetricsNS)
}

// ProvideTracer creates the X-Ray tracer.
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("audio-rag", cfg.EnableTracing)
}

// ProvideCommandMetrics reports command executions to CloudWatch when
// metrics are enabled.
func ProvideCommandMetrics(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) *observability.CommandMetrics {
	if !cfg.EnableMetrics {
		return nil
	}
	namespace := fmt.Sprintf("%s/%s", cfg.MetricsNS, cfg.Environment)
	return observability.NewCommandMetrics(namespace, awscloudwatch.NewFromConfig(awsCfg), logger)
}

// developmentSecret signs tokens when JWT_SECRET is unset. Validate
// requires a secret in production.
const developmentSecret = "development-secret-change-in-production"

// SigningSecret is the HS256 secret tokens are verified against.
func SigningSecret(cfg *config.Config) string {
	if cfg.JWTSecret == "" {
		return developmentSecret
	}
	return cfg.JWTSecret
}

// ProvideTokenVerifier builds the cached JWT verifier.
func ProvideTokenVerifier(cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) (*identity.Verifier, error) {
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, using development secret")
	}

	jwtCfg := auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     SigningSecret(cfg),
		Issuer:        cfg.JWTIssuer,
	}
	if cfg.JWTAudience != "" {
		jwtCfg.Audience = []string{cfg.JWTAudience}
	}

	validator, err := auth.NewJWTValidator(jwtCfg)
	if err != nil {
		return nil, err
	}
	return identity.NewVerifier(validator, cfg.TokenCacheTTL, metrics, logger)
}

// ProvideResolver creates the identity resolver.
func ProvideResolver(store *sqlstore.Store, verifier *identity.Verifier, logger *zap.Logger) *appidentity.Resolver {
	return appidentity.NewResolver(store.Users(), verifier, logger)
}

// ProvideObjectStorage selects the blob store for cfg.StorageBackend.
func ProvideObjectStorage(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		client := awss3.NewFromConfig(awsCfg)
		return storage.NewS3Store(client, cfg.S3Bucket, logger).WithPresigner(awss3.NewPresignClient(client)), nil
	default:
		return storage.NewLocalStore(cfg.StorageDir)
	}
}

// ProvideEventPublisher publishes to EventBridge when events are enabled and
// logs them otherwise.
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEvents {
		return messaging.NewLogPublisher(logger)
	}
	return messaging.NewEventBridgePublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)
}

// ProvideIndex opens the vector index.
func ProvideIndex(cfg *config.Config, logger *zap.Logger) (*search.Index, error) {
	return search.NewIndex(cfg.IndexPath, search.NewEmbedder(cfg.OpenAIAPIKey), logger)
}

// ProvideTranscriber creates the transcription client behind a circuit breaker.
func ProvideTranscriber(cfg *config.Config, logger *zap.Logger) *transcription.Breaker {
	client := transcription.NewClient(transcription.Config{
		BaseURL:      cfg.TranscriberURL,
		APIKey:       cfg.TranscriberAPIKey,
		PollInterval: cfg.TranscriberPoll,
	}, &http.Client{Timeout: 2 * time.Minute}, logger)
	return transcription.NewBreaker(client, transcription.DefaultBreakerConfig("transcriber"), logger)
}

// ProvideExtractor creates the ffmpeg audio extractor.
func ProvideExtractor(cfg *config.Config, logger *zap.Logger) *media.FFmpegExtractor {
	return media.NewFFmpegExtractor(cfg.FFmpegPath, cfg.ExtractTimeout, logger)
}

// ProvidePipeline assembles the ingestion pipeline.
func ProvidePipeline(
	cfg *config.Config,
	store *sqlstore.Store,
	objects ports.ObjectStorage,
	extractor *media.FFmpegExtractor,
	transcriber *transcription.Breaker,
	index *search.Index,
	publisher ports.EventPublisher,
	tracer *observability.Tracer,
	metrics *observability.Collector,
	logger *zap.Logger,
) *ingestion.Pipeline {
	return ingestion.NewPipeline(ingestion.Dependencies{
		Memories:    store.Memories(),
		Status:      store.Statuses(),
		Storage:     objects,
		Extractor:   extractor,
		Transcriber: transcriber,
		Indexer:     index,
		Publisher:   publisher,
		Tracer:      tracer,
		Metrics:     metrics,
		Logger:      logger,
	}, ingestion.Timeouts{
		Extract:    cfg.ExtractTimeout,
		Transcribe: cfg.TranscribeTimeout,
		Index:      cfg.IndexTimeout,
	})
}

// ProvidePool creates the ingestion worker pool. It is started by Container.Start.
func ProvidePool(cfg *config.Config, logger *zap.Logger) *concurrency.Pool {
	return concurrency.NewPool(concurrency.PoolConfig{
		Workers:   cfg.IngestionWorkers,
		QueueSize: cfg.IngestionQueueSize,
	}, logger)
}

// ProvideScheduler selects the scheduler for cfg.IngestionMode.
func ProvideScheduler(
	cfg *config.Config,
	pipeline *ingestion.Pipeline,
	pool *concurrency.Pool,
	publisher ports.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) ingestion.Scheduler {
	if cfg.IngestionMode == config.IngestionEventBridge {
		return ingestion.NewEventScheduler(publisher, metrics, logger)
	}
	return ingestion.NewPoolScheduler(pipeline, pool, metrics, logger)
}

// ProvideSweeper creates the pending recovery sweeper.
func ProvideSweeper(cfg *config.Config, store *sqlstore.Store, scheduler ingestion.Scheduler, logger *zap.Logger) *ingestion.Sweeper {
	return ingestion.NewSweeper(store.Memories(), store.Statuses(), scheduler, ingestion.SweeperConfig{
		Interval: cfg.PendingSweepEvery,
		MinAge:   cfg.PendingSweepAge,
		Lease: ingestion.LeaseFor(ingestion.Timeouts{
			Extract:    cfg.ExtractTimeout,
			Transcribe: cfg.TranscribeTimeout,
			Index:      cfg.IndexTimeout,
		}),
	}, logger)
}

// ProvideWorker creates the event driven ingestion worker.
func ProvideWorker(pipeline *ingestion.Pipeline, logger *zap.Logger) *ingestion.Worker {
	return ingestion.NewWorker(pipeline, logger)
}

// ProvideMemoryService creates the memory service.
func ProvideMemoryService(
	store *sqlstore.Store,
	objects ports.ObjectStorage,
	index *search.Index,
	scheduler ingestion.Scheduler,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *services.MemoryService {
	return services.NewMemoryService(store.Memories(), store.Statuses(), store.Tags(), objects, index, scheduler, publisher, logger)
}

// ProvideTagService creates the tag service.
func ProvideTagService(store *sqlstore.Store, logger *zap.Logger) *services.TagService {
	return services.NewTagService(store.Tags(), logger)
}

// ProvideConversationService creates the conversation service.
func ProvideConversationService(cfg *config.Config, store *sqlstore.Store, logger *zap.Logger) *services.ConversationService {
	return services.NewConversationService(store.Conversations(), cfg.GuestConversationCap, logger)
}

// ProvideCalendarService creates the calendar service.
func ProvideCalendarService(store *sqlstore.Store, logger *zap.Logger) *services.CalendarService {
	return services.NewCalendarService(store.Memories(), store.Conversations(), logger)
}

// ProvideLanguageModel creates the model used for question answering. It is
// nil when LLM_PROVIDER is none.
func ProvideLanguageModel(cfg *config.Config, logger *zap.Logger) (ports.LanguageModel, error) {
	return llm.New(llm.Config{
		Provider:  cfg.LLMProvider,
		APIKey:    cfg.LLMAPIKey,
		Model:     cfg.LLMModel,
		BaseURL:   cfg.LLMBaseURL,
		MaxTokens: cfg.LLMMaxTokens,
	}, &http.Client{Timeout: cfg.LLMTimeout}, logger)
}

// ProvideAskService creates the question answering service.
func ProvideAskService(index *search.Index, model ports.LanguageModel, logger *zap.Logger) *services.AskService {
	return services.NewAskService(index, model, logger)
}

// ProvideMergeCoordinator creates the guest merge coordinator.
func ProvideMergeCoordinator(
	store *sqlstore.Store,
	index *search.Index,
	publisher ports.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *merge.Coordinator {
	return merge.NewCoordinator(store.Merges(), index, publisher, metrics, logger, merge.DefaultConfig())
}

// ProvideCommandBus creates the command bus and registers every handler.
func ProvideCommandBus(
	memories *services.MemoryService,
	tags *services.TagService,
	conversations *services.ConversationService,
	merges *merge.Coordinator,
	cmdMetrics *observability.CommandMetrics,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	middlewares := []bus.Middleware{bus.LoggingMiddleware(logger)}
	if cmdMetrics != nil {
		middlewares = append(middlewares, bus.MetricsMiddleware(cmdMetrics))
	}

	b := bus.NewCommandBus(middlewares...)
	if err := commandhandlers.Register(b,
		commandhandlers.NewMemoryCommandHandler(memories),
		commandhandlers.NewTagCommandHandler(tags),
		commandhandlers.NewConversationCommandHandler(conversations),
		commandhandlers.NewMergeCommandHandler(merges),
	); err != nil {
		return nil, fmt.Errorf("register command handlers: %w", err)
	}
	return b, nil
}

// ProvideQueryBus creates the query bus and registers every handler.
func ProvideQueryBus(
	memories *services.MemoryService,
	tags *services.TagService,
	conversations *services.ConversationService,
	calendar *services.CalendarService,
	ask *services.AskService,
	store *sqlstore.Store,
	index *search.Index,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	b := querybus.NewQueryBus(querybus.LoggingMiddleware(logger))
	if err := queryhandlers.Register(b,
		queryhandlers.NewMemoryQueryHandler(memories),
		queryhandlers.NewTagQueryHandler(tags),
		queryhandlers.NewConversationQueryHandler(conversations),
		queryhandlers.NewUserQueryHandler(store.Users()),
		queryhandlers.NewSearchQueryHandler(index),
		queryhandlers.NewCalendarQueryHandler(calendar),
		queryhandlers.NewAskQueryHandler(ask),
	); err != nil {
		return nil, fmt.Errorf("register query handlers: %w", err)
	}
	return b, nil
}
