//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/dharun-sukumar/Audio-Rag/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideStore,
	ProvideCollector,
	ProvideTracer,
	ProvideCommandMetrics,
	ProvideTokenVerifier,
	ProvideResolver,
	ProvideObjectStorage,
	ProvideEventPublisher,
	ProvideIndex,
	ProvideTranscriber,
	ProvideExtractor,
	ProvidePipeline,
	ProvidePool,
	ProvideScheduler,
	ProvideSweeper,
	ProvideWorker,
	ProvideMemoryService,
	ProvideTagService,
	ProvideConversationService,
	ProvideCalendarService,
	ProvideLanguageModel,
	ProvideAskService,
	ProvideMergeCoordinator,
	ProvideCommandBus,
	ProvideQueryBus,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
