package main

import (
	"context"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/infrastructure/config"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/di"

	"github.com/spf13/cobra"
)

// shutdownGrace bounds how long a command waits for in-process pipelines
// it started before exiting.
const shutdownGrace = 10 * time.Minute

// app builds dependencies on first use so that help and token generation
// never touch the database.
type app struct {
	loadConfig func() (*config.Config, error)
	container  func(ctx context.Context, cfg *config.Config) (*di.Container, error)
}

func newApp() *app {
	return &app{
		loadConfig: config.LoadConfig,
		container:  di.InitializeContainer,
	}
}

// withContainer runs fn against a fully wired container and closes it,
// waiting for queued pipelines, afterwards.
func (a *app) withContainer(ctx context.Context, fn func(*di.Container) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	c, err := a.container(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := fn(c)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := c.Close(closeCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "audio-rag-admin",
		Short:         "Operate the Audio RAG backend",
		Long:          `Administrative commands for the Audio RAG backend. Configuration is read from CONFIG_FILE and the environment, as for the API.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.AddCommand(
		NewMigrateCmd(a),
		NewSweepCmd(a),
		NewReprocessCmd(a),
		NewTokenCmd(a),
	)
	return rootCmd
}
