package main

import (
	"fmt"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/commands"
	"github.com/dharun-sukumar/Audio-Rag/application/ingestion"
	"github.com/dharun-sukumar/Audio-Rag/infrastructure/di"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, err := di.ProvideLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := di.ProvideStore(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := store.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date at %s\n", cfg.DatabasePath)
			return nil
		},
	}
}

func NewSweepCmd(a *app) *cobra.Command {
	var (
		minAge time.Duration
		batch  int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Resubmit memories stuck in pending or processing",
		Long: `Resubmit memories that have been pending for longer than --min-age, and
requeue processing runs that outlived the summed stage timeouts.
In pool mode the pipelines run inside this process and the command waits for them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withContainer(cmd.Context(), func(c *di.Container) error {
				sweeper := ingestion.NewSweeper(c.Store.Memories(), c.Store.Statuses(), c.Scheduler, ingestion.SweeperConfig{
					MinAge:    minAge,
					BatchSize: batch,
					Lease: ingestion.LeaseFor(ingestion.Timeouts{
						Extract:    c.Config.ExtractTimeout,
						Transcribe: c.Config.TranscribeTimeout,
						Index:      c.Config.IndexTimeout,
					}),
				}, c.Logger)

				n, err := sweeper.SweepOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resubmitted %d memories\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&minAge, "min-age", ingestion.DefaultSweeperConfig().MinAge, "Only resubmit memories pending at least this long")
	cmd.Flags().IntVar(&batch, "batch", ingestion.DefaultSweeperConfig().BatchSize, "Maximum memories to resubmit")
	return cmd
}

func NewReprocessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <memory-id>",
		Short: "Resubmit a failed memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid memory id %q: %w", args[0], err)
			}

			return a.withContainer(cmd.Context(), func(c *di.Container) error {
				m, err := c.Store.Memories().GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if err := c.CommandBus.Send(cmd.Context(), commands.ReprocessMemoryCommand{
					MemoryID: m.ID,
					UserID:   m.UserID,
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Memory %s resubmitted\n", m.ID)
				return nil
			})
		},
	}
}
