package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/trading-account-engine/internal/config"
	"github.com/trading-account-engine/internal/data/mongo"
	"github.com/trading-account-engine/internal/data/postgres"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/outbox"
	"github.com/trading-account-engine/internal/logger"
	"github.com/trading-account-engine/internal/platform/persistence"
)

var rootCmd = &cobra.Command{
	Use:   "accountctl",
	Short: "Inspect and maintain trading account state",
	Long: `accountctl reads the account event log and snapshots written by the account processor.

It provides tools for:
  - Listing accounts and showing their latest state
  - Rebuilding the Mongo snapshots from the Postgres event log
  - Exporting account history to a SQLite journal
  - Requeueing or deleting outbox messages`,
	SilenceUsage: true,
}

var configName string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configName, "config", "c", "account_processor", "name of the env file under configs/")
}

// stores are the connections a command works against
type stores struct {
	log       *slog.Logger
	postgres  *persistence.PostgresDB
	mongo     *persistence.MongoDB
	events    account.EventRepository
	snapshots account.SnapshotRepository
	outbox    outbox.Repository
}

func openStores(ctx context.Context) (*stores, error) {
	cfg, err := config.LoadConfig(configName)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(os.Stderr, cfg)

	pg, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
	if err != nil {
		return nil, err
	}
	mdb, err := persistence.NewMongoDB(ctx, log, &cfg.MongoDB)
	if err != nil {
		pg.Close()
		return nil, err
	}

	return &stores{
		log:       log,
		postgres:  pg,
		mongo:     mdb,
		events:    postgres.NewAccountEventRepository(log, pg),
		snapshots: mongo.NewSnapshotRepository(log, mdb.Database()),
		outbox:    postgres.NewOutboxRepository(log, pg),
	}, nil
}

func (s *stores) Close(ctx context.Context) {
	s.postgres.Close()
	if err := s.mongo.Close(ctx); err != nil {
		s.log.Warn("Error closing MongoDB connection", "error", err)
	}
}
