package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trading-account-engine/internal/domain/account"
)

var rebuildSnapshotsCmd = &cobra.Command{
	Use:   "rebuild-snapshots",
	Short: "Rewrite every Mongo snapshot from the latest event in Postgres",
	Long: `Rebuild the query snapshots from the append-only event log.

Run this after restoring the Mongo database or when snapshots fell behind
because the outbox poller was stopped with pending messages.`,
	Args: cobra.NoArgs,
	RunE: runRebuildSnapshots,
}

func init() {
	rootCmd.AddCommand(rebuildSnapshotsCmd)
}

func runRebuildSnapshots(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	n, err := rebuildSnapshots(ctx, s.events, s.snapshots)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %d snapshots\n", n)
	return nil
}

func rebuildSnapshots(ctx context.Context, events account.EventRepository, snapshots account.SnapshotRepository) (int, error) {
	ids, err := events.ListAccountIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}

	rebuilt := 0
	for _, id := range ids {
		latest, err := events.GetLatest(ctx, id)
		if err != nil {
			return rebuilt, fmt.Errorf("latest event of %s: %w", id, err)
		}
		if err := snapshots.Upsert(ctx, latest); err != nil {
			return rebuilt, fmt.Errorf("upsert snapshot of %s: %w", id, err)
		}
		rebuilt++
	}
	return rebuilt, nil
}
