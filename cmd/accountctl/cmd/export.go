package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trading-account-engine/internal/data/sqlite"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/shared"
)

var exportCmd = &cobra.Command{
	Use:   "export [account-id...]",
	Short: "Export account event history to a SQLite journal",
	Long: `Export copies account events from Postgres into a SQLite file.
Without arguments every account is exported. Events already in the
journal are skipped, so an export can be repeated to catch up.

Examples:
  accountctl export --sqlite ./accounts.db
  accountctl export --sqlite ./sim.db SIM-001 SIM-002`,
	RunE: runExport,
}

var exportPath string

// StateExporter writes account states to an offline journal
type StateExporter interface {
	Export(ctx context.Context, states []*account.State) (int, error)
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportPath, "sqlite", "./accounts.sqlite", "path to SQLite journal DB")
}

func runExport(cmd *cobra.Command, args []string) error {
	ids := make([]shared.AccountID, 0, len(args))
	for _, arg := range args {
		id, err := shared.NewAccountID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	ctx := cmd.Context()
	s, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	exporter, err := sqlite.NewExporter(exportPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer exporter.Close()

	n, err := exportAccounts(ctx, s.events, exporter, ids)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d events to %s\n", n, exportPath)
	return nil
}

func exportAccounts(ctx context.Context, events account.EventRepository, exporter StateExporter, ids []shared.AccountID) (int, error) {
	if len(ids) == 0 {
		all, err := events.ListAccountIDs(ctx)
		if err != nil {
			return 0, fmt.Errorf("list accounts: %w", err)
		}
		ids = all
	}

	exported := 0
	for _, id := range ids {
		history, err := events.ListByAccountID(ctx, id)
		if err != nil {
			return exported, fmt.Errorf("list events of %s: %w", id, err)
		}
		n, err := exporter.Export(ctx, history)
		if err != nil {
			return exported, fmt.Errorf("export %s: %w", id, err)
		}
		exported += n
	}
	return exported, nil
}
