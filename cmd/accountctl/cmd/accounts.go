package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/shared"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Query account snapshots and event history",
	Long: `Query account state.

Subcommands:
  list  - List the latest snapshot of every account
  show  - Show the latest state and event count of one account

Examples:
  accountctl accounts list --page 2
  accountctl accounts show SIM-001`,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List account snapshots",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

var accountsShowCmd = &cobra.Command{
	Use:   "show <account-id>",
	Short: "Show the latest state of an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsShow,
}

var (
	listPage    int
	listPerPage int
)

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsShowCmd)

	accountsListCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	accountsListCmd.Flags().IntVar(&listPerPage, "per-page", 50, "accounts per page")
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	return listAccounts(ctx, cmd.OutOrStdout(), s.snapshots, listPage, listPerPage)
}

func runAccountsShow(cmd *cobra.Command, args []string) error {
	accountID, err := shared.NewAccountID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	return showAccount(ctx, cmd.OutOrStdout(), s.events, accountID)
}

func listAccounts(ctx context.Context, w io.Writer, snapshots account.SnapshotRepository, page, perPage int) error {
	states, total, err := snapshots.List(ctx, page, perPage)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tTYPE\tBALANCES\tMARGINS\tTS_EVENT")
	for _, s := range states {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", s.AccountID, s.AccountType, formatBalances(s), len(s.Margins), s.TsEvent)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d of %d accounts\n", len(states), total)
	return nil
}

func showAccount(ctx context.Context, w io.Writer, events account.EventRepository, accountID shared.AccountID) error {
	history, err := events.ListByAccountID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(history) == 0 {
		return account.ErrAccountNotFound{AccountID: accountID}
	}

	latest := history[len(history)-1]
	fmt.Fprintf(w, "Account:  %s (%s)\n", latest.AccountID, latest.AccountType)
	if latest.BaseCurrency != nil {
		fmt.Fprintf(w, "Base:     %s\n", latest.BaseCurrency.Code)
	}
	fmt.Fprintf(w, "Events:   %d\n", len(history))
	fmt.Fprintf(w, "Last:     %s at %d\n\n", latest.EventID, latest.TsEvent)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CURRENCY\tTOTAL\tLOCKED\tFREE")
	for _, b := range latest.Balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Currency().Code, b.Total.Decimal(), b.Locked.Decimal(), b.Free.Decimal())
	}
	if len(latest.Margins) > 0 {
		fmt.Fprintln(tw, "\nINSTRUMENT\tINITIAL\tMAINTENANCE\t")
		for _, m := range latest.Margins {
			fmt.Fprintf(tw, "%s\t%s\t%s\t\n", m.InstrumentID, m.Initial, m.Maintenance)
		}
	}
	return tw.Flush()
}

func formatBalances(s *account.State) string {
	parts := make([]string, 0, len(s.Balances))
	for _, b := range s.Balances {
		parts = append(parts, b.Total.String())
	}
	return strings.Join(parts, ", ")
}
