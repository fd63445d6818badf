package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"github.com/trading-account-engine/internal/domain/outbox"
	"github.com/trading-account-engine/internal/domain/shared"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Maintain the account state outbox",
	Long: `Maintain account state outbox messages.

Subcommands:
  list     - Show messages in one status, oldest first
  requeue  - Set messages back to PENDING so the poller publishes them again
  delete   - Remove messages permanently

All ids of one invocation are changed in a single transaction.

Examples:
  accountctl outbox list --status FAILED_TO_PUBLISH
  accountctl outbox requeue 42 43
  accountctl outbox delete 17`,
}

var outboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List outbox messages by status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := parseOutboxStatus(outboxStatus)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		return listOutbox(ctx, cmd.OutOrStdout(), s.outbox, status, outboxLimit)
	},
}

var (
	outboxStatus string
	outboxLimit  int
)

var outboxRequeueCmd = &cobra.Command{
	Use:   "requeue <id...>",
	Short: "Requeue messages that failed to publish",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOutbox(cmd, args, requeueMessage)
	},
}

var outboxDeleteCmd = &cobra.Command{
	Use:   "delete <id...>",
	Short: "Delete messages; their events stay in the event log",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOutbox(cmd, args, deleteMessage)
	},
}

// TxRunner runs fn in a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type outboxOp func(ctx context.Context, repo outbox.Repository, id int64) error

func init() {
	rootCmd.AddCommand(outboxCmd)
	outboxCmd.AddCommand(outboxListCmd)
	outboxCmd.AddCommand(outboxRequeueCmd)
	outboxCmd.AddCommand(outboxDeleteCmd)

	outboxListCmd.Flags().StringVar(&outboxStatus, "status", string(shared.OutboxStatusFailedToPublish), "PENDING, PROCESSED or FAILED_TO_PUBLISH")
	outboxListCmd.Flags().IntVar(&outboxLimit, "limit", 50, "maximum number of messages")
}

func parseOutboxStatus(s string) (shared.OutboxStatus, error) {
	status := shared.OutboxStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case shared.OutboxStatusPending, shared.OutboxStatusProcessed, shared.OutboxStatusFailedToPublish:
		return status, nil
	}
	return "", fmt.Errorf("unknown outbox status %q", s)
}

func listOutbox(ctx context.Context, w io.Writer, repo outbox.Repository, status shared.OutboxStatus, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	messages, err := repo.ListByStatus(ctx, status, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACCOUNT\tEVENT_TYPE\tEVENT_ID\tATTEMPTS\tLAST_ATTEMPT")
	for _, m := range messages {
		last := "-"
		if m.LastAttemptAt != nil {
			last = m.LastAttemptAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", m.ID, m.AccountID, m.EventType, m.EventID, m.Attempts, last)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d %s messages\n", len(messages), status)
	return nil
}

func runOutbox(cmd *cobra.Command, args []string, op outboxOp) error {
	ids, err := parseMessageIDs(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	if err := applyOutbox(ctx, s.postgres, s.outbox, ids, op); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %d outbox messages\n", len(ids))
	return nil
}

func parseMessageIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid outbox message id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func applyOutbox(ctx context.Context, db TxRunner, repo outbox.Repository, ids []int64, op outboxOp) error {
	return db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txRepo := repo.WithTx(tx)
		for _, id := range ids {
			if err := op(ctx, txRepo, id); err != nil {
				return fmt.Errorf("outbox message %d: %w", id, err)
			}
		}
		return nil
	})
}

func requeueMessage(ctx context.Context, repo outbox.Repository, id int64) error {
	return repo.UpdateStatus(ctx, id, shared.OutboxStatusPending)
}

func deleteMessage(ctx context.Context, repo outbox.Repository, id int64) error {
	return repo.Delete(ctx, id)
}
