package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/trading-account-engine/internal/account_processor/service"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/outbox"
)

type StateRecorderImpl struct {
	eventRepo  account.EventRepository
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewStateRecorder(eventRepo account.EventRepository, outboxRepo outbox.Repository, logger *slog.Logger) service.StateRecorder {
	return &StateRecorderImpl{
		eventRepo:  eventRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// RecordState appends the state to the account event log and queues it for
// publishing, both inside tx
func (r *StateRecorderImpl) RecordState(ctx context.Context, tx pgx.Tx, event *execution.Event, state *account.State) error {
	logger := r.logger
	if event.CorrelationID != "" {
		logger = r.logger.With("correlation_id", event.CorrelationID)
	}

	if err := r.eventRepo.WithTx(tx).Append(ctx, event.EventID, state); err != nil {
		return fmt.Errorf("failed to append account event for %s: %w", event.EventID.String(), err)
	}

	msg, err := outbox.NewMessage(event, state)
	if err != nil {
		return fmt.Errorf("failed to create outbox message payload for %s: %w", event.EventID.String(), err)
	}

	if err := r.outboxRepo.WithTx(tx).Create(ctx, msg); err != nil {
		logger.Error("Failed to create outbox message",
			"event_id", event.EventID.String(),
			"account_id", state.AccountID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message for %s: %w", event.EventID.String(), err)
	}

	logger.Debug("Account state recorded",
		"event_id", event.EventID.String(),
		"state_event_id", state.EventID.String(),
		"account_id", state.AccountID.String(),
		"outbox_id", msg.ID,
	)
	return nil
}
