package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trading-account-engine/internal/account_processor/service"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/outbox"
)

type EventValidatorImpl struct {
	outboxRepo outbox.Repository
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

func NewEventValidator(outboxRepo outbox.Repository, ledgerRepo ledger.Repository, logger *slog.Logger) service.EventValidator {
	return &EventValidatorImpl{
		outboxRepo: outboxRepo,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// Validate checks the event carries everything its type needs
func (v *EventValidatorImpl) Validate(ctx context.Context, event *execution.Event) error {
	if err := event.Validate(); err != nil {
		v.logger.Error("Invalid execution event",
			"event_id", event.EventID.String(),
			"type", event.Type,
			"account_id", event.AccountID.String(),
			"correlation_id", event.CorrelationID,
			"error", err,
		)
		return err
	}
	return nil
}

// CheckIdempotency reports whether the event was already processed. A committed
// outbox message proves the state was stored; a terminal ledger entry covers events
// that failed or were skipped without producing a state.
func (v *EventValidatorImpl) CheckIdempotency(ctx context.Context, event *execution.Event) (bool, error) {
	logger := v.logger
	if event.CorrelationID != "" {
		logger = v.logger.With("correlation_id", event.CorrelationID)
	}

	msg, err := v.outboxRepo.GetByEventID(ctx, event.EventID)
	var notFound outbox.ErrMessageNotFound
	if err != nil && !errors.As(err, &notFound) {
		logger.Error("Failed to check outbox for idempotency", "event_id", event.EventID.String(), "error", err)
		return false, fmt.Errorf("idempotency check failed for event %s: %w", event.EventID.String(), err)
	}
	if msg != nil {
		logger.Info("Event already processed (outbox)", "event_id", event.EventID.String(), "outbox_status", msg.Status)
		return true, nil
	}

	entry, err := v.ledgerRepo.GetByEventID(ctx, event.EventID)
	if err != nil && !errors.Is(err, ledger.ErrEntryNotFound{}) {
		logger.Error("Failed to check ledger for idempotency", "event_id", event.EventID.String(), "error", err)
		return false, fmt.Errorf("idempotency check failed for event %s: %w", event.EventID.String(), err)
	}
	if entry != nil {
		if entry.IsTerminal() {
			logger.Info("Event already processed (ledger)", "event_id", event.EventID.String(), "status", entry.Status)
			return true, nil
		}
		logger.Info("Event found in ledger with non-terminal status, proceeding", "event_id", event.EventID.String(), "status", entry.Status)
	}

	return false, nil
}
