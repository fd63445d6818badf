package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/outbox"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/messaging/producers"
	"github.com/trading-account-engine/internal/platform/metrics"
)

// StatePublisher delivers a queued account state to its read models
type StatePublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// StatePublisherImpl writes the snapshot, emits the state on Kafka, completes
// the ledger entry of the source event and marks the message processed.
// Every step is idempotent so a retried message converges.
type StatePublisherImpl struct {
	outboxRepo outbox.Repository
	ledgerRepo ledger.Repository
	snapshots  account.SnapshotRepository
	producer   producers.Publisher
	logger     *slog.Logger
}

// NewStatePublisher creates a new publisher. A nil producer disables the Kafka stream.
func NewStatePublisher(
	outboxRepo outbox.Repository,
	ledgerRepo ledger.Repository,
	snapshots account.SnapshotRepository,
	producer producers.Publisher,
	logger *slog.Logger,
) StatePublisher {
	return &StatePublisherImpl{
		outboxRepo: outboxRepo,
		ledgerRepo: ledgerRepo,
		snapshots:  snapshots,
		producer:   producer,
		logger:     logger,
	}
}

// Publish processes one outbox message
func (p *StatePublisherImpl) Publish(ctx context.Context, message *outbox.Message) error {
	logger := p.logger
	if message.CorrelationID != "" {
		logger = p.logger.With("correlation_id", message.CorrelationID)
	}

	state, err := message.GetState()
	if err != nil {
		logger.Error("Failed to decode account state from outbox payload",
			"outbox_id", message.ID, "event_id", message.EventID.String(), "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after decode error", "outbox_id", message.ID, "update_error", updateErr)
		}
		metrics.StatesPublished.WithLabelValues("undecodable").Inc()
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	if err := p.snapshots.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to upsert snapshot for %s: %w", state.AccountID, err)
	}

	if p.producer != nil {
		if err := p.producer.Publish(ctx, state.AccountID.String(), state); err != nil {
			return fmt.Errorf("failed to publish state %s: %w", state.EventID.String(), err)
		}
	}

	if err := p.completeLedgerEntry(ctx, message, logger); err != nil {
		return err
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "event_id", message.EventID.String(), "error", err,
		)
		return fmt.Errorf("state %s delivered, but failed to mark outbox %d as PROCESSED: %w", state.EventID.String(), message.ID, err)
	}

	metrics.StatesPublished.WithLabelValues("published").Inc()
	logger.Info("Account state published",
		"outbox_id", message.ID,
		"event_id", message.EventID.String(),
		"account_id", state.AccountID.String(),
		"state_event_id", state.EventID.String(),
	)
	return nil
}

func (p *StatePublisherImpl) completeLedgerEntry(ctx context.Context, message *outbox.Message, logger *slog.Logger) error {
	existing, err := p.ledgerRepo.GetByEventID(ctx, message.EventID)
	if err != nil && !errors.Is(err, ledger.ErrEntryNotFound{}) {
		return fmt.Errorf("failed to check existing ledger entry %s: %w", message.EventID.String(), err)
	}

	if existing != nil {
		if existing.Status == shared.ProcessingStatusCompleted {
			logger.Debug("Ledger entry already COMPLETED", "event_id", message.EventID.String())
			return nil
		}
		return p.markCompleted(ctx, message)
	}

	entry := ledger.NewEntry(
		message.EventID,
		message.AccountID,
		message.InstrumentID,
		message.EventType,
		message.CorrelationID,
		shared.ProcessingStatusCompleted,
	)
	stateEventID := message.StateEventID
	entry.StateEventID = &stateEventID

	if err := p.ledgerRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, ledger.ErrDuplicateEntry{}) {
			return p.markCompleted(ctx, message)
		}
		return fmt.Errorf("failed to create ledger entry %s: %w", message.EventID.String(), err)
	}
	return nil
}

func (p *StatePublisherImpl) markCompleted(ctx context.Context, message *outbox.Message) error {
	if err := p.ledgerRepo.UpdateStatus(ctx, message.EventID, shared.ProcessingStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update ledger entry %s to COMPLETED: %w", message.EventID.String(), err)
	}
	return nil
}
