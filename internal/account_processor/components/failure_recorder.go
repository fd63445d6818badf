package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/trading-account-engine/internal/account_processor/service"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/shared"
)

type FailureRecorderImpl struct {
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

func NewFailureRecorder(ledgerRepo ledger.Repository, logger *slog.Logger) service.FailureRecorder {
	return &FailureRecorderImpl{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// RecordFailure marks the event FAILED in the processing ledger
func (r *FailureRecorderImpl) RecordFailure(ctx context.Context, event *execution.Event, failureReason string) error {
	return r.record(ctx, event, shared.ProcessingStatusFailed, failureReason)
}

// RecordSkipped marks the event SKIPPED, used for accounts whose state is not calculated locally
func (r *FailureRecorderImpl) RecordSkipped(ctx context.Context, event *execution.Event, reason string) error {
	return r.record(ctx, event, shared.ProcessingStatusSkipped, reason)
}

func (r *FailureRecorderImpl) record(ctx context.Context, event *execution.Event, status shared.ProcessingStatus, reason string) error {
	logger := r.logger
	if event.CorrelationID != "" {
		logger = r.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Recording unapplied event", "event_id", event.EventID.String(), "status", status, "reason", reason)

	existing, err := r.ledgerRepo.GetByEventID(ctx, event.EventID)
	if err != nil && !errors.Is(err, ledger.ErrEntryNotFound{}) {
		logger.Error("Failed to get existing ledger entry", "event_id", event.EventID.String(), "error", err)
	}

	if existing != nil {
		if existing.Status == status {
			logger.Info("Ledger entry already has status", "event_id", event.EventID.String(), "status", status)
			return nil
		}
		if err := r.ledgerRepo.UpdateStatus(ctx, event.EventID, status, reason); err != nil {
			logger.Error("Failed to update ledger entry", "event_id", event.EventID.String(), "status", status, "error", err)
			return err
		}
		return nil
	}

	entry := ledger.NewEntry(event.EventID, event.AccountID, event.InstrumentID, string(event.Type), event.CorrelationID, status)
	entry.FailureReason = reason
	if err := r.ledgerRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, ledger.ErrDuplicateEntry{}) {
			return r.ledgerRepo.UpdateStatus(ctx, event.EventID, status, reason)
		}
		logger.Error("Failed to create ledger entry", "event_id", event.EventID.String(), "status", status, "error", err)
		return err
	}
	logger.Debug("Created ledger entry", "event_id", event.EventID.String(), "entry_id", entry.ID, "status", status)
	return nil
}
