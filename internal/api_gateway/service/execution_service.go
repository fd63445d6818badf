package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/messaging/producers"
)

// ExecutionServiceImpl implements the ExecutionService interface
type ExecutionServiceImpl struct {
	ledgerRepo ledger.Repository
	producer   producers.Publisher
	logger     *slog.Logger
}

// NewExecutionService creates a new execution service
func NewExecutionService(logger *slog.Logger, ledgerRepo ledger.Repository, producer producers.Publisher) ExecutionService {
	return &ExecutionServiceImpl{
		ledgerRepo: ledgerRepo,
		producer:   producer,
		logger:     logger,
	}
}

// SubmitExecution validates and publishes the event keyed by account, so the
// processor sees the events of one account in submission order.
// A ledger hit on the event id returns the recorded outcome without publishing.
func (s *ExecutionServiceImpl) SubmitExecution(ctx context.Context, event *execution.Event) (*ledger.Entry, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.ledgerRepo.GetByEventID(ctx, event.EventID)
	switch {
	case err == nil:
		s.logger.Info("Found existing ledger entry for execution event",
			"event_id", event.EventID.String(),
			"status", string(existing.Status),
		)
		return existing, nil
	case !errors.Is(err, ledger.ErrEntryNotFound{}):
		s.logger.Error("Failed to check ledger for execution event", "event_id", event.EventID.String(), "error", err)
		return nil, err
	}

	if err := s.producer.Publish(ctx, event.AccountID.String(), event); err != nil {
		s.logger.Error("Failed to publish execution event",
			"event_id", event.EventID.String(),
			"account_id", event.AccountID.String(),
			"type", string(event.Type),
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Execution event published",
		"event_id", event.EventID.String(),
		"account_id", event.AccountID.String(),
		"instrument_id", event.InstrumentID.String(),
		"type", string(event.Type),
	)
	return nil, nil
}

// GetExecution retrieves the ledger entry of an event. Returns nil if not found
func (s *ExecutionServiceImpl) GetExecution(ctx context.Context, eventID uuid.UUID) (*ledger.Entry, error) {
	res, err := s.ledgerRepo.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound{}) {
			return nil, nil
		}
		s.logger.Error("Failed to get execution by ID", "event_id", eventID.String(), "error", err)
		return nil, err
	}
	return res, nil
}

// GetExecutionsByAccountID retrieves a page of ledger entries, newest first
func (s *ExecutionServiceImpl) GetExecutionsByAccountID(ctx context.Context, accountID shared.AccountID, page, perPage int) ([]*ledger.Entry, int64, error) {
	offset := (page - 1) * perPage
	entries, err := s.ledgerRepo.GetByAccountID(ctx, accountID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.ledgerRepo.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
