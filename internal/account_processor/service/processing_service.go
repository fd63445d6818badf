package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/metrics"
)

type ProcessingServiceImpl struct {
	db              TxBeginner
	validator       EventValidator
	registry        AccountRegistry
	manager         AccountsManager
	instruments     instrument.Provider
	positions       PositionTracker
	stateRecorder   StateRecorder
	failureRecorder FailureRecorder
	logger          *slog.Logger
}

func NewProcessingService(
	db TxBeginner,
	validator EventValidator,
	registry AccountRegistry,
	manager AccountsManager,
	instruments instrument.Provider,
	positions PositionTracker,
	stateRecorder StateRecorder,
	failureRecorder FailureRecorder,
	logger *slog.Logger,
) *ProcessingServiceImpl {
	return &ProcessingServiceImpl{
		db:              db,
		validator:       validator,
		registry:        registry,
		manager:         manager,
		instruments:     instruments,
		positions:       positions,
		stateRecorder:   stateRecorder,
		failureRecorder: failureRecorder,
		logger:          logger,
	}
}

// errSkipped marks events for accounts whose state is not calculated locally
var errSkipped = errors.New("account state is not calculated")

// ProcessEvent applies one execution event to its account and records the
// resulting state. A nil return acknowledges the message; events that can never
// succeed are recorded in the ledger and acknowledged. Infrastructure errors and
// fills missing a cross-rate are returned for redelivery.
func (s *ProcessingServiceImpl) ProcessEvent(ctx context.Context, event *execution.Event) (err error) {
	start := time.Now()
	logger := s.logger.With("event_id", event.EventID.String(), "type", event.Type, "account_id", event.AccountID.String())
	if event.CorrelationID != "" {
		logger = logger.With("correlation_id", event.CorrelationID)
	}

	logger.Debug("Processing execution event")

	// 1. Validate the event
	if err := s.validator.Validate(ctx, event); err != nil {
		s.fail(ctx, logger, event, shared.FailureReasonInvalidEvent, err)
		return nil
	}

	// 2. Check idempotency
	processed, err := s.validator.CheckIdempotency(ctx, event)
	if err != nil {
		return err
	}
	if processed {
		metrics.EventsProcessed.WithLabelValues(string(event.Type), metrics.OutcomeSkipped).Inc()
		return nil
	}

	// 3. Serialize work on the account
	unlock := s.registry.Lock(event.AccountID)
	defer unlock()

	// 4. Begin database transaction
	var tx pgx.Tx
	tx, err = s.db.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin database transaction", "error", err)
		return fmt.Errorf("failed to begin DB transaction for %s: %w", event.EventID.String(), err)
	}
	committed := false
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Panic recovered, rolling back transaction", "panic", p)
			s.registry.Evict(event.AccountID)
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				logger.Error("Failed to rollback transaction", "rollback_error", rbErr, "original_error", err)
			}
		}
	}()

	// 5. Run the account pipeline; the account is mutated in memory from here on
	state, err := s.apply(ctx, event)
	if err != nil {
		if errors.Is(err, errSkipped) {
			if recordErr := s.failureRecorder.RecordSkipped(ctx, event, string(shared.FailureReasonNotCalculated)); recordErr != nil {
				logger.Error("Failed to record skipped event", "error", recordErr)
			}
			metrics.EventsProcessed.WithLabelValues(string(event.Type), metrics.OutcomeSkipped).Inc()
			return nil
		}
		s.registry.Evict(event.AccountID)
		if event.Type == execution.EventTypeFill && errors.Is(err, ErrInsufficientRateData{}) {
			return s.deferFill(logger, event, err)
		}
		if reason, ok := classify(err); ok {
			s.fail(ctx, logger, event, reason, err)
			return nil
		}
		logger.Error("Failed to apply execution event", "error", err)
		return err
	}

	// 6. Store the state event and its outbox message
	if err = s.stateRecorder.RecordState(ctx, tx, event, state); err != nil {
		s.registry.Evict(event.AccountID)
		if errors.Is(err, account.ErrDuplicateEvent{}) {
			logger.Info("Execution event already stored, skipping")
			return nil
		}
		return err
	}

	// 7. Commit transaction
	if err = tx.Commit(ctx); err != nil {
		s.registry.Evict(event.AccountID)
		logger.Error("Failed to commit database transaction", "error", err)
		return fmt.Errorf("failed to commit DB transaction for %s: %w", event.EventID.String(), err)
	}
	committed = true

	metrics.EventsProcessed.WithLabelValues(string(event.Type), metrics.OutcomeApplied).Inc()
	metrics.ProcessingLatency.WithLabelValues(string(event.Type)).Observe(time.Since(start).Seconds())
	logger.Info("Account state committed", "state_event_id", state.EventID.String())
	return nil
}

// apply runs the pipeline for the event type and returns the generated state
func (s *ProcessingServiceImpl) apply(ctx context.Context, event *execution.Event) (*account.State, error) {
	if event.Type == execution.EventTypeState {
		return s.applyState(ctx, event)
	}

	acc, err := s.registry.Get(ctx, event.AccountID)
	if err != nil {
		return nil, err
	}
	if !acc.CalculatedAccountState() {
		return nil, errSkipped
	}

	inst, err := s.instruments.Find(event.InstrumentID)
	if err != nil {
		return nil, err
	}

	switch event.Type {
	case execution.EventTypeFill:
		return s.manager.UpdateBalances(acc, inst, *event.Fill)
	case execution.EventTypeOrders:
		return s.manager.UpdateOrders(acc, inst, event.Orders, event.TsEvent)
	case execution.EventTypePositions:
		s.positions.SetPositions(event.InstrumentID, event.Positions)
		return s.manager.UpdatePositions(acc, inst, event.Positions, event.TsEvent)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEventType, event.Type)
	}
}

// applyState opens an account from its genesis state, or applies a venue reported state
func (s *ProcessingServiceImpl) applyState(ctx context.Context, event *execution.Event) (*account.State, error) {
	acc, err := s.registry.Get(ctx, event.AccountID)
	if errors.Is(err, account.ErrAccountNotFound{}) {
		if _, err := s.registry.Create(ctx, event.State); err != nil {
			return nil, err
		}
		return event.State, nil
	}
	if err != nil {
		return nil, err
	}
	if err := acc.Apply(event.State); err != nil {
		return nil, err
	}
	return event.State, nil
}

func (s *ProcessingServiceImpl) fail(ctx context.Context, logger *slog.Logger, event *execution.Event, reason shared.FailureReason, cause error) {
	logger.Warn("Execution event rejected", "reason", reason, "error", cause)

	countRateMiss(cause)
	metrics.EventsProcessed.WithLabelValues(string(event.Type), metrics.OutcomeFailed).Inc()

	if err := s.failureRecorder.RecordFailure(ctx, event, fmt.Sprintf("%s: %v", reason, cause)); err != nil {
		logger.Error("Failed to record event failure", "error", err)
	}
}

// deferFill leaves a fill that hit a rate miss out of the ledger and returns it
// for redelivery. Its PnL and commission are booked once a quote arrives.
func (s *ProcessingServiceImpl) deferFill(logger *slog.Logger, event *execution.Event, cause error) error {
	logger.Warn("Fill deferred until rate data is available", "error", cause)
	countRateMiss(cause)
	metrics.EventsProcessed.WithLabelValues(string(event.Type), metrics.OutcomeDeferred).Inc()
	return fmt.Errorf("fill %s deferred: %w", event.EventID.String(), cause)
}

func countRateMiss(err error) {
	var rateErr ErrInsufficientRateData
	if errors.As(err, &rateErr) {
		metrics.RateMisses.WithLabelValues(rateErr.From.Code, rateErr.To.Code).Inc()
	}
}

// classify maps errors that redelivery cannot fix to a failure reason
func classify(err error) (shared.FailureReason, bool) {
	switch {
	case errors.Is(err, account.ErrAccountNotFound{}):
		return shared.FailureReasonAccountNotFound, true
	case errors.Is(err, instrument.ErrNotFound):
		return shared.FailureReasonInstrumentNotFound, true
	case errors.Is(err, ErrInstrumentMismatch):
		return shared.FailureReasonInstrumentMismatch, true
	case errors.Is(err, ErrInsufficientRateData{}):
		return shared.FailureReasonInsufficientRateData, true
	case account.IsDomainViolation(err):
		return shared.FailureReasonBalanceViolation, true
	case errors.Is(err, account.ErrEventMismatch),
		errors.Is(err, account.ErrUnknownAccountType),
		errors.Is(err, account.ErrEmptyBalances),
		errors.Is(err, ErrUnsupportedAccountType):
		return shared.FailureReasonRejectedState, true
	default:
		return "", false
	}
}

var _ ProcessingService = (*ProcessingServiceImpl)(nil)
