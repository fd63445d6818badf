package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/messaging/producers"
)

// AccountServiceImpl implements the AccountService interface. Reads come from the
// Mongo snapshots and the Postgres event log; writes go through the execution topic.
type AccountServiceImpl struct {
	snapshots account.SnapshotRepository
	events    account.EventRepository
	producer  producers.Publisher
	logger    *slog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(
	logger *slog.Logger,
	snapshots account.SnapshotRepository,
	events account.EventRepository,
	producer producers.Publisher,
) AccountService {
	return &AccountServiceImpl{
		snapshots: snapshots,
		events:    events,
		producer:  producer,
		logger:    logger,
	}
}

// OpenAccount publishes the genesis state of a new account
func (s *AccountServiceImpl) OpenAccount(ctx context.Context, state *account.State, correlationID string) (uuid.UUID, error) {
	_, err := s.events.GetLatest(ctx, state.AccountID)
	switch {
	case err == nil:
		return uuid.Nil, fmt.Errorf("%w: %s", ErrAccountExists, state.AccountID)
	case !errors.Is(err, account.ErrAccountNotFound{}):
		return uuid.Nil, err
	}

	event := &execution.Event{
		EventID:       uuid.New(),
		Type:          execution.EventTypeState,
		AccountID:     state.AccountID,
		State:         state,
		CorrelationID: correlationID,
		TsEvent:       state.TsEvent,
	}
	if err := event.Validate(); err != nil {
		return uuid.Nil, err
	}

	if err := s.producer.Publish(ctx, state.AccountID.String(), event); err != nil {
		s.logger.Error("Failed to publish account genesis",
			"account_id", state.AccountID.String(),
			"error", err,
		)
		return uuid.Nil, err
	}

	s.logger.Info("Account genesis published",
		"event_id", event.EventID.String(),
		"account_id", state.AccountID.String(),
		"account_type", string(state.AccountType),
	)
	return event.EventID, nil
}

// GetAccount returns the latest snapshot of the account
func (s *AccountServiceImpl) GetAccount(ctx context.Context, accountID shared.AccountID) (*account.State, error) {
	state, err := s.snapshots.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, account.ErrAccountNotFound{AccountID: accountID}
	}
	return state, nil
}

// ListAccounts returns a page of account snapshots
func (s *AccountServiceImpl) ListAccounts(ctx context.Context, page, perPage int) ([]*account.State, int64, error) {
	return s.snapshots.List(ctx, page, perPage)
}

// GetAccountEvents returns the event log of the account
func (s *AccountServiceImpl) GetAccountEvents(ctx context.Context, accountID shared.AccountID) ([]*account.State, error) {
	events, err := s.events.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, account.ErrAccountNotFound{AccountID: accountID}
	}
	return events, nil
}
