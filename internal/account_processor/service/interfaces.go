package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/domain/trading"
)

// ProcessingService defines the interface for processing execution events.
type ProcessingService interface {
	ProcessEvent(ctx context.Context, event *execution.Event) error
}

// Cache is the read-only market and position view the accounts manager needs.
// A missing rate is reported through ok, never as an error.
type Cache interface {
	PositionsOpen(venue shared.Venue, instrumentID shared.InstrumentID) []trading.Position
	Position(positionID shared.PositionID) (trading.Position, bool)
	GetXRate(venue shared.Venue, from, to money.Currency, priceType shared.PriceType) (decimal.Decimal, bool)
}

// PositionTracker receives the open position set of an instrument
type PositionTracker interface {
	SetPositions(instrumentID shared.InstrumentID, positions []trading.Position)
}

// Clock stamps generated account states
type Clock interface {
	TimestampNs() uint64
}

// AccountsManager runs the fill, order and position pipelines against one account.
// Every successful call applies the returned state to the account.
type AccountsManager interface {
	UpdateBalances(acc account.Account, inst instrument.Instrument, fill trading.Fill) (*account.State, error)
	UpdateOrders(acc account.Account, inst instrument.Instrument, ordersOpen []trading.Order, tsEvent uint64) (*account.State, error)
	UpdatePositions(acc account.Account, inst instrument.Instrument, positionsOpen []trading.Position, tsEvent uint64) (*account.State, error)
	GenerateAccountState(acc account.Account, tsEvent uint64) (*account.State, error)
}

// AccountRegistry holds live accounts and serializes work per account
type AccountRegistry interface {
	Lock(accountID shared.AccountID) (unlock func())
	Get(ctx context.Context, accountID shared.AccountID) (account.Account, error)
	Create(ctx context.Context, state *account.State) (account.Account, error)
	Evict(accountID shared.AccountID)
}

// EventValidator validates execution events before processing
type EventValidator interface {
	Validate(ctx context.Context, event *execution.Event) error
	CheckIdempotency(ctx context.Context, event *execution.Event) (bool, error)
}

// StateRecorder persists a produced account state and its outbox entry
type StateRecorder interface {
	RecordState(ctx context.Context, tx pgx.Tx, event *execution.Event, state *account.State) error
}

// FailureRecorder records execution events that end without an account state
type FailureRecorder interface {
	RecordFailure(ctx context.Context, event *execution.Event, failureReason string) error
	RecordSkipped(ctx context.Context, event *execution.Event, reason string) error
}

// TxBeginner starts database transactions; satisfied by *pgxpool.Pool
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
