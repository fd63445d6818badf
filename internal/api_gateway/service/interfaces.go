package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/marketdata"
)

// AccountService defines the interface for account operations
type AccountService interface {
	// OpenAccount publishes a STATE event that creates the account from its genesis state.
	// Returns the id of the published event, or ErrAccountExists.
	OpenAccount(ctx context.Context, state *account.State, correlationID string) (uuid.UUID, error)

	// GetAccount returns the latest published state
	// Returns ErrAccountNotFound if no state was published yet
	GetAccount(ctx context.Context, accountID shared.AccountID) (*account.State, error)

	// ListAccounts returns a page of latest states and the total number of accounts
	ListAccounts(ctx context.Context, page, perPage int) ([]*account.State, int64, error)

	// GetAccountEvents returns the full state history, genesis first
	// Returns ErrAccountNotFound if the account has no events
	GetAccountEvents(ctx context.Context, accountID shared.AccountID) ([]*account.State, error)
}

// PreTradeService answers what-if questions against the event log of an account
type PreTradeService interface {
	// MarginInitial returns the balance an order would reserve, fee buffer included.
	// Returns ErrAccountNotFound, instrument.ErrNotFound or ErrInvalidOrder.
	MarginInitial(ctx context.Context, accountID shared.AccountID, instrumentID shared.InstrumentID, quantity, price decimal.Decimal) (money.Money, error)
}

// ExecutionService defines the interface for execution event operations
type ExecutionService interface {
	// SubmitExecution publishes an execution event for processing.
	// Returns the existing ledger entry when the event was already seen.
	SubmitExecution(ctx context.Context, event *execution.Event) (*ledger.Entry, error)

	// GetExecution returns nil if the event is unknown
	GetExecution(ctx context.Context, eventID uuid.UUID) (*ledger.Entry, error)

	// GetExecutionsByAccountID returns a page of ledger entries and the total count
	GetExecutionsByAccountID(ctx context.Context, accountID shared.AccountID, page, perPage int) ([]*ledger.Entry, int64, error)
}

// QuoteService defines the interface for market data operations
type QuoteService interface {
	// PublishQuote validates q and publishes it to the quote stream
	PublishQuote(ctx context.Context, q marketdata.Quote) error

	// GetQuotes returns the latest persisted quotes
	GetQuotes(ctx context.Context) ([]marketdata.Quote, error)
}

// QuoteReader loads persisted quotes
type QuoteReader interface {
	LoadAll(ctx context.Context) ([]marketdata.Quote, error)
}
