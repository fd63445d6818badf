package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

// PreTradeServiceImpl rebuilds accounts from the event log to answer what-if
// questions without touching the processor's live accounts
type PreTradeServiceImpl struct {
	events      account.EventRepository
	factory     *account.Factory
	instruments instrument.Provider
	logger      *slog.Logger
}

// NewPreTradeService creates a new pre-trade service
func NewPreTradeService(
	logger *slog.Logger,
	events account.EventRepository,
	factory *account.Factory,
	instruments instrument.Provider,
) PreTradeService {
	return &PreTradeServiceImpl{
		events:      events,
		factory:     factory,
		instruments: instruments,
		logger:      logger,
	}
}

// MarginInitial returns what an order of quantity at price would reserve on the account
func (s *PreTradeServiceImpl) MarginInitial(ctx context.Context, accountID shared.AccountID, instrumentID shared.InstrumentID, quantity, price decimal.Decimal) (money.Money, error) {
	if !quantity.IsPositive() || !price.IsPositive() {
		return money.Money{}, fmt.Errorf("%w: quantity %s, price %s", ErrInvalidOrder, quantity, price)
	}

	inst, err := s.instruments.Find(instrumentID)
	if err != nil {
		return money.Money{}, err
	}

	events, err := s.events.ListByAccountID(ctx, accountID)
	if err != nil {
		return money.Money{}, err
	}
	if len(events) == 0 {
		return money.Money{}, account.ErrAccountNotFound{AccountID: accountID}
	}

	acc, err := s.factory.Rebuild(events)
	if err != nil {
		return money.Money{}, fmt.Errorf("failed to rebuild account %s: %w", accountID, err)
	}

	reserve, err := acc.CalculateMarginInitial(inst, quantity, price, false)
	if err != nil {
		return money.Money{}, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}

	s.logger.Debug("Initial margin calculated",
		"account_id", accountID.String(),
		"instrument_id", instrumentID.String(),
		"margin_init", reserve.String(),
	)
	return reserve, nil
}
