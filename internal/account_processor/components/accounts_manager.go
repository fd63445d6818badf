package components

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/account_processor/service"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/domain/trading"
)

// AccountsManagerImpl implements the AccountsManager interface.
// It holds no account state and may be shared across accounts.
type AccountsManagerImpl struct {
	clock  service.Clock
	cache  service.Cache
	logger *slog.Logger
}

// NewAccountsManager creates a new AccountsManagerImpl
func NewAccountsManager(clock service.Clock, cache service.Cache, logger *slog.Logger) service.AccountsManager {
	return &AccountsManagerImpl{
		clock:  clock,
		cache:  cache,
		logger: logger,
	}
}

// rateKey caches one conversion per source currency and side within a call
type rateKey struct {
	from money.Currency
	side shared.OrderSide
}

// UpdateBalances books the realized PnL and commission of a fill. A fill without
// a commission pays the instrument fee of its liquidity side.
func (m *AccountsManagerImpl) UpdateBalances(acc account.Account, inst instrument.Instrument, fill trading.Fill) (*account.State, error) {
	if fill.InstrumentID != inst.ID() {
		return nil, fmt.Errorf("%w: fill for %s, instrument %s", service.ErrInstrumentMismatch, fill.InstrumentID, inst.ID())
	}

	// Venues that omit the commission are charged the instrument fee for the liquidity side
	if fill.Commission == nil && (fill.LiquiditySide == shared.LiquiditySideMaker || fill.LiquiditySide == shared.LiquiditySideTaker) {
		commission, err := acc.CalculateCommission(inst, fill.LastQty, fill.LastPx, fill.LiquiditySide, false)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate commission for %s: %w", fill.TradeID, err)
		}
		fill.Commission = &commission
	}

	position := m.resolvePosition(fill)
	pnls, err := acc.CalculatePnLs(inst, position, fill)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate pnls for %s: %w", acc.ID(), err)
	}

	if baseCcy, ok := acc.BaseCurrency(); ok {
		pnl := money.Zero(baseCcy)
		if len(pnls) > 0 {
			pnl = pnls[0]
		}
		err = m.updateBalanceSingleCurrency(acc, baseCcy, fill, pnl)
	} else {
		err = m.updateBalanceMultiCurrency(acc, inst, fill, pnls)
	}
	if err != nil {
		return nil, err
	}

	return m.commit(acc, fill.TsEvent)
}

// UpdateOrders recalculates what the open orders of one instrument reserve.
// Cash-family accounts lock balance; margin accounts reserve initial margin.
func (m *AccountsManagerImpl) UpdateOrders(acc account.Account, inst instrument.Instrument, ordersOpen []trading.Order, tsEvent uint64) (*account.State, error) {
	for _, o := range ordersOpen {
		if o.InstrumentID != inst.ID() {
			return nil, fmt.Errorf("%w: order %s for %s, instrument %s", service.ErrInstrumentMismatch, o.ClientOrderID, o.InstrumentID, inst.ID())
		}
	}

	var err error
	switch {
	case acc.Type().IsCashFamily():
		locker, ok := acc.(account.BalanceLocker)
		if !ok {
			return nil, fmt.Errorf("%w: %s cannot lock balance", service.ErrUnsupportedAccountType, acc)
		}
		err = m.updateBalanceLocked(locker, inst, ordersOpen)
	case acc.Type() == shared.AccountTypeMargin:
		reserver, ok := acc.(account.MarginReserver)
		if !ok {
			return nil, fmt.Errorf("%w: %s cannot reserve margin", service.ErrUnsupportedAccountType, acc)
		}
		err = m.updateMarginInit(reserver, inst, ordersOpen)
	default:
		return nil, fmt.Errorf("%w: %s", service.ErrUnsupportedAccountType, acc.Type())
	}
	if err != nil {
		return nil, err
	}

	return m.commit(acc, tsEvent)
}

// UpdatePositions recalculates the maintenance margin of the open positions of one instrument
func (m *AccountsManagerImpl) UpdatePositions(acc account.Account, inst instrument.Instrument, positionsOpen []trading.Position, tsEvent uint64) (*account.State, error) {
	reserver, ok := acc.(account.MarginReserver)
	if !ok || acc.Type() != shared.AccountTypeMargin {
		return nil, fmt.Errorf("%w: positions need a margin account, got %s", service.ErrUnsupportedAccountType, acc.Type())
	}

	target := m.reserveCurrency(acc, inst)
	total := money.Zero(target)
	rates := make(map[rateKey]decimal.Decimal)

	for _, p := range positionsOpen {
		if p.InstrumentID != inst.ID() {
			return nil, fmt.Errorf("%w: position %s for %s, instrument %s", service.ErrInstrumentMismatch, p.ID, p.InstrumentID, inst.ID())
		}
		if !p.IsOpen() {
			continue
		}

		maint, err := reserver.CalculateMarginMaint(inst, p.Side, p.Quantity, p.AvgPxOpen, false)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate maintenance margin for %s: %w", p.ID, err)
		}
		if maint, err = m.toCurrency(rates, inst.ID().Venue(), maint, target, p.EntrySide); err != nil {
			return nil, err
		}
		if total, err = total.Add(maint); err != nil {
			return nil, err
		}
	}

	if err := reserver.UpdateMarginMaint(inst.ID(), total); err != nil {
		return nil, err
	}
	m.logger.Info("Maintenance margin updated", "account_id", acc.ID().String(), "instrument_id", inst.ID().String(), "margin_maint", total.String())

	return m.commit(acc, tsEvent)
}

// GenerateAccountState snapshots the current balances and margins, plus the
// per-instrument locks of cash-family accounts
func (m *AccountsManagerImpl) GenerateAccountState(acc account.Account, tsEvent uint64) (*account.State, error) {
	var baseCcy *money.Currency
	if ccy, ok := acc.BaseCurrency(); ok {
		baseCcy = &ccy
	}
	state, err := account.NewState(
		acc.ID(),
		acc.Type(),
		baseCcy,
		acc.Balances(),
		acc.Margins(),
		false,
		tsEvent,
		m.clock.TimestampNs(),
	)
	if err != nil {
		return nil, err
	}
	if locker, ok := acc.(account.BalanceLocker); ok {
		state.Locks = locker.Locks()
	}
	return state, nil
}

// commit snapshots the account and appends the snapshot to its log
func (m *AccountsManagerImpl) commit(acc account.Account, tsEvent uint64) (*account.State, error) {
	state, err := m.GenerateAccountState(acc, tsEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to generate account state for %s: %w", acc.ID(), err)
	}
	if err := acc.Apply(state); err != nil {
		return nil, fmt.Errorf("failed to apply account state for %s: %w", acc.ID(), err)
	}
	return state, nil
}

// resolvePosition uses the fill's position id, else the first open position of the instrument
func (m *AccountsManagerImpl) resolvePosition(fill trading.Fill) *trading.Position {
	if fill.HasPositionID() {
		if p, ok := m.cache.Position(fill.PositionID); ok {
			return &p
		}
		return nil
	}
	open := m.cache.PositionsOpen(fill.InstrumentID.Venue(), fill.InstrumentID)
	if len(open) == 0 {
		return nil
	}
	return &open[0]
}

func (m *AccountsManagerImpl) updateBalanceSingleCurrency(acc account.Account, baseCcy money.Currency, fill trading.Fill, pnl money.Money) error {
	venue := fill.InstrumentID.Venue()
	rates := make(map[rateKey]decimal.Decimal)

	var commission *money.Money
	if fill.Commission != nil {
		c, err := m.toCurrency(rates, venue, *fill.Commission, baseCcy, fill.OrderSide)
		if err != nil {
			return err
		}
		commission = &c
	}

	pnl, err := m.toCurrency(rates, venue, pnl, baseCcy, fill.OrderSide)
	if err != nil {
		return err
	}

	net := pnl
	if commission != nil {
		if net, err = pnl.Sub(*commission); err != nil {
			return err
		}
	}

	if !net.IsZero() {
		current, ok := acc.Balance(baseCcy)
		if !ok {
			return account.ErrBalanceNotFound{AccountID: acc.ID(), Currency: baseCcy}
		}
		next, err := shiftBalance(current, net, false)
		if err != nil {
			return err
		}
		if err := acc.UpdateBalances(next); err != nil {
			return err
		}
	}

	if commission != nil {
		return acc.UpdateCommissions(*commission)
	}
	return nil
}

// updateBalanceMultiCurrency books each PnL leg in its own currency. The
// commission is netted exactly once: against the first leg sharing its
// currency, else directly against its own balance.
func (m *AccountsManagerImpl) updateBalanceMultiCurrency(acc account.Account, inst instrument.Instrument, fill trading.Fill, pnls []money.Money) error {
	var commission *money.Money
	if fill.Commission != nil && !fill.Commission.IsZero() {
		c := *fill.Commission
		commission = &c
	}
	pending := commission != nil
	// losses on passive fills consume the funds their order had locked
	consumeLocked := fill.OrderType != shared.OrderTypeMarket && inst.Class() != shared.InstrumentClassSportsBetting

	working := make(map[money.Currency]money.AccountBalance)
	var order []money.Currency
	current := func(ccy money.Currency) (money.AccountBalance, bool) {
		if b, ok := working[ccy]; ok {
			return b, true
		}
		return acc.Balance(ccy)
	}
	stage := func(b money.AccountBalance) {
		if _, ok := working[b.Currency()]; !ok {
			order = append(order, b.Currency())
		}
		working[b.Currency()] = b
	}

	for _, pnl := range pnls {
		if pending && pnl.Currency == commission.Currency {
			var err error
			if pnl, err = pnl.Sub(*commission); err != nil {
				return err
			}
			pending = false
		}
		if pnl.IsZero() {
			continue
		}

		bal, ok := current(pnl.Currency)
		if !ok {
			if pnl.IsNegative() {
				return account.ErrAccountBalanceNegative{Balance: pnl, Currency: pnl.Currency}
			}
			stage(money.NewFreeBalance(pnl))
			continue
		}
		next, err := shiftBalance(bal, pnl, consumeLocked)
		if err != nil {
			return err
		}
		stage(next)
	}

	if pending {
		bal, ok := current(commission.Currency)
		switch {
		case ok:
			next, err := shiftBalance(bal, commission.Neg(), false)
			if err != nil {
				return err
			}
			stage(next)
		case commission.IsPositive():
			return account.ErrBalanceNotFound{AccountID: acc.ID(), Currency: commission.Currency}
		default:
			// a rebate in a currency the account does not hold yet
			stage(money.NewFreeBalance(commission.Neg()))
		}
	}

	if len(order) > 0 {
		balances := make([]money.AccountBalance, 0, len(order))
		for _, ccy := range order {
			balances = append(balances, working[ccy])
		}
		if err := acc.UpdateBalances(balances...); err != nil {
			return err
		}
	}

	if commission != nil {
		return acc.UpdateCommissions(*commission)
	}
	return nil
}

func (m *AccountsManagerImpl) updateBalanceLocked(acc account.BalanceLocker, inst instrument.Instrument, ordersOpen []trading.Order) error {
	baseCcy, hasBase := acc.BaseCurrency()
	venue := inst.ID().Venue()
	rates := make(map[rateKey]decimal.Decimal)

	totals := make(map[money.Currency]money.Money)
	var order []money.Currency
	for _, o := range ordersOpen {
		if !o.IsOpen() || o.ReduceOnly {
			continue
		}
		price, ok := o.EffectivePrice()
		if !ok {
			continue
		}

		locked, err := acc.CalculateBalanceLocked(inst, o.Side, o.Quantity, price, false)
		if err != nil {
			return fmt.Errorf("failed to calculate balance locked for %s: %w", o.ClientOrderID, err)
		}
		if hasBase {
			if locked, err = m.toCurrency(rates, venue, locked, baseCcy, o.Side); err != nil {
				return err
			}
		}

		total, seen := totals[locked.Currency]
		if !seen {
			order = append(order, locked.Currency)
			total = money.Zero(locked.Currency)
		}
		if totals[locked.Currency], err = total.Add(locked); err != nil {
			return err
		}
	}

	locked := make([]money.Money, 0, len(order))
	for _, ccy := range order {
		locked = append(locked, totals[ccy])
	}
	if err := acc.UpdateBalanceLocked(inst.ID(), locked); err != nil {
		return err
	}

	if len(locked) == 0 {
		m.logger.Info("Balance locked cleared", "account_id", acc.ID().String(), "instrument_id", inst.ID().String())
	}
	for _, l := range locked {
		m.logger.Info("Balance locked updated", "account_id", acc.ID().String(), "instrument_id", inst.ID().String(), "balance_locked", l.String())
	}
	return nil
}

func (m *AccountsManagerImpl) updateMarginInit(acc account.MarginReserver, inst instrument.Instrument, ordersOpen []trading.Order) error {
	target := m.reserveCurrency(acc, inst)
	venue := inst.ID().Venue()
	rates := make(map[rateKey]decimal.Decimal)

	total := money.Zero(target)
	for _, o := range ordersOpen {
		if !o.IsOpen() || o.ReduceOnly {
			continue
		}
		price, ok := o.EffectivePrice()
		if !ok {
			continue
		}

		initial, err := acc.CalculateMarginInit(inst, o.Quantity, price, false)
		if err != nil {
			return fmt.Errorf("failed to calculate initial margin for %s: %w", o.ClientOrderID, err)
		}
		if initial, err = m.toCurrency(rates, venue, initial, target, o.Side); err != nil {
			return err
		}
		if total, err = total.Add(initial); err != nil {
			return err
		}
	}

	if err := acc.UpdateMarginInit(inst.ID(), total); err != nil {
		return err
	}
	m.logger.Info("Initial margin updated", "account_id", acc.ID().String(), "instrument_id", inst.ID().String(), "margin_init", total.String())
	return nil
}

// reserveCurrency is the account base currency, else the currency the instrument's margin is computed in
func (m *AccountsManagerImpl) reserveCurrency(acc account.Account, inst instrument.Instrument) money.Currency {
	if baseCcy, ok := acc.BaseCurrency(); ok {
		return baseCcy
	}
	return inst.CostCurrency()
}

// toCurrency converts amount into target. The rate is looked up once per
// source currency and side, using the bid for sells and the ask for buys.
func (m *AccountsManagerImpl) toCurrency(rates map[rateKey]decimal.Decimal, venue shared.Venue, amount money.Money, target money.Currency, side shared.OrderSide) (money.Money, error) {
	if amount.Currency == target {
		return amount, nil
	}

	key := rateKey{from: amount.Currency, side: side}
	rate, ok := rates[key]
	if !ok {
		rate, ok = m.cache.GetXRate(venue, amount.Currency, target, shared.ConversionPriceType(side))
		if !ok {
			m.logger.Error("Cannot calculate account state: insufficient rate data",
				"venue", string(venue), "from", amount.Currency.Code, "to", target.Code,
			)
			return money.Money{}, service.ErrInsufficientRateData{From: amount.Currency, To: target}
		}
		rates[key] = rate
	}
	return amount.Convert(rate, target), nil
}

// shiftBalance adds delta to total. Free absorbs it unless consumeLocked is
// set for a loss, in which case locked absorbs it first.
func shiftBalance(bal money.AccountBalance, delta money.Money, consumeLocked bool) (money.AccountBalance, error) {
	total, err := bal.Total.Add(delta)
	if err != nil {
		return money.AccountBalance{}, err
	}

	locked := bal.Locked
	if consumeLocked && delta.IsNegative() {
		if locked, err = locked.Add(delta); err != nil {
			return money.AccountBalance{}, err
		}
		if locked.IsNegative() {
			locked = money.Zero(locked.Currency)
		}
	}

	return money.NewAccountBalance(total, locked)
}
