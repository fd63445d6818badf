package account

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/margin"
	"github.com/trading-account-engine/internal/domain/shared"
)

// Constructor builds an account from its genesis event
type Constructor func(state *State, calculated bool) (Account, error)

// FactoryConfig holds per-issuer overrides. It is populated once at startup
// and passed to NewFactory.
type FactoryConfig struct {
	accountTypes map[string]Constructor
	calculated   map[string]bool

	MarginModel     margin.Model
	DefaultLeverage decimal.Decimal
	AllowBorrowing  bool
}

// NewFactoryConfig returns an empty configuration using the leveraged margin model
func NewFactoryConfig() *FactoryConfig {
	return &FactoryConfig{
		accountTypes:    make(map[string]Constructor),
		calculated:      make(map[string]bool),
		MarginModel:     margin.LeveragedModel{},
		DefaultLeverage: decimal.NewFromInt(1),
	}
}

// RegisterAccountType registers a custom constructor for an issuer
func (c *FactoryConfig) RegisterAccountType(issuer string, ctor Constructor) error {
	key := strings.ToUpper(issuer)
	if _, ok := c.accountTypes[key]; ok {
		return fmt.Errorf("%w: account type for %s", ErrIssuerAlreadyRegistered, key)
	}
	c.accountTypes[key] = ctor
	return nil
}

// RegisterCalculatedAccount marks whether accounts of an issuer have their state calculated locally
func (c *FactoryConfig) RegisterCalculatedAccount(issuer string, calculated bool) error {
	key := strings.ToUpper(issuer)
	if _, ok := c.calculated[key]; ok {
		return fmt.Errorf("%w: calculated flag for %s", ErrIssuerAlreadyRegistered, key)
	}
	c.calculated[key] = calculated
	return nil
}

// Factory creates account variants from genesis events
type Factory struct {
	cfg *FactoryConfig
}

func NewFactory(cfg *FactoryConfig) *Factory {
	if cfg == nil {
		cfg = NewFactoryConfig()
	}
	return &Factory{cfg: cfg}
}

// Create resolves an issuer override first, then dispatches on the account type
func (f *Factory) Create(state *State) (Account, error) {
	if state == nil {
		return nil, ErrNilState
	}
	issuer := strings.ToUpper(state.AccountID.Issuer())
	calculated := f.cfg.calculated[issuer]

	if ctor, ok := f.cfg.accountTypes[issuer]; ok {
		return ctor(state, calculated)
	}

	switch state.AccountType {
	case shared.AccountTypeCash:
		return NewCashAccount(state, calculated, WithBorrowing(f.cfg.AllowBorrowing))
	case shared.AccountTypeMargin:
		return NewMarginAccount(state, calculated,
			WithMarginModel(f.cfg.MarginModel),
			WithDefaultLeverage(f.cfg.DefaultLeverage),
		)
	case shared.AccountTypeBetting:
		return NewBettingAccount(state, calculated, WithBorrowing(f.cfg.AllowBorrowing))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAccountType, state.AccountType)
	}
}

// Rebuild creates an account from events[0] and applies the rest in order
func (f *Factory) Rebuild(events []*State) (Account, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	acc, err := f.Create(events[0])
	if err != nil {
		return nil, err
	}
	for i, e := range events[1:] {
		if err := acc.Apply(e); err != nil {
			return nil, fmt.Errorf("failed to apply event %d of %s: %w", i+1, acc.ID(), err)
		}
	}
	return acc, nil
}
