package account

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

// State is an immutable account snapshot event. Once created it is never mutated.
//
// Locks lists the per-instrument balance locks of cash-family accounts. A nil
// Locks means the event does not carry them, as with venue reported states.
type State struct {
	EventID      uuid.UUID              `json:"event_id" bson:"event_id"`
	AccountID    shared.AccountID       `json:"account_id" bson:"account_id"`
	AccountType  shared.AccountType     `json:"account_type" bson:"account_type"`
	BaseCurrency *money.Currency        `json:"base_currency,omitempty" bson:"base_currency,omitempty"`
	Balances     []money.AccountBalance `json:"balances" bson:"balances"`
	Margins      []money.MarginBalance  `json:"margins" bson:"margins"`
	Locks        []money.LockedBalance  `json:"locks" bson:"locks"`
	Info         map[string]any         `json:"info,omitempty" bson:"info,omitempty"`
	Reported     bool                   `json:"reported" bson:"reported"`
	TsEvent      uint64                 `json:"ts_event" bson:"ts_event"`
	TsInit       uint64                 `json:"ts_init" bson:"ts_init"`
}

// NewState creates a state with a fresh event id
func NewState(
	accountID shared.AccountID,
	accountType shared.AccountType,
	baseCurrency *money.Currency,
	balances []money.AccountBalance,
	margins []money.MarginBalance,
	reported bool,
	tsEvent, tsInit uint64,
) (*State, error) {
	if _, err := shared.NewAccountID(string(accountID)); err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBalances, accountID)
	}

	s := &State{
		EventID:     uuid.New(),
		AccountID:   accountID,
		AccountType: accountType,
		Balances:    sortedBalances(balances),
		Margins:     sortedMargins(margins),
		Info:        map[string]any{},
		Reported:    reported,
		TsEvent:     tsEvent,
		TsInit:      tsInit,
	}
	if baseCurrency != nil {
		base := *baseCurrency
		s.BaseCurrency = &base
	}
	return s, nil
}

// Balance returns the balance of ccy carried by this event
func (s *State) Balance(ccy money.Currency) (money.AccountBalance, bool) {
	for _, b := range s.Balances {
		if b.Currency() == ccy {
			return b, true
		}
	}
	return money.AccountBalance{}, false
}

// CarriesLocks reports whether the event records the per-instrument locks
func (s *State) CarriesLocks() bool {
	return s.Locks != nil
}

func (s *State) String() string {
	base := "None"
	if s.BaseCurrency != nil {
		base = s.BaseCurrency.Code
	}
	balances := make([]string, len(s.Balances))
	for i, b := range s.Balances {
		balances[i] = b.String()
	}
	return fmt.Sprintf("AccountState(account_id=%s, account_type=%s, base_currency=%s, is_reported=%t, balances=[%s], event_id=%s)",
		s.AccountID, s.AccountType, base, s.Reported, strings.Join(balances, ", "), s.EventID)
}

func sortedBalances(in []money.AccountBalance) []money.AccountBalance {
	out := append([]money.AccountBalance(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].Currency().Code < out[j].Currency().Code })
	return out
}

func sortedMargins(in []money.MarginBalance) []money.MarginBalance {
	out := append([]money.MarginBalance{}, in...)
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out
}

func sortedLocks(in []money.LockedBalance) []money.LockedBalance {
	out := append([]money.LockedBalance{}, in...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].InstrumentID != out[j].InstrumentID {
			return out[i].InstrumentID < out[j].InstrumentID
		}
		return out[i].Currency().Code < out[j].Currency().Code
	})
	return out
}
