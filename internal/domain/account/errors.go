package account

import (
	"errors"
	"fmt"

	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

// Common errors
var (
	ErrNilState                = errors.New("account state is nil")
	ErrEmptyBalances           = errors.New("account state has no balances")
	ErrEventMismatch           = errors.New("account state does not belong to this account")
	ErrUnknownAccountType      = errors.New("unknown account type")
	ErrIssuerAlreadyRegistered = errors.New("issuer already registered")
	ErrNoEvents                = errors.New("no account events")
)

// ErrAccountBalanceNegative indicates a total balance would go below zero
type ErrAccountBalanceNegative struct {
	Balance  money.Money
	Currency money.Currency
}

func (e ErrAccountBalanceNegative) Error() string {
	return fmt.Sprintf("account balance negative: %s (%s)", e.Balance, e.Currency)
}

func (e ErrAccountBalanceNegative) Is(target error) bool {
	_, ok := target.(ErrAccountBalanceNegative)
	return ok
}

// ErrAccountMarginExceeded indicates locked or margin amounts exceed the total balance
type ErrAccountMarginExceeded struct {
	Balance  money.Money
	Margin   money.Money
	Currency money.Currency
}

func (e ErrAccountMarginExceeded) Error() string {
	return fmt.Sprintf("account margin exceeded: balance %s, margin %s (%s)", e.Balance, e.Margin, e.Currency)
}

func (e ErrAccountMarginExceeded) Is(target error) bool {
	_, ok := target.(ErrAccountMarginExceeded)
	return ok
}

// ErrBalanceNotFound indicates an operation needs a balance the account does not hold
type ErrBalanceNotFound struct {
	AccountID shared.AccountID
	Currency  money.Currency
}

func (e ErrBalanceNotFound) Error() string {
	return fmt.Sprintf("no %s balance for account %s", e.Currency, e.AccountID)
}

func (e ErrBalanceNotFound) Is(target error) bool {
	_, ok := target.(ErrBalanceNotFound)
	return ok
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountID shared.AccountID
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountID.String()
}

func (e ErrAccountNotFound) Is(target error) bool {
	_, ok := target.(ErrAccountNotFound)
	return ok
}

// IsDomainViolation reports errors caused by inconsistent data rather than programming faults
func IsDomainViolation(err error) bool {
	return errors.Is(err, ErrAccountBalanceNegative{}) ||
		errors.Is(err, ErrAccountMarginExceeded{}) ||
		errors.Is(err, ErrBalanceNotFound{})
}
