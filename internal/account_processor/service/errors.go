package service

import (
	"errors"
	"fmt"

	"github.com/trading-account-engine/internal/domain/money"
)

var (
	ErrUnsupportedAccountType = errors.New("unsupported account type")
	ErrInstrumentMismatch     = errors.New("instrument mismatch")
	ErrUnsupportedEventType   = errors.New("unsupported event type")
)

// ErrInsufficientRateData indicates the cache has no cross-rate for a conversion.
// Nothing is mutated when it is returned; the calculation can be retried once a quote arrives.
type ErrInsufficientRateData struct {
	From money.Currency
	To   money.Currency
}

func (e ErrInsufficientRateData) Error() string {
	return fmt.Sprintf("insufficient rate data for %s/%s", e.From, e.To)
}

func (e ErrInsufficientRateData) Is(target error) bool {
	_, ok := target.(ErrInsufficientRateData)
	return ok
}
