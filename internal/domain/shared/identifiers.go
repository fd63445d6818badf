package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAccountID    = errors.New("invalid account id")
	ErrInvalidInstrumentID = errors.New("invalid instrument id")
)

// Venue identifies a trading venue, e.g. "SIM" or "BINANCE"
type Venue string

// AccountID is "<ISSUER>-<NUMBER>", e.g. "SIM-001"
type AccountID string

// NewAccountID validates the issuer-number format
func NewAccountID(value string) (AccountID, error) {
	issuer, number, ok := strings.Cut(value, "-")
	if !ok || issuer == "" || number == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountID, value)
	}
	return AccountID(value), nil
}

// Issuer is the part before the first hyphen
func (id AccountID) Issuer() string {
	issuer, _, _ := strings.Cut(string(id), "-")
	return issuer
}

func (id AccountID) String() string { return string(id) }

// InstrumentID is "<SYMBOL>.<VENUE>", e.g. "AUD/USD.SIM"
type InstrumentID string

// NewInstrumentID builds an id from symbol and venue
func NewInstrumentID(symbol string, venue Venue) InstrumentID {
	return InstrumentID(symbol + "." + string(venue))
}

// ParseInstrumentID validates the symbol.venue format
func ParseInstrumentID(value string) (InstrumentID, error) {
	i := strings.LastIndex(value, ".")
	if i <= 0 || i == len(value)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidInstrumentID, value)
	}
	return InstrumentID(value), nil
}

// Symbol is the part before the last dot
func (id InstrumentID) Symbol() string {
	if i := strings.LastIndex(string(id), "."); i >= 0 {
		return string(id)[:i]
	}
	return string(id)
}

// Venue is the part after the last dot
func (id InstrumentID) Venue() Venue {
	if i := strings.LastIndex(string(id), "."); i >= 0 {
		return Venue(string(id)[i+1:])
	}
	return ""
}

func (id InstrumentID) String() string { return string(id) }

// PositionID identifies a position
type PositionID string

// ClientOrderID identifies an order
type ClientOrderID string

// TradeID identifies a fill at the venue
type TradeID string
