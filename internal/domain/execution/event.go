package execution

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/domain/trading"
)

var ErrInvalidEvent = errors.New("invalid execution event")

// EventType defines the kinds of execution events the processor consumes
type EventType string

const (
	EventTypeFill      EventType = "FILL"
	EventTypeOrders    EventType = "ORDERS"
	EventTypePositions EventType = "POSITIONS"
	// EventTypeState carries an account state reported by the venue
	EventTypeState EventType = "STATE"
)

// Event defines a Kafka message for account processing.
// Orders and Positions carry the complete open set for the instrument.
type Event struct {
	EventID       uuid.UUID           `json:"event_id"`
	Type          EventType           `json:"type"`
	AccountID     shared.AccountID    `json:"account_id"`
	InstrumentID  shared.InstrumentID `json:"instrument_id,omitempty"`
	Fill          *trading.Fill       `json:"fill,omitempty"`
	Orders        []trading.Order     `json:"orders,omitempty"`
	Positions     []trading.Position  `json:"positions,omitempty"`
	State         *account.State      `json:"state,omitempty"`
	CorrelationID string              `json:"correlation_id"`
	TsEvent       uint64              `json:"ts_event"`
}

// Validate checks the event carries what its type needs
func (e *Event) Validate() error {
	if e.EventID == uuid.Nil {
		return fmt.Errorf("%w: missing event_id", ErrInvalidEvent)
	}
	if _, err := shared.NewAccountID(string(e.AccountID)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	if e.Type == EventTypeState {
		if e.State == nil {
			return fmt.Errorf("%w: state event without state", ErrInvalidEvent)
		}
		if e.State.AccountID != e.AccountID {
			return fmt.Errorf("%w: state for %s does not match %s", ErrInvalidEvent, e.State.AccountID, e.AccountID)
		}
		if len(e.State.Balances) == 0 {
			return fmt.Errorf("%w: state without balances", ErrInvalidEvent)
		}
		return nil
	}

	if _, err := shared.ParseInstrumentID(string(e.InstrumentID)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	switch e.Type {
	case EventTypeFill:
		if e.Fill == nil {
			return fmt.Errorf("%w: fill event without fill", ErrInvalidEvent)
		}
		if e.Fill.InstrumentID != e.InstrumentID {
			return fmt.Errorf("%w: fill instrument %s does not match %s", ErrInvalidEvent, e.Fill.InstrumentID, e.InstrumentID)
		}
		if !e.Fill.LastQty.IsPositive() || !e.Fill.LastPx.IsPositive() {
			return fmt.Errorf("%w: fill quantity and price must be positive", ErrInvalidEvent)
		}
	case EventTypeOrders:
		for _, o := range e.Orders {
			if o.InstrumentID != e.InstrumentID {
				return fmt.Errorf("%w: order %s is for %s", ErrInvalidEvent, o.ClientOrderID, o.InstrumentID)
			}
		}
	case EventTypePositions:
		for _, p := range e.Positions {
			if p.InstrumentID != e.InstrumentID {
				return fmt.Errorf("%w: position %s is for %s", ErrInvalidEvent, p.ID, p.InstrumentID)
			}
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}

// Venue is the venue of the event's instrument, or the account issuer for state events
func (e *Event) Venue() shared.Venue {
	if e.InstrumentID != "" {
		return e.InstrumentID.Venue()
	}
	return shared.Venue(e.AccountID.Issuer())
}
