package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/shared"
)

// Message stores a generated account state for reliable publishing
type Message struct {
	ID            int64               `json:"id"`
	EventID       uuid.UUID           `json:"event_id"` // execution event that produced the state
	StateEventID  uuid.UUID           `json:"state_event_id"`
	AccountID     shared.AccountID    `json:"account_id"`
	EventType     string              `json:"event_type"`
	InstrumentID  shared.InstrumentID `json:"instrument_id,omitempty"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps the state generated by event in a pending message
func NewMessage(event *execution.Event, state *account.State) (*Message, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID,
		StateEventID:  state.EventID,
		AccountID:     state.AccountID,
		EventType:     string(event.Type),
		InstrumentID:  event.InstrumentID,
		CorrelationID: event.CorrelationID,
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetState extracts the account state from the payload
func (m *Message) GetState() (*account.State, error) {
	var state account.State
	if err := json.Unmarshal(m.Payload, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
