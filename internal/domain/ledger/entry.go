package ledger

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/trading-account-engine/internal/domain/shared"
)

var (
	entropyMu sync.Mutex
	entropy   io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewID returns a time-sortable entry identifier
func NewID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at.UTC()), entropy).String()
}

// Entry records the processing outcome of one execution event
type Entry struct {
	ID            string                  `json:"id" bson:"_id"`
	EventID       uuid.UUID               `json:"event_id" bson:"event_id"`
	AccountID     shared.AccountID        `json:"account_id" bson:"account_id"`
	InstrumentID  shared.InstrumentID     `json:"instrument_id,omitempty" bson:"instrument_id,omitempty"`
	EventType     string                  `json:"event_type" bson:"event_type"`
	StateEventID  *uuid.UUID              `json:"state_event_id,omitempty" bson:"state_event_id,omitempty"`
	Status        shared.ProcessingStatus `json:"status" bson:"status"`
	FailureReason string                  `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CorrelationID string                  `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CreatedAt     time.Time               `json:"created_at" bson:"created_at"`
	ProcessedAt   *time.Time              `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
}

// NewEntry creates an entry for an event seen now
func NewEntry(
	eventID uuid.UUID,
	accountID shared.AccountID,
	instrumentID shared.InstrumentID,
	eventType string,
	correlationID string,
	status shared.ProcessingStatus,
) *Entry {
	now := time.Now().UTC()
	e := &Entry{
		ID:            NewID(now),
		EventID:       eventID,
		AccountID:     accountID,
		InstrumentID:  instrumentID,
		EventType:     eventType,
		Status:        status,
		CorrelationID: correlationID,
		CreatedAt:     now,
	}
	if status.IsTerminal() {
		e.ProcessedAt = &now
	}
	return e
}

// IsTerminal reports whether the event reached a final status
func (e *Entry) IsTerminal() bool {
	return e.Status.IsTerminal()
}
