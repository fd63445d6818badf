package outbox

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/trading-account-engine/internal/domain/shared"
)

// Repository stores account state messages written in the same transaction as
// the state event, until the poller has published them.
type Repository interface {
	Create(ctx context.Context, message *Message) error

	// GetPending returns the oldest pending messages, at most limit
	GetPending(ctx context.Context, limit int) ([]*Message, error)

	// ListByStatus returns the oldest messages in status, at most limit
	ListByStatus(ctx context.Context, status shared.OutboxStatus, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error

	// GetByEventID finds the message produced by an execution event
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*Message, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates a missing outbox message. A zero ID matches any.
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	if e.ID == 0 {
		return "outbox message not found"
	}
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

func (e ErrMessageNotFound) Is(target error) bool {
	t, ok := target.(ErrMessageNotFound)
	return ok && (t.ID == 0 || t.ID == e.ID)
}

// ErrDuplicateMessage indicates the execution event already has a message
type ErrDuplicateMessage struct {
	EventID uuid.UUID
}

func (e ErrDuplicateMessage) Error() string {
	return "duplicate outbox message for event: " + e.EventID.String()
}

func (e ErrDuplicateMessage) Is(target error) bool {
	t, ok := target.(ErrDuplicateMessage)
	return ok && (t.EventID == uuid.Nil || t.EventID == e.EventID)
}
