package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/trading-account-engine/internal/domain/shared"
)

// Repository records the outcome of every execution event the processor consumed
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*Entry, error)

	// GetByAccountID pages through an account's entries, newest first
	GetByAccountID(ctx context.Context, accountID shared.AccountID, limit, offset int) ([]*Entry, error)
	CountByAccountID(ctx context.Context, accountID shared.AccountID) (int64, error)
	UpdateStatus(ctx context.Context, eventID uuid.UUID, status shared.ProcessingStatus, reason string) error
}

// ErrEntryNotFound indicates the execution event was never recorded. A nil EventID matches any.
type ErrEntryNotFound struct {
	EventID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.EventID.String()
}

func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	return ok && (t.EventID == uuid.Nil || t.EventID == e.EventID)
}

// ErrDuplicateEntry indicates the execution event is already in the ledger
type ErrDuplicateEntry struct {
	EventID uuid.UUID
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate ledger entry: " + e.EventID.String()
}

func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	return ok && (t.EventID == uuid.Nil || t.EventID == e.EventID)
}
