package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/trading-account-engine/internal/domain/shared"
)

// EventRepository is the append-only store of account state events
type EventRepository interface {
	// Append stores state as produced by the execution event sourceEventID.
	// A second append for the same source event returns ErrDuplicateEvent.
	Append(ctx context.Context, sourceEventID uuid.UUID, state *State) error

	// ListByAccountID returns events in append order, genesis first
	ListByAccountID(ctx context.Context, accountID shared.AccountID) ([]*State, error)

	// GetLatest returns ErrAccountNotFound when the account has no events
	GetLatest(ctx context.Context, accountID shared.AccountID) (*State, error)
	ListAccountIDs(ctx context.Context) ([]shared.AccountID, error)
	WithTx(tx pgx.Tx) EventRepository
}

// SnapshotRepository keeps the latest state per account for queries
type SnapshotRepository interface {
	Upsert(ctx context.Context, state *State) error

	// GetByAccountID returns nil when no snapshot exists
	GetByAccountID(ctx context.Context, accountID shared.AccountID) (*State, error)
	List(ctx context.Context, page, perPage int) ([]*State, int64, error)
}

// ErrDuplicateEvent indicates the source execution event was already stored
type ErrDuplicateEvent struct {
	SourceEventID uuid.UUID
}

func (e ErrDuplicateEvent) Error() string {
	return "duplicate account event for source event: " + e.SourceEventID.String()
}

func (e ErrDuplicateEvent) Is(target error) bool {
	t, ok := target.(ErrDuplicateEvent)
	if !ok {
		return false
	}
	return t.SourceEventID == uuid.Nil || t.SourceEventID == e.SourceEventID
}
