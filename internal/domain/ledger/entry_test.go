package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/domain/shared"
)

func TestNewEntry(t *testing.T) {
	t.Run("Processing", func(t *testing.T) {
		id := uuid.New()
		e := NewEntry(id, "SIM-001", "AUD/USD.SIM", "FILL", "corr-1", shared.ProcessingStatusProcessing)

		require.NotNil(t, e)
		assert.Len(t, e.ID, 26)
		assert.Equal(t, id, e.EventID)
		assert.False(t, e.IsTerminal())
		assert.Nil(t, e.ProcessedAt)
	})

	t.Run("Terminal", func(t *testing.T) {
		e := NewEntry(uuid.New(), "SIM-001", "", "STATE", "", shared.ProcessingStatusFailed)
		assert.True(t, e.IsTerminal())
		require.NotNil(t, e.ProcessedAt)
		assert.Equal(t, e.CreatedAt, *e.ProcessedAt)
	})
}

func TestNewID_Sortable(t *testing.T) {
	at := time.Now()
	prev := NewID(at)
	for i := 0; i < 100; i++ {
		next := NewID(at)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestErrors_Is(t *testing.T) {
	id := uuid.New()
	wrapped := fmt.Errorf("lookup: %w", ErrEntryNotFound{EventID: id})

	assert.True(t, errors.Is(wrapped, ErrEntryNotFound{}))
	assert.True(t, errors.Is(wrapped, ErrEntryNotFound{EventID: id}))
	assert.False(t, errors.Is(wrapped, ErrEntryNotFound{EventID: uuid.New()}))
	assert.False(t, errors.Is(wrapped, ErrDuplicateEntry{}))
	assert.True(t, errors.Is(ErrDuplicateEntry{EventID: id}, ErrDuplicateEntry{}))
}
