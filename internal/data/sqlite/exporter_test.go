package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

func newTestExporter(t *testing.T) (*Exporter, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	e, err := NewExporter(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	return e, path
}

func testState(t *testing.T, total string) *account.State {
	t.Helper()
	balance := money.NewFreeBalance(money.MustParse(total, money.USD))
	margin, err := money.NewMarginBalance(money.MustParse("100", money.USD), money.MustParse("50", money.USD), "AUD/USD.SIM")
	require.NoError(t, err)
	state, err := account.NewState("SIM-001", shared.AccountTypeMargin, &money.USD,
		[]money.AccountBalance{balance}, []money.MarginBalance{margin}, false, 1, 1)
	require.NoError(t, err)
	return state
}

func TestExporter_Export(t *testing.T) {
	t.Parallel()

	e, path := newTestExporter(t)
	ctx := context.Background()

	first, second := testState(t, "1000"), testState(t, "900.5")
	n, err := e.Export(ctx, []*account.State{first, second})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// re-export only adds new events
	third := testState(t, "800")
	n, err = e.Export(ctx, []*account.State{first, second, third})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := e.CountEvents(ctx, "SIM-001")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var total, initial string
	require.NoError(t, db.QueryRow(`SELECT total FROM balances WHERE event_id = ?`, second.EventID.String()).Scan(&total))
	assert.Equal(t, "900.5", total)
	require.NoError(t, db.QueryRow(`SELECT initial FROM margins WHERE event_id = ?`, third.EventID.String()).Scan(&initial))
	assert.Equal(t, "100", initial)
}

func TestExporter_ReopenKeepsJournal(t *testing.T) {
	t.Parallel()

	e, path := newTestExporter(t)
	_, err := e.Export(context.Background(), []*account.State{testState(t, "1000")})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	reopened, err := NewExporter(path)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.CountEvents(context.Background(), "SIM-001")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
