package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestState(t *testing.T, total string) *account.State {
	t.Helper()
	state, err := account.NewState(
		"SIM-001",
		shared.AccountTypeCash,
		&money.USD,
		[]money.AccountBalance{money.NewFreeBalance(money.MustParse(total, money.USD))},
		nil,
		false,
		10, 20,
	)
	require.NoError(t, err)
	return state
}

func payloadOf(t *testing.T, state *account.State) []byte {
	t.Helper()
	b, err := json.Marshal(state)
	require.NoError(t, err)
	return b
}

func TestAccountEventRepository_Append(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountEventRepository{querier: mock, logger: newTestLogger()}
	state := newTestState(t, "1000")
	sourceID := uuid.New()
	query := regexp.QuoteMeta("INSERT INTO account_events")

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(state.EventID, sourceID, "SIM-001", "CASH", pgxmock.AnyArg(), int64(10), int64(20)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Append(ctx, sourceID, state)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate source event", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(state.EventID, sourceID, "SIM-001", "CASH", pgxmock.AnyArg(), int64(10), int64(20)).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Append(ctx, sourceID, state)
		assert.ErrorIs(t, err, account.ErrDuplicateEvent{SourceEventID: sourceID})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).WillReturnError(expectedErr)

		err := repo.Append(ctx, sourceID, state)
		assert.ErrorIs(t, err, expectedErr)
		assert.Contains(t, err.Error(), "failed to append account event")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountEventRepository_ListByAccountID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountEventRepository{querier: mock, logger: newTestLogger()}
	genesis := newTestState(t, "1000")
	next := newTestState(t, "998")
	query := regexp.QuoteMeta("FROM account_events")

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"payload"}).
			AddRow(payloadOf(t, genesis)).
			AddRow(payloadOf(t, next))
		mock.ExpectQuery(query).WithArgs("SIM-001").WillReturnRows(rows)

		states, err := repo.ListByAccountID(ctx, "SIM-001")
		require.NoError(t, err)
		require.Len(t, states, 2)
		assert.Equal(t, genesis.EventID, states[0].EventID)
		assert.Equal(t, "998.00 USD", states[1].Balances[0].Total.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt payload", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"payload"}).AddRow([]byte(`{"balances":"x"}`))
		mock.ExpectQuery(query).WithArgs("SIM-001").WillReturnRows(rows)

		_, err := repo.ListByAccountID(ctx, "SIM-001")
		assert.ErrorContains(t, err, "failed to decode account event")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("SIM-001").WillReturnError(errors.New("db down"))

		_, err := repo.ListByAccountID(ctx, "SIM-001")
		assert.ErrorContains(t, err, "failed to list account events")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountEventRepository_GetLatest(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountEventRepository{querier: mock, logger: newTestLogger()}
	state := newTestState(t, "1000")
	query := regexp.QuoteMeta("ORDER BY id DESC")

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("SIM-001").
			WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payloadOf(t, state)))

		latest, err := repo.GetLatest(ctx, "SIM-001")
		require.NoError(t, err)
		assert.Equal(t, state.EventID, latest.EventID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("SIM-002").WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetLatest(ctx, "SIM-002")
		assert.ErrorIs(t, err, account.ErrAccountNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountEventRepository_ListAccountIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountEventRepository{querier: mock, logger: newTestLogger()}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT account_id")).
		WillReturnRows(pgxmock.NewRows([]string{"account_id"}).AddRow("BINANCE-01").AddRow("SIM-001"))

	ids, err := repo.ListAccountIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []shared.AccountID{"BINANCE-01", "SIM-001"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountEventRepository_WithTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	repo := &AccountEventRepository{querier: mock, logger: newTestLogger()}
	txRepo, ok := repo.WithTx(tx).(*AccountEventRepository)
	require.True(t, ok)
	assert.Equal(t, tx, txRepo.querier)
}
