package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/marketdata"
	"github.com/trading-account-engine/internal/platform/messaging/producers"
)

type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Upsert(ctx context.Context, state *account.State) error {
	return m.Called(ctx, state).Error(0)
}

func (m *MockSnapshotRepository) GetByAccountID(ctx context.Context, accountID shared.AccountID) (*account.State, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.State), args.Error(1)
}

func (m *MockSnapshotRepository) List(ctx context.Context, page, perPage int) ([]*account.State, int64, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*account.State), args.Get(1).(int64), args.Error(2)
}

type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Append(ctx context.Context, sourceEventID uuid.UUID, state *account.State) error {
	return m.Called(ctx, sourceEventID, state).Error(0)
}

func (m *MockEventRepository) ListByAccountID(ctx context.Context, accountID shared.AccountID) ([]*account.State, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.State), args.Error(1)
}

func (m *MockEventRepository) GetLatest(ctx context.Context, accountID shared.AccountID) (*account.State, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.State), args.Error(1)
}

func (m *MockEventRepository) ListAccountIDs(ctx context.Context) ([]shared.AccountID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shared.AccountID), args.Error(1)
}

func (m *MockEventRepository) WithTx(tx pgx.Tx) account.EventRepository {
	return m.Called(tx).Get(0).(account.EventRepository)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockLedgerRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) GetByAccountID(ctx context.Context, accountID shared.AccountID, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) CountByAccountID(ctx context.Context, accountID shared.AccountID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) UpdateStatus(ctx context.Context, eventID uuid.UUID, status shared.ProcessingStatus, reason string) error {
	return m.Called(ctx, eventID, status, reason).Error(0)
}

type MockMessagingProducer struct {
	mock.Mock
}

func (m *MockMessagingProducer) Publish(ctx context.Context, key string, value interface{}) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockMessagingProducer) Close() error {
	return m.Called().Error(0)
}

type MockQuoteReader struct {
	mock.Mock
}

func (m *MockQuoteReader) LoadAll(ctx context.Context) ([]marketdata.Quote, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]marketdata.Quote), args.Error(1)
}

var (
	_ account.SnapshotRepository = (*MockSnapshotRepository)(nil)
	_ account.EventRepository    = (*MockEventRepository)(nil)
	_ ledger.Repository          = (*MockLedgerRepository)(nil)
	_ producers.Publisher = (*MockMessagingProducer)(nil)
	_ QuoteReader                = (*MockQuoteReader)(nil)
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func genesisState(t *testing.T, accountID shared.AccountID) *account.State {
	t.Helper()
	state, err := account.NewState(
		accountID,
		shared.AccountTypeCash,
		&money.USD,
		[]money.AccountBalance{money.NewFreeBalance(money.MustParse("100000", money.USD))},
		nil,
		true,
		1, 1,
	)
	require.NoError(t, err)
	return state
}
