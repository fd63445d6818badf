package outbox_poller

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/outbox"
	"github.com/trading-account-engine/internal/domain/shared"
)

// MockOutboxRepo for testing
type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) ListByStatus(ctx context.Context, status shared.OutboxStatus, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetByEventID(ctx context.Context, eventID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	args := m.Called(tx)
	return args.Get(0).(outbox.Repository)
}

// MockLedgerRepo for testing
type MockLedgerRepo struct {
	mock.Mock
}

func (m *MockLedgerRepo) Create(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepo) GetByEventID(ctx context.Context, eventID uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepo) GetByAccountID(ctx context.Context, accountID shared.AccountID, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepo) CountByAccountID(ctx context.Context, accountID shared.AccountID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepo) UpdateStatus(ctx context.Context, eventID uuid.UUID, status shared.ProcessingStatus, reason string) error {
	args := m.Called(ctx, eventID, status, reason)
	return args.Error(0)
}

// MockSnapshotRepo for testing
type MockSnapshotRepo struct {
	mock.Mock
}

func (m *MockSnapshotRepo) Upsert(ctx context.Context, state *account.State) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockSnapshotRepo) GetByAccountID(ctx context.Context, accountID shared.AccountID) (*account.State, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.State), args.Error(1)
}

func (m *MockSnapshotRepo) List(ctx context.Context, page, perPage int) ([]*account.State, int64, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*account.State), args.Get(1).(int64), args.Error(2)
}

// MockPublisher for testing
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

func testMessage(t *testing.T, id int64, accountID shared.AccountID) *outbox.Message {
	t.Helper()
	state, err := account.NewState(
		accountID,
		shared.AccountTypeCash,
		&money.USD,
		[]money.AccountBalance{money.NewFreeBalance(money.MustParse("1000", money.USD))},
		nil,
		false,
		1, 1,
	)
	require.NoError(t, err)

	event := &execution.Event{
		EventID:       uuid.New(),
		Type:          execution.EventTypeFill,
		AccountID:     accountID,
		InstrumentID:  "AUD/USD.SIM",
		CorrelationID: "corr-1",
	}
	msg, err := outbox.NewMessage(event, state)
	require.NoError(t, err)
	msg.ID = id
	return msg
}

func isState(msg *outbox.Message) interface{} {
	return mock.MatchedBy(func(s *account.State) bool {
		return s.EventID == msg.StateEventID && s.AccountID == msg.AccountID
	})
}

func TestStatePublisher_Publish(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	tests := []struct {
		name        string
		mutate      func(msg *outbox.Message)
		setupMocks  func(msg *outbox.Message, o *MockOutboxRepo, l *MockLedgerRepo, s *MockSnapshotRepo, p *MockPublisher)
		expectedErr string
	}{
		{
			name: "creates completed ledger entry",
			setupMocks: func(msg *outbox.Message, o *MockOutboxRepo, l *MockLedgerRepo, s *MockSnapshotRepo, p *MockPublisher) {
				s.On("Upsert", ctx, isState(msg)).Return(nil).Once()
				p.On("Publish", ctx, "SIM-001", isState(msg)).Return(nil).Once()
				l.On("GetByEventID", ctx, msg.EventID).Return(nil, ledger.ErrEntryNotFound{EventID: msg.EventID}).Once()
				l.On("Create", ctx, mock.MatchedBy(func(e *ledger.Entry) bool {
					return e.EventID == msg.EventID &&
						e.Status == shared.ProcessingStatusCompleted &&
						e.EventType == "FILL" &&
						e.InstrumentID == "AUD/USD.SIM" &&
						e.StateEventID != nil && *e.StateEventID == msg.StateEventID &&
						e.ProcessedAt != nil
				})).Return(nil).Once()
				o.On("UpdateStatus", ctx, msg.ID, shared.OutboxStatusProcessed).Return(nil).Once()
			},
		},
		{
			name: "existing processing entry is completed",
			setupMocks: func(msg *outbox.Message, o *MockOutboxRepo, l *MockLedgerRepo, s *MockSnapshotRepo, p *MockPublisher) {
				s.On("Upsert", ctx, mock.Anything).Return(nil).Once()
				p.On("Publish", ctx, "SIM-001", mock.Anything).Return(nil).Once()
				l.On("GetByEventID", ctx, msg.EventID).Return(&ledger.Entry{EventID: msg.EventID, Status: shared.ProcessingStatusProcessing}, nil).Once()
				l.On("UpdateStatus", ctx, msg.EventID, shared.ProcessingStatusCompleted, "").Return(nil).Once()
				o.On("UpdateStatus", ctx, msg.ID, shared.OutboxStatusProcessed).Return(nil).Once()
			},
		},
		{
			name: "already completed entry is left alone",
			setupMocks: func(msg *outbox.Message, o *MockOutboxRepo, l *MockLedgerRepo, s *MockSnapshotRepo, p *MockPublisher) {
				s.On("Upsert", ctx, mock.Anything).Return(nil).Once()
				p.On("Publish", ctx, "SIM-001", mock.Anything).Return(nil).Once()
				l.On("GetByEventID", ctx, msg.EventID).Return(&ledger.Entry{EventID: msg.EventID, Status: shared.ProcessingStatusCompleted}, nil).Once()
				o.On("UpdateStatus", ctx, msg.ID, shared.OutboxStatusProcessed).Return(nil).Once()
			},
		},
		{
			name: "concurrent ledger create falls back to update",
			setupMocks: func(msg *outbox.Message, o *MockOutboxRepo, l *MockLedgerRepo, s *MockSnapshotRepo, p *MockPublisher) {
				s.On("Upsert", ctx, mock.Anything).Return(nil).Once()
				p.On("Publish", ctx, "SIM-001", mock.Anything).Return(nil).Once()
				l.On("GetByEventID", ctx, msg.EventID).Return(nil, ledger.ErrEntryNotFound{EventID: msg.EventID}).Once()
				l.On("Create", ctx, mock.Anything).Return(ledger.ErrDuplicateEntry{EventID: msg.EventID}).Once()
				l.On("UpdateStatus", ctx, msg.EventID, shared.ProcessingStatusCompleted, "").Return(nil).Once()
				o.On("UpdateStatus", ctx, msg.ID, shared.OutboxStatusProcessed).Return(nil).Once()
			},
		},
		{
			name:   "undecodable payload is marked failed",
			mutate: func(msg *outbox.Message) { msg.Payload = []byte(`{"balances":`) },
			setupMocks: func(msg *outbox.Message, o *MockOutboxRepo, l *MockLedgerRepo, s *MockSnapshotRepo, p *MockPublisher) {
				o.On("UpdateStatus", ctx, msg.ID, shared.OutboxStatusFailedToPublish).Return(nil).Once()
			},
			expectedErr: "decode payload for outbox 7 failed",
		},
		{
			name: "snapshot failure stops delivery",
			setupMocks: func(msg *outbox.Message, o *MockOutboxRepo, l *MockLedgerRepo, s *MockSnapshotRepo, p *MockPublisher) {
				s.On("Upsert", ctx, mock.Anything).Return(errors.New("mongo down")).Once()
			},
			expectedErr: "failed to upsert snapshot for SIM-001",
		},
		{
			name: "kafka failure stops delivery",
			setupMocks: func(msg *outbox.Message, o *MockOutboxRepo, l *MockLedgerRepo, s *MockSnapshotRepo, p *MockPublisher) {
				s.On("Upsert", ctx, mock.Anything).Return(nil).Once()
				p.On("Publish", ctx, "SIM-001", mock.Anything).Return(errors.New("broker down")).Once()
			},
			expectedErr: "failed to publish state",
		},
		{
			name: "ledger lookup failure",
			setupMocks: func(msg *outbox.Message, o *MockOutboxRepo, l *MockLedgerRepo, s *MockSnapshotRepo, p *MockPublisher) {
				s.On("Upsert", ctx, mock.Anything).Return(nil).Once()
				p.On("Publish", ctx, "SIM-001", mock.Anything).Return(nil).Once()
				l.On("GetByEventID", ctx, msg.EventID).Return(nil, errors.New("mongo down")).Once()
			},
			expectedErr: "failed to check existing ledger entry",
		},
		{
			name: "outbox status update failure",
			setupMocks: func(msg *outbox.Message, o *MockOutboxRepo, l *MockLedgerRepo, s *MockSnapshotRepo, p *MockPublisher) {
				s.On("Upsert", ctx, mock.Anything).Return(nil).Once()
				p.On("Publish", ctx, "SIM-001", mock.Anything).Return(nil).Once()
				l.On("GetByEventID", ctx, msg.EventID).Return(&ledger.Entry{Status: shared.ProcessingStatusCompleted}, nil).Once()
				o.On("UpdateStatus", ctx, msg.ID, shared.OutboxStatusProcessed).Return(errors.New("pg down")).Once()
			},
			expectedErr: "failed to mark outbox 7 as PROCESSED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outboxRepo := &MockOutboxRepo{}
			ledgerRepo := &MockLedgerRepo{}
			snapshots := &MockSnapshotRepo{}
			producer := &MockPublisher{}
			publisher := NewStatePublisher(outboxRepo, ledgerRepo, snapshots, producer, logger)

			msg := testMessage(t, 7, "SIM-001")
			if tt.mutate != nil {
				tt.mutate(msg)
			}
			tt.setupMocks(msg, outboxRepo, ledgerRepo, snapshots, producer)

			err := publisher.Publish(ctx, msg)
			if tt.expectedErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}

			outboxRepo.AssertExpectations(t)
			ledgerRepo.AssertExpectations(t)
			snapshots.AssertExpectations(t)
			producer.AssertExpectations(t)
		})
	}
}

func TestStatePublisher_WithoutProducer(t *testing.T) {
	ctx := context.Background()
	outboxRepo := &MockOutboxRepo{}
	ledgerRepo := &MockLedgerRepo{}
	snapshots := &MockSnapshotRepo{}
	publisher := NewStatePublisher(outboxRepo, ledgerRepo, snapshots, nil, slog.Default())

	msg := testMessage(t, 1, "SIM-002")
	snapshots.On("Upsert", ctx, isState(msg)).Return(nil).Once()
	ledgerRepo.On("GetByEventID", ctx, msg.EventID).Return(nil, ledger.ErrEntryNotFound{EventID: msg.EventID}).Once()
	ledgerRepo.On("Create", ctx, mock.Anything).Return(nil).Once()
	outboxRepo.On("UpdateStatus", ctx, int64(1), shared.OutboxStatusProcessed).Return(nil).Once()

	require.NoError(t, publisher.Publish(ctx, msg))
	outboxRepo.AssertExpectations(t)
	ledgerRepo.AssertExpectations(t)
	snapshots.AssertExpectations(t)
}
