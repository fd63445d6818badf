package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/account_processor/service"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/platform/messaging/consumers"
	"github.com/trading-account-engine/internal/platform/messaging/producers"
)

type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessEvent(ctx context.Context, event *execution.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockDLQPublisher struct {
	mock.Mock
}

func (m *MockDLQPublisher) PublishToDLQ(ctx context.Context, letter producers.DeadLetter) error {
	args := m.Called(ctx, letter)
	return args.Error(0)
}

func (m *MockDLQPublisher) Close() error {
	return m.Called().Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestExecutionEventHandler_HandleMessage(t *testing.T) {
	ctx := context.Background()
	event := execution.Event{
		EventID:       uuid.New(),
		Type:          execution.EventTypeOrders,
		AccountID:     "SIM-001",
		InstrumentID:  "AUD/USD.SIM",
		CorrelationID: "corr-1",
		TsEvent:       42,
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	key := []byte("SIM-001")
	garbage := []byte("{not json")
	undecodable := mock.MatchedBy(func(l producers.DeadLetter) bool {
		return l.SourceTopic == "execution_events" && string(l.Key) == "SIM-001" &&
			string(l.Value) == string(garbage) && l.Reason == producers.ReasonUndecodable && l.Cause != nil
	})
	anonymous := []byte(`{"type":"FILL","account_id":"SIM-001"}`)
	processErr := errors.New("db unavailable")

	tests := []struct {
		name       string
		value      []byte
		setupMocks func(svc *MockProcessingService, dlq *MockDLQPublisher)
		wantErr    bool
		wantRetry  bool
	}{
		{
			name:  "processes decoded event",
			value: payload,
			setupMocks: func(svc *MockProcessingService, dlq *MockDLQPublisher) {
				svc.On("ProcessEvent", ctx, mock.MatchedBy(func(e *execution.Event) bool {
					return e.EventID == event.EventID && e.Type == execution.EventTypeOrders && e.TsEvent == 42
				})).Return(nil).Once()
			},
		},
		{
			name:  "processing error is returned",
			value: payload,
			setupMocks: func(svc *MockProcessingService, dlq *MockDLQPublisher) {
				svc.On("ProcessEvent", ctx, mock.Anything).Return(processErr).Once()
			},
			wantErr: true,
		},
		{
			name:  "deferred fill is retried",
			value: payload,
			setupMocks: func(svc *MockProcessingService, dlq *MockDLQPublisher) {
				svc.On("ProcessEvent", ctx, mock.Anything).
					Return(service.ErrInsufficientRateData{From: money.AUD, To: money.USD}).Once()
			},
			wantErr:   true,
			wantRetry: true,
		},
		{
			name:  "undecodable message goes to DLQ",
			value: garbage,
			setupMocks: func(svc *MockProcessingService, dlq *MockDLQPublisher) {
				dlq.On("PublishToDLQ", ctx, undecodable).Return(nil).Once()
			},
		},
		{
			name:  "event without id goes to DLQ",
			value: anonymous,
			setupMocks: func(svc *MockProcessingService, dlq *MockDLQPublisher) {
				dlq.On("PublishToDLQ", ctx, mock.MatchedBy(func(l producers.DeadLetter) bool {
					return l.Reason == producers.ReasonInvalidEvent && errors.Is(l.Cause, errMissingEventID)
				})).Return(nil).Once()
			},
		},
		{
			name:  "disabled DLQ drops message",
			value: garbage,
			setupMocks: func(svc *MockProcessingService, dlq *MockDLQPublisher) {
				dlq.On("PublishToDLQ", ctx, undecodable).Return(producers.ErrDLQDisabled).Once()
			},
		},
		{
			name:  "DLQ write error is returned",
			value: garbage,
			setupMocks: func(svc *MockProcessingService, dlq *MockDLQPublisher) {
				dlq.On("PublishToDLQ", ctx, undecodable).Return(errors.New("broker down")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockProcessingService{}
			dlq := &MockDLQPublisher{}
			tt.setupMocks(svc, dlq)
			handler := NewExecutionEventHandler(newTestLogger(), svc, dlq, "execution_events")

			err := handler.HandleMessage(ctx, key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.wantRetry, errors.Is(err, consumers.ErrRetryLater))
			} else {
				assert.NoError(t, err)
			}
			svc.AssertExpectations(t)
			dlq.AssertExpectations(t)
		})
	}
}

func TestExecutionEventHandler_NilDLQProducer(t *testing.T) {
	var disabled *producers.DLQProducer
	handler := NewExecutionEventHandler(newTestLogger(), &MockProcessingService{}, disabled, "execution_events")

	assert.NoError(t, handler.HandleMessage(context.Background(), []byte("k"), []byte("{")))
}
