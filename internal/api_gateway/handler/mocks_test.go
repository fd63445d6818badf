package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/api_gateway/service"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/marketdata"
)

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) OpenAccount(ctx context.Context, state *account.State, correlationID string) (uuid.UUID, error) {
	args := m.Called(ctx, state, correlationID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockAccountService) GetAccount(ctx context.Context, accountID shared.AccountID) (*account.State, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.State), args.Error(1)
}

func (m *MockAccountService) ListAccounts(ctx context.Context, page, perPage int) ([]*account.State, int64, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*account.State), args.Get(1).(int64), args.Error(2)
}

func (m *MockAccountService) GetAccountEvents(ctx context.Context, accountID shared.AccountID) ([]*account.State, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.State), args.Error(1)
}

type MockPreTradeService struct {
	mock.Mock
}

func (m *MockPreTradeService) MarginInitial(ctx context.Context, accountID shared.AccountID, instrumentID shared.InstrumentID, quantity, price decimal.Decimal) (money.Money, error) {
	args := m.Called(ctx, accountID, instrumentID, quantity, price)
	return args.Get(0).(money.Money), args.Error(1)
}

type MockExecutionService struct {
	mock.Mock
}

func (m *MockExecutionService) SubmitExecution(ctx context.Context, event *execution.Event) (*ledger.Entry, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockExecutionService) GetExecution(ctx context.Context, eventID uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockExecutionService) GetExecutionsByAccountID(ctx context.Context, accountID shared.AccountID, page, perPage int) ([]*ledger.Entry, int64, error) {
	args := m.Called(ctx, accountID, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*ledger.Entry), args.Get(1).(int64), args.Error(2)
}

type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) PublishQuote(ctx context.Context, q marketdata.Quote) error {
	return m.Called(ctx, q).Error(0)
}

func (m *MockQuoteService) GetQuotes(ctx context.Context) ([]marketdata.Quote, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]marketdata.Quote), args.Error(1)
}

var (
	_ service.AccountService   = (*MockAccountService)(nil)
	_ service.ExecutionService = (*MockExecutionService)(nil)
	_ service.PreTradeService  = (*MockPreTradeService)(nil)
	_ service.QuoteService     = (*MockQuoteService)(nil)
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

// decodeData unmarshals the data field of a standard response into out
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) *Response {
	t.Helper()
	var raw struct {
		Data  json.RawMessage `json:"data"`
		Error *ErrorInfo      `json:"error"`
		Meta  *MetaInfo       `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	if out != nil {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return &Response{Error: raw.Error, Meta: raw.Meta}
}
