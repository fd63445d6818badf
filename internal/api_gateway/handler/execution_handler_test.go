package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/shared"
)

func completedEntry(eventID uuid.UUID) *ledger.Entry {
	entry := ledger.NewEntry(eventID, "SIM-001", "AUD/USD.SIM", "FILL", "corr-1", shared.ProcessingStatusCompleted)
	stateID := uuid.New()
	entry.StateEventID = &stateID
	return entry
}

func TestExecutionHandler_Create(t *testing.T) {
	eventID := uuid.New()
	body := fmt.Sprintf(`{"event_id":%q,"type":"FILL","account_id":"SIM-001","instrument_id":"AUD/USD.SIM",
		"fill":{"instrument_id":"AUD/USD.SIM","order_side":"BUY","last_qty":"100000","last_px":"0.80000"},"ts_event":42}`, eventID)

	t.Run("Accepted", func(t *testing.T) {
		mockService := new(MockExecutionService)
		router := setupTestRouter()
		router.POST("/executions", NewExecutionHandler(newTestLogger(), mockService).Create)

		mockService.On("SubmitExecution", mock.Anything, mock.MatchedBy(func(e *execution.Event) bool {
			return e.EventID == eventID &&
				e.Type == execution.EventTypeFill &&
				e.AccountID == "SIM-001" &&
				e.Fill != nil &&
				e.TsEvent == 42
		})).Return(nil, nil).Once()

		rr := doRequest(router, http.MethodPost, "/executions", body)

		assert.Equal(t, http.StatusAccepted, rr.Code)
		var data map[string]string
		decodeData(t, rr, &data)
		assert.Equal(t, eventID.String(), data["event_id"])
		assert.Equal(t, "PENDING", data["status"])
		mockService.AssertExpectations(t)
	})

	t.Run("AlreadyProcessed", func(t *testing.T) {
		mockService := new(MockExecutionService)
		router := setupTestRouter()
		router.POST("/executions", NewExecutionHandler(newTestLogger(), mockService).Create)
		mockService.On("SubmitExecution", mock.Anything, mock.Anything).Return(completedEntry(eventID), nil).Once()

		rr := doRequest(router, http.MethodPost, "/executions", body)

		require.Equal(t, http.StatusOK, rr.Code)
		var got ExecutionResponse
		decodeData(t, rr, &got)
		assert.Equal(t, "COMPLETED", got.Status)
		assert.NotEmpty(t, got.StateEventID)
		assert.NotEmpty(t, got.ProcessedAt)
	})

	t.Run("GeneratesEventID", func(t *testing.T) {
		mockService := new(MockExecutionService)
		router := setupTestRouter()
		router.POST("/executions", NewExecutionHandler(newTestLogger(), mockService).Create)
		mockService.On("SubmitExecution", mock.Anything, mock.MatchedBy(func(e *execution.Event) bool {
			return e.EventID != uuid.Nil && e.TsEvent > 0
		})).Return(nil, nil).Once()

		rr := doRequest(router, http.MethodPost, "/executions",
			`{"type":"POSITIONS","account_id":"SIM-001","instrument_id":"AUD/USD.SIM","positions":[]}`)
		assert.Equal(t, http.StatusAccepted, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidEvent", func(t *testing.T) {
		mockService := new(MockExecutionService)
		router := setupTestRouter()
		router.POST("/executions", NewExecutionHandler(newTestLogger(), mockService).Create)
		mockService.On("SubmitExecution", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: fill event without fill", execution.ErrInvalidEvent)).Once()

		rr := doRequest(router, http.MethodPost, "/executions", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockExecutionService)
		router := setupTestRouter()
		router.POST("/executions", NewExecutionHandler(newTestLogger(), mockService).Create)
		mockService.On("SubmitExecution", mock.Anything, mock.Anything).Return(nil, errors.New("broker unavailable")).Once()

		rr := doRequest(router, http.MethodPost, "/executions", body)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	badBodies := map[string]string{
		"MalformedJSON":  `{"type":`,
		"UnknownType":    `{"type":"STATE","account_id":"SIM-001","instrument_id":"AUD/USD.SIM"}`,
		"BadEventID":     `{"event_id":"not-a-uuid","type":"FILL","account_id":"SIM-001","instrument_id":"AUD/USD.SIM"}`,
		"MissingAccount": `{"type":"FILL","instrument_id":"AUD/USD.SIM"}`,
	}
	for name, bad := range badBodies {
		t.Run(name, func(t *testing.T) {
			mockService := new(MockExecutionService)
			router := setupTestRouter()
			router.POST("/executions", NewExecutionHandler(newTestLogger(), mockService).Create)

			rr := doRequest(router, http.MethodPost, "/executions", bad)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			mockService.AssertNotCalled(t, "SubmitExecution", mock.Anything, mock.Anything)
		})
	}
}

func TestExecutionHandler_GetByID(t *testing.T) {
	eventID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockExecutionService)
		router := setupTestRouter()
		router.GET("/executions/:id", NewExecutionHandler(newTestLogger(), mockService).GetByID)
		mockService.On("GetExecution", mock.Anything, eventID).Return(completedEntry(eventID), nil).Once()

		rr := doRequest(router, http.MethodGet, "/executions/"+eventID.String(), "")

		require.Equal(t, http.StatusOK, rr.Code)
		var got ExecutionResponse
		decodeData(t, rr, &got)
		assert.Equal(t, eventID.String(), got.EventID)
		assert.Equal(t, "SIM-001", got.AccountID)
		assert.Equal(t, "FILL", got.EventType)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockExecutionService)
		router := setupTestRouter()
		router.GET("/executions/:id", NewExecutionHandler(newTestLogger(), mockService).GetByID)
		mockService.On("GetExecution", mock.Anything, eventID).Return(nil, nil).Once()

		rr := doRequest(router, http.MethodGet, "/executions/"+eventID.String(), "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/executions/:id", NewExecutionHandler(newTestLogger(), new(MockExecutionService)).GetByID)

		rr := doRequest(router, http.MethodGet, "/executions/42", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockExecutionService)
		router := setupTestRouter()
		router.GET("/executions/:id", NewExecutionHandler(newTestLogger(), mockService).GetByID)
		mockService.On("GetExecution", mock.Anything, eventID).Return(nil, errors.New("mongo down")).Once()

		rr := doRequest(router, http.MethodGet, "/executions/"+eventID.String(), "")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestExecutionHandler_GetByAccountID(t *testing.T) {
	mockService := new(MockExecutionService)
	router := setupTestRouter()
	router.GET("/accounts/:id/executions", NewExecutionHandler(newTestLogger(), mockService).GetByAccountID)

	entries := []*ledger.Entry{completedEntry(uuid.New()), completedEntry(uuid.New())}
	mockService.On("GetExecutionsByAccountID", mock.Anything, shared.AccountID("SIM-001"), 1, 10).Return(entries, int64(2), nil).Once()

	rr := doRequest(router, http.MethodGet, "/accounts/SIM-001/executions", "")

	require.Equal(t, http.StatusOK, rr.Code)
	var got []ExecutionResponse
	resp := decodeData(t, rr, &got)
	assert.Len(t, got, 2)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.TotalItems)

	rr = doRequest(router, http.MethodGet, "/accounts/bad/executions", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
