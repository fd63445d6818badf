package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/trading-account-engine/internal/api_gateway/middleware"
	"github.com/trading-account-engine/internal/api_gateway/service"
	"github.com/trading-account-engine/internal/domain/execution"
	"github.com/trading-account-engine/internal/domain/ledger"
	"github.com/trading-account-engine/internal/domain/shared"
)

// ExecutionHandler handles HTTP requests for execution events
type ExecutionHandler struct {
	executionService service.ExecutionService
	logger           *slog.Logger
}

// NewExecutionHandler creates a new execution handler
func NewExecutionHandler(logger *slog.Logger, executionService service.ExecutionService) *ExecutionHandler {
	return &ExecutionHandler{
		executionService: executionService,
		logger:           logger,
	}
}

// Create submits an execution event. A known event id returns its recorded outcome.
func (h *ExecutionHandler) Create(c *gin.Context) {
	var req SubmitExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	eventID := uuid.New()
	if req.EventID != "" {
		eventID = uuid.MustParse(req.EventID)
	}

	event := &execution.Event{
		EventID:       eventID,
		Type:          execution.EventType(req.Type),
		AccountID:     shared.AccountID(req.AccountID),
		InstrumentID:  shared.InstrumentID(req.InstrumentID),
		Fill:          req.Fill,
		Orders:        req.Orders,
		Positions:     req.Positions,
		CorrelationID: middleware.GetCorrelationID(c),
		TsEvent:       req.TsEvent,
	}
	if event.TsEvent == 0 {
		event.TsEvent = uint64(time.Now().UnixNano())
	}

	entry, err := h.executionService.SubmitExecution(c.Request.Context(), event)
	if err != nil {
		if errors.Is(err, execution.ErrInvalidEvent) {
			RespondUnprocessable(c, err.Error())
			return
		}
		h.logger.Error("Failed to submit execution", "event_id", eventID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	if entry != nil {
		RespondOK(c, mapLedgerEntryToResponse(entry))
		return
	}

	RespondAccepted(c, gin.H{
		"event_id": eventID.String(),
		"status":   "PENDING",
	})
}

// GetByID returns the processing outcome of an event, 404 if it was never seen
func (h *ExecutionHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid event ID")
		return
	}

	entry, err := h.executionService.GetExecution(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get execution", "event_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}
	if entry == nil {
		RespondNotFound(c, "Execution not found")
		return
	}

	RespondOK(c, mapLedgerEntryToResponse(entry))
}

// GetByAccountID returns the paginated processing history of an account
func (h *ExecutionHandler) GetByAccountID(c *gin.Context) {
	accountID, err := shared.NewAccountID(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.executionService.GetExecutionsByAccountID(
		c.Request.Context(),
		accountID,
		pagination.Page,
		pagination.PerPage,
	)
	if err != nil {
		h.logger.Error("Failed to get executions", "account_id", accountID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	executions := make([]ExecutionResponse, 0, len(entries))
	for _, entry := range entries {
		executions = append(executions, mapLedgerEntryToResponse(entry))
	}
	RespondPage(c, executions, pagination, total)
}

// mapLedgerEntryToResponse maps a ledger entry to an execution response DTO
func mapLedgerEntryToResponse(entry *ledger.Entry) ExecutionResponse {
	response := ExecutionResponse{
		EventID:       entry.EventID.String(),
		AccountID:     entry.AccountID.String(),
		InstrumentID:  entry.InstrumentID.String(),
		EventType:     entry.EventType,
		Status:        string(entry.Status),
		FailureReason: entry.FailureReason,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}
	if entry.StateEventID != nil {
		response.StateEventID = entry.StateEventID.String()
	}
	if entry.ProcessedAt != nil {
		response.ProcessedAt = entry.ProcessedAt.Format(time.RFC3339)
	}
	return response
}
