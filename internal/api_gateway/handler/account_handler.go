package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/trading-account-engine/internal/api_gateway/middleware"
	"github.com/trading-account-engine/internal/api_gateway/service"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// Create opens an account. The account exists once the processor applies the
// genesis state, so the response is 202 with the id of the published event.
func (h *AccountHandler) Create(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	state, err := buildGenesisState(req)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	eventID, err := h.accountService.OpenAccount(c.Request.Context(), state, middleware.GetCorrelationID(c))
	if err != nil {
		if errors.Is(err, service.ErrAccountExists) {
			RespondConflict(c, "Account already exists")
			return
		}
		h.logger.Error("Failed to open account", "account_id", req.AccountID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, gin.H{
		"account_id": state.AccountID.String(),
		"event_id":   eventID.String(),
		"status":     "PENDING",
	})
}

// List returns a page of account snapshots
func (h *AccountHandler) List(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	states, total, err := h.accountService.ListAccounts(c.Request.Context(), pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list accounts", "error", err)
		RespondInternalError(c)
		return
	}

	accounts := make([]AccountStateResponse, 0, len(states))
	for _, s := range states {
		accounts = append(accounts, mapStateToResponse(s))
	}
	RespondPage(c, accounts, pagination, total)
}

// GetByID returns the latest state of an account, 404 if none was published
func (h *AccountHandler) GetByID(c *gin.Context) {
	accountID, ok := h.accountIDParam(c)
	if !ok {
		return
	}

	state, err := h.accountService.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get account", "account_id", accountID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapStateToResponse(state))
}

// GetEvents returns every state event of an account, genesis first
func (h *AccountHandler) GetEvents(c *gin.Context) {
	accountID, ok := h.accountIDParam(c)
	if !ok {
		return
	}

	events, err := h.accountService.GetAccountEvents(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get account events", "account_id", accountID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]AccountStateResponse, 0, len(events))
	for _, s := range events {
		response = append(response, mapStateToResponse(s))
	}
	RespondOK(c, response)
}

func (h *AccountHandler) accountIDParam(c *gin.Context) (shared.AccountID, bool) {
	idParam := c.Param("id")
	accountID, err := shared.NewAccountID(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return "", false
	}
	return accountID, true
}

// buildGenesisState turns the request into a reported state
func buildGenesisState(req OpenAccountRequest) (*account.State, error) {
	accountID, err := shared.NewAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}

	var base *money.Currency
	if req.BaseCurrency != "" {
		ccy, err := money.CurrencyFromString(req.BaseCurrency)
		if err != nil {
			return nil, err
		}
		base = &ccy
	}

	balances := make([]money.AccountBalance, 0, len(req.Balances))
	for _, b := range req.Balances {
		ccy, err := money.CurrencyFromString(b.Currency)
		if err != nil {
			return nil, err
		}
		total, err := money.FromString(b.Total, ccy)
		if err != nil {
			return nil, err
		}
		locked := money.Zero(ccy)
		if b.Locked != "" {
			if locked, err = money.FromString(b.Locked, ccy); err != nil {
				return nil, err
			}
		}
		balance, err := money.NewAccountBalance(total, locked)
		if err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}

	now := uint64(time.Now().UnixNano())
	return account.NewState(accountID, shared.AccountType(req.AccountType), base, balances, nil, true, now, now)
}

// mapStateToResponse maps an account state to its response DTO
func mapStateToResponse(s *account.State) AccountStateResponse {
	response := AccountStateResponse{
		AccountID:   s.AccountID.String(),
		AccountType: string(s.AccountType),
		Balances:    make([]BalanceResponse, 0, len(s.Balances)),
		Margins:     make([]MarginResponse, 0, len(s.Margins)),
		Reported:    s.Reported,
		EventID:     s.EventID.String(),
		TsEvent:     s.TsEvent,
	}
	if s.BaseCurrency != nil {
		response.BaseCurrency = s.BaseCurrency.Code
	}
	for _, b := range s.Balances {
		response.Balances = append(response.Balances, BalanceResponse{
			Currency: b.Currency().Code,
			Total:    b.Total.Decimal().StringFixed(b.Currency().Precision),
			Locked:   b.Locked.Decimal().StringFixed(b.Currency().Precision),
			Free:     b.Free.Decimal().StringFixed(b.Currency().Precision),
		})
	}
	for _, m := range s.Margins {
		response.Margins = append(response.Margins, MarginResponse{
			InstrumentID: m.InstrumentID.String(),
			Currency:     m.Currency().Code,
			Initial:      m.Initial.Decimal().StringFixed(m.Currency().Precision),
			Maintenance:  m.Maintenance.Decimal().StringFixed(m.Currency().Precision),
		})
	}
	return response
}
