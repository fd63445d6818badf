package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/api_gateway/service"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/shared"
)

// PreTradeHandler handles what-if requests against an account
type PreTradeHandler struct {
	preTradeService service.PreTradeService
	logger          *slog.Logger
}

// NewPreTradeHandler creates a new pre-trade handler
func NewPreTradeHandler(logger *slog.Logger, preTradeService service.PreTradeService) *PreTradeHandler {
	return &PreTradeHandler{
		preTradeService: preTradeService,
		logger:          logger,
	}
}

// MarginInitial returns what an order would reserve on the account
func (h *PreTradeHandler) MarginInitial(c *gin.Context) {
	accountID, err := shared.NewAccountID(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var params MarginInitialParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "instrument_id, quantity and price are required")
		return
	}
	instrumentID, err := shared.ParseInstrumentID(params.InstrumentID)
	if err != nil {
		RespondBadRequest(c, "Invalid instrument ID")
		return
	}
	quantity, err := decimal.NewFromString(params.Quantity)
	if err != nil {
		RespondBadRequest(c, "Invalid quantity")
		return
	}
	price, err := decimal.NewFromString(params.Price)
	if err != nil {
		RespondBadRequest(c, "Invalid price")
		return
	}

	reserve, err := h.preTradeService.MarginInitial(c.Request.Context(), accountID, instrumentID, quantity, price)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrAccountNotFound{}):
			RespondNotFound(c, "Account not found")
		case errors.Is(err, instrument.ErrNotFound):
			RespondNotFound(c, "Instrument not found")
		case errors.Is(err, service.ErrInvalidOrder):
			RespondUnprocessable(c, err.Error())
		default:
			h.logger.Error("Failed to calculate initial margin",
				"account_id", accountID.String(),
				"instrument_id", instrumentID.String(),
				"error", err,
			)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, MarginInitialResponse{
		AccountID:    accountID.String(),
		InstrumentID: instrumentID.String(),
		Currency:     reserve.Currency.Code,
		MarginInit:   reserve.Decimal().StringFixed(reserve.Currency.Precision),
	})
}
