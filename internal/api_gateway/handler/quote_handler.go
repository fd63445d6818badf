package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/api_gateway/service"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/marketdata"
)

// QuoteHandler handles HTTP requests for market data
type QuoteHandler struct {
	quoteService service.QuoteService
	logger       *slog.Logger
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(logger *slog.Logger, quoteService service.QuoteService) *QuoteHandler {
	return &QuoteHandler{
		quoteService: quoteService,
		logger:       logger,
	}
}

// Create publishes a quote to the rate feed
func (h *QuoteHandler) Create(c *gin.Context) {
	var req PublishQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	bid, errBid := decimal.NewFromString(req.Bid)
	ask, errAsk := decimal.NewFromString(req.Ask)
	if errBid != nil || errAsk != nil {
		RespondBadRequest(c, "bid and ask must be decimal numbers")
		return
	}

	q := marketdata.Quote{
		InstrumentID: shared.InstrumentID(req.InstrumentID),
		Bid:          bid,
		Ask:          ask,
		TsEvent:      req.TsEvent,
	}
	if q.TsEvent == 0 {
		q.TsEvent = uint64(time.Now().UnixNano())
	}

	if err := h.quoteService.PublishQuote(c.Request.Context(), q); err != nil {
		if errors.Is(err, marketdata.ErrInvalidQuote) {
			RespondUnprocessable(c, err.Error())
			return
		}
		h.logger.Error("Failed to publish quote", "instrument_id", req.InstrumentID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, gin.H{"instrument_id": req.InstrumentID})
}

// List returns the latest persisted quotes
func (h *QuoteHandler) List(c *gin.Context) {
	quotes, err := h.quoteService.GetQuotes(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load quotes", "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]QuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		response = append(response, QuoteResponse{
			InstrumentID: q.InstrumentID.String(),
			Bid:          q.Bid.String(),
			Ask:          q.Ask.String(),
			TsEvent:      q.TsEvent,
		})
	}
	RespondOK(c, response)
}
