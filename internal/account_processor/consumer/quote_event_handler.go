package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/platform/marketdata"
	"github.com/trading-account-engine/internal/platform/metrics"
)

// QuoteCache is the in-memory rate cache fed by the quote stream
type QuoteCache interface {
	Quote(instrumentID shared.InstrumentID) (marketdata.Quote, bool)
	UpdateQuote(inst instrument.Instrument, q marketdata.Quote) error
}

// QuoteStore persists the latest quotes so a restarted processor can warm its cache
type QuoteStore interface {
	Save(ctx context.Context, q marketdata.Quote) error
}

// QuoteEventHandler applies quotes consumed from Kafka to the rate cache
type QuoteEventHandler struct {
	cache       QuoteCache
	store       QuoteStore
	instruments instrument.Provider
	logger      *slog.Logger
}

// NewQuoteEventHandler creates a handler. store may be nil.
func NewQuoteEventHandler(logger *slog.Logger, cache QuoteCache, store QuoteStore, instruments instrument.Provider) *QuoteEventHandler {
	return &QuoteEventHandler{
		cache:       cache,
		store:       store,
		instruments: instruments,
		logger:      logger,
	}
}

// HandleMessage applies one quote. Quotes are best effort: bad or stale ones are
// dropped and the message is always acknowledged.
func (h *QuoteEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var q marketdata.Quote
	if err := json.Unmarshal(value, &q); err != nil {
		h.logger.Warn("Dropping undecodable quote", "message_key", string(key), "error", err)
		return nil
	}

	inst, err := h.instruments.Find(q.InstrumentID)
	if err != nil {
		h.logger.Debug("Dropping quote for unknown instrument", "instrument_id", q.InstrumentID.String())
		return nil
	}

	if prev, ok := h.cache.Quote(q.InstrumentID); ok && prev.TsEvent > q.TsEvent {
		h.logger.Debug("Dropping stale quote", "instrument_id", q.InstrumentID.String(), "ts_event", q.TsEvent, "latest", prev.TsEvent)
		return nil
	}

	if err := h.cache.UpdateQuote(inst, q); err != nil {
		h.logger.Warn("Dropping invalid quote", "instrument_id", q.InstrumentID.String(), "error", err)
		return nil
	}
	metrics.QuotesApplied.Inc()

	if h.store != nil {
		if err := h.store.Save(ctx, q); err != nil {
			h.logger.Warn("Failed to persist quote", "instrument_id", q.InstrumentID.String(), "error", err)
		}
	}
	return nil
}
