package service

import (
	"context"
	"log/slog"

	"github.com/trading-account-engine/internal/platform/marketdata"
	"github.com/trading-account-engine/internal/platform/messaging/producers"
)

// QuoteServiceImpl implements the QuoteService interface
type QuoteServiceImpl struct {
	producer producers.Publisher
	reader   QuoteReader
	logger   *slog.Logger
}

// NewQuoteService creates a quote service. reader may be nil when no quote store is configured.
func NewQuoteService(logger *slog.Logger, producer producers.Publisher, reader QuoteReader) QuoteService {
	return &QuoteServiceImpl{
		producer: producer,
		reader:   reader,
		logger:   logger,
	}
}

// PublishQuote publishes q keyed by instrument so updates of one instrument stay ordered
func (s *QuoteServiceImpl) PublishQuote(ctx context.Context, q marketdata.Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if err := s.producer.Publish(ctx, q.InstrumentID.String(), q); err != nil {
		s.logger.Error("Failed to publish quote", "instrument_id", q.InstrumentID.String(), "error", err)
		return err
	}
	return nil
}

// GetQuotes returns the persisted quotes, or none without a store
func (s *QuoteServiceImpl) GetQuotes(ctx context.Context) ([]marketdata.Quote, error) {
	if s.reader == nil {
		return []marketdata.Quote{}, nil
	}
	return s.reader.LoadAll(ctx)
}
