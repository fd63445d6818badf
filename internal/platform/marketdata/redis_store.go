package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trading-account-engine/internal/config"
	"github.com/trading-account-engine/internal/domain/instrument"
)

const quotesKey = "marketdata:quotes"

// RedisQuoteStore keeps the latest quote per instrument in a Redis hash so a
// restarted processor can rebuild its cross-rates before consuming events.
type RedisQuoteStore struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// NewRedisQuoteStore creates a store. A zero ttl keeps quotes until overwritten.
func NewRedisQuoteStore(rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RedisQuoteStore {
	return &RedisQuoteStore{rdb: rdb, ttl: ttl, logger: logger}
}

// Save stores q as the latest quote of its instrument
func (s *RedisQuoteStore) Save(ctx context.Context, q Quote) error {
	data, err := encodeQuote(q)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, quotesKey, string(q.InstrumentID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, quotesKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save quote for %s: %w", q.InstrumentID, err)
	}
	return nil
}

// LoadAll returns every stored quote. Undecodable entries are skipped.
func (s *RedisQuoteStore) LoadAll(ctx context.Context) ([]Quote, error) {
	raw, err := s.rdb.HGetAll(ctx, quotesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load quotes: %w", err)
	}

	quotes := make([]Quote, 0, len(raw))
	for field, value := range raw {
		q, err := decodeQuote([]byte(value))
		if err != nil {
			s.logger.Warn("Skipping stored quote", "instrument_id", field, "error", err)
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// Warm loads the stored quotes into cache, skipping instruments the provider does not know
func (s *RedisQuoteStore) Warm(ctx context.Context, cache *MemoryCache, provider instrument.Provider) (int, error) {
	quotes, err := s.LoadAll(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, q := range quotes {
		inst, err := provider.Find(q.InstrumentID)
		if err != nil {
			s.logger.Warn("Skipping quote for unknown instrument", "instrument_id", q.InstrumentID.String())
			continue
		}
		if err := cache.UpdateQuote(inst, q); err != nil {
			s.logger.Warn("Skipping invalid stored quote", "instrument_id", q.InstrumentID.String(), "error", err)
			continue
		}
		loaded++
	}
	s.logger.Info("Quote cache warmed", "loaded", loaded, "stored", len(quotes))
	return loaded, nil
}

func encodeQuote(q Quote) ([]byte, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(q)
}

func decodeQuote(data []byte) (Quote, error) {
	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrInvalidQuote, err)
	}
	if err := q.Validate(); err != nil {
		return Quote{}, err
	}
	return q, nil
}
