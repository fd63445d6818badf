package marketdata

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/config"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/instrument/instrumenttest"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

func TestQuoteCodec(t *testing.T) {
	q := quote("AUD/USD.SIM", "0.79", "0.80")

	data, err := encodeQuote(q)
	require.NoError(t, err)

	decoded, err := decodeQuote(data)
	require.NoError(t, err)
	assert.Equal(t, q.InstrumentID, decoded.InstrumentID)
	assert.True(t, decoded.Bid.Equal(q.Bid))
	assert.True(t, decoded.Ask.Equal(q.Ask))

	_, err = encodeQuote(quote("AUD/USD.SIM", "0.81", "0.80"))
	assert.ErrorIs(t, err, ErrInvalidQuote)

	_, err = decodeQuote([]byte("{not json"))
	assert.ErrorIs(t, err, ErrInvalidQuote)
}

// Runs against a live Redis when REDIS_URL is set
func TestRedisQuoteStore_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, &config.RedisConfig{URL: url, Timeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() {
		rdb.Del(ctx, quotesKey)
		rdb.Close()
	})

	store := NewRedisQuoteStore(rdb, time.Minute, slog.Default())
	require.NoError(t, store.Save(ctx, quote("AUD/USD.SIM", "0.79", "0.80")))
	require.NoError(t, store.Save(ctx, quote("GBP/USD.SIM", "1.25", "1.26")))

	cache := NewMemoryCache()
	provider := instrument.NewMemoryProvider(instrumenttest.AUDUSD())
	loaded, err := store.Warm(ctx, cache, provider)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)

	rate, ok := cache.GetXRate("SIM", money.AUD, money.USD, shared.PriceTypeBid)
	require.True(t, ok)
	assert.True(t, rate.Equal(dec("0.79")))
}
