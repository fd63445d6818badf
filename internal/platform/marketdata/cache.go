// Package marketdata keeps the quotes and positions the account calculations read from.
package marketdata

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/domain/trading"
)

type ccyPair struct {
	base  string
	quote string
}

// MemoryCache is an in-process quote and position cache, safe for concurrent use.
// Cross-rates are derived per venue from currency-pair quotes: directly, through
// the inverse pair, or through one intermediate currency.
type MemoryCache struct {
	mu        sync.RWMutex
	quotes    map[shared.InstrumentID]Quote
	rates     map[shared.Venue]map[ccyPair]Quote
	positions map[shared.InstrumentID][]trading.Position
	byID      map[shared.PositionID]trading.Position
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		quotes:    make(map[shared.InstrumentID]Quote),
		rates:     make(map[shared.Venue]map[ccyPair]Quote),
		positions: make(map[shared.InstrumentID][]trading.Position),
		byID:      make(map[shared.PositionID]trading.Position),
	}
}

// UpdateQuote stores the latest quote of inst. Instruments with a base
// currency also feed the venue's cross-rate graph.
func (c *MemoryCache) UpdateQuote(inst instrument.Instrument, q Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if q.InstrumentID != inst.ID() {
		return ErrInvalidQuote
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.quotes[q.InstrumentID] = q
	baseCcy, ok := inst.BaseCurrency()
	if !ok {
		return nil
	}
	venue := inst.ID().Venue()
	if c.rates[venue] == nil {
		c.rates[venue] = make(map[ccyPair]Quote)
	}
	c.rates[venue][ccyPair{base: baseCcy.Code, quote: inst.QuoteCurrency().Code}] = q
	return nil
}

// Quote returns the latest quote of an instrument
func (c *MemoryCache) Quote(instrumentID shared.InstrumentID) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[instrumentID]
	return q, ok
}

// Quotes returns every cached quote ordered by instrument
func (c *MemoryCache) Quotes() []Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Quote, 0, len(c.quotes))
	for _, q := range c.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out
}

// GetXRate returns the rate converting from into to at the given side of the book
func (c *MemoryCache) GetXRate(venue shared.Venue, from, to money.Currency, priceType shared.PriceType) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	graph := c.rates[venue]
	if len(graph) == 0 {
		return decimal.Decimal{}, false
	}
	if rate, ok := pairRate(graph, from.Code, to.Code, priceType); ok {
		return rate, true
	}

	for _, via := range neighbours(graph, from.Code) {
		first, ok := pairRate(graph, from.Code, via, priceType)
		if !ok {
			continue
		}
		second, ok := pairRate(graph, via, to.Code, priceType)
		if !ok {
			continue
		}
		return first.Mul(second), true
	}
	return decimal.Decimal{}, false
}

// SetPositions replaces the positions held for an instrument
func (c *MemoryCache) SetPositions(instrumentID shared.InstrumentID, positions []trading.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.positions[instrumentID] {
		delete(c.byID, p.ID)
	}
	if len(positions) == 0 {
		delete(c.positions, instrumentID)
		return
	}
	stored := append([]trading.Position(nil), positions...)
	c.positions[instrumentID] = stored
	for _, p := range stored {
		c.byID[p.ID] = p
	}
}

// PositionsOpen returns the open positions of an instrument traded on venue
func (c *MemoryCache) PositionsOpen(venue shared.Venue, instrumentID shared.InstrumentID) []trading.Position {
	if instrumentID.Venue() != venue {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var open []trading.Position
	for _, p := range c.positions[instrumentID] {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	return open
}

// Position looks up a position by id
func (c *MemoryCache) Position(positionID shared.PositionID) (trading.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[positionID]
	return p, ok
}

func pairRate(graph map[ccyPair]Quote, from, to string, priceType shared.PriceType) (decimal.Decimal, bool) {
	if q, ok := graph[ccyPair{base: from, quote: to}]; ok {
		return q.Price(priceType), true
	}
	if q, ok := graph[ccyPair{base: to, quote: from}]; ok {
		px := q.Price(priceType)
		if px.IsZero() {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromInt(1).Div(px), true
	}
	return decimal.Decimal{}, false
}

// neighbours lists the currencies quoted against code, sorted for a stable path choice
func neighbours(graph map[ccyPair]Quote, code string) []string {
	seen := make(map[string]struct{})
	for pair := range graph {
		switch code {
		case pair.base:
			seen[pair.quote] = struct{}{}
		case pair.quote:
			seen[pair.base] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
