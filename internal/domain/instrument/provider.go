package instrument

import (
	"fmt"
	"sync"

	"github.com/trading-account-engine/internal/domain/shared"
)

// Provider resolves instruments by id
type Provider interface {
	Find(id shared.InstrumentID) (Instrument, error)
}

// MemoryProvider is a Provider backed by a map, safe for concurrent reads
type MemoryProvider struct {
	mu          sync.RWMutex
	instruments map[shared.InstrumentID]Instrument
}

// NewMemoryProvider builds a provider from a list of instruments
func NewMemoryProvider(instruments ...Instrument) *MemoryProvider {
	p := &MemoryProvider{instruments: make(map[shared.InstrumentID]Instrument, len(instruments))}
	for _, inst := range instruments {
		p.instruments[inst.ID()] = inst
	}
	return p
}

// NewMemoryProviderFromDefinitions builds every definition, failing on the first bad one
func NewMemoryProviderFromDefinitions(defs []Definition) (*MemoryProvider, error) {
	p := NewMemoryProvider()
	for _, d := range defs {
		spec, err := d.Build()
		if err != nil {
			return nil, err
		}
		p.Add(spec)
	}
	return p, nil
}

// Add registers or replaces an instrument
func (p *MemoryProvider) Add(inst Instrument) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instruments[inst.ID()] = inst
}

func (p *MemoryProvider) Find(id shared.InstrumentID) (Instrument, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	inst, ok := p.instruments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inst, nil
}

// Count returns the number of registered instruments
func (p *MemoryProvider) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.instruments)
}
