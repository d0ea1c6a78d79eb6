// Package prices holds the live best bid/ask per symbol shared by the REST
// client and the book ticker stream.
package prices

import (
	"sort"
	"sync"
	"time"
)

// BidAsk is the latest known best bid and ask of one symbol.
type BidAsk struct {
	Symbol    string
	Bid       float64
	Ask       float64
	UpdatedAt time.Time
}

// Mid returns the midpoint, or zero when either side is unknown.
func (p BidAsk) Mid() float64 {
	if p.Bid == 0 || p.Ask == 0 {
		return 0
	}
	return (p.Bid + p.Ask) / 2
}

// Spread returns ask minus bid.
func (p BidAsk) Spread() float64 {
	return p.Ask - p.Bid
}

// Store maps symbol to BidAsk. Entries are created on first observation and
// never removed. Upsert is the only mutation.
type Store struct {
	mu      sync.RWMutex
	entries map[string]BidAsk
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]BidAsk),
		now:     time.Now,
	}
}

// Get returns the entry for symbol.
func (s *Store) Get(symbol string) (BidAsk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[symbol]
	return p, ok
}

// Upsert merges the given sides into the entry for symbol under one lock and
// returns the merged entry. A nil side keeps its previous value.
func (s *Store) Upsert(symbol string, bid, ask *float64) BidAsk {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[symbol]
	if !ok {
		p = BidAsk{Symbol: symbol}
	}
	if bid != nil {
		p.Bid = *bid
	}
	if ask != nil {
		p.Ask = *ask
	}
	p.UpdatedAt = s.now()
	s.entries[symbol] = p
	return p
}

// Set replaces both sides of symbol.
func (s *Store) Set(symbol string, bid, ask float64) BidAsk {
	return s.Upsert(symbol, &bid, &ask)
}

// Snapshot returns a copy of all entries.
func (s *Store) Snapshot() map[string]BidAsk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]BidAsk, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Symbols returns the known symbols in sorted order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	symbols := make([]string, 0, len(s.entries))
	for k := range s.entries {
		symbols = append(symbols, k)
	}
	sort.Strings(symbols)
	return symbols
}

// Len returns the number of known symbols.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
