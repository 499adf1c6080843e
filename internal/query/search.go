package query

import (
	"sync"

	"github.com/amirphl/marketboard/internal/market"
)

// Search keeps a filtered view of a pair list in sync with a search term.
// The view is recomputed whenever either input changes.
type Search struct {
	mu       sync.RWMutex
	term     string
	source   []market.TradingPair
	filtered []market.TradingPair
}

func NewSearch(source []market.TradingPair) *Search {
	return &Search{source: source, filtered: source}
}

func (s *Search) SetTerm(term string) []market.TradingPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term = term
	s.filtered = market.FilterPairs(s.source, term)
	return s.filtered
}

func (s *Search) SetSource(pairs []market.TradingPair) []market.TradingPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = pairs
	s.filtered = market.FilterPairs(pairs, s.term)
	return s.filtered
}

func (s *Search) Term() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.term
}

func (s *Search) Filtered() []market.TradingPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filtered
}
