// Package feed keeps an in-memory mirror of current quotes for the
// subscribed stocks and serves incremental per-subscriber views of it.
package feed

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/quotepulse/quotepulse/models"
)

// ErrUnknownStock is returned when a stock id was never registered with the
// store.
var ErrUnknownStock = errors.New("stock is not part of the current subscription set")

// entry is the per-stock history: baseline holds everything synchronized so
// far, incoming buffers quotes pushed by the external event feed since the
// last polling cycle.
type entry struct {
	baseline []*models.Quote
	incoming []*models.Quote
}

// Store is the quote store shared by the polling cycle (its owner), the
// event-feed ingestor (a second writer of incoming) and the delivery paths.
type Store struct {
	mu      sync.RWMutex
	entries map[models.StockID]*entry
}

func NewStore() *Store {
	return &Store{entries: map[models.StockID]*entry{}}
}

// Register creates an empty entry for id.  Registering an existing id leaves
// it untouched; the return value reports whether the id was new.
func (s *Store) Register(id models.StockID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return false
	}
	s.entries[id] = &entry{}
	return true
}

// Contains reports whether id is registered.
func (s *Store) Contains(id models.StockID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// IDs returns a snapshot of all registered ids.
func (s *Store) IDs() []models.StockID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]models.StockID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// AppendBaseline appends a quote to the baseline unconditionally; used to
// seed the history at initialization.
func (s *Store) AppendBaseline(id models.StockID, q *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrUnknownStock
	}
	e.baseline = append(e.baseline, q)
	return nil
}

// AddIncoming buffers an externally pushed quote until the next polling
// cycle reconciles it.
func (s *Store) AddIncoming(id models.StockID, q *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrUnknownStock
	}
	e.incoming = append(e.incoming, q)
	return nil
}

// Reconcile merges one polled quote: it is appended to the baseline only
// when strictly newer than the baseline tail, and the incoming buffer is
// cleared either way because the poll supersedes older pushed events.
func (s *Store) Reconcile(id models.StockID, q *models.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	if n := len(e.baseline); n == 0 || q.TradingTime.After(e.baseline[n-1].TradingTime) {
		e.baseline = append(e.baseline, q)
	}
	e.incoming = nil
}

// Latest returns the freshest known quote for id: the incoming tail if the
// buffer is non-empty, the baseline tail otherwise.
func (s *Store) Latest(id models.StockID) *models.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	if n := len(e.incoming); n > 0 {
		return e.incoming[n-1]
	}
	if n := len(e.baseline); n > 0 {
		return e.baseline[n-1]
	}
	return nil
}

// Baseline returns a copy of the baseline history for id.
func (s *Store) Baseline(id models.StockID) ([]*models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrUnknownStock
	}
	return append([]*models.Quote(nil), e.baseline...), nil
}

// Since returns every quote of baseline and incoming whose trading time is
// at or after t, oldest first.
func (s *Store) Since(id models.StockID, t time.Time) ([]*models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrUnknownStock
	}
	var result []*models.Quote
	for _, q := range e.baseline {
		if !q.TradingTime.Before(t) {
			result = append(result, q)
		}
	}
	for _, q := range e.incoming {
		if !q.TradingTime.Before(t) {
			result = append(result, q)
		}
	}
	return result, nil
}
