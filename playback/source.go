// Package playback replays historical intraday data on a shared virtual
// clock, skipping non-trading intervals.
package playback

import (
	"time"

	"github.com/quotepulse/quotepulse/models"
)

// Source is the playback cursor of one stock into its pre-fetched,
// time-ordered history.  cursor == -1 means the replay has not reached the
// first quote yet.  The cursor only ever moves forward, and never past the
// newest quote whose timestamp does not exceed the simulation's virtual now.
//
// Source is not safe for concurrent use on its own; the owning Simulation
// serializes access.
type Source struct {
	cursor int
	quotes []*models.RealtimePrice
}

// NewSource wraps a time-ordered history.
func NewSource(quotes []*models.RealtimePrice) *Source {
	return &Source{cursor: -1, quotes: quotes}
}

// ID returns the stock id of the history, or the zero id for an empty one.
func (s *Source) ID() models.StockID {
	if len(s.quotes) == 0 {
		return models.StockID{}
	}
	return s.quotes[0].ID
}

// Current returns the quote under the cursor, or nil before the first
// advance.
func (s *Source) Current() *models.RealtimePrice {
	if s.cursor < 0 {
		return nil
	}
	return s.quotes[s.cursor]
}

// Cursor returns the current cursor position.
func (s *Source) Cursor() int { return s.cursor }

// Len returns the history length.
func (s *Source) Len() int { return len(s.quotes) }

func (s *Source) next() *models.RealtimePrice {
	if s.cursor+1 >= len(s.quotes) {
		return nil
	}
	return s.quotes[s.cursor+1]
}

func (s *Source) reset() { s.cursor = -1 }

// advance moves the cursor forward while the next quote's timestamp is still
// within now.
func (s *Source) advance(now time.Time) {
	for next := s.next(); next != nil && !next.Time.After(now); next = s.next() {
		s.cursor++
	}
}

// since returns the quotes delivered so far starting at index from, together
// with the index to resume at.
func (s *Source) since(from int) ([]*models.RealtimePrice, int) {
	if from < 0 {
		from = 0
	}
	if from > s.cursor {
		return nil, from
	}
	return s.quotes[from : s.cursor+1], s.cursor + 1
}
