package feed

import (
	"github.com/eapache/channels"

	"github.com/quotepulse/quotepulse/models"
	"github.com/quotepulse/quotepulse/utils/log"
)

// Event is one quote delivered asynchronously by a live event feed (e.g. the
// FIX bridge).
type Event struct {
	ID    models.StockID
	Quote *models.Quote
}

// Ingestor decouples the live event feed from the synchronizer: producers
// push events into an unbounded channel and never block, Run drains the
// channel into Synchronizer.Add.
type Ingestor struct {
	ch   *channels.InfiniteChannel
	sync *Synchronizer
}

func NewIngestor(s *Synchronizer) *Ingestor {
	return &Ingestor{ch: channels.NewInfiniteChannel(), sync: s}
}

// Push enqueues an event.  Must not be called after Close.
func (i *Ingestor) Push(e Event) {
	i.ch.In() <- e
}

// Run drains events until Close; it is meant to run on its own goroutine.
// Events for stocks nobody subscribed to are dropped.
func (i *Ingestor) Run() {
	for v := range i.ch.Out() {
		e, ok := v.(Event)
		if !ok || e.Quote == nil {
			continue
		}
		if err := i.sync.Add(e.ID, e.Quote); err != nil {
			log.Debug("dropping pushed quote for unsubscribed stock %v", e.ID)
		}
	}
}

// Close stops the ingestor once the buffered events are drained.
func (i *Ingestor) Close() {
	i.ch.Close()
}
