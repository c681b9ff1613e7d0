package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quotepulse/quotepulse/feed"
	"github.com/quotepulse/quotepulse/models"
	"github.com/quotepulse/quotepulse/playback"
	"github.com/quotepulse/quotepulse/timer"
	"github.com/quotepulse/quotepulse/utils"
	"github.com/quotepulse/quotepulse/utils/log"
)

const drainTimeout = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// errorMessage reports a client-visible error over the socket without
// closing the session.
type errorMessage struct {
	Error string `json:"error"`
}

// envelope tags a playback batch with the simulation's virtual time so the
// client can render a synchronized timeline.
type envelope struct {
	Time   time.Time               `json:"time"`
	Quotes []*models.RealtimePrice `json:"quotes"`
}

// Handlers owns the websocket endpoints and their collaborators.
type Handlers struct {
	Sync     *feed.Synchronizer
	Playback *playback.Manager
	Tokens   *utils.TokenRegistry
}

// Register wires the endpoints into the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws/stock/list", h.StockList)
	mux.HandleFunc("/ws/stock", h.StockTrend)
	mux.HandleFunc("/ws/playback", h.PlaybackSession)
}

// StockList streams the cross-stock "latest snapshot" view.  The client
// sends an init message with the ids to track; the push timer re-reads the
// token's refresh interval before every fire.
func (h *Handlers) StockList(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade list stream socket: %v", err)
		return
	}

	sess := newSession(ws, token)
	sess.onClose = func() { h.Sync.RemoveToken(token) }
	sess.timer = timer.NewDynamic(func(int) time.Duration {
		return h.Tokens.Get(token).ListInterval
	}, func(int) {
		sess.push(func() (interface{}, bool) { return h.listPayload(token) })
	})

	// a live source initialized by an earlier session serves this one too
	if h.Sync.Initialized() {
		sess.setState(Active)
		sess.timer.Start()
	}

	sess.readLoop(func(msg []byte) {
		ctl, err := parseControl(msg)
		if err != nil {
			log.Debug("discarding malformed control message from token %s: %v", token, err)
			return
		}
		if ctl.kind != controlInit {
			return
		}
		if err := h.Sync.Initialize(ctl.ids); err != nil {
			log.Error("live initialization for token %s failed: %v", token, err)
			return
		}
		sess.setState(Active)
		sess.timer.Start()
	})
}

// StockTrend streams the single-stock chronological delivery view.
func (h *Handlers) StockTrend(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	rawID := r.URL.Query().Get("id")
	if token == "" || rawID == "" {
		http.Error(w, "missing token or id", http.StatusBadRequest)
		return
	}
	id, err := models.ParseStockID(rawID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade trend stream socket: %v", err)
		return
	}

	sess := newSession(ws, token)
	sess.onClose = func() { h.Sync.RemoveToken(token) }
	sess.timer = timer.NewDynamic(func(int) time.Duration {
		return h.Tokens.Get(token).TrendInterval
	}, func(int) {
		sess.push(func() (interface{}, bool) { return h.trendPayload(token, id) })
	})

	if h.Sync.Initialized() {
		sess.setState(Active)
		sess.timer.Start()
	}

	sess.readLoop(func(msg []byte) {
		ctl, err := parseControl(msg)
		if err != nil {
			log.Debug("discarding malformed control message from token %s: %v", token, err)
			return
		}
		if ctl.kind != controlInit {
			return
		}
		if err := h.Sync.Initialize(ctl.ids); err != nil {
			log.Error("live initialization for token %s failed: %v", token, err)
			return
		}
		sess.setState(Active)
		sess.timer.Start()
	})
}

// PlaybackSession replays a historical window.  begin and end come from the
// query; the stock list arrives in the init message, after which the
// simulation drives the pushes until it finishes or the client leaves.
func (h *Handlers) PlaybackSession(w http.ResponseWriter, r *http.Request) {
	if h.Playback == nil {
		http.Error(w, "playback is disabled", http.StatusServiceUnavailable)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}
	begin, err := parseWindowTime(r.URL.Query().Get("begin"))
	if err != nil {
		http.Error(w, "invalid begin: "+err.Error(), http.StatusBadRequest)
		return
	}
	end, err := parseWindowTime(r.URL.Query().Get("end"))
	if err != nil {
		http.Error(w, "invalid end: "+err.Error(), http.StatusBadRequest)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade playback stream socket: %v", err)
		return
	}

	sess := newSession(ws, token)
	var sim *playback.Simulation
	sess.onClose = func() {
		if sim != nil {
			sim.Close()
		}
		h.Playback.Remove(token)
	}

	sess.readLoop(func(msg []byte) {
		ctl, err := parseControl(msg)
		if err != nil {
			log.Debug("discarding malformed control message from token %s: %v", token, err)
			return
		}
		switch ctl.kind {
		case controlInit:
			if sim != nil {
				return
			}
			created, err := h.Playback.Initialize(token, ctl.ids, begin, end)
			if err != nil {
				log.Error("playback initialization for token %s failed: %v", token, err)
				return
			}
			sim = created
			sim.OnFinished(func() {
				log.Info("playback for token %s finished", token)
			})
			sess.timer = timer.NewDynamic(func(int) time.Duration {
				return h.Tokens.Get(token).PlaybackInterval
			}, func(int) {
				sim.Step()
				sess.push(func() (interface{}, bool) { return h.playbackPayload(token, sim) })
				if sim.Finished() {
					sess.drainAndClose(drainTimeout)
				}
			})
			sim.Bind(sess.timer)
			sess.setState(Active)
			sim.Start(true)
			if sim.Finished() {
				// empty window: deliver the final (empty) envelope and leave
				sess.push(func() (interface{}, bool) { return h.playbackPayload(token, sim) })
				sess.drainAndClose(drainTimeout)
			}
		case controlCtrl:
			if sim == nil {
				return
			}
			switch ctl.cmd {
			case ctrlStop:
				sim.Stop()
			case ctrlResume:
				sim.Start(true)
			}
		}
	})
}

func (h *Handlers) listPayload(token string) (interface{}, bool) {
	prices := h.Sync.GetList(token)
	if len(prices) == 0 {
		return nil, false
	}
	settings := h.Tokens.Get(token)
	for _, p := range prices {
		p.Pinned = settings.IsPinned(p.ID)
	}
	return prices, true
}

func (h *Handlers) trendPayload(token string, id models.StockID) (interface{}, bool) {
	prices, err := h.Sync.GetTrend(token, id)
	if err != nil {
		return errorMessage{Error: err.Error()}, true
	}
	if len(prices) == 0 {
		return nil, false
	}
	return prices, true
}

func (h *Handlers) playbackPayload(token string, sim *playback.Simulation) (interface{}, bool) {
	var quotes []*models.RealtimePrice
	for _, id := range sim.IDs() {
		points, err := h.Playback.GetTrend(token, id)
		if err != nil {
			continue
		}
		quotes = append(quotes, points...)
	}
	if len(quotes) == 0 && !sim.Finished() {
		return nil, false
	}
	return envelope{Time: sim.Now(), Quotes: quotes}, true
}

// parseWindowTime accepts RFC 3339 or a bare date.
func parseWindowTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}
