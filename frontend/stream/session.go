// Package stream binds websocket sessions to a ticking quote source, live or
// playback, and drives the push loop that converts timer ticks into outbound
// messages.
package stream

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quotepulse/quotepulse/timer"
	"github.com/quotepulse/quotepulse/utils/log"
)

// State is the lifecycle of one subscription session.
type State int32

const (
	// AwaitingInit accepts exactly one init control message.
	AwaitingInit State = iota
	// Active pushes on every timer tick and applies control messages.
	Active
	// Closing tears the session down; timer first, transport second.
	Closing
	// Closed is terminal: cursors and resources are released.
	Closed
)

// Conn is the subset of *websocket.Conn a session drives.  Tests substitute
// fakes with controllable send latency.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// session couples one transport connection with one push timer.
type session struct {
	conn  Conn
	token string
	timer *timer.Timer

	state atomic.Int32

	// sendDone is the at-most-one-in-flight guard: a tick that finds the
	// previous send unfinished is dropped, not queued.
	sendDone atomic.Bool

	writeMu   sync.Mutex
	closeOnce sync.Once
	onClose   func()
	done      chan struct{}
}

func newSession(conn Conn, token string) *session {
	s := &session{conn: conn, token: token, done: make(chan struct{})}
	s.sendDone.Store(true)
	return s
}

func (s *session) setState(state State) { s.state.Store(int32(state)) }

func (s *session) currentState() State { return State(s.state.Load()) }

// push runs one push-loop tick: skip if the previous send is outstanding,
// compute the payload, skip if empty, otherwise send asynchronously and mark
// completion when the write returns.
func (s *session) push(payload func() (interface{}, bool)) {
	if s.currentState() != Active {
		return
	}
	if !s.sendDone.CompareAndSwap(true, false) {
		return
	}
	v, ok := payload()
	if !ok {
		s.sendDone.Store(true)
		return
	}
	buf, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to marshal outbound payload for token %s: %v", s.token, err)
		s.sendDone.Store(true)
		return
	}
	go func() {
		s.writeMu.Lock()
		err := s.conn.WriteMessage(websocket.TextMessage, buf)
		s.writeMu.Unlock()
		s.sendDone.Store(true)
		if err != nil {
			log.Debug("send to token %s failed, closing session: %v", s.token, err)
			s.close()
		}
	}()
}

// readLoop feeds inbound messages to handle until the peer closes or errors;
// session teardown follows either way.
func (s *session) readLoop(handle func(msg []byte)) {
	defer s.close()
	for {
		msgType, buf, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket receive for token %s ended: %v", s.token, err)
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		handle(buf)
	}
}

// close tears the session down exactly once, whichever side finishes first:
// the timer is closed before the transport.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.setState(Closing)
		if s.timer != nil {
			s.timer.Close()
		}
		if s.onClose != nil {
			s.onClose()
		}
		if err := s.conn.Close(); err != nil {
			log.Debug("closing websocket for token %s: %v", s.token, err)
		}
		s.setState(Closed)
		close(s.done)
	})
}

// drainAndClose waits briefly for an in-flight send to complete, then closes
// the session.  Used for the graceful close at playback end.
func (s *session) drainAndClose(timeout time.Duration) {
	go func() {
		deadline := time.Now().Add(timeout)
		for !s.sendDone.Load() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		s.close()
	}()
}
