package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"tradewatch/internal/event"
	"tradewatch/internal/logger"
)

// ConnState is the subscription's connection status, driven entirely by
// transport callbacks. It feeds a UI indicator only; reconnection is
// the transport's business, not ours.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Subscriber holds one logical subscription to the server's change
// channel over a websocket. Lifecycle is scoped to the owning view:
// Run on mount, Close on unmount, with the debouncer torn down on
// every exit path.
type Subscriber struct {
	url      string
	debounce *Debouncer
	onState  func(ConnState)
	dialer   *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	done bool
}

// NewSubscriber builds a subscriber feeding coalesced updates into the
// debouncer. onState may be nil.
func NewSubscriber(wsURL string, debounce *Debouncer, onState func(ConnState)) *Subscriber {
	return &Subscriber{
		url:      wsURL,
		debounce: debounce,
		onState:  onState,
		dialer:   websocket.DefaultDialer,
	}
}

func (s *Subscriber) setState(st ConnState) {
	if s.onState != nil {
		s.onState(st)
	}
}

// Run dials the server and consumes change events until the context is
// cancelled, Close is called, or the connection drops. The debouncer is
// always torn down before returning, so no refresh fires after the
// subscription ends.
func (s *Subscriber) Run(ctx context.Context) error {
	defer s.debounce.Teardown()
	defer s.setState(Disconnected)

	s.setState(Connecting)
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	s.setState(Connected)
	logger.Info(ctx, "Subscribed to change channel", "url", s.url)

	// Close the socket when the context goes away so ReadMessage
	// unblocks.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || s.closed() {
				return nil
			}
			return fmt.Errorf("read change event: %w", err)
		}

		var ev event.ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn(ctx, "Dropping malformed change event", "error", err)
			continue
		}
		if err := ev.Validate(); err != nil {
			logger.Warn(ctx, "Dropping invalid change event", "error", err)
			continue
		}
		s.debounce.Observe(ev)
	}
}

func (s *Subscriber) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscriber) Close() {
	s.mu.Lock()
	s.done = true
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.debounce.Teardown()
}
