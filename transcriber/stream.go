package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"livecap/log"
)

// ReconnectDelay is the fixed backoff between stream reconnect attempts.
const ReconnectDelay = 3 * time.Second

// StreamEvent is one push from the proxied backend's status channel:
// provider health, queue pressure, and operator notices.
type StreamEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type streamConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type dialFunc func(ctx context.Context, wsURL string, header http.Header) (streamConn, error)

func gorillaDial(ctx context.Context, wsURL string, header http.Header) (streamConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Stream keeps a persistent connection to the proxied backend open while
// a session is enabled. The connection only carries status pushes; chunks
// still go over the HTTP proxy path. An unexpected close is retried with
// a fixed delay until Close is called.
type Stream struct {
	endpoint string
	secret   string
	dial     dialFunc
	delay    time.Duration

	events chan StreamEvent
	done   chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	conn   streamConn
	dials  int
}

func NewStream(endpoint, secret string) *Stream {
	return &Stream{
		endpoint: endpoint,
		secret:   secret,
		dial:     gorillaDial,
		delay:    ReconnectDelay,
		events:   make(chan StreamEvent, 16),
		done:     make(chan struct{}),
	}
}

// streamURL derives the websocket endpoint from the HTTP backend endpoint.
func streamURL(endpoint string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", fmt.Errorf("invalid backend endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid backend endpoint scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/stream"
	return u.String(), nil
}

// Open starts the connect loop. It returns immediately; connection state
// is reported through Events.
func (s *Stream) Open(ctx context.Context) error {
	if s.endpoint == "" || s.secret == "" {
		return ErrMissingCredentials
	}
	wsURL, err := streamURL(s.endpoint)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx, wsURL)
	return nil
}

func (s *Stream) run(ctx context.Context, wsURL string) {
	defer close(s.done)

	header := http.Header{}
	header.Set("X-API-Key", s.secret)

	for {
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		s.dials++
		s.mu.Unlock()

		conn, err := s.dial(ctx, wsURL, header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warnf("backend stream connect failed: %v", err)
			if !sleepCtx(ctx, s.delay) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		s.emit(StreamEvent{Type: "connected"})
		err = s.readLoop(ctx, conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil && !isExpectedClose(err) {
			log.Warnf("backend stream dropped: %v", err)
		}
		s.emit(StreamEvent{Type: "disconnected"})
		if !sleepCtx(ctx, s.delay) {
			return
		}
	}
}

func (s *Stream) readLoop(ctx context.Context, conn streamConn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var event StreamEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Warnf("backend stream sent malformed payload: %v", err)
			continue
		}
		if event.Type == "" {
			continue
		}
		s.emit(event)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *Stream) emit(event StreamEvent) {
	select {
	case s.events <- event:
	default:
		// A stalled consumer drops status pushes rather than blocking
		// the read loop.
	}
}

// Events delivers backend pushes plus synthetic connected/disconnected
// markers.
func (s *Stream) Events() <-chan StreamEvent {
	return s.events
}

// Close stops reconnecting and tears the connection down. Safe to call
// before Open; safe to call twice.
func (s *Stream) Close() {
	s.mu.Lock()
	cancel := s.cancel
	conn := s.conn
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	// Cancelling the dial context does not interrupt an established
	// connection; closing it is what unblocks the read loop.
	if conn != nil {
		conn.Close()
	}
	<-s.done
}

// Dials reports how many connection attempts have been made.
func (s *Stream) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func isExpectedClose(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
