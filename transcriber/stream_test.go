package transcriber

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn(messages ...string) *fakeConn {
	c := &fakeConn{closed: make(chan struct{})}
	for _, m := range messages {
		c.messages = append(c.messages, []byte(m))
	}
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if len(c.messages) > 0 {
		msg := c.messages[0]
		c.messages = c.messages[1:]
		c.mu.Unlock()
		return 1, msg, nil
	}
	c.mu.Unlock()
	<-c.closed
	return 0, nil, errors.New("connection closed")
}

func (c *fakeConn) WriteMessage(int, []byte) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func newTestStream(dial dialFunc) *Stream {
	s := NewStream("http://localhost:9/api/process", "secret")
	s.dial = dial
	s.delay = time.Millisecond
	return s
}

func TestStreamRequiresCredentials(t *testing.T) {
	s := NewStream("", "")
	if err := s.Open(context.Background()); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestStreamURL(t *testing.T) {
	cases := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "https://api.example.com/process", want: "wss://api.example.com/process/stream"},
		{in: "http://localhost:8000", want: "ws://localhost:8000/stream"},
		{in: "wss://api.example.com", want: "wss://api.example.com/stream"},
		{in: "ftp://api.example.com", wantErr: true},
	}
	for _, tc := range cases {
		got, err := streamURL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("streamURL(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("streamURL(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("streamURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	conn := newFakeConn(`{"type":"status","message":"queue ok"}`)
	var gotKey string
	s := newTestStream(func(_ context.Context, _ string, header http.Header) (streamConn, error) {
		gotKey = header.Get("X-API-Key")
		return conn, nil
	})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	want := []StreamEvent{
		{Type: "connected"},
		{Type: "status", Message: "queue ok"},
	}
	for _, w := range want {
		select {
		case got := <-s.Events():
			if got != w {
				t.Errorf("event = %+v, want %+v", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %+v", w)
		}
	}
	if gotKey != "secret" {
		t.Errorf("X-API-Key = %q", gotKey)
	}
}

func TestStreamReconnectsAfterDrop(t *testing.T) {
	s := newTestStream(func(context.Context, string, http.Header) (streamConn, error) {
		c := newFakeConn()
		c.Close() // every read fails straight away
		return c, nil
	})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	deadline := time.Now().Add(time.Second)
	for s.Dials() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("dials = %d, want >= 3", s.Dials())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStreamRetriesFailedDial(t *testing.T) {
	s := newTestStream(func(context.Context, string, http.Header) (streamConn, error) {
		return nil, errors.New("refused")
	})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	deadline := time.Now().Add(time.Second)
	for s.Dials() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("dials = %d, want >= 3", s.Dials())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStreamCloseUnblocksIdleRead(t *testing.T) {
	// No pending messages, so the read loop is parked in ReadMessage
	// when Close runs. Close must shut the connection to unblock it.
	conn := newFakeConn()
	s := newTestStream(func(context.Context, string, http.Header) (streamConn, error) {
		return conn, nil
	})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	select {
	case got := <-s.Events():
		if got.Type != "connected" {
			t.Fatalf("event = %+v, want connected", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connected event")
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while the read loop was idle")
	}
}

func TestStreamCloseStopsReconnecting(t *testing.T) {
	s := newTestStream(func(context.Context, string, http.Header) (streamConn, error) {
		return nil, errors.New("refused")
	})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()

	dials := s.Dials()
	time.Sleep(20 * time.Millisecond)
	if s.Dials() != dials {
		t.Errorf("dials kept growing after Close: %d -> %d", dials, s.Dials())
	}
}

func TestStreamCloseBeforeOpen(t *testing.T) {
	s := NewStream("http://localhost:9", "s")
	s.Close() // must not panic or block
}
