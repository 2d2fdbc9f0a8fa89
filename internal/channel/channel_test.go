package channel

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/michalfoune/rizma-heygen/internal/protocol"
)

var upgrader = websocket.Upgrader{}

// wsServer is a minimal session endpoint: it records connections per
// session id and can push messages to the latest one.
type wsServer struct {
	t *testing.T

	mu       sync.Mutex
	conns    []*websocket.Conn
	sessions []string
	received []protocol.Message
}

func newWSServer(t *testing.T) (*wsServer, *httptest.Server) {
	s := &wsServer{t: t}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		parts := strings.Split(r.URL.Path, "/")
		sessionID := parts[len(parts)-1]
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.sessions = append(s.sessions, sessionID)
		s.mu.Unlock()
		go func() {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if msg, err := protocol.Decode(data); err == nil {
					s.mu.Lock()
					s.received = append(s.received, msg)
					s.mu.Unlock()
				}
			}
		}()
	}))
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *wsServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *wsServer) lastSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) == 0 {
		return ""
	}
	return s.sessions[len(s.sessions)-1]
}

func (s *wsServer) push(m protocol.Message) {
	s.mu.Lock()
	conn := s.conns[len(s.conns)-1]
	s.mu.Unlock()
	if err := conn.WriteJSON(m); err != nil {
		s.t.Errorf("push: %v", err)
	}
}

func (s *wsServer) dropLast() {
	s.mu.Lock()
	conn := s.conns[len(s.conns)-1]
	s.mu.Unlock()
	_ = conn.Close()
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestConnect_RoutesToSession(t *testing.T) {
	server, srv := newWSServer(t)
	c := New(wsURL(srv), nil, zerolog.Nop())
	defer c.Close()

	if err := c.Connect("abc-123"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !c.Connected() {
		t.Fatalf("expected connected state")
	}
	waitFor(t, time.Second, func() bool { return server.lastSession() == "abc-123" })
}

func TestConnect_SameSessionIsIdempotent(t *testing.T) {
	server, srv := newWSServer(t)
	c := New(wsURL(srv), nil, zerolog.Nop())
	defer c.Close()

	if err := c.Connect("abc"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Connect("abc"); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	// Give any accidental dial a moment to land.
	time.Sleep(50 * time.Millisecond)
	if server.connCount() != 1 {
		t.Fatalf("expected one connection, got %d", server.connCount())
	}
}

func TestConnect_WithoutSessionIDFails(t *testing.T) {
	_, srv := newWSServer(t)
	c := New(wsURL(srv), nil, zerolog.Nop())
	defer c.Close()
	if err := c.Connect(""); err == nil {
		t.Fatalf("expected error without a session id")
	}
}

func TestSend_WhileDisconnectedDropsMessage(t *testing.T) {
	_, srv := newWSServer(t)
	c := New(wsURL(srv), nil, zerolog.Nop())
	defer c.Close()

	err := c.Send(protocol.NewAvatarSpeak("hello"))
	if err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSend_DeliversToServer(t *testing.T) {
	server, srv := newWSServer(t)
	c := New(wsURL(srv), nil, zerolog.Nop())
	defer c.Close()

	if err := c.Connect("abc"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Send(protocol.NewControl(protocol.ActionEndSession, "")); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return len(server.received) == 1 && server.received[0].Kind == protocol.KindStateUpdate
	})
}

func TestReceive_DecodedMessagesReachHandler(t *testing.T) {
	server, srv := newWSServer(t)

	var mu sync.Mutex
	var got []protocol.Message
	c := New(wsURL(srv), func(m protocol.Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m)
	}, zerolog.Nop())
	defer c.Close()

	if err := c.Connect("abc"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	server.push(protocol.NewAvatarSpeak("welcome"))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0].Kind == protocol.KindAvatarSpeak
	})
}

func TestReconnect_ReusesStoredSession(t *testing.T) {
	server, srv := newWSServer(t)
	c := New(wsURL(srv), nil, zerolog.Nop(), WithBackoff(30*time.Millisecond))
	defer c.Close()

	if err := c.Connect("abc"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	server.dropLast()

	waitFor(t, 2*time.Second, func() bool { return server.connCount() == 2 })
	if server.lastSession() != "abc" {
		t.Fatalf("reconnect used session %q, want abc", server.lastSession())
	}
	waitFor(t, time.Second, c.Connected)
}

func TestDisconnect_CancelsReconnect(t *testing.T) {
	server, srv := newWSServer(t)
	c := New(wsURL(srv), nil, zerolog.Nop(), WithBackoff(30*time.Millisecond))
	defer c.Close()

	if err := c.Connect("abc"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	c.Disconnect()

	time.Sleep(150 * time.Millisecond)
	if server.connCount() != 1 {
		t.Fatalf("deliberate disconnect must not reconnect, got %d connections", server.connCount())
	}
	if c.SessionID() != "" {
		t.Fatalf("session id must be cleared on disconnect")
	}
}

func TestStatusCallback(t *testing.T) {
	server, srv := newWSServer(t)

	var mu sync.Mutex
	var states []bool
	c := New(wsURL(srv), nil, zerolog.Nop(),
		WithBackoff(time.Hour),
		WithStatusFunc(func(connected bool) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, connected)
		}))
	defer c.Close()

	if err := c.Connect("abc"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	server.dropLast()

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2 && states[0] == true && states[1] == false
	})
}
