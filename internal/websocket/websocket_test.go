package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository/memory"
	"github.com/aamsco/awardswithfriends/internal/testutil"
	"github.com/aamsco/awardswithfriends/internal/views"
)

// fakeView is a minimal Watchable holding a counter
type fakeView struct {
	mu       sync.Mutex
	n        int
	watchers map[int]func(int)
	nextID   int
	closed   bool
}

func newFakeView() *fakeView {
	return &fakeView{watchers: make(map[int]func(int))}
}

func (v *fakeView) Watch(fn func(int)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.watchers[id] = fn
	n := v.n
	v.mu.Unlock()
	fn(n)
	return func() {
		v.mu.Lock()
		delete(v.watchers, id)
		v.mu.Unlock()
	}
}

func (v *fakeView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

func (v *fakeView) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *fakeView) incr() {
	v.mu.Lock()
	v.n++
	n := v.n
	watchers := make([]func(int), 0, len(v.watchers))
	for _, w := range v.watchers {
		watchers = append(watchers, w)
	}
	v.mu.Unlock()
	for _, w := range watchers {
		w(n)
	}
}

func counterSession(v *fakeView) Session {
	return Bind[int]("counter", v, map[string]ActionFunc{
		"incr": func(context.Context, models.WSAction) error {
			v.incr()
			return nil
		},
		"fail": func(context.Context, models.WSAction) error {
			return errors.New("nope")
		},
	})
}

// startHub runs a hub behind a test server that binds every connection to
// the session made by mk
func startHub(t *testing.T, mk func() Session) (*Hub, string) {
	t.Helper()
	hub := New(logger.NewDiscard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWs(w, r, "u1", mk())
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil reads messages until one satisfies pred
func readUntil(t *testing.T, conn *websocket.Conn, pred func(received) bool) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg received
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if pred(msg) {
			return msg
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_CreatesHubWithDependencies(t *testing.T) {
	hub := New(logger.NewDiscard(), nil)

	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("expected hub channels to be initialized")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected no clients, got %d", hub.ClientCount())
	}
}

func TestHub_BroadcastMessage_NoClients(t *testing.T) {
	hub, _ := startHub(t, func() Session { return counterSession(newFakeView()) })

	done := make(chan bool)
	go func() {
		hub.BroadcastMessage("test", map[string]string{"key": "value"})
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("BroadcastMessage blocked with no clients")
	}
}

func TestHub_BroadcastMessage_AfterStop(t *testing.T) {
	hub := New(logger.NewDiscard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan bool)
	go func() {
		hub.BroadcastMessage("test", nil)
		done <- true
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("BroadcastMessage blocked on a stopped hub")
	}
}

func TestServeWs_PushesInitialAndLaterState(t *testing.T) {
	view := newFakeView()
	_, url := startHub(t, func() Session { return counterSession(view) })
	conn := dial(t, url)

	msg := readUntil(t, conn, func(m received) bool { return m.Type == "counter_state" })
	if string(msg.Payload) != "0" {
		t.Errorf("expected initial state 0, got %s", msg.Payload)
	}

	view.incr()
	msg = readUntil(t, conn, func(m received) bool { return m.Type == "counter_state" })
	if string(msg.Payload) != "1" {
		t.Errorf("expected state 1, got %s", msg.Payload)
	}
}

func TestServeWs_DispatchesActions(t *testing.T) {
	view := newFakeView()
	_, url := startHub(t, func() Session { return counterSession(view) })
	conn := dial(t, url)
	readUntil(t, conn, func(m received) bool { return m.Type == "counter_state" })

	if err := conn.WriteJSON(models.WSAction{Action: "incr"}); err != nil {
		t.Fatal(err)
	}
	// The state change is pushed while the action runs, the ack after it
	// returns; accept either order.
	var acked, updated bool
	readUntil(t, conn, func(m received) bool {
		switch {
		case m.Type == "ack":
			acked = true
		case m.Type == "counter_state" && string(m.Payload) == "1":
			updated = true
		}
		return acked && updated
	})

	if err := conn.WriteJSON(models.WSAction{Action: "fail"}); err != nil {
		t.Fatal(err)
	}
	msg := readUntil(t, conn, func(m received) bool { return m.Type == "error" })
	if !strings.Contains(string(msg.Payload), "nope") {
		t.Errorf("expected error payload, got %s", msg.Payload)
	}

	if err := conn.WriteJSON(models.WSAction{Action: "dance"}); err != nil {
		t.Fatal(err)
	}
	msg = readUntil(t, conn, func(m received) bool { return m.Type == "error" })
	if !strings.Contains(string(msg.Payload), "unknown action") {
		t.Errorf("expected unknown action error, got %s", msg.Payload)
	}
}

func TestServeWs_MalformedMessage(t *testing.T) {
	_, url := startHub(t, func() Session { return counterSession(newFakeView()) })
	conn := dial(t, url)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(m received) bool { return m.Type == "error" })
}

func TestServeWs_DisconnectClosesView(t *testing.T) {
	view := newFakeView()
	hub, url := startHub(t, func() Session { return counterSession(view) })
	conn := dial(t, url)
	readUntil(t, conn, func(m received) bool { return m.Type == "counter_state" })
	waitFor(t, func() bool { return hub.ClientCount() == 1 }, "client never registered")

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 }, "client never unregistered")
	waitFor(t, view.isClosed, "view not closed on disconnect")
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub, url := startHub(t, func() Session { return counterSession(newFakeView()) })
	a := dial(t, url)
	b := dial(t, url)
	waitFor(t, func() bool { return hub.ClientCount() == 2 }, "clients never registered")

	hub.BroadcastMessage("shutdown", nil)
	readUntil(t, a, func(m received) bool { return m.Type == "shutdown" })
	readUntil(t, b, func(m received) bool { return m.Type == "shutdown" })
}

func TestHub_StopClosesEveryView(t *testing.T) {
	view := newFakeView()
	hub := New(logger.NewDiscard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWs(w, r, "u1", counterSession(view))
	}))
	defer srv.Close()

	dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	waitFor(t, func() bool { return hub.ClientCount() == 1 }, "client never registered")

	cancel()
	waitFor(t, view.isClosed, "view not closed on hub stop")
}

func TestLeaderboardSession_EndToEnd(t *testing.T) {
	store := memory.New()
	fx := testutil.NewFixtures(3)
	store.PutCompetition(fx.Competition("c1", "owner", "2025", ""))

	_, url := startHub(t, func() Session {
		v := views.NewLeaderboardView(logger.NewDiscard(), store)
		v.Initialize(views.CompetitionScope{UserID: "u1", CompetitionID: "c1"})
		return LeaderboardSession(v)
	})
	conn := dial(t, url)

	store.PutParticipant("c1", fx.Participant("u1", 7))
	msg := readUntil(t, conn, func(m received) bool {
		if m.Type != "leaderboard_state" {
			return false
		}
		var s views.LeaderboardState
		return json.Unmarshal(m.Payload, &s) == nil && len(s.Participants) == 1
	})

	var s views.LeaderboardState
	if err := json.Unmarshal(msg.Payload, &s); err != nil {
		t.Fatal(err)
	}
	if s.Participants[0].Score != 7 {
		t.Errorf("expected score 7, got %d", s.Participants[0].Score)
	}
}

func TestProfileSession_RequiresEnabled(t *testing.T) {
	v := views.NewProfileView(logger.NewDiscard(), nil)
	s := ProfileSession(v)
	if s.Name() != "profile" {
		t.Errorf("expected name profile, got %s", s.Name())
	}
	if err := s.Handle(context.Background(), models.WSAction{Action: "set_notifications"}); err == nil {
		t.Error("expected error without enabled")
	}
}

func TestCategorySession_Actions(t *testing.T) {
	v := views.NewCategoryView(logger.NewDiscard(), nil, nil, nil, nil)
	s := CategorySession(v)

	if err := s.Handle(context.Background(), models.WSAction{Action: "select_nominee", NomineeID: "n1"}); err != nil {
		t.Errorf("select_nominee: %v", err)
	}
	if err := s.Handle(context.Background(), models.WSAction{Action: "cast_vote"}); !errors.Is(err, views.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if err := s.Handle(context.Background(), models.WSAction{Action: "clear_error"}); err != nil {
		t.Errorf("clear_error: %v", err)
	}
}
