package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"musicroom-core/internal/model"
	"musicroom-core/internal/notify"
)

func dialServer(t *testing.T, s *Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	return dial(t, s, origin, "")
}

func dial(t *testing.T, s *Server, origin, account string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(s.HandleWS))
	t.Cleanup(server.Close)

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	if account != "" {
		url += "?as=" + account
	}
	return websocket.DefaultDialer.Dial(url, header)
}

// dialAs connects as account ("" for anonymous) and consumes the welcome
// message, which also means the client is registered.
func dialAs(t *testing.T, s *Server, account string) *websocket.Conn {
	t.Helper()
	ws, _, err := dial(t, s, "", account)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	_ = ws.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := ws.ReadMessage(); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	return ws
}

// members lets the listed accounts view every resource.
type members map[string]bool

func (m members) CanView(_ context.Context, accountID string, _ model.ResourceRef) bool {
	return m[accountID]
}

func expectSilence(t *testing.T, name string, ws *websocket.Conn) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, msg, err := ws.ReadMessage(); err == nil {
		t.Errorf("%s received %s", name, msg)
	}
}

func readEvent(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestServer_HandleWS(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	s := NewServer(hub, nil, "http://localhost:3000")
	s.AccountID = func(r *http.Request) string { return r.URL.Query().Get("as") }

	t.Run("welcome message", func(t *testing.T) {
		ws, _, err := dialServer(t, s, "http://localhost:3000")
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer ws.Close()

		_ = ws.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var welcome map[string]any
		if err := json.Unmarshal(msg, &welcome); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if welcome["type"] != "welcome" {
			t.Errorf("expected welcome, got %v", welcome["type"])
		}
	})

	t.Run("forbidden origin", func(t *testing.T) {
		_, resp, err := dialServer(t, s, "http://evil.com")
		if err == nil {
			t.Fatal("expected dial error")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %v", resp)
		}
	})
}

func TestServer_DispatchScopesPrivateEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	s := NewServer(hub, nil, "")
	s.AccountID = func(r *http.Request) string { return r.URL.Query().Get("as") }
	s.Authorizer = members{"acc-member": true}

	member := dialAs(t, s, "acc-member")
	outsider := dialAs(t, s, "acc-outsider")
	invitee := dialAs(t, s, "acc-invitee")
	anonymous := dialAs(t, s, "")

	send := func(srv *Server, ev notify.Event) {
		t.Helper()
		b, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if !srv.dispatch(ctx, b) {
			t.Fatal("dispatch refused")
		}
	}
	// a public marker after each case: whoever was skipped sees it first
	marker := func() { send(s, notify.Event{Type: "marker", Audience: notify.Audience{Public: true}}) }
	expect := func(name string, ws *websocket.Conn, types ...string) {
		t.Helper()
		for _, want := range types {
			got := readEvent(t, ws)
			if got["type"] != want {
				t.Errorf("%s: expected %s, got %v", name, want, got["type"])
			}
			if _, leaked := got["audience"]; leaked {
				t.Errorf("%s: audience sent to client", name)
			}
		}
	}
	ref := model.ResourceRef{Kind: model.KindEvent, ID: "ev-private"}

	t.Run("resource audience", func(t *testing.T) {
		send(s, notify.Event{
			Type:     "track.added",
			Payload:  map[string]any{"title": "secret song"},
			Audience: notify.ToResource(ref),
		})
		marker()

		expect("member", member, "track.added", "marker")
		expect("outsider", outsider, "marker")
		expect("invitee", invitee, "marker")
		expect("anonymous", anonymous, "marker")
	})

	t.Run("account audience", func(t *testing.T) {
		send(s, notify.Event{
			Type:     "invitation.created",
			Payload:  map[string]any{"inviteeId": "acc-invitee"},
			Audience: notify.ToAccounts("acc-invitee"),
		})
		marker()

		expect("invitee", invitee, "invitation.created", "marker")
		expect("member", member, "marker")
		expect("outsider", outsider, "marker")
		expect("anonymous", anonymous, "marker")
	})

	t.Run("no authorizer and no audience reach nobody", func(t *testing.T) {
		bare := NewServer(hub, nil, "")
		send(bare, notify.Event{Type: "track.added", Audience: notify.ToResource(ref)})
		send(bare, notify.Event{Type: "track.added"})
		if !bare.dispatch(ctx, []byte("not json")) {
			t.Fatal("dispatch refused")
		}
		marker()

		for name, ws := range map[string]*websocket.Conn{
			"member": member, "outsider": outsider, "invitee": invitee, "anonymous": anonymous,
		} {
			expect(name, ws, "marker")
		}
	})
}

func TestServer_CheckOrigin(t *testing.T) {
	tests := []struct {
		allowed string
		origin  string
		want    bool
	}{
		{"", "http://anything", true},
		{"http://localhost:3000", "", true},
		{"http://localhost:3000", "http://localhost:3000", true},
		{"http://localhost:3000", "https://localhost:3000", false},
		{"http://localhost:3000", "http://localhost:3001", false},
	}
	for _, tt := range tests {
		s := NewServer(nil, nil, tt.allowed)
		r := httptest.NewRequest("GET", "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := s.checkOrigin(r); got != tt.want {
			t.Errorf("allowed=%q origin=%q: got %v, want %v", tt.allowed, tt.origin, got, tt.want)
		}
	}
}

func TestIntegration_PublishReachesSocket(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	s := NewServer(hub, rdb, "")
	s.AccountID = func(r *http.Request) string { return r.URL.Query().Get("as") }
	s.Authorizer = members{"acc-member": true}
	subErr := make(chan error, 1)
	go func() { subErr <- s.RunSubscriber(ctx) }()

	ws := dialAs(t, s, "acc-member")
	anonymous := dialAs(t, s, "")
	ref := model.ResourceRef{Kind: model.KindEvent, ID: "ev-1"}

	// the subscription may not be live yet, so publish until something arrives
	pub := notify.NewRedisPublisher(rdb)
	got := make(chan []byte, 1)
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	go func() {
		_, msg, err := ws.ReadMessage()
		if err == nil {
			got <- msg
		}
	}()

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case msg := <-got:
			var ev notify.Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if ev.Type != "track.voted" {
				t.Errorf("expected track.voted, got %s", ev.Type)
			}
			expectSilence(t, "anonymous", anonymous)
			cancel()
			select {
			case err := <-subErr:
				if err != nil {
					t.Errorf("subscriber: %v", err)
				}
			case <-time.After(time.Second):
				t.Error("subscriber did not stop")
			}
			return
		case <-tick.C:
			pub.Publish(context.Background(), notify.Event{
				Type:     "track.voted",
				Payload:  map[string]any{"trackId": "t1"},
				Audience: notify.ToResource(ref),
			})
		case <-deadline:
			t.Fatal("no message received")
		}
	}
}
