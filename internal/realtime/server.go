package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"musicroom-core/internal/model"
	"musicroom-core/internal/notify"
)

// Authorizer decides whether an account may see events about a resource.
type Authorizer interface {
	CanView(ctx context.Context, accountID string, ref model.ResourceRef) bool
}

type Server struct {
	hub           *Hub
	rdb           *redis.Client
	allowedOrigin string
	upgrader      websocket.Upgrader
	log           *slog.Logger

	// AccountID extracts the authenticated caller from the upgrade request.
	// Nil means every socket is anonymous.
	AccountID func(*http.Request) string

	// Authorizer resolves resource audiences. Nil drops resource-scoped
	// events for everyone not named in the audience explicitly.
	Authorizer Authorizer
}

// NewServer builds the websocket endpoint. With allowedOrigin empty any
// origin may connect.
func NewServer(hub *Hub, rdb *redis.Client, allowedOrigin string) *Server {
	s := &Server{
		hub:           hub,
		rdb:           rdb,
		allowedOrigin: allowedOrigin,
		log:           slog.With("component", "realtime"),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.allowedOrigin == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	want, err := url.Parse(s.allowedOrigin)
	if err != nil {
		return false
	}
	got, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return got.Scheme == want.Scheme && got.Host == want.Host
}

// HandleWS upgrades the request and attaches the connection to the hub.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	if s.AccountID != nil {
		client.accountID = s.AccountID(r)
	}

	welcome := map[string]any{
		"type": "welcome",
		"now":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if client.accountID != "" {
		welcome["accountId"] = client.accountID
	}
	if b, err := json.Marshal(welcome); err == nil {
		client.send <- b
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// RunSubscriber routes every message published on the notify channel to
// the clients in its audience until ctx is done.
func (s *Server) RunSubscriber(ctx context.Context) error {
	sub := s.rdb.Subscribe(ctx, notify.Channel)
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if !s.dispatch(ctx, []byte(msg.Payload)) {
				return nil
			}
		}
	}
}

// outgoing is what a client receives. The audience never leaves the server.
type outgoing struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// dispatch delivers one published event. It reports false once the hub is
// gone or ctx is done.
func (s *Server) dispatch(ctx context.Context, raw []byte) bool {
	var ev struct {
		Type     string          `json:"type"`
		Payload  json.RawMessage `json:"payload"`
		Audience notify.Audience `json:"audience"`
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.log.Warn("drop malformed event", "error", err)
		return true
	}
	if len(ev.Payload) == 0 {
		ev.Payload = json.RawMessage("null")
	}
	msg, err := json.Marshal(outgoing{Type: ev.Type, Payload: ev.Payload})
	if err != nil {
		s.log.Warn("drop event", "type", ev.Type, "error", err)
		return true
	}

	if ev.Audience.Public {
		return s.hub.Broadcast(ctx, msg)
	}

	to := make(map[string]bool)
	for _, id := range ev.Audience.Accounts {
		if id != "" {
			to[id] = true
		}
	}
	if ref := ev.Audience.Resource; ref != nil && s.Authorizer != nil {
		connected, ok := s.hub.Accounts(ctx)
		if !ok {
			return false
		}
		for _, id := range connected {
			if !to[id] && s.Authorizer.CanView(ctx, id, *ref) {
				to[id] = true
			}
		}
	}
	if len(to) == 0 {
		return true
	}
	return s.hub.SendTo(ctx, msg, to)
}
