// Package realtime fans out published domain events to websocket clients.
package realtime

import "context"

// delivery is one outgoing message. Unless public it only reaches clients
// whose account is in to. Anonymous clients only see public messages.
type delivery struct {
	msg    []byte
	public bool
	to     map[string]bool
}

// Hub owns the set of connected clients and routes each message to the
// clients allowed to see it. A client that cannot keep up is dropped.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan delivery
	register   chan *Client
	unregister chan *Client
	accounts   chan chan []string
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan delivery),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		accounts:   make(chan chan []string),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and delivery requests until ctx is done,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case reply := <-h.accounts:
			seen := make(map[string]bool)
			var ids []string
			for client := range h.clients {
				if client.accountID != "" && !seen[client.accountID] {
					seen[client.accountID] = true
					ids = append(ids, client.accountID)
				}
			}
			reply <- ids

		case d := <-h.broadcast:
			for client := range h.clients {
				if !d.public && (client.accountID == "" || !d.to[client.accountID]) {
					continue
				}
				select {
				case client.send <- d.msg:
				default:
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	_ = client.conn.Close()
}

// Broadcast hands msg to every client, giving up when ctx is done first.
func (h *Hub) Broadcast(ctx context.Context, msg []byte) bool {
	return h.deliver(ctx, delivery{msg: msg, public: true})
}

// SendTo hands msg to the clients signed in as one of accountIDs.
func (h *Hub) SendTo(ctx context.Context, msg []byte, accountIDs map[string]bool) bool {
	return h.deliver(ctx, delivery{msg: msg, to: accountIDs})
}

func (h *Hub) deliver(ctx context.Context, d delivery) bool {
	select {
	case h.broadcast <- d:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Accounts lists the distinct signed-in accounts currently connected.
func (h *Hub) Accounts(ctx context.Context) ([]string, bool) {
	reply := make(chan []string, 1)
	select {
	case h.accounts <- reply:
	case <-h.done:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
	select {
	case ids := <-reply:
		return ids, true
	case <-ctx.Done():
		return nil, false
	}
}
