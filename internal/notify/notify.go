// Package notify tells connected clients that derived state changed. Delivery
// is best effort and never affects the outcome of the operation that
// triggered it.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"musicroom-core/internal/model"
)

// Channel is the redis pub/sub channel the realtime hub listens on.
const Channel = "broadcast"

// DefaultTimeout bounds a single publish round trip.
const DefaultTimeout = 2 * time.Second

type Event struct {
	Type     string   `json:"type"`
	Payload  any      `json:"payload"`
	Audience Audience `json:"audience"`
}

// Audience names who may receive an event. The zero value reaches nobody.
type Audience struct {
	// Public events reach every socket, anonymous ones included.
	Public bool `json:"public,omitempty"`
	// Accounts receive the event whatever the resource says.
	Accounts []string `json:"accounts,omitempty"`
	// Resource limits delivery to accounts allowed to read it.
	Resource *model.ResourceRef `json:"resource,omitempty"`
}

func ToAccounts(ids ...string) Audience { return Audience{Accounts: ids} }

func ToResource(ref model.ResourceRef) Audience { return Audience{Resource: &ref} }

type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	timeout time.Duration
	log     *slog.Logger
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		rdb:     rdb,
		channel: Channel,
		timeout: DefaultTimeout,
		log:     slog.With("component", "notify"),
	}
}

// WithTimeout replaces the per-publish deadline.
func (p *RedisPublisher) WithTimeout(d time.Duration) *RedisPublisher {
	p.timeout = d
	return p
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) {
	if p == nil || p.rdb == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal event", "type", ev.Type, "error", err)
		return
	}
	// the caller's request may already be finished
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		p.log.Warn("publish event", "type", ev.Type, "error", err)
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Recorder keeps published events in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Types returns the type of every recorded event in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
