// Package storetest provides an in-memory store.Transactor for engine tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
	"musicroom-core/internal/store"
)

type edgeKey struct{ owner, peer string }

type voteKey struct{ account, track string }

type state struct {
	accounts    map[string]model.Account
	requests    map[string]model.RelationshipRequest
	edges       map[edgeKey]model.Relationship
	events      map[string]model.Event
	lists       map[string]model.List
	invitations map[string]model.Invitation
	tracks      map[string]model.Track
	votes       map[voteKey]model.Vote
}

func newState() state {
	return state{
		accounts:    map[string]model.Account{},
		requests:    map[string]model.RelationshipRequest{},
		edges:       map[edgeKey]model.Relationship{},
		events:      map[string]model.Event{},
		lists:       map[string]model.List{},
		invitations: map[string]model.Invitation{},
		tracks:      map[string]model.Track{},
		votes:       map[voteKey]model.Vote{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s state) clone() state {
	return state{
		accounts:    cloneMap(s.accounts),
		requests:    cloneMap(s.requests),
		edges:       cloneMap(s.edges),
		events:      cloneMap(s.events),
		lists:       cloneMap(s.lists),
		invitations: cloneMap(s.invitations),
		tracks:      cloneMap(s.tracks),
		votes:       cloneMap(s.votes),
	}
}

// Memory serializes every transaction behind one mutex and restores the
// previous state when fn fails.
type Memory struct {
	mu    sync.Mutex
	st    state
	seq   int
	clock time.Time
	// Fail, when set, is consulted before each Repo call. A non-nil return
	// aborts the call with that error.
	Fail func(op string) error
}

func NewMemory() *Memory {
	return &Memory{
		st:    newState(),
		clock: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

var (
	_ store.Transactor = (*Memory)(nil)
	_ store.Repo       = (*repo)(nil)
)

func (m *Memory) InTx(ctx context.Context, fn func(store.Repo) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.st.clone()
	if err := fn(&repo{m: m}); err != nil {
		m.st = saved
		return err
	}
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(store.Repo) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&repo{m: m, readOnly: true})
}

func (m *Memory) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%04d", prefix, m.seq)
}

// now advances a fake clock by one millisecond per call so creation times
// are strictly increasing.
func (m *Memory) now() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

// Seed runs fn outside of any failure injection, for test setup.
func (m *Memory) Seed(t testing.TB, fn func(store.Repo) error) {
	t.Helper()
	fail := m.Fail
	m.Fail = nil
	defer func() { m.Fail = fail }()
	if err := m.InTx(context.Background(), fn); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// Tracks returns a snapshot of the tracks of a resource.
func (m *Memory) Tracks(resourceID string) []model.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Track
	for _, t := range m.st.tracks {
		if t.ResourceID == resourceID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// VoteCount returns how many vote rows exist for a track.
func (m *Memory) VoteCount(trackID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.st.votes {
		if k.track == trackID {
			n++
		}
	}
	return n
}

// EdgeCount returns how many directed edges exist between a and b.
func (m *Memory) EdgeCount(a, b string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	if _, ok := m.st.edges[edgeKey{a, b}]; ok {
		n++
	}
	if _, ok := m.st.edges[edgeKey{b, a}]; ok {
		n++
	}
	return n
}

// SetEdgeTime rewrites the creation time of an edge, for ordering tests.
func (m *Memory) SetEdgeTime(owner, peer string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := edgeKey{owner, peer}
	if e, ok := m.st.edges[k]; ok {
		e.CreatedAt = at
		m.st.edges[k] = e
	}
}

type repo struct {
	m        *Memory
	readOnly bool
}

func (r *repo) check(op string, write bool) error {
	if write && r.readOnly {
		return fmt.Errorf("%s: read-only transaction", op)
	}
	if r.m.Fail != nil {
		return r.m.Fail(op)
	}
	return nil
}

func (r *repo) st() *state { return &r.m.st }

func (r *repo) CreateAccount(ctx context.Context, a *model.Account) error {
	if err := r.check("CreateAccount", true); err != nil {
		return err
	}
	if a.Tier == "" {
		a.Tier = model.TierStandard
	}
	for _, other := range r.st().accounts {
		if other.ID == a.ID || other.Handle == a.Handle || other.Contact == a.Contact {
			return apperr.Conflict("account already exists")
		}
	}
	a.CreatedAt = r.m.now()
	r.st().accounts[a.ID] = *a
	return nil
}

func (r *repo) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := r.check("GetAccount", false); err != nil {
		return nil, err
	}
	a, ok := r.st().accounts[id]
	if !ok {
		return nil, apperr.NotFound("account not found")
	}
	return &a, nil
}

func (r *repo) SetAccountTier(ctx context.Context, id string, tier model.Tier) error {
	if err := r.check("SetAccountTier", true); err != nil {
		return err
	}
	a, ok := r.st().accounts[id]
	if !ok {
		return apperr.NotFound("account not found")
	}
	a.Tier = tier
	r.st().accounts[id] = a
	return nil
}
