package relation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicroom-core/internal/access"
	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
	"musicroom-core/internal/notify"
	"musicroom-core/internal/store"
	"musicroom-core/internal/store/storetest"
)

func newEngine(t *testing.T, accounts ...string) (*Engine, *storetest.Memory, *notify.Recorder) {
	t.Helper()
	mem := storetest.NewMemory()
	rec := &notify.Recorder{}
	mem.Seed(t, func(r store.Repo) error {
		for _, id := range accounts {
			if err := r.CreateAccount(context.Background(), &model.Account{ID: id, Handle: id, Contact: id + "@example.com"}); err != nil {
				return err
			}
		}
		return nil
	})
	return NewEngine(mem, access.NewEvaluator(nil), rec), mem, rec
}

func TestAcceptedRequestConnectsBothSides(t *testing.T) {
	e, mem, rec := newEngine(t, "u", "v")
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "u", "v")
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, req.State)

	resolved, err := e.Resolve(ctx, "v", req.ID, Accept)
	require.NoError(t, err)
	assert.Equal(t, model.RequestAccepted, resolved.State)
	assert.NotNil(t, resolved.ResolvedAt)

	uEdges, err := e.ListConnections(ctx, "u")
	require.NoError(t, err)
	require.Len(t, uEdges, 1)
	assert.Equal(t, "v", uEdges[0].PeerID)

	vEdges, err := e.ListConnections(ctx, "v")
	require.NoError(t, err)
	require.Len(t, vEdges, 1)
	assert.Equal(t, "u", vEdges[0].PeerID)

	assert.Equal(t, 2, mem.EdgeCount("u", "v"))
	assert.Equal(t, []string{"relationship.requested", "relationship.accepted"}, rec.Types())
	for _, ev := range rec.Events() {
		assert.ElementsMatch(t, []string{"u", "v"}, ev.Audience.Accounts, ev.Type)
		assert.Nil(t, ev.Audience.Resource, ev.Type)
		assert.False(t, ev.Audience.Public, ev.Type)
	}
}

func TestSendRequestErrors(t *testing.T) {
	e, _, _ := newEngine(t, "u", "v")
	ctx := context.Background()

	_, err := e.SendRequest(ctx, "u", "u")
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	_, err = e.SendRequest(ctx, "u", "ghost")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = e.SendRequest(ctx, "u", "v")
	require.NoError(t, err)
	_, err = e.SendRequest(ctx, "u", "v")
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, "request already pending", apperr.Message(err))

	// the reverse direction is a different ordered pair
	_, err = e.SendRequest(ctx, "v", "u")
	assert.NoError(t, err)
}

func TestSendRequestToConnectedAccount(t *testing.T) {
	e, _, _ := newEngine(t, "u", "v")
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "u", "v")
	require.NoError(t, err)
	_, err = e.Resolve(ctx, "v", req.ID, Accept)
	require.NoError(t, err)

	_, err = e.SendRequest(ctx, "v", "u")
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestDeclineIsFinal(t *testing.T) {
	e, mem, _ := newEngine(t, "u", "v")
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "u", "v")
	require.NoError(t, err)

	out, err := e.Resolve(ctx, "v", req.ID, Decline)
	require.NoError(t, err)
	assert.Equal(t, model.RequestDeclined, out.State)
	assert.Equal(t, 0, mem.EdgeCount("u", "v"))

	_, err = e.Resolve(ctx, "v", req.ID, Accept)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	// a new request can be sent once the old one is resolved
	_, err = e.SendRequest(ctx, "u", "v")
	assert.NoError(t, err)
}

func TestResolveErrors(t *testing.T) {
	e, _, _ := newEngine(t, "u", "v", "w")
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "u", "v")
	require.NoError(t, err)

	_, err = e.Resolve(ctx, "v", "req-missing", Accept)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = e.Resolve(ctx, "w", req.ID, Accept)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = e.Resolve(ctx, "u", req.ID, Accept)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = e.Resolve(ctx, "v", req.ID, Outcome("maybe"))
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}

func TestAcceptIsIdempotent(t *testing.T) {
	e, mem, rec := newEngine(t, "u", "v")
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "u", "v")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := e.Resolve(ctx, "v", req.ID, Accept)
		require.NoError(t, err)
		assert.Equal(t, model.RequestAccepted, out.State)
	}
	assert.Equal(t, 2, mem.EdgeCount("u", "v"))
	assert.Equal(t, []string{"relationship.requested", "relationship.accepted"}, rec.Types())
}

func TestConcurrentAcceptCreatesExactlyTwoEdges(t *testing.T) {
	e, mem, _ := newEngine(t, "u", "v")
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "u", "v")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Resolve(ctx, "v", req.ID, Accept)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, mem.EdgeCount("u", "v"))
}

func TestFailedEdgeInsertRollsBackAcceptance(t *testing.T) {
	e, mem, rec := newEngine(t, "u", "v")
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "u", "v")
	require.NoError(t, err)

	mem.Fail = func(op string) error {
		if op == "InsertEdgePair" {
			return errors.New("connection reset")
		}
		return nil
	}
	_, err = e.Resolve(ctx, "v", req.ID, Accept)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, 0, mem.EdgeCount("u", "v"))

	mem.Fail = nil
	pending, err := e.ListRequests(ctx, "v", true)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
	assert.Equal(t, []string{"relationship.requested"}, rec.Types())

	_, err = e.Resolve(ctx, "v", req.ID, Accept)
	require.NoError(t, err)
	assert.Equal(t, 2, mem.EdgeCount("u", "v"))
}

func TestAcceptWithLeftoverEdge(t *testing.T) {
	e, mem, _ := newEngine(t, "u", "v")
	ctx := context.Background()

	// u removed its edge after an earlier connection, v kept its own
	mem.Seed(t, func(r store.Repo) error {
		if err := r.InsertEdgePair(ctx, "u", "v"); err != nil {
			return err
		}
		_, err := r.DeleteEdge(ctx, "u", "v")
		return err
	})
	require.Equal(t, 1, mem.EdgeCount("u", "v"))

	req, err := e.SendRequest(ctx, "u", "v")
	require.NoError(t, err)
	_, err = e.Resolve(ctx, "v", req.ID, Accept)
	require.NoError(t, err)
	assert.Equal(t, 2, mem.EdgeCount("u", "v"))
}

func TestRemoveConnectionIsOneSided(t *testing.T) {
	e, mem, _ := newEngine(t, "u", "v")
	ctx := context.Background()

	req, err := e.SendRequest(ctx, "u", "v")
	require.NoError(t, err)
	_, err = e.Resolve(ctx, "v", req.ID, Accept)
	require.NoError(t, err)

	require.NoError(t, e.RemoveConnection(ctx, "u", "v"))
	assert.Equal(t, 1, mem.EdgeCount("u", "v"))

	uEdges, err := e.ListConnections(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, uEdges)

	vEdges, err := e.ListConnections(ctx, "v")
	require.NoError(t, err)
	assert.Len(t, vEdges, 1)

	err = e.RemoveConnection(ctx, "u", "v")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestListConnectionsNewestFirst(t *testing.T) {
	e, mem, _ := newEngine(t, "u", "a", "b", "c")
	ctx := context.Background()

	for _, peer := range []string{"a", "b", "c"} {
		req, err := e.SendRequest(ctx, "u", peer)
		require.NoError(t, err)
		_, err = e.Resolve(ctx, peer, req.ID, Accept)
		require.NoError(t, err)
	}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mem.SetEdgeTime("u", "a", base.Add(2*time.Hour))
	mem.SetEdgeTime("u", "b", base)
	mem.SetEdgeTime("u", "c", base.Add(time.Hour))

	edges, err := e.ListConnections(ctx, "u")
	require.NoError(t, err)
	var peers []string
	for _, edge := range edges {
		peers = append(peers, edge.PeerID)
	}
	assert.Equal(t, []string{"a", "c", "b"}, peers)
}

func TestListRequestsByDirection(t *testing.T) {
	e, _, _ := newEngine(t, "u", "v", "w")
	ctx := context.Background()

	_, err := e.SendRequest(ctx, "u", "v")
	require.NoError(t, err)
	_, err = e.SendRequest(ctx, "w", "u")
	require.NoError(t, err)

	outgoing, err := e.ListRequests(ctx, "u", false)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, "v", outgoing[0].RecipientID)

	incoming, err := e.ListRequests(ctx, "u", true)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, "w", incoming[0].RequesterID)
}
