// Package relation turns one-sided requests into confirmed relationships:
// friend requests become a pair of directed edges and invitations become
// memberships on an event or list.
package relation

import (
	"context"
	"log/slog"

	"musicroom-core/internal/access"
	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
	"musicroom-core/internal/notify"
	"musicroom-core/internal/store"
)

type Outcome string

const (
	Accept  Outcome = "accept"
	Decline Outcome = "decline"
)

type Engine struct {
	store  store.Transactor
	access *access.Evaluator
	notify notify.Publisher
	log    *slog.Logger
}

func NewEngine(st store.Transactor, ev *access.Evaluator, pub notify.Publisher) *Engine {
	if pub == nil {
		pub = notify.Nop{}
	}
	return &Engine{
		store:  st,
		access: ev,
		notify: pub,
		log:    slog.With("component", "relation"),
	}
}

// SendRequest creates a pending request from one account to another.
func (e *Engine) SendRequest(ctx context.Context, fromID, toID string) (*model.RelationshipRequest, error) {
	if fromID == toID {
		return nil, apperr.InvalidArgument("cannot send a request to yourself")
	}

	var out *model.RelationshipRequest
	err := e.store.InTx(ctx, func(r store.Repo) error {
		if _, err := r.GetAccount(ctx, toID); err != nil {
			return err
		}
		connected, err := r.Connected(ctx, fromID, toID)
		if err != nil {
			return err
		}
		if connected {
			return apperr.Conflict("already connected")
		}
		out, err = r.CreateRequest(ctx, fromID, toID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.notify.Publish(ctx, notify.Event{
		Type:     "relationship.requested",
		Payload:  out,
		Audience: notify.ToAccounts(out.RequesterID, out.RecipientID),
	})
	return out, nil
}

// Resolve accepts or declines a pending request addressed to actorID.
// Accepting creates both directed edges in the same transaction. Accepting
// an already accepted request succeeds again and makes sure both edges
// exist, so a retried accept is safe.
func (e *Engine) Resolve(ctx context.Context, actorID, requestID string, outcome Outcome) (*model.RelationshipRequest, error) {
	if outcome != Accept && outcome != Decline {
		return nil, apperr.InvalidArgument("outcome must be accept or decline")
	}

	var out *model.RelationshipRequest
	var changed bool
	err := e.store.InTx(ctx, func(r store.Repo) error {
		req, err := r.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.RecipientID != actorID {
			return apperr.Forbidden("only the recipient can resolve this request")
		}

		switch {
		case req.State == model.RequestPending:
		case req.State == model.RequestAccepted && outcome == Accept:
			out = req
			return r.InsertEdgePair(ctx, req.RequesterID, req.RecipientID)
		default:
			return apperr.NotFound("no pending request with that id")
		}

		state := model.RequestDeclined
		if outcome == Accept {
			state = model.RequestAccepted
		}
		if err := r.ResolveRequest(ctx, req.ID, state); err != nil {
			return err
		}
		if outcome == Accept {
			if err := r.InsertEdgePair(ctx, req.RequesterID, req.RecipientID); err != nil {
				return err
			}
		}
		out, err = r.LockRequest(ctx, req.ID)
		changed = true
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.notify.Publish(ctx, notify.Event{
			Type:     "relationship." + string(out.State),
			Payload:  out,
			Audience: notify.ToAccounts(out.RequesterID, out.RecipientID),
		})
	}
	return out, nil
}

// ListConnections returns the edges owned by accountID, newest first.
func (e *Engine) ListConnections(ctx context.Context, accountID string) ([]model.Relationship, error) {
	var out []model.Relationship
	err := e.store.View(ctx, func(r store.Repo) error {
		var err error
		out, err = r.ListEdges(ctx, accountID)
		return err
	})
	return out, err
}

// RemoveConnection deletes only the caller's edge. The peer keeps theirs.
func (e *Engine) RemoveConnection(ctx context.Context, accountID, peerID string) error {
	err := e.store.InTx(ctx, func(r store.Repo) error {
		removed, err := r.DeleteEdge(ctx, accountID, peerID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.NotFound("connection not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.notify.Publish(ctx, notify.Event{
		Type:     "relationship.removed",
		Payload:  map[string]any{"ownerId": accountID, "peerId": peerID},
		Audience: notify.ToAccounts(accountID, peerID),
	})
	return nil
}

// ListRequests returns pending requests addressed to (incoming) or sent by
// the account.
func (e *Engine) ListRequests(ctx context.Context, accountID string, incoming bool) ([]model.RelationshipRequest, error) {
	var out []model.RelationshipRequest
	err := e.store.View(ctx, func(r store.Repo) error {
		var err error
		out, err = r.ListRequests(ctx, accountID, incoming)
		return err
	})
	return out, err
}
