package storetest

import (
	"context"
	"sort"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
)

func (r *repo) CreateRequest(ctx context.Context, requesterID, recipientID string) (*model.RelationshipRequest, error) {
	if err := r.check("CreateRequest", true); err != nil {
		return nil, err
	}
	if requesterID == recipientID {
		return nil, apperr.InvalidArgument("invalid request")
	}
	if _, ok := r.st().accounts[recipientID]; !ok {
		return nil, apperr.NotFound("referenced entity not found")
	}
	for _, req := range r.st().requests {
		if req.RequesterID == requesterID && req.RecipientID == recipientID && req.State == model.RequestPending {
			return nil, apperr.Conflict("request already pending")
		}
	}
	req := model.RelationshipRequest{
		ID:          r.m.nextID("req"),
		RequesterID: requesterID,
		RecipientID: recipientID,
		State:       model.RequestPending,
		CreatedAt:   r.m.now(),
	}
	r.st().requests[req.ID] = req
	return &req, nil
}

func (r *repo) LockRequest(ctx context.Context, id string) (*model.RelationshipRequest, error) {
	if err := r.check("LockRequest", true); err != nil {
		return nil, err
	}
	req, ok := r.st().requests[id]
	if !ok {
		return nil, apperr.NotFound("request not found")
	}
	return &req, nil
}

func (r *repo) ResolveRequest(ctx context.Context, id string, state model.RequestState) error {
	if err := r.check("ResolveRequest", true); err != nil {
		return err
	}
	req, ok := r.st().requests[id]
	if !ok || req.State != model.RequestPending {
		return apperr.NotFound("no pending request with that id")
	}
	now := r.m.now()
	req.State = state
	req.ResolvedAt = &now
	r.st().requests[id] = req
	return nil
}

func (r *repo) ListRequests(ctx context.Context, accountID string, incoming bool) ([]model.RelationshipRequest, error) {
	if err := r.check("ListRequests", false); err != nil {
		return nil, err
	}
	out := []model.RelationshipRequest{}
	for _, req := range r.st().requests {
		if req.State != model.RequestPending {
			continue
		}
		if (incoming && req.RecipientID == accountID) || (!incoming && req.RequesterID == accountID) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *repo) InsertEdgePair(ctx context.Context, a, b string) error {
	if err := r.check("InsertEdgePair", true); err != nil {
		return err
	}
	now := r.m.now()
	for _, k := range []edgeKey{{a, b}, {b, a}} {
		if _, ok := r.st().edges[k]; ok {
			continue
		}
		r.st().edges[k] = model.Relationship{OwnerID: k.owner, PeerID: k.peer, CreatedAt: now}
	}
	return nil
}

func (r *repo) Connected(ctx context.Context, a, b string) (bool, error) {
	if err := r.check("Connected", false); err != nil {
		return false, err
	}
	_, ab := r.st().edges[edgeKey{a, b}]
	_, ba := r.st().edges[edgeKey{b, a}]
	return ab && ba, nil
}

func (r *repo) ListEdges(ctx context.Context, ownerID string) ([]model.Relationship, error) {
	if err := r.check("ListEdges", false); err != nil {
		return nil, err
	}
	out := []model.Relationship{}
	for k, e := range r.st().edges {
		if k.owner == ownerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].PeerID < out[j].PeerID
	})
	return out, nil
}

func (r *repo) DeleteEdge(ctx context.Context, ownerID, peerID string) (bool, error) {
	if err := r.check("DeleteEdge", true); err != nil {
		return false, err
	}
	k := edgeKey{ownerID, peerID}
	if _, ok := r.st().edges[k]; !ok {
		return false, nil
	}
	delete(r.st().edges, k)
	return true, nil
}
