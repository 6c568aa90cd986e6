package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
)

const requestColumns = `id, requester_id, recipient_id, state, created_at, resolved_at`

func scanRequest(row pgx.Row) (*model.RelationshipRequest, error) {
	var r model.RelationshipRequest
	if err := row.Scan(&r.ID, &r.RequesterID, &r.RecipientID, &r.State, &r.CreatedAt, &r.ResolvedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (q *Queries) CreateRequest(ctx context.Context, requesterID, recipientID string) (*model.RelationshipRequest, error) {
	r, err := scanRequest(q.q.QueryRow(ctx, `
		INSERT INTO relationship_requests (requester_id, recipient_id)
		VALUES ($1, $2)
		RETURNING `+requestColumns,
		requesterID, recipientID))
	if err != nil {
		err = mapErr(err, "request")
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, apperr.Conflict("request already pending")
		}
		return nil, err
	}
	return r, nil
}

func (q *Queries) LockRequest(ctx context.Context, id string) (*model.RelationshipRequest, error) {
	r, err := scanRequest(q.q.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM relationship_requests
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, mapErr(err, "request")
	}
	return r, nil
}

func (q *Queries) ResolveRequest(ctx context.Context, id string, state model.RequestState) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE relationship_requests
		SET state = $2, resolved_at = now()
		WHERE id = $1 AND state = 'pending'
	`, id, string(state))
	if err != nil {
		return mapErr(err, "request")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("no pending request with that id")
	}
	return nil
}

func (q *Queries) ListRequests(ctx context.Context, accountID string, incoming bool) ([]model.RelationshipRequest, error) {
	column := "requester_id"
	if incoming {
		column = "recipient_id"
	}
	rows, err := q.q.Query(ctx, `
		SELECT `+requestColumns+`
		FROM relationship_requests
		WHERE `+column+` = $1 AND state = 'pending'
		ORDER BY created_at DESC, id
	`, accountID)
	if err != nil {
		return nil, mapErr(err, "requests")
	}
	defer rows.Close()

	out := []model.RelationshipRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (q *Queries) InsertEdgePair(ctx context.Context, a, b string) error {
	_, err := q.q.Exec(ctx, `
		INSERT INTO relationships (owner_id, peer_id)
		VALUES ($1, $2), ($2, $1)
		ON CONFLICT (owner_id, peer_id) DO NOTHING
	`, a, b)
	return mapErr(err, "relationship")
}

func (q *Queries) Connected(ctx context.Context, a, b string) (bool, error) {
	var n int
	err := q.q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM relationships
		WHERE (owner_id = $1 AND peer_id = $2) OR (owner_id = $2 AND peer_id = $1)
	`, a, b).Scan(&n)
	if err != nil {
		return false, mapErr(err, "relationship")
	}
	return n == 2, nil
}

func (q *Queries) ListEdges(ctx context.Context, ownerID string) ([]model.Relationship, error) {
	rows, err := q.q.Query(ctx, `
		SELECT owner_id, peer_id, created_at
		FROM relationships
		WHERE owner_id = $1
		ORDER BY created_at DESC, peer_id
	`, ownerID)
	if err != nil {
		return nil, mapErr(err, "relationships")
	}
	defer rows.Close()

	out := []model.Relationship{}
	for rows.Next() {
		var r model.Relationship
		if err := rows.Scan(&r.OwnerID, &r.PeerID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteEdge(ctx context.Context, ownerID, peerID string) (bool, error) {
	tag, err := q.q.Exec(ctx, `
		DELETE FROM relationships
		WHERE owner_id = $1 AND peer_id = $2
	`, ownerID, peerID)
	if err != nil {
		return false, mapErr(err, "relationship")
	}
	return tag.RowsAffected() > 0, nil
}
