package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
)

const invitationColumns = `id, resource_kind, resource_id, invitee_id, grantor_id, role, state, created_at, updated_at`

func scanInvitation(row pgx.Row) (*model.Invitation, error) {
	var inv model.Invitation
	err := row.Scan(&inv.ID, &inv.ResourceKind, &inv.ResourceID, &inv.InviteeID, &inv.GrantorID,
		&inv.Role, &inv.State, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (q *Queries) FindInvitation(ctx context.Context, resourceID, inviteeID string) (*model.Invitation, error) {
	inv, err := scanInvitation(q.q.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE resource_id = $1 AND invitee_id = $2
	`, resourceID, inviteeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err, "invitation")
	}
	return inv, nil
}

func (q *Queries) LockInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	inv, err := scanInvitation(q.q.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, mapErr(err, "invitation")
	}
	return inv, nil
}

// UpsertInvitation creates the invitation or resets an existing one for the
// same (resource, invitee) to the given role, grantor and state.
func (q *Queries) UpsertInvitation(ctx context.Context, inv *model.Invitation) error {
	err := q.q.QueryRow(ctx, `
		INSERT INTO invitations (resource_kind, resource_id, invitee_id, grantor_id, role, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (resource_id, invitee_id)
		DO UPDATE SET grantor_id = EXCLUDED.grantor_id,
		              role = EXCLUDED.role,
		              state = EXCLUDED.state,
		              updated_at = now()
		RETURNING id, created_at, updated_at
	`, string(inv.ResourceKind), inv.ResourceID, inv.InviteeID, inv.GrantorID, string(inv.Role), string(inv.State),
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	return mapErr(err, "invitation")
}

func (q *Queries) SetInvitationState(ctx context.Context, id string, state model.RequestState) error {
	tag, err := q.q.Exec(ctx, `
		UPDATE invitations SET state = $2, updated_at = now() WHERE id = $1
	`, id, string(state))
	if err != nil {
		return mapErr(err, "invitation")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("invitation not found")
	}
	return nil
}

func (q *Queries) DeleteInvitation(ctx context.Context, resourceID, inviteeID string) (bool, error) {
	tag, err := q.q.Exec(ctx, `
		DELETE FROM invitations WHERE resource_id = $1 AND invitee_id = $2
	`, resourceID, inviteeID)
	if err != nil {
		return false, mapErr(err, "invitation")
	}
	return tag.RowsAffected() > 0, nil
}

func (q *Queries) ListInvitations(ctx context.Context, resourceID string) ([]model.Invitation, error) {
	return q.listInvitations(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE resource_id = $1
		ORDER BY created_at, id
	`, resourceID)
}

func (q *Queries) ListInvitationsFor(ctx context.Context, inviteeID string, state model.RequestState) ([]model.Invitation, error) {
	return q.listInvitations(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE invitee_id = $1 AND state = $2
		ORDER BY created_at DESC, id
	`, inviteeID, string(state))
}

func (q *Queries) listInvitations(ctx context.Context, sql string, args ...any) ([]model.Invitation, error) {
	rows, err := q.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, "invitations")
	}
	defer rows.Close()

	out := []model.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}
