package relation

import (
	"context"

	"musicroom-core/internal/access"
	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
	"musicroom-core/internal/notify"
	"musicroom-core/internal/store"
)

type InviteRequest struct {
	GrantorID string
	Resource  model.ResourceRef
	InviteeID string
	Role      model.Role
}

// Invite grants an account a pending membership on an event or list. A
// declined invitation is reissued as pending. An accepted member can be
// given a different role without going through acceptance again.
func (e *Engine) Invite(ctx context.Context, req InviteRequest) (*model.Invitation, error) {
	if req.Role == "" {
		req.Role = model.RoleGuest
	}
	if !req.Role.Valid() {
		return nil, apperr.InvalidArgument("invalid role %q", req.Role)
	}
	if req.InviteeID == req.GrantorID {
		return nil, apperr.InvalidArgument("cannot invite yourself")
	}

	var out *model.Invitation
	err := e.store.InTx(ctx, func(r store.Repo) error {
		subj, err := access.Load(ctx, r, req.Resource, req.GrantorID, true)
		if err != nil {
			return err
		}
		if !subj.Resource.Active {
			return apperr.Forbidden("%s is inactive", subj.Resource.Kind)
		}
		if err := e.access.CanManage(subj).Err(); err != nil {
			return err
		}
		if req.Role == model.RoleManager && subj.Resource.OwnerID != req.GrantorID {
			return apperr.Forbidden("only the owner can grant the manager role")
		}
		if req.InviteeID == subj.Resource.OwnerID {
			return apperr.InvalidArgument("the owner is already a member")
		}
		if _, err := r.GetAccount(ctx, req.InviteeID); err != nil {
			return err
		}

		state := model.RequestPending
		existing, err := r.FindInvitation(ctx, subj.Resource.ID, req.InviteeID)
		if err != nil {
			return err
		}
		if existing != nil {
			switch existing.State {
			case model.RequestPending:
				return apperr.Conflict("invitation already pending")
			case model.RequestAccepted:
				if existing.Role == req.Role {
					return apperr.Conflict("already a member")
				}
				state = model.RequestAccepted
			}
		}

		out = &model.Invitation{
			ResourceKind: subj.Resource.Kind,
			ResourceID:   subj.Resource.ID,
			InviteeID:    req.InviteeID,
			GrantorID:    req.GrantorID,
			Role:         req.Role,
			State:        state,
		}
		return r.UpsertInvitation(ctx, out)
	})
	if err != nil {
		return nil, err
	}

	e.publishInvitation(ctx, "invitation.created", out)
	return out, nil
}

// Join makes the principal a guest of an active public resource. Joining
// twice returns the existing membership.
func (e *Engine) Join(ctx context.Context, principalID string, ref model.ResourceRef) (*model.Invitation, error) {
	var out *model.Invitation
	var changed bool
	err := e.store.InTx(ctx, func(r store.Repo) error {
		subj, err := access.Load(ctx, r, ref, principalID, false)
		if err != nil {
			return err
		}
		res := subj.Resource
		if !res.Active {
			return apperr.Forbidden("%s is inactive", res.Kind)
		}
		if res.OwnerID == principalID {
			return apperr.InvalidArgument("the owner is already a member")
		}
		if subj.Invitation.Accepted() {
			out = subj.Invitation
			return nil
		}
		if res.Visibility != model.VisibilityPublic &&
			(subj.Invitation == nil || subj.Invitation.State != model.RequestPending) {
			return apperr.Forbidden("%s is private, invite required", res.Kind)
		}

		out = &model.Invitation{
			ResourceKind: res.Kind,
			ResourceID:   res.ID,
			InviteeID:    principalID,
			GrantorID:    principalID,
			Role:         model.RoleGuest,
			State:        model.RequestAccepted,
		}
		if subj.Invitation != nil {
			// pending or declined invitation: keep the role it was issued with
			out.GrantorID = subj.Invitation.GrantorID
			out.Role = subj.Invitation.Role
		}
		changed = true
		return r.UpsertInvitation(ctx, out)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.publishInvitation(ctx, "invitation.accepted", out)
	}
	return out, nil
}

// RespondInvitation lets the invitee accept or decline a pending invitation.
func (e *Engine) RespondInvitation(ctx context.Context, principalID, invitationID string, outcome Outcome) (*model.Invitation, error) {
	if outcome != Accept && outcome != Decline {
		return nil, apperr.InvalidArgument("outcome must be accept or decline")
	}

	var out *model.Invitation
	var changed bool
	err := e.store.InTx(ctx, func(r store.Repo) error {
		inv, err := r.LockInvitation(ctx, invitationID)
		if err != nil {
			return err
		}
		if inv.InviteeID != principalID {
			return apperr.Forbidden("only the invitee can respond to this invitation")
		}

		switch {
		case inv.State == model.RequestPending:
		case inv.State == model.RequestAccepted && outcome == Accept:
			out = inv
			return nil
		default:
			return apperr.NotFound("no pending invitation with that id")
		}

		state := model.RequestDeclined
		if outcome == Accept {
			res, err := r.GetResource(ctx, model.ResourceRef{Kind: inv.ResourceKind, ID: inv.ResourceID}, false)
			if err != nil {
				return err
			}
			if !res.Active {
				return apperr.Forbidden("%s is inactive", res.Kind)
			}
			state = model.RequestAccepted
		}
		if err := r.SetInvitationState(ctx, inv.ID, state); err != nil {
			return err
		}
		out, err = r.LockInvitation(ctx, inv.ID)
		changed = true
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.publishInvitation(ctx, "invitation."+string(out.State), out)
	}
	return out, nil
}

// RevokeInvitation removes a membership. Managers can remove anyone but
// the owner; any member can remove themselves.
func (e *Engine) RevokeInvitation(ctx context.Context, principalID string, ref model.ResourceRef, inviteeID string) error {
	var resourceID string
	err := e.store.InTx(ctx, func(r store.Repo) error {
		subj, err := access.Load(ctx, r, ref, principalID, true)
		if err != nil {
			return err
		}
		resourceID = subj.Resource.ID
		if principalID != inviteeID {
			if err := e.access.CanManage(subj).Err(); err != nil {
				return err
			}
			// managers cannot remove other managers
			if subj.Resource.OwnerID != principalID {
				target, err := r.FindInvitation(ctx, resourceID, inviteeID)
				if err != nil {
					return err
				}
				if target.Accepted() && target.Role == model.RoleManager {
					return apperr.Forbidden("only the owner can remove a manager")
				}
			}
		}
		removed, err := r.DeleteInvitation(ctx, resourceID, inviteeID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.NotFound("invitation not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.notify.Publish(ctx, notify.Event{
		Type: "invitation.revoked",
		Payload: map[string]any{
			"resourceKind": ref.Kind,
			"resourceId":   resourceID,
			"inviteeId":    inviteeID,
		},
		Audience: notify.ToAccounts(inviteeID, principalID),
	})
	return nil
}

// publishInvitation tells the invitee and whoever granted the invitation.
func (e *Engine) publishInvitation(ctx context.Context, typ string, inv *model.Invitation) {
	e.notify.Publish(ctx, notify.Event{
		Type:     typ,
		Payload:  inv,
		Audience: notify.ToAccounts(inv.InviteeID, inv.GrantorID),
	})
}

// ListInvitations returns every invitation on a resource the principal can
// read.
func (e *Engine) ListInvitations(ctx context.Context, principalID string, ref model.ResourceRef) ([]model.Invitation, error) {
	var out []model.Invitation
	err := e.store.View(ctx, func(r store.Repo) error {
		subj, err := access.Load(ctx, r, ref, principalID, false)
		if err != nil {
			return err
		}
		if err := e.access.CanAccess(subj).Err(); err != nil {
			return err
		}
		out, err = r.ListInvitations(ctx, subj.Resource.ID)
		return err
	})
	return out, err
}

// ListPendingInvitations returns invitations waiting for the principal's
// answer, newest first.
func (e *Engine) ListPendingInvitations(ctx context.Context, principalID string) ([]model.Invitation, error) {
	var out []model.Invitation
	err := e.store.View(ctx, func(r store.Repo) error {
		var err error
		out, err = r.ListInvitationsFor(ctx, principalID, model.RequestPending)
		return err
	})
	return out, err
}
