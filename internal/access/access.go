// Package access decides whether a principal may read, vote on, edit or
// manage an event or list. Decisions are pure functions of a snapshot and
// the clock, so callers evaluate them inside the transaction that performs
// the write.
package access

import (
	"time"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
)

// Subject is everything a decision looks at.
type Subject struct {
	Resource  model.Resource
	Principal model.Principal
	// Invitation is the principal's invitation on this exact resource, nil
	// when there is none.
	Invitation *model.Invitation
	// InsideFence is the geolocation collaborator's verdict for location
	// tier events.
	InsideFence bool
}

func (s Subject) isOwner() bool {
	return s.Principal.ID != "" && s.Principal.ID == s.Resource.OwnerID
}

type Decision struct {
	Allowed bool
	Reason  string
}

var allow = Decision{Allowed: true}

func deny(reason string) Decision { return Decision{Reason: reason} }

// Err converts a denial to an apperr Forbidden error.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.Forbidden("%s", d.Reason)
}

type Evaluator struct {
	now func() time.Time
}

func NewEvaluator(now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{now: now}
}

func (e *Evaluator) CanAccess(s Subject) Decision {
	if !s.Resource.Active {
		return deny(string(s.Resource.Kind) + " is inactive")
	}
	if s.isOwner() {
		return allow
	}
	if s.Resource.Visibility == model.VisibilityPrivate && !s.Invitation.Accepted() {
		return deny(string(s.Resource.Kind) + " is private, invite required")
	}
	return allow
}

func (e *Evaluator) CanVote(s Subject) Decision {
	if d := e.CanAccess(s); !d.Allowed {
		return d
	}
	// owner can always vote regardless of tier or geo/time
	if s.isOwner() {
		return allow
	}

	switch s.Resource.AccessTier {
	case "", model.AccessFree:
		return allow

	case model.AccessPremium:
		if s.Principal.Tier != model.TierElevated {
			return deny("premium event requires an elevated account")
		}
		return allow

	case model.AccessLocation:
		now := e.now()
		if s.Resource.StartsAt != nil && now.Before(*s.Resource.StartsAt) {
			return deny("voting has not started yet")
		}
		if s.Resource.EndsAt != nil && now.After(*s.Resource.EndsAt) {
			return deny("voting has ended")
		}
		if !s.InsideFence {
			return deny("user is outside of allowed geo area")
		}
		return allow

	default:
		return deny("unsupported access tier")
	}
}

func (e *Evaluator) CanEdit(s Subject) Decision {
	if !s.Resource.Active {
		return deny(string(s.Resource.Kind) + " is inactive")
	}
	if s.isOwner() {
		return allow
	}
	if s.Invitation.Accepted() && s.Invitation.Role.AtLeast(model.RoleCollaborator) {
		return allow
	}
	if s.Resource.Kind == model.KindList && s.Resource.EditPolicy == model.EditOpen {
		if d := e.CanAccess(s); !d.Allowed {
			return d
		}
		return allow
	}
	return deny("only collaborators can edit this " + string(s.Resource.Kind))
}

// CanManage covers administration: updates, invitations, deactivation and
// reactivation. The owner is never blocked by the active flag so that a
// deactivated resource can be brought back.
func (e *Evaluator) CanManage(s Subject) Decision {
	if s.isOwner() {
		return allow
	}
	if s.Resource.Active && s.Invitation.Accepted() && s.Invitation.Role.AtLeast(model.RoleManager) {
		return allow
	}
	return deny("only the owner can manage this " + string(s.Resource.Kind))
}
