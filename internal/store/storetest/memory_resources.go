package storetest

import (
	"context"
	"sort"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
)

func (r *repo) CreateEvent(ctx context.Context, ev *model.Event) error {
	if err := r.check("CreateEvent", true); err != nil {
		return err
	}
	if _, ok := r.st().accounts[ev.OwnerID]; !ok {
		return apperr.NotFound("referenced entity not found")
	}
	now := r.m.now()
	ev.ID = r.m.nextID("ev")
	ev.Active = true
	ev.CreatedAt, ev.UpdatedAt = now, now
	r.st().events[ev.ID] = *ev
	return nil
}

func (r *repo) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if err := r.check("GetEvent", false); err != nil {
		return nil, err
	}
	ev, ok := r.st().events[id]
	if !ok {
		return nil, apperr.NotFound("event not found")
	}
	return &ev, nil
}

func (r *repo) UpdateEvent(ctx context.Context, ev *model.Event) error {
	if err := r.check("UpdateEvent", true); err != nil {
		return err
	}
	cur, ok := r.st().events[ev.ID]
	if !ok {
		return apperr.NotFound("event not found")
	}
	ev.OwnerID, ev.Active, ev.CreatedAt = cur.OwnerID, cur.Active, cur.CreatedAt
	ev.UpdatedAt = r.m.now()
	r.st().events[ev.ID] = *ev
	return nil
}

func (r *repo) visibleTo(res model.Resource, viewerID string) bool {
	if res.OwnerID == viewerID {
		return true
	}
	if !res.Active {
		return false
	}
	if res.Visibility == model.VisibilityPublic {
		return true
	}
	for _, inv := range r.st().invitations {
		if inv.ResourceID == res.ID && inv.InviteeID == viewerID && inv.State == model.RequestAccepted {
			return true
		}
	}
	return false
}

func (r *repo) ListEvents(ctx context.Context, viewerID string) ([]model.Event, error) {
	if err := r.check("ListEvents", false); err != nil {
		return nil, err
	}
	out := []model.Event{}
	for _, ev := range r.st().events {
		if r.visibleTo(ev.Resource(), viewerID) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *repo) CreateList(ctx context.Context, l *model.List) error {
	if err := r.check("CreateList", true); err != nil {
		return err
	}
	if _, ok := r.st().accounts[l.OwnerID]; !ok {
		return apperr.NotFound("referenced entity not found")
	}
	now := r.m.now()
	l.ID = r.m.nextID("pl")
	l.Active = true
	l.CreatedAt, l.UpdatedAt = now, now
	r.st().lists[l.ID] = *l
	return nil
}

func (r *repo) GetList(ctx context.Context, id string) (*model.List, error) {
	if err := r.check("GetList", false); err != nil {
		return nil, err
	}
	l, ok := r.st().lists[id]
	if !ok {
		return nil, apperr.NotFound("list not found")
	}
	return &l, nil
}

func (r *repo) UpdateList(ctx context.Context, l *model.List) error {
	if err := r.check("UpdateList", true); err != nil {
		return err
	}
	cur, ok := r.st().lists[l.ID]
	if !ok {
		return apperr.NotFound("list not found")
	}
	l.OwnerID, l.Active, l.CreatedAt = cur.OwnerID, cur.Active, cur.CreatedAt
	l.UpdatedAt = r.m.now()
	r.st().lists[l.ID] = *l
	return nil
}

func (r *repo) ListLists(ctx context.Context, viewerID string) ([]model.List, error) {
	if err := r.check("ListLists", false); err != nil {
		return nil, err
	}
	out := []model.List{}
	for _, l := range r.st().lists {
		if r.visibleTo(l.Resource(), viewerID) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *repo) GetResource(ctx context.Context, ref model.ResourceRef, lock bool) (model.Resource, error) {
	if err := r.check("GetResource", false); err != nil {
		return model.Resource{}, err
	}
	switch ref.Kind {
	case model.KindEvent:
		ev, ok := r.st().events[ref.ID]
		if !ok {
			return model.Resource{}, apperr.NotFound("event not found")
		}
		return ev.Resource(), nil
	case model.KindList:
		l, ok := r.st().lists[ref.ID]
		if !ok {
			return model.Resource{}, apperr.NotFound("list not found")
		}
		return l.Resource(), nil
	}
	return model.Resource{}, apperr.InvalidArgument("unknown resource kind %q", ref.Kind)
}

func (r *repo) SetActive(ctx context.Context, ref model.ResourceRef, active bool) error {
	if err := r.check("SetActive", true); err != nil {
		return err
	}
	switch ref.Kind {
	case model.KindEvent:
		ev, ok := r.st().events[ref.ID]
		if !ok {
			return apperr.NotFound("event not found")
		}
		ev.Active = active
		ev.UpdatedAt = r.m.now()
		r.st().events[ref.ID] = ev
		return nil
	case model.KindList:
		l, ok := r.st().lists[ref.ID]
		if !ok {
			return apperr.NotFound("list not found")
		}
		l.Active = active
		l.UpdatedAt = r.m.now()
		r.st().lists[ref.ID] = l
		return nil
	}
	return apperr.InvalidArgument("unknown resource kind %q", ref.Kind)
}

func (r *repo) FindInvitation(ctx context.Context, resourceID, inviteeID string) (*model.Invitation, error) {
	if err := r.check("FindInvitation", false); err != nil {
		return nil, err
	}
	for _, inv := range r.st().invitations {
		if inv.ResourceID == resourceID && inv.InviteeID == inviteeID {
			return &inv, nil
		}
	}
	return nil, nil
}

func (r *repo) LockInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	if err := r.check("LockInvitation", true); err != nil {
		return nil, err
	}
	inv, ok := r.st().invitations[id]
	if !ok {
		return nil, apperr.NotFound("invitation not found")
	}
	return &inv, nil
}

func (r *repo) UpsertInvitation(ctx context.Context, inv *model.Invitation) error {
	if err := r.check("UpsertInvitation", true); err != nil {
		return err
	}
	if _, ok := r.st().accounts[inv.InviteeID]; !ok {
		return apperr.NotFound("referenced entity not found")
	}
	now := r.m.now()
	for id, cur := range r.st().invitations {
		if cur.ResourceID == inv.ResourceID && cur.InviteeID == inv.InviteeID {
			cur.GrantorID, cur.Role, cur.State, cur.UpdatedAt = inv.GrantorID, inv.Role, inv.State, now
			r.st().invitations[id] = cur
			*inv = cur
			return nil
		}
	}
	inv.ID = r.m.nextID("inv")
	inv.CreatedAt, inv.UpdatedAt = now, now
	r.st().invitations[inv.ID] = *inv
	return nil
}

func (r *repo) SetInvitationState(ctx context.Context, id string, state model.RequestState) error {
	if err := r.check("SetInvitationState", true); err != nil {
		return err
	}
	inv, ok := r.st().invitations[id]
	if !ok {
		return apperr.NotFound("invitation not found")
	}
	inv.State = state
	inv.UpdatedAt = r.m.now()
	r.st().invitations[id] = inv
	return nil
}

func (r *repo) DeleteInvitation(ctx context.Context, resourceID, inviteeID string) (bool, error) {
	if err := r.check("DeleteInvitation", true); err != nil {
		return false, err
	}
	for id, inv := range r.st().invitations {
		if inv.ResourceID == resourceID && inv.InviteeID == inviteeID {
			delete(r.st().invitations, id)
			return true, nil
		}
	}
	return false, nil
}

func (r *repo) ListInvitations(ctx context.Context, resourceID string) ([]model.Invitation, error) {
	if err := r.check("ListInvitations", false); err != nil {
		return nil, err
	}
	out := []model.Invitation{}
	for _, inv := range r.st().invitations {
		if inv.ResourceID == resourceID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *repo) ListInvitationsFor(ctx context.Context, inviteeID string, state model.RequestState) ([]model.Invitation, error) {
	if err := r.check("ListInvitationsFor", false); err != nil {
		return nil, err
	}
	out := []model.Invitation{}
	for _, inv := range r.st().invitations {
		if inv.InviteeID == inviteeID && inv.State == state {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
