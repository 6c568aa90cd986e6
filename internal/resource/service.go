// Package resource manages the lifecycle of events, lists and accounts:
// creation, updates, listing and activation.
package resource

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"musicroom-core/internal/access"
	"musicroom-core/internal/apperr"
	"musicroom-core/internal/geo"
	"musicroom-core/internal/model"
	"musicroom-core/internal/notify"
	"musicroom-core/internal/store"
)

type Service struct {
	store  store.Transactor
	access *access.Evaluator
	notify notify.Publisher
	now    func() time.Time
	log    *slog.Logger
}

func NewService(st store.Transactor, ev *access.Evaluator, pub notify.Publisher, now func() time.Time) *Service {
	if pub == nil {
		pub = notify.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  st,
		access: ev,
		notify: pub,
		now:    now,
		log:    slog.With("component", "resource"),
	}
}

type EventInput struct {
	Name       string
	Visibility model.Visibility
	AccessTier model.AccessTier
	Fence      *model.Fence
	StartsAt   *time.Time
	EndsAt     *time.Time
}

// EventPatch changes only the fields that are set. ClearWindow removes both
// bounds of the voting window.
type EventPatch struct {
	Name        *string
	Visibility  *model.Visibility
	AccessTier  *model.AccessTier
	Fence       *model.Fence
	StartsAt    *time.Time
	EndsAt      *time.Time
	ClearWindow bool
}

func validateEvent(ev *model.Event) error {
	if strings.TrimSpace(ev.Name) == "" {
		return apperr.InvalidArgument("name is required")
	}
	if !ev.Visibility.Valid() {
		return apperr.InvalidArgument("invalid visibility %q", ev.Visibility)
	}
	if !ev.AccessTier.Valid() {
		return apperr.InvalidArgument("invalid access tier %q", ev.AccessTier)
	}
	if ev.Fence != nil && !geo.ValidFence(*ev.Fence) {
		return apperr.InvalidArgument("invalid fence")
	}
	if ev.AccessTier == model.AccessLocation && ev.Fence == nil {
		return apperr.InvalidArgument("location events need a fence")
	}
	return nil
}

func (s *Service) CreateEvent(ctx context.Context, ownerID string, in EventInput) (*model.Event, error) {
	ev := &model.Event{
		OwnerID:    ownerID,
		Name:       strings.TrimSpace(in.Name),
		Visibility: in.Visibility,
		AccessTier: in.AccessTier,
		Fence:      in.Fence,
		StartsAt:   in.StartsAt,
		EndsAt:     in.EndsAt,
	}
	if ev.Visibility == "" {
		ev.Visibility = model.VisibilityPublic
	}
	if ev.AccessTier == "" {
		ev.AccessTier = model.AccessFree
	}
	if err := validateEvent(ev); err != nil {
		return nil, err
	}
	if err := validateVotingWindow(ev.StartsAt, ev.EndsAt, s.now()); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(r store.Repo) error {
		if _, err := r.GetAccount(ctx, ownerID); err != nil {
			return err
		}
		return r.CreateEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}

	s.notify.Publish(ctx, notify.Event{Type: "event.created", Payload: ev, Audience: notify.ToResource(ev.Resource().Ref())})
	return ev, nil
}

// GetEvent returns an event the principal can read. The owner and managers
// also see it while it is inactive.
func (s *Service) GetEvent(ctx context.Context, principalID, id string) (*model.Event, error) {
	var out *model.Event
	err := s.store.View(ctx, func(r store.Repo) error {
		ev, err := r.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if err := s.canRead(ctx, r, ev.Resource(), principalID); err != nil {
			return err
		}
		out = ev
		return nil
	})
	return out, err
}

func (s *Service) ListEvents(ctx context.Context, viewerID string) ([]model.Event, error) {
	var out []model.Event
	err := s.store.View(ctx, func(r store.Repo) error {
		var err error
		out, err = r.ListEvents(ctx, viewerID)
		return err
	})
	return out, err
}

func (s *Service) UpdateEvent(ctx context.Context, principalID, id string, p EventPatch) (*model.Event, error) {
	var out *model.Event
	err := s.store.InTx(ctx, func(r store.Repo) error {
		ev, err := r.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if err := s.canUpdate(ctx, r, ev.Resource(), principalID); err != nil {
			return err
		}

		if p.Name != nil {
			ev.Name = strings.TrimSpace(*p.Name)
		}
		if p.Visibility != nil {
			ev.Visibility = *p.Visibility
		}
		if p.AccessTier != nil {
			ev.AccessTier = *p.AccessTier
		}
		if p.Fence != nil {
			ev.Fence = p.Fence
		}
		windowChanged := p.ClearWindow || p.StartsAt != nil || p.EndsAt != nil
		if p.ClearWindow {
			ev.StartsAt, ev.EndsAt = nil, nil
		}
		if p.StartsAt != nil {
			ev.StartsAt = p.StartsAt
		}
		if p.EndsAt != nil {
			ev.EndsAt = p.EndsAt
		}

		if err := validateEvent(ev); err != nil {
			return err
		}
		if windowChanged {
			if err := validateVotingWindow(ev.StartsAt, ev.EndsAt, s.now()); err != nil {
				return err
			}
		}
		if err := r.UpdateEvent(ctx, ev); err != nil {
			return err
		}
		out = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.Publish(ctx, notify.Event{Type: "event.updated", Payload: out, Audience: notify.ToResource(out.Resource().Ref())})
	return out, nil
}

type ListInput struct {
	Name        string
	Description string
	Visibility  model.Visibility
	EditPolicy  model.EditPolicy
}

type ListPatch struct {
	Name        *string
	Description *string
	Visibility  *model.Visibility
	EditPolicy  *model.EditPolicy
}

func validateList(l *model.List) error {
	if strings.TrimSpace(l.Name) == "" {
		return apperr.InvalidArgument("name is required")
	}
	if !l.Visibility.Valid() {
		return apperr.InvalidArgument("invalid visibility %q", l.Visibility)
	}
	if !l.EditPolicy.Valid() {
		return apperr.InvalidArgument("invalid edit policy %q", l.EditPolicy)
	}
	return nil
}

func (s *Service) CreateList(ctx context.Context, ownerID string, in ListInput) (*model.List, error) {
	l := &model.List{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Visibility:  in.Visibility,
		EditPolicy:  in.EditPolicy,
	}
	if l.Visibility == "" {
		l.Visibility = model.VisibilityPublic
	}
	if l.EditPolicy == "" {
		l.EditPolicy = model.EditOpen
	}
	if err := validateList(l); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(r store.Repo) error {
		if _, err := r.GetAccount(ctx, ownerID); err != nil {
			return err
		}
		return r.CreateList(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	s.notify.Publish(ctx, notify.Event{Type: "list.created", Payload: l, Audience: notify.ToResource(l.Resource().Ref())})
	return l, nil
}

func (s *Service) GetList(ctx context.Context, principalID, id string) (*model.List, error) {
	var out *model.List
	err := s.store.View(ctx, func(r store.Repo) error {
		l, err := r.GetList(ctx, id)
		if err != nil {
			return err
		}
		if err := s.canRead(ctx, r, l.Resource(), principalID); err != nil {
			return err
		}
		out = l
		return nil
	})
	return out, err
}

func (s *Service) ListLists(ctx context.Context, viewerID string) ([]model.List, error) {
	var out []model.List
	err := s.store.View(ctx, func(r store.Repo) error {
		var err error
		out, err = r.ListLists(ctx, viewerID)
		return err
	})
	return out, err
}

func (s *Service) UpdateList(ctx context.Context, principalID, id string, p ListPatch) (*model.List, error) {
	var out *model.List
	err := s.store.InTx(ctx, func(r store.Repo) error {
		l, err := r.GetList(ctx, id)
		if err != nil {
			return err
		}
		if err := s.canUpdate(ctx, r, l.Resource(), principalID); err != nil {
			return err
		}

		if p.Name != nil {
			l.Name = strings.TrimSpace(*p.Name)
		}
		if p.Description != nil {
			l.Description = *p.Description
		}
		if p.Visibility != nil {
			l.Visibility = *p.Visibility
		}
		if p.EditPolicy != nil {
			l.EditPolicy = *p.EditPolicy
		}
		if err := validateList(l); err != nil {
			return err
		}
		if err := r.UpdateList(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.Publish(ctx, notify.Event{Type: "list.updated", Payload: out, Audience: notify.ToResource(out.Resource().Ref())})
	return out, nil
}

// SetActive deactivates or reactivates an event or list. Only the owner can
// bring an inactive resource back. Setting the current state again is a
// no-op.
func (s *Service) SetActive(ctx context.Context, principalID string, ref model.ResourceRef, active bool) error {
	if !ref.Kind.Valid() {
		return apperr.InvalidArgument("unknown resource kind %q", ref.Kind)
	}

	var changed bool
	err := s.store.InTx(ctx, func(r store.Repo) error {
		subj, err := access.Load(ctx, r, ref, principalID, true)
		if err != nil {
			return err
		}
		if err := s.access.CanManage(subj).Err(); err != nil {
			return err
		}
		if subj.Resource.Active == active {
			return nil
		}
		changed = true
		return r.SetActive(ctx, ref, active)
	})
	if err != nil {
		return err
	}

	if changed {
		typ := string(ref.Kind) + ".deactivated"
		if active {
			typ = string(ref.Kind) + ".reactivated"
		}
		s.log.Info("resource activation changed", "kind", ref.Kind, "id", ref.ID, "active", active)
		s.notify.Publish(ctx, notify.Event{
			Type:     typ,
			Payload:  map[string]any{"id": ref.ID, "active": active},
			Audience: notify.ToResource(ref),
		})
	}
	return nil
}

// CanView reports whether accountID may read ref right now. Lookup failures
// count as no.
func (s *Service) CanView(ctx context.Context, accountID string, ref model.ResourceRef) bool {
	err := s.store.View(ctx, func(r store.Repo) error {
		res, err := r.GetResource(ctx, ref, false)
		if err != nil {
			return err
		}
		return s.canRead(ctx, r, res, accountID)
	})
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		s.log.Warn("resolve event audience", "kind", ref.Kind, "id", ref.ID, "account", accountID, "error", err)
	}
	return err == nil
}

func (s *Service) canRead(ctx context.Context, r store.Repo, res model.Resource, principalID string) error {
	subj, err := access.LoadFor(ctx, r, res, principalID)
	if err != nil {
		return err
	}
	if s.access.CanAccess(subj).Allowed || s.access.CanManage(subj).Allowed {
		return nil
	}
	return s.access.CanAccess(subj).Err()
}

// canUpdate requires management rights on an active resource.
func (s *Service) canUpdate(ctx context.Context, r store.Repo, res model.Resource, principalID string) error {
	subj, err := access.LoadFor(ctx, r, res, principalID)
	if err != nil {
		return err
	}
	if !res.Active {
		return apperr.Forbidden("%s is inactive", res.Kind)
	}
	return s.access.CanManage(subj).Err()
}
