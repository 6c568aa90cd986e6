package resource

import (
	"context"
	"strings"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
	"musicroom-core/internal/notify"
	"musicroom-core/internal/store"
)

// CreateAccount registers an account. The identity provider owns the id;
// the core only keeps what access decisions need.
func (s *Service) CreateAccount(ctx context.Context, a *model.Account) error {
	a.Handle = strings.TrimSpace(a.Handle)
	a.Contact = strings.TrimSpace(a.Contact)
	if a.ID == "" || a.Handle == "" || a.Contact == "" {
		return apperr.InvalidArgument("id, handle and contact are required")
	}
	if a.Tier == "" {
		a.Tier = model.TierStandard
	}
	if !a.Tier.Valid() {
		return apperr.InvalidArgument("invalid tier %q", a.Tier)
	}

	err := s.store.InTx(ctx, func(r store.Repo) error {
		return r.CreateAccount(ctx, a)
	})
	if err != nil {
		return err
	}
	s.notify.Publish(ctx, notify.Event{
		Type:     "account.created",
		Payload:  map[string]any{"id": a.ID},
		Audience: notify.ToAccounts(a.ID),
	})
	return nil
}

func (s *Service) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var out *model.Account
	err := s.store.View(ctx, func(r store.Repo) error {
		var err error
		out, err = r.GetAccount(ctx, id)
		return err
	})
	return out, err
}

// SetTier is called by billing when an account is upgraded or downgraded.
func (s *Service) SetTier(ctx context.Context, id string, tier model.Tier) error {
	if !tier.Valid() {
		return apperr.InvalidArgument("invalid tier %q", tier)
	}
	return s.store.InTx(ctx, func(r store.Repo) error {
		return r.SetAccountTier(ctx, id, tier)
	})
}
