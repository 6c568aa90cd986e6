package access

import (
	"context"

	"musicroom-core/internal/model"
)

// SubjectSource is the part of the store needed to build a Subject.
type SubjectSource interface {
	GetResource(ctx context.Context, ref model.ResourceRef, lock bool) (model.Resource, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	FindInvitation(ctx context.Context, resourceID, inviteeID string) (*model.Invitation, error)
}

// Load reads the resource, the principal's account and the principal's
// invitation on that resource. InsideFence is left for the caller.
func Load(ctx context.Context, src SubjectSource, ref model.ResourceRef, principalID string, lock bool) (Subject, error) {
	res, err := src.GetResource(ctx, ref, lock)
	if err != nil {
		return Subject{}, err
	}
	return LoadFor(ctx, src, res, principalID)
}

// LoadFor is Load for an already loaded resource.
func LoadFor(ctx context.Context, src SubjectSource, res model.Resource, principalID string) (Subject, error) {
	acc, err := src.GetAccount(ctx, principalID)
	if err != nil {
		return Subject{}, err
	}
	inv, err := src.FindInvitation(ctx, res.ID, principalID)
	if err != nil {
		return Subject{}, err
	}
	return Subject{
		Resource:   res,
		Principal:  acc.Principal(),
		Invitation: inv,
	}, nil
}
