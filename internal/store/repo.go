package store

import (
	"context"

	"musicroom-core/internal/model"
)

// Repo is the set of queries the engines run inside a transaction.
type Repo interface {
	AccountRepo
	RelationRepo
	ResourceRepo
	InvitationRepo
	TrackRepo
}

type AccountRepo interface {
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	SetAccountTier(ctx context.Context, id string, tier model.Tier) error
}

type RelationRepo interface {
	CreateRequest(ctx context.Context, requesterID, recipientID string) (*model.RelationshipRequest, error)
	// LockRequest loads a request and locks it for the rest of the transaction.
	LockRequest(ctx context.Context, id string) (*model.RelationshipRequest, error)
	ResolveRequest(ctx context.Context, id string, state model.RequestState) error
	ListRequests(ctx context.Context, accountID string, incoming bool) ([]model.RelationshipRequest, error)

	// InsertEdgePair creates a->b and b->a, ignoring edges that already exist.
	InsertEdgePair(ctx context.Context, a, b string) error
	// Connected reports whether both directed edges between a and b exist.
	Connected(ctx context.Context, a, b string) (bool, error)
	ListEdges(ctx context.Context, ownerID string) ([]model.Relationship, error)
	DeleteEdge(ctx context.Context, ownerID, peerID string) (bool, error)
}

type ResourceRepo interface {
	CreateEvent(ctx context.Context, ev *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	UpdateEvent(ctx context.Context, ev *model.Event) error
	ListEvents(ctx context.Context, viewerID string) ([]model.Event, error)

	CreateList(ctx context.Context, l *model.List) error
	GetList(ctx context.Context, id string) (*model.List, error)
	UpdateList(ctx context.Context, l *model.List) error
	ListLists(ctx context.Context, viewerID string) ([]model.List, error)

	// GetResource loads the access snapshot of an event or list. With lock
	// set the row is locked against concurrent updates.
	GetResource(ctx context.Context, ref model.ResourceRef, lock bool) (model.Resource, error)
	SetActive(ctx context.Context, ref model.ResourceRef, active bool) error
}

type InvitationRepo interface {
	// FindInvitation returns nil without error when the account holds no
	// invitation on the resource.
	FindInvitation(ctx context.Context, resourceID, inviteeID string) (*model.Invitation, error)
	LockInvitation(ctx context.Context, id string) (*model.Invitation, error)
	UpsertInvitation(ctx context.Context, inv *model.Invitation) error
	SetInvitationState(ctx context.Context, id string, state model.RequestState) error
	DeleteInvitation(ctx context.Context, resourceID, inviteeID string) (bool, error)
	ListInvitations(ctx context.Context, resourceID string) ([]model.Invitation, error)
	ListInvitationsFor(ctx context.Context, inviteeID string, state model.RequestState) ([]model.Invitation, error)
}

type TrackRepo interface {
	InsertTrack(ctx context.Context, t *model.Track) error
	GetTrack(ctx context.Context, id string) (*model.Track, error)
	LockTrack(ctx context.Context, id string) (*model.Track, error)
	DeleteTrack(ctx context.Context, id string) error
	MarkPlayed(ctx context.Context, id string) error
	ListTracks(ctx context.Context, resourceID string) ([]model.Track, error)
	// LockUnplayed locks and returns every unplayed track of a resource.
	LockUnplayed(ctx context.Context, resourceID string) ([]model.Track, error)
	SetPositions(ctx context.Context, resourceID string, placements []model.Placement) error
	SetTally(ctx context.Context, trackID string, tally int) error

	UpsertVote(ctx context.Context, v model.Vote) error
	DeleteVote(ctx context.Context, accountID, trackID string) (bool, error)
	CountVotes(ctx context.Context, trackID string) (up, down int, err error)
	VotesBy(ctx context.Context, accountID, resourceID string) (map[string]int, error)
}

var _ Repo = (*Queries)(nil)
