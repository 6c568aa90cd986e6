package httpapi

import (
	"context"

	"github.com/stretchr/testify/mock"

	"musicroom-core/internal/media"
	"musicroom-core/internal/model"
	"musicroom-core/internal/ranking"
	"musicroom-core/internal/relation"
	"musicroom-core/internal/resource"
)

type MockResources struct {
	mock.Mock
}

func (m *MockResources) CreateAccount(ctx context.Context, a *model.Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockResources) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*model.Account)
	return a, args.Error(1)
}

func (m *MockResources) SetTier(ctx context.Context, id string, tier model.Tier) error {
	return m.Called(ctx, id, tier).Error(0)
}

func (m *MockResources) CreateEvent(ctx context.Context, ownerID string, in resource.EventInput) (*model.Event, error) {
	args := m.Called(ctx, ownerID, in)
	ev, _ := args.Get(0).(*model.Event)
	return ev, args.Error(1)
}

func (m *MockResources) GetEvent(ctx context.Context, principalID, id string) (*model.Event, error) {
	args := m.Called(ctx, principalID, id)
	ev, _ := args.Get(0).(*model.Event)
	return ev, args.Error(1)
}

func (m *MockResources) ListEvents(ctx context.Context, viewerID string) ([]model.Event, error) {
	args := m.Called(ctx, viewerID)
	evs, _ := args.Get(0).([]model.Event)
	return evs, args.Error(1)
}

func (m *MockResources) UpdateEvent(ctx context.Context, principalID, id string, p resource.EventPatch) (*model.Event, error) {
	args := m.Called(ctx, principalID, id, p)
	ev, _ := args.Get(0).(*model.Event)
	return ev, args.Error(1)
}

func (m *MockResources) CreateList(ctx context.Context, ownerID string, in resource.ListInput) (*model.List, error) {
	args := m.Called(ctx, ownerID, in)
	l, _ := args.Get(0).(*model.List)
	return l, args.Error(1)
}

func (m *MockResources) GetList(ctx context.Context, principalID, id string) (*model.List, error) {
	args := m.Called(ctx, principalID, id)
	l, _ := args.Get(0).(*model.List)
	return l, args.Error(1)
}

func (m *MockResources) ListLists(ctx context.Context, viewerID string) ([]model.List, error) {
	args := m.Called(ctx, viewerID)
	ls, _ := args.Get(0).([]model.List)
	return ls, args.Error(1)
}

func (m *MockResources) UpdateList(ctx context.Context, principalID, id string, p resource.ListPatch) (*model.List, error) {
	args := m.Called(ctx, principalID, id, p)
	l, _ := args.Get(0).(*model.List)
	return l, args.Error(1)
}

func (m *MockResources) SetActive(ctx context.Context, principalID string, ref model.ResourceRef, active bool) error {
	return m.Called(ctx, principalID, ref, active).Error(0)
}

type MockRanking struct {
	mock.Mock
}

func (m *MockRanking) CastVote(ctx context.Context, req ranking.VoteRequest) (*ranking.VoteResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*ranking.VoteResult)
	return res, args.Error(1)
}

func (m *MockRanking) RetractVote(ctx context.Context, principalID, trackID string, at *model.Point) (*ranking.VoteResult, error) {
	args := m.Called(ctx, principalID, trackID, at)
	res, _ := args.Get(0).(*ranking.VoteResult)
	return res, args.Error(1)
}

func (m *MockRanking) AddTrack(ctx context.Context, req ranking.AddTrackRequest) (*model.Track, error) {
	args := m.Called(ctx, req)
	t, _ := args.Get(0).(*model.Track)
	return t, args.Error(1)
}

func (m *MockRanking) RemoveTrack(ctx context.Context, principalID, trackID string) error {
	return m.Called(ctx, principalID, trackID).Error(0)
}

func (m *MockRanking) MarkPlayed(ctx context.Context, principalID, trackID string) (*model.Track, error) {
	args := m.Called(ctx, principalID, trackID)
	t, _ := args.Get(0).(*model.Track)
	return t, args.Error(1)
}

func (m *MockRanking) PlayNext(ctx context.Context, principalID string, ref model.ResourceRef) (*model.Track, error) {
	args := m.Called(ctx, principalID, ref)
	t, _ := args.Get(0).(*model.Track)
	return t, args.Error(1)
}

func (m *MockRanking) Recompute(ctx context.Context, principalID string, ref model.ResourceRef) ([]model.Track, error) {
	args := m.Called(ctx, principalID, ref)
	ts, _ := args.Get(0).([]model.Track)
	return ts, args.Error(1)
}

func (m *MockRanking) Standings(ctx context.Context, principalID string, ref model.ResourceRef) ([]model.TrackStanding, error) {
	args := m.Called(ctx, principalID, ref)
	ts, _ := args.Get(0).([]model.TrackStanding)
	return ts, args.Error(1)
}

type MockRelations struct {
	mock.Mock
}

func (m *MockRelations) SendRequest(ctx context.Context, fromID, toID string) (*model.RelationshipRequest, error) {
	args := m.Called(ctx, fromID, toID)
	rr, _ := args.Get(0).(*model.RelationshipRequest)
	return rr, args.Error(1)
}

func (m *MockRelations) Resolve(ctx context.Context, actorID, requestID string, outcome relation.Outcome) (*model.RelationshipRequest, error) {
	args := m.Called(ctx, actorID, requestID, outcome)
	rr, _ := args.Get(0).(*model.RelationshipRequest)
	return rr, args.Error(1)
}

func (m *MockRelations) ListConnections(ctx context.Context, accountID string) ([]model.Relationship, error) {
	args := m.Called(ctx, accountID)
	rs, _ := args.Get(0).([]model.Relationship)
	return rs, args.Error(1)
}

func (m *MockRelations) RemoveConnection(ctx context.Context, accountID, peerID string) error {
	return m.Called(ctx, accountID, peerID).Error(0)
}

func (m *MockRelations) ListRequests(ctx context.Context, accountID string, incoming bool) ([]model.RelationshipRequest, error) {
	args := m.Called(ctx, accountID, incoming)
	rs, _ := args.Get(0).([]model.RelationshipRequest)
	return rs, args.Error(1)
}

func (m *MockRelations) Invite(ctx context.Context, req relation.InviteRequest) (*model.Invitation, error) {
	args := m.Called(ctx, req)
	inv, _ := args.Get(0).(*model.Invitation)
	return inv, args.Error(1)
}

func (m *MockRelations) Join(ctx context.Context, principalID string, ref model.ResourceRef) (*model.Invitation, error) {
	args := m.Called(ctx, principalID, ref)
	inv, _ := args.Get(0).(*model.Invitation)
	return inv, args.Error(1)
}

func (m *MockRelations) RespondInvitation(ctx context.Context, principalID, invitationID string, outcome relation.Outcome) (*model.Invitation, error) {
	args := m.Called(ctx, principalID, invitationID, outcome)
	inv, _ := args.Get(0).(*model.Invitation)
	return inv, args.Error(1)
}

func (m *MockRelations) RevokeInvitation(ctx context.Context, principalID string, ref model.ResourceRef, inviteeID string) error {
	return m.Called(ctx, principalID, ref, inviteeID).Error(0)
}

func (m *MockRelations) ListInvitations(ctx context.Context, principalID string, ref model.ResourceRef) ([]model.Invitation, error) {
	args := m.Called(ctx, principalID, ref)
	invs, _ := args.Get(0).([]model.Invitation)
	return invs, args.Error(1)
}

func (m *MockRelations) ListPendingInvitations(ctx context.Context, principalID string) ([]model.Invitation, error) {
	args := m.Called(ctx, principalID)
	invs, _ := args.Get(0).([]model.Invitation)
	return invs, args.Error(1)
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string, limit int) ([]media.Item, error) {
	args := m.Called(ctx, query, limit)
	items, _ := args.Get(0).([]media.Item)
	return items, args.Error(1)
}
