// Package model holds the persistent entities of the music room core.
package model

import "time"

type Tier string

const (
	TierStandard Tier = "standard"
	TierElevated Tier = "elevated"
)

func (t Tier) Valid() bool { return t == TierStandard || t == TierElevated }

type Account struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Contact   string    `json:"contact"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"createdAt"`
}

// Principal is the caller identity the access evaluator reasons about.
type Principal struct {
	ID   string
	Tier Tier
}

func (a *Account) Principal() Principal {
	return Principal{ID: a.ID, Tier: a.Tier}
}

type RequestState string

const (
	RequestPending  RequestState = "pending"
	RequestAccepted RequestState = "accepted"
	RequestDeclined RequestState = "declined"
)

type RelationshipRequest struct {
	ID          string       `json:"id"`
	RequesterID string       `json:"requesterId"`
	RecipientID string       `json:"recipientId"`
	State       RequestState `json:"state"`
	CreatedAt   time.Time    `json:"createdAt"`
	ResolvedAt  *time.Time   `json:"resolvedAt,omitempty"`
}

// Relationship is one directed edge. An accepted request produces two.
type Relationship struct {
	OwnerID   string    `json:"ownerId"`
	PeerID    string    `json:"peerId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Vote struct {
	AccountID  string    `json:"accountId"`
	TrackID    string    `json:"trackId"`
	ResourceID string    `json:"resourceId"`
	Direction  int       `json:"direction"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

const (
	VoteUp   = 1
	VoteDown = -1
)

// Placement is a computed position for an unplayed track.
type Placement struct {
	TrackID  string
	Position int
}
