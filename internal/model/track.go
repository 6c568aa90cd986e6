package model

import "time"

type TrackStatus string

const (
	TrackUnplayed TrackStatus = "unplayed"
	TrackPlayed   TrackStatus = "played"
)

type Track struct {
	ID              string       `json:"id"`
	ResourceKind    ResourceKind `json:"resourceKind"`
	ResourceID      string       `json:"resourceId"`
	Title           string       `json:"title"`
	Artist          string       `json:"artist"`
	Provider        string       `json:"provider,omitempty"`
	ProviderTrackID string       `json:"providerTrackId,omitempty"`
	MediaURL        string       `json:"mediaUrl,omitempty"`
	DurationMs      int          `json:"durationMs,omitempty"`
	AddedBy         string       `json:"addedBy"`
	AddedAt         time.Time    `json:"addedAt"`
	Status          TrackStatus  `json:"status"`
	PlayedAt        *time.Time   `json:"playedAt,omitempty"`
	Tally           int          `json:"tally"`
	Position        int          `json:"position"`
}

// MediaReference returns the reference a player should use. The provider
// id wins over the plain URL when both are set.
func (t *Track) MediaReference() string {
	if t.ProviderTrackID != "" {
		return t.ProviderTrackID
	}
	return t.MediaURL
}

func (t *Track) Ref() ResourceRef { return ResourceRef{Kind: t.ResourceKind, ID: t.ResourceID} }

// TrackStanding is a ranked track as seen by one viewer.
type TrackStanding struct {
	Track
	MyVote int `json:"myVote"`
}
