// Package media searches third-party catalogues for tracks that can be
// added to an event or list.
package media

import (
	"context"
	"errors"
)

type Item struct {
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Provider        string `json:"provider"`
	ProviderTrackID string `json:"providerTrackId"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	DurationMs      int    `json:"durationMs,omitempty"`
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Item, error)
}

// ErrUpstream is returned when the provider could not be queried.
var ErrUpstream = errors.New("media provider unavailable")

const (
	DefaultLimit = 10
	MaxLimit     = 25
)

// ClampLimit maps out of range limits to the default.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxLimit {
		return DefaultLimit
	}
	return limit
}
