// Package ranking maintains per-track tallies and the ordering of unplayed
// tracks inside an event or list.
package ranking

import (
	"sort"
	"time"

	"musicroom-core/internal/model"
)

// Tally is the net score of a track. It never goes below zero.
func Tally(up, down int) int {
	if up <= down {
		return 0
	}
	return up - down
}

type Entry struct {
	TrackID string
	Tally   int
	AddedAt time.Time
}

// Rank orders entries by tally descending, then add time ascending, then
// track id, and assigns dense positions starting at 1. The input is not
// modified.
func Rank(entries []Entry) []model.Placement {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Tally != b.Tally {
			return a.Tally > b.Tally
		}
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return a.TrackID < b.TrackID
	})

	out := make([]model.Placement, len(sorted))
	for i, e := range sorted {
		out[i] = model.Placement{TrackID: e.TrackID, Position: i + 1}
	}
	return out
}

func entriesOf(tracks []model.Track) []Entry {
	out := make([]Entry, 0, len(tracks))
	for _, t := range tracks {
		if t.Status != model.TrackUnplayed {
			continue
		}
		out = append(out, Entry{TrackID: t.ID, Tally: t.Tally, AddedAt: t.AddedAt})
	}
	return out
}

// changed reports whether any placement differs from the current position.
func changed(tracks []model.Track, placements []model.Placement) bool {
	current := make(map[string]int, len(tracks))
	for _, t := range tracks {
		current[t.ID] = t.Position
	}
	for _, p := range placements {
		if current[p.TrackID] != p.Position {
			return true
		}
	}
	return false
}
