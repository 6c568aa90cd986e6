package storetest

import (
	"context"
	"fmt"
	"sort"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
)

func (r *repo) InsertTrack(ctx context.Context, t *model.Track) error {
	if err := r.check("InsertTrack", true); err != nil {
		return err
	}
	if t.ProviderTrackID == "" && t.MediaURL == "" {
		return apperr.InvalidArgument("invalid track")
	}
	switch t.ResourceKind {
	case model.KindEvent:
		if _, ok := r.st().events[t.ResourceID]; !ok {
			return apperr.NotFound("referenced entity not found")
		}
	case model.KindList:
		if _, ok := r.st().lists[t.ResourceID]; !ok {
			return apperr.NotFound("referenced entity not found")
		}
	default:
		return apperr.InvalidArgument("unknown resource kind %q", t.ResourceKind)
	}

	last := 0
	for _, other := range r.st().tracks {
		if other.ResourceID == t.ResourceID && other.Status == model.TrackUnplayed && other.Position > last {
			last = other.Position
		}
	}
	t.ID = r.m.nextID("tr")
	t.AddedAt = r.m.now()
	t.Status = model.TrackUnplayed
	t.Tally = 0
	t.Position = last + 1
	r.st().tracks[t.ID] = *t
	return nil
}

func (r *repo) GetTrack(ctx context.Context, id string) (*model.Track, error) {
	if err := r.check("GetTrack", false); err != nil {
		return nil, err
	}
	t, ok := r.st().tracks[id]
	if !ok {
		return nil, apperr.NotFound("track not found")
	}
	return &t, nil
}

func (r *repo) LockTrack(ctx context.Context, id string) (*model.Track, error) {
	if err := r.check("LockTrack", true); err != nil {
		return nil, err
	}
	t, ok := r.st().tracks[id]
	if !ok {
		return nil, apperr.NotFound("track not found")
	}
	return &t, nil
}

func (r *repo) DeleteTrack(ctx context.Context, id string) error {
	if err := r.check("DeleteTrack", true); err != nil {
		return err
	}
	if _, ok := r.st().tracks[id]; !ok {
		return apperr.NotFound("track not found")
	}
	delete(r.st().tracks, id)
	for k := range r.st().votes {
		if k.track == id {
			delete(r.st().votes, k)
		}
	}
	return nil
}

func (r *repo) MarkPlayed(ctx context.Context, id string) error {
	if err := r.check("MarkPlayed", true); err != nil {
		return err
	}
	t, ok := r.st().tracks[id]
	if !ok || t.Status != model.TrackUnplayed {
		return apperr.InvalidArgument("track already played")
	}
	now := r.m.now()
	t.Status = model.TrackPlayed
	t.PlayedAt = &now
	r.st().tracks[id] = t
	return nil
}

func (r *repo) ListTracks(ctx context.Context, resourceID string) ([]model.Track, error) {
	if err := r.check("ListTracks", false); err != nil {
		return nil, err
	}
	out := []model.Track{}
	for _, t := range r.st().tracks {
		if t.ResourceID == resourceID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Status != b.Status {
			return a.Status == model.TrackUnplayed
		}
		if a.Status == model.TrackUnplayed && a.Position != b.Position {
			return a.Position < b.Position
		}
		if a.PlayedAt != nil && b.PlayedAt != nil && !a.PlayedAt.Equal(*b.PlayedAt) {
			return a.PlayedAt.After(*b.PlayedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r *repo) LockUnplayed(ctx context.Context, resourceID string) ([]model.Track, error) {
	if err := r.check("LockUnplayed", true); err != nil {
		return nil, err
	}
	out := []model.Track{}
	for _, t := range r.st().tracks {
		if t.ResourceID == resourceID && t.Status == model.TrackUnplayed {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *repo) SetPositions(ctx context.Context, resourceID string, placements []model.Placement) error {
	if err := r.check("SetPositions", true); err != nil {
		return err
	}
	for _, p := range placements {
		t, ok := r.st().tracks[p.TrackID]
		if !ok || t.ResourceID != resourceID {
			continue
		}
		t.Position = p.Position
		r.st().tracks[p.TrackID] = t
	}

	seen := map[int]string{}
	for _, t := range r.st().tracks {
		if t.ResourceID != resourceID || t.Status != model.TrackUnplayed {
			continue
		}
		if other, dup := seen[t.Position]; dup {
			return fmt.Errorf("duplicate position %d for %s and %s", t.Position, other, t.ID)
		}
		seen[t.Position] = t.ID
	}
	return nil
}

func (r *repo) SetTally(ctx context.Context, trackID string, tally int) error {
	if err := r.check("SetTally", true); err != nil {
		return err
	}
	t, ok := r.st().tracks[trackID]
	if !ok {
		return apperr.NotFound("track not found")
	}
	t.Tally = tally
	r.st().tracks[trackID] = t
	return nil
}

func (r *repo) UpsertVote(ctx context.Context, v model.Vote) error {
	if err := r.check("UpsertVote", true); err != nil {
		return err
	}
	if v.Direction != model.VoteUp && v.Direction != model.VoteDown {
		return apperr.InvalidArgument("invalid vote")
	}
	if _, ok := r.st().tracks[v.TrackID]; !ok {
		return apperr.NotFound("referenced entity not found")
	}
	k := voteKey{v.AccountID, v.TrackID}
	now := r.m.now()
	if cur, ok := r.st().votes[k]; ok {
		cur.Direction = v.Direction
		cur.UpdatedAt = now
		r.st().votes[k] = cur
		return nil
	}
	v.CreatedAt, v.UpdatedAt = now, now
	r.st().votes[k] = v
	return nil
}

func (r *repo) DeleteVote(ctx context.Context, accountID, trackID string) (bool, error) {
	if err := r.check("DeleteVote", true); err != nil {
		return false, err
	}
	k := voteKey{accountID, trackID}
	if _, ok := r.st().votes[k]; !ok {
		return false, nil
	}
	delete(r.st().votes, k)
	return true, nil
}

func (r *repo) CountVotes(ctx context.Context, trackID string) (up, down int, err error) {
	if err := r.check("CountVotes", false); err != nil {
		return 0, 0, err
	}
	for k, v := range r.st().votes {
		if k.track != trackID {
			continue
		}
		if v.Direction > 0 {
			up++
		} else {
			down++
		}
	}
	return up, down, nil
}

func (r *repo) VotesBy(ctx context.Context, accountID, resourceID string) (map[string]int, error) {
	if err := r.check("VotesBy", false); err != nil {
		return nil, err
	}
	out := map[string]int{}
	for k, v := range r.st().votes {
		if k.account == accountID && v.ResourceID == resourceID {
			out[k.track] = v.Direction
		}
	}
	return out, nil
}
