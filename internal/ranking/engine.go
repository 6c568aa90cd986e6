package ranking

import (
	"context"
	"log/slog"
	"strings"

	"musicroom-core/internal/access"
	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
	"musicroom-core/internal/notify"
	"musicroom-core/internal/store"
)

// FenceChecker is the geolocation collaborator.
type FenceChecker interface {
	Inside(fence *model.Fence, at *model.Point) bool
}

type Engine struct {
	store  store.Transactor
	access *access.Evaluator
	fences FenceChecker
	notify notify.Publisher
	log    *slog.Logger
}

func NewEngine(st store.Transactor, ev *access.Evaluator, fences FenceChecker, pub notify.Publisher) *Engine {
	if pub == nil {
		pub = notify.Nop{}
	}
	return &Engine{
		store:  st,
		access: ev,
		fences: fences,
		notify: pub,
		log:    slog.With("component", "ranking"),
	}
}

type VoteRequest struct {
	PrincipalID string
	TrackID     string
	Direction   int
	Location    *model.Point
}

type VoteResult struct {
	TrackID    string `json:"trackId"`
	ResourceID string `json:"resourceId"`
	Direction  int    `json:"direction"`
	Tally      int    `json:"tally"`
	Position   int    `json:"position"`
}

type TrackInput struct {
	Title           string
	Artist          string
	Provider        string
	ProviderTrackID string
	MediaURL        string
	DurationMs      int
}

type AddTrackRequest struct {
	PrincipalID string
	Resource    model.ResourceRef
	Track       TrackInput
	Location    *model.Point
}

// publish announces a change to the accounts allowed to read ref.
func (e *Engine) publish(ctx context.Context, ref model.ResourceRef, typ string, payload any) {
	e.notify.Publish(ctx, notify.Event{Type: typ, Payload: payload, Audience: notify.ToResource(ref)})
}

func (e *Engine) subject(ctx context.Context, r store.Repo, ref model.ResourceRef, principalID string, at *model.Point) (access.Subject, error) {
	s, err := access.Load(ctx, r, ref, principalID, false)
	if err != nil {
		return access.Subject{}, err
	}
	if s.Resource.AccessTier == model.AccessLocation && e.fences != nil {
		s.InsideFence = e.fences.Inside(s.Resource.Fence, at)
	}
	return s, nil
}

// CastVote records or replaces the caller's vote on a track, then
// recomputes the track's tally and the positions of its resource in the
// same transaction.
func (e *Engine) CastVote(ctx context.Context, req VoteRequest) (*VoteResult, error) {
	if req.Direction != model.VoteUp && req.Direction != model.VoteDown {
		return nil, apperr.InvalidArgument("direction must be 1 or -1")
	}

	var res VoteResult
	var ref model.ResourceRef
	err := e.store.InTx(ctx, func(r store.Repo) error {
		t, err := r.GetTrack(ctx, req.TrackID)
		if err != nil {
			return err
		}
		ref = t.Ref()
		s, err := e.subject(ctx, r, t.Ref(), req.PrincipalID, req.Location)
		if err != nil {
			return err
		}
		if d := e.access.CanVote(s); !d.Allowed {
			return d.Err()
		}
		if t.Status != model.TrackUnplayed {
			return apperr.InvalidArgument("track already played")
		}

		unplayed, err := r.LockUnplayed(ctx, t.ResourceID)
		if err != nil {
			return err
		}
		if find(unplayed, t.ID) < 0 {
			return apperr.NotFound("track not found")
		}

		if err := r.UpsertVote(ctx, model.Vote{
			AccountID:  req.PrincipalID,
			TrackID:    t.ID,
			ResourceID: t.ResourceID,
			Direction:  req.Direction,
		}); err != nil {
			return err
		}

		tally, positions, err := e.retally(ctx, r, t.ID, t.ResourceID, unplayed)
		if err != nil {
			return err
		}
		res = VoteResult{
			TrackID:    t.ID,
			ResourceID: t.ResourceID,
			Direction:  req.Direction,
			Tally:      tally,
			Position:   positions[t.ID],
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, ref, "track.voted", res)
	e.publish(ctx, ref, "resource.reranked", map[string]any{"resourceId": res.ResourceID})
	return &res, nil
}

// RetractVote removes the caller's vote. Retracting a vote that does not
// exist succeeds and leaves the ranking unchanged.
func (e *Engine) RetractVote(ctx context.Context, principalID, trackID string, at *model.Point) (*VoteResult, error) {
	var res VoteResult
	var ref model.ResourceRef
	var removed bool
	err := e.store.InTx(ctx, func(r store.Repo) error {
		t, err := r.GetTrack(ctx, trackID)
		if err != nil {
			return err
		}
		ref = t.Ref()
		s, err := e.subject(ctx, r, t.Ref(), principalID, at)
		if err != nil {
			return err
		}
		if d := e.access.CanVote(s); !d.Allowed {
			return d.Err()
		}
		if t.Status != model.TrackUnplayed {
			return apperr.InvalidArgument("track already played")
		}

		unplayed, err := r.LockUnplayed(ctx, t.ResourceID)
		if err != nil {
			return err
		}
		if find(unplayed, t.ID) < 0 {
			return apperr.NotFound("track not found")
		}

		removed, err = r.DeleteVote(ctx, principalID, t.ID)
		if err != nil {
			return err
		}
		res = VoteResult{TrackID: t.ID, ResourceID: t.ResourceID, Tally: t.Tally, Position: t.Position}
		if !removed {
			return nil
		}

		tally, positions, err := e.retally(ctx, r, t.ID, t.ResourceID, unplayed)
		if err != nil {
			return err
		}
		res.Tally = tally
		res.Position = positions[t.ID]
		return nil
	})
	if err != nil {
		return nil, err
	}

	if removed {
		e.publish(ctx, ref, "track.voted", res)
		e.publish(ctx, ref, "resource.reranked", map[string]any{"resourceId": res.ResourceID})
	}
	return &res, nil
}

// retally recounts the votes of one track and reranks its resource.
// unplayed must be the locked unplayed tracks of the resource.
func (e *Engine) retally(ctx context.Context, r store.Repo, trackID, resourceID string, unplayed []model.Track) (int, map[string]int, error) {
	up, down, err := r.CountVotes(ctx, trackID)
	if err != nil {
		return 0, nil, err
	}
	tally := Tally(up, down)
	if err := r.SetTally(ctx, trackID, tally); err != nil {
		return 0, nil, err
	}
	if i := find(unplayed, trackID); i >= 0 {
		unplayed[i].Tally = tally
	}

	positions, err := rerank(ctx, r, resourceID, unplayed)
	if err != nil {
		return 0, nil, err
	}
	return tally, positions, nil
}

// rerank assigns dense positions to the given unplayed tracks and persists
// them when they differ from the stored ones.
func rerank(ctx context.Context, r store.Repo, resourceID string, unplayed []model.Track) (map[string]int, error) {
	placements := Rank(entriesOf(unplayed))
	if changed(unplayed, placements) {
		if err := r.SetPositions(ctx, resourceID, placements); err != nil {
			return nil, err
		}
	}
	out := make(map[string]int, len(placements))
	for _, p := range placements {
		out[p.TrackID] = p.Position
	}
	return out, nil
}

func find(tracks []model.Track, id string) int {
	for i := range tracks {
		if tracks[i].ID == id {
			return i
		}
	}
	return -1
}

func (in TrackInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.InvalidArgument("title is required")
	}
	if strings.TrimSpace(in.ProviderTrackID) == "" && strings.TrimSpace(in.MediaURL) == "" {
		return apperr.InvalidArgument("track needs a media reference")
	}
	if in.DurationMs < 0 {
		return apperr.InvalidArgument("duration must not be negative")
	}
	return nil
}

// AddTrack proposes a track. Events require the right to vote, lists the
// right to edit. The new track starts with a zero tally at the end of the
// ranking.
func (e *Engine) AddTrack(ctx context.Context, req AddTrackRequest) (*model.Track, error) {
	if err := req.Track.validate(); err != nil {
		return nil, err
	}

	var out model.Track
	err := e.store.InTx(ctx, func(r store.Repo) error {
		res, err := r.GetResource(ctx, req.Resource, true)
		if err != nil {
			return err
		}
		s, err := access.LoadFor(ctx, r, res, req.PrincipalID)
		if err != nil {
			return err
		}
		if res.AccessTier == model.AccessLocation && e.fences != nil {
			s.InsideFence = e.fences.Inside(res.Fence, req.Location)
		}

		d := e.access.CanEdit(s)
		if res.Kind == model.KindEvent {
			d = e.access.CanVote(s)
		}
		if !d.Allowed {
			return d.Err()
		}

		unplayed, err := r.LockUnplayed(ctx, res.ID)
		if err != nil {
			return err
		}

		t := model.Track{
			ResourceKind:    res.Kind,
			ResourceID:      res.ID,
			Title:           strings.TrimSpace(req.Track.Title),
			Artist:          strings.TrimSpace(req.Track.Artist),
			Provider:        req.Track.Provider,
			ProviderTrackID: strings.TrimSpace(req.Track.ProviderTrackID),
			MediaURL:        strings.TrimSpace(req.Track.MediaURL),
			DurationMs:      req.Track.DurationMs,
			AddedBy:         req.PrincipalID,
		}
		if err := r.InsertTrack(ctx, &t); err != nil {
			return err
		}

		positions, err := rerank(ctx, r, res.ID, append(unplayed, t))
		if err != nil {
			return err
		}
		t.Position = positions[t.ID]
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, out.Ref(), "track.added", out)
	return &out, nil
}

// RemoveTrack deletes a track and its votes. On events the owner, a manager
// or the account that proposed the track may remove it; on lists anyone
// who can edit.
func (e *Engine) RemoveTrack(ctx context.Context, principalID, trackID string) error {
	var ref model.ResourceRef
	err := e.store.InTx(ctx, func(r store.Repo) error {
		t, err := r.GetTrack(ctx, trackID)
		if err != nil {
			return err
		}
		ref = t.Ref()
		s, err := access.Load(ctx, r, ref, principalID, false)
		if err != nil {
			return err
		}
		if err := e.canRemove(s, t); err != nil {
			return err
		}

		unplayed, err := r.LockUnplayed(ctx, t.ResourceID)
		if err != nil {
			return err
		}
		if err := r.DeleteTrack(ctx, t.ID); err != nil {
			return err
		}
		if i := find(unplayed, t.ID); i >= 0 {
			unplayed = append(unplayed[:i], unplayed[i+1:]...)
		}
		_, err = rerank(ctx, r, t.ResourceID, unplayed)
		return err
	})
	if err != nil {
		return err
	}

	e.publish(ctx, ref, "track.removed", map[string]any{"trackId": trackID, "resourceId": ref.ID})
	e.publish(ctx, ref, "resource.reranked", map[string]any{"resourceId": ref.ID})
	return nil
}

func (e *Engine) canRemove(s access.Subject, t *model.Track) error {
	if s.Resource.Kind == model.KindList {
		return e.access.CanEdit(s).Err()
	}
	if d := e.access.CanManage(s); d.Allowed && s.Resource.Active {
		return nil
	}
	if t.AddedBy == s.Principal.ID {
		return e.access.CanAccess(s).Err()
	}
	return apperr.Forbidden("only the owner or the proposer can remove this track")
}

// canPlay gates playback transitions: managers on events, editors on lists.
func (e *Engine) canPlay(s access.Subject) error {
	if s.Resource.Kind == model.KindList {
		return e.access.CanEdit(s).Err()
	}
	if !s.Resource.Active {
		return e.access.CanAccess(s).Err()
	}
	return e.access.CanManage(s).Err()
}

// MarkPlayed moves a track to played. It keeps its tally and position and
// leaves the ranking; the remaining unplayed tracks are renumbered.
func (e *Engine) MarkPlayed(ctx context.Context, principalID, trackID string) (*model.Track, error) {
	var out model.Track
	err := e.store.InTx(ctx, func(r store.Repo) error {
		t, err := r.GetTrack(ctx, trackID)
		if err != nil {
			return err
		}
		s, err := access.Load(ctx, r, t.Ref(), principalID, false)
		if err != nil {
			return err
		}
		if err := e.canPlay(s); err != nil {
			return err
		}
		if t.Status != model.TrackUnplayed {
			return apperr.InvalidArgument("track already played")
		}
		unplayed, err := r.LockUnplayed(ctx, t.ResourceID)
		if err != nil {
			return err
		}
		played, err := e.markPlayed(ctx, r, t.ResourceID, t.ID, unplayed)
		if err != nil {
			return err
		}
		out = *played
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publishPlayed(ctx, &out)
	return &out, nil
}

// PlayNext marks the top ranked unplayed track as played and returns it.
func (e *Engine) PlayNext(ctx context.Context, principalID string, ref model.ResourceRef) (*model.Track, error) {
	var out model.Track
	err := e.store.InTx(ctx, func(r store.Repo) error {
		s, err := access.Load(ctx, r, ref, principalID, false)
		if err != nil {
			return err
		}
		if err := e.canPlay(s); err != nil {
			return err
		}
		unplayed, err := r.LockUnplayed(ctx, ref.ID)
		if err != nil {
			return err
		}
		if len(unplayed) == 0 {
			return apperr.NotFound("no unplayed tracks")
		}
		top := Rank(entriesOf(unplayed))[0]
		played, err := e.markPlayed(ctx, r, ref.ID, top.TrackID, unplayed)
		if err != nil {
			return err
		}
		out = *played
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publishPlayed(ctx, &out)
	return &out, nil
}

func (e *Engine) markPlayed(ctx context.Context, r store.Repo, resourceID, trackID string, unplayed []model.Track) (*model.Track, error) {
	i := find(unplayed, trackID)
	if i < 0 {
		return nil, apperr.NotFound("track not found")
	}
	if err := r.MarkPlayed(ctx, trackID); err != nil {
		return nil, err
	}
	rest := append(append([]model.Track{}, unplayed[:i]...), unplayed[i+1:]...)
	if _, err := rerank(ctx, r, resourceID, rest); err != nil {
		return nil, err
	}
	return r.GetTrack(ctx, trackID)
}

func (e *Engine) publishPlayed(ctx context.Context, t *model.Track) {
	e.publish(ctx, t.Ref(), "track.played", t)
	e.publish(ctx, t.Ref(), "resource.reranked", map[string]any{"resourceId": t.ResourceID})
}

// Recompute rebuilds every unplayed tally from the raw votes and reranks
// the resource.
func (e *Engine) Recompute(ctx context.Context, principalID string, ref model.ResourceRef) ([]model.Track, error) {
	var out []model.Track
	err := e.store.InTx(ctx, func(r store.Repo) error {
		s, err := access.Load(ctx, r, ref, principalID, false)
		if err != nil {
			return err
		}
		if err := e.access.CanManage(s).Err(); err != nil {
			return err
		}
		unplayed, err := r.LockUnplayed(ctx, ref.ID)
		if err != nil {
			return err
		}
		for i := range unplayed {
			up, down, err := r.CountVotes(ctx, unplayed[i].ID)
			if err != nil {
				return err
			}
			tally := Tally(up, down)
			if tally != unplayed[i].Tally {
				if err := r.SetTally(ctx, unplayed[i].ID, tally); err != nil {
					return err
				}
				unplayed[i].Tally = tally
			}
		}
		if _, err := rerank(ctx, r, ref.ID, unplayed); err != nil {
			return err
		}
		out, err = r.ListTracks(ctx, ref.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, ref, "resource.reranked", map[string]any{"resourceId": ref.ID})
	return out, nil
}

// Standings returns the tracks of a resource in ranked order, unplayed
// first, each with the viewer's own vote.
func (e *Engine) Standings(ctx context.Context, principalID string, ref model.ResourceRef) ([]model.TrackStanding, error) {
	var out []model.TrackStanding
	err := e.store.View(ctx, func(r store.Repo) error {
		s, err := access.Load(ctx, r, ref, principalID, false)
		if err != nil {
			return err
		}
		if err := e.access.CanAccess(s).Err(); err != nil {
			return err
		}
		tracks, err := r.ListTracks(ctx, ref.ID)
		if err != nil {
			return err
		}
		mine, err := r.VotesBy(ctx, principalID, ref.ID)
		if err != nil {
			return err
		}
		out = make([]model.TrackStanding, len(tracks))
		for i, t := range tracks {
			out[i] = model.TrackStanding{Track: t, MyVote: mine[t.ID]}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
