package httpapi

import (
	"net/http"
	"strconv"

	"musicroom-core/internal/model"
	"musicroom-core/internal/ranking"
)

type location struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

func (l *location) point() *model.Point {
	if l == nil {
		return nil
	}
	return &model.Point{Lat: l.Lat, Lng: l.Lng}
}

// locationFromQuery reads lat and lng for requests without a body. Both
// must be present to count.
func locationFromQuery(r *http.Request) (*model.Point, bool) {
	q := r.URL.Query()
	rawLat, rawLng := q.Get("lat"), q.Get("lng")
	if rawLat == "" && rawLng == "" {
		return nil, true
	}
	lat, err1 := strconv.ParseFloat(rawLat, 64)
	lng, err2 := strconv.ParseFloat(rawLng, 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, false
	}
	return &model.Point{Lat: lat, Lng: lng}, true
}

func (s *Server) handleStandings(kind model.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		tracks, err := s.ranking.Standings(r.Context(), AccountID(r), model.ResourceRef{Kind: kind, ID: id})
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(tracks))
	}
}

type addTrackRequest struct {
	Title           string    `json:"title" validate:"required,max=300"`
	Artist          string    `json:"artist" validate:"max=300"`
	Provider        string    `json:"provider" validate:"max=50"`
	ProviderTrackID string    `json:"providerTrackId" validate:"required_without=MediaURL,max=200"`
	MediaURL        string    `json:"mediaUrl" validate:"omitempty,url,max=2000"`
	DurationMs      int       `json:"durationMs" validate:"gte=0"`
	Location        *location `json:"location"`
}

func (s *Server) handleAddTrack(kind model.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req addTrackRequest
		if !s.decode(w, r, &req) {
			return
		}
		t, err := s.ranking.AddTrack(r.Context(), ranking.AddTrackRequest{
			PrincipalID: AccountID(r),
			Resource:    model.ResourceRef{Kind: kind, ID: id},
			Track: ranking.TrackInput{
				Title:           req.Title,
				Artist:          req.Artist,
				Provider:        req.Provider,
				ProviderTrackID: req.ProviderTrackID,
				MediaURL:        req.MediaURL,
				DurationMs:      req.DurationMs,
			},
			Location: req.Location.point(),
		})
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

func (s *Server) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	trackID, ok := pathID(w, r, "trackId")
	if !ok {
		return
	}
	if err := s.ranking.RemoveTrack(r.Context(), AccountID(r), trackID); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkPlayed(w http.ResponseWriter, r *http.Request) {
	trackID, ok := pathID(w, r, "trackId")
	if !ok {
		return
	}
	t, err := s.ranking.MarkPlayed(r.Context(), AccountID(r), trackID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handlePlayNext(kind model.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		t, err := s.ranking.PlayNext(r.Context(), AccountID(r), model.ResourceRef{Kind: kind, ID: id})
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) handleRecompute(kind model.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		tracks, err := s.ranking.Recompute(r.Context(), AccountID(r), model.ResourceRef{Kind: kind, ID: id})
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(tracks))
	}
}

type voteRequest struct {
	Direction int       `json:"direction" validate:"oneof=1 -1"`
	Location  *location `json:"location"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	trackID, ok := pathID(w, r, "trackId")
	if !ok {
		return
	}
	var req voteRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.ranking.CastVote(r.Context(), ranking.VoteRequest{
		PrincipalID: AccountID(r),
		TrackID:     trackID,
		Direction:   req.Direction,
		Location:    req.Location.point(),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRetractVote(w http.ResponseWriter, r *http.Request) {
	trackID, ok := pathID(w, r, "trackId")
	if !ok {
		return
	}
	at, ok := locationFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid location")
		return
	}
	res, err := s.ranking.RetractVote(r.Context(), AccountID(r), trackID, at)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
