// Package httpapi exposes the music room core over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"musicroom-core/internal/media"
	"musicroom-core/internal/model"
	"musicroom-core/internal/ranking"
	"musicroom-core/internal/relation"
	"musicroom-core/internal/resource"
)

type Resources interface {
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	SetTier(ctx context.Context, id string, tier model.Tier) error

	CreateEvent(ctx context.Context, ownerID string, in resource.EventInput) (*model.Event, error)
	GetEvent(ctx context.Context, principalID, id string) (*model.Event, error)
	ListEvents(ctx context.Context, viewerID string) ([]model.Event, error)
	UpdateEvent(ctx context.Context, principalID, id string, p resource.EventPatch) (*model.Event, error)

	CreateList(ctx context.Context, ownerID string, in resource.ListInput) (*model.List, error)
	GetList(ctx context.Context, principalID, id string) (*model.List, error)
	ListLists(ctx context.Context, viewerID string) ([]model.List, error)
	UpdateList(ctx context.Context, principalID, id string, p resource.ListPatch) (*model.List, error)

	SetActive(ctx context.Context, principalID string, ref model.ResourceRef, active bool) error
}

type Ranking interface {
	CastVote(ctx context.Context, req ranking.VoteRequest) (*ranking.VoteResult, error)
	RetractVote(ctx context.Context, principalID, trackID string, at *model.Point) (*ranking.VoteResult, error)
	AddTrack(ctx context.Context, req ranking.AddTrackRequest) (*model.Track, error)
	RemoveTrack(ctx context.Context, principalID, trackID string) error
	MarkPlayed(ctx context.Context, principalID, trackID string) (*model.Track, error)
	PlayNext(ctx context.Context, principalID string, ref model.ResourceRef) (*model.Track, error)
	Recompute(ctx context.Context, principalID string, ref model.ResourceRef) ([]model.Track, error)
	Standings(ctx context.Context, principalID string, ref model.ResourceRef) ([]model.TrackStanding, error)
}

type Relations interface {
	SendRequest(ctx context.Context, fromID, toID string) (*model.RelationshipRequest, error)
	Resolve(ctx context.Context, actorID, requestID string, outcome relation.Outcome) (*model.RelationshipRequest, error)
	ListConnections(ctx context.Context, accountID string) ([]model.Relationship, error)
	RemoveConnection(ctx context.Context, accountID, peerID string) error
	ListRequests(ctx context.Context, accountID string, incoming bool) ([]model.RelationshipRequest, error)

	Invite(ctx context.Context, req relation.InviteRequest) (*model.Invitation, error)
	Join(ctx context.Context, principalID string, ref model.ResourceRef) (*model.Invitation, error)
	RespondInvitation(ctx context.Context, principalID, invitationID string, outcome relation.Outcome) (*model.Invitation, error)
	RevokeInvitation(ctx context.Context, principalID string, ref model.ResourceRef, inviteeID string) error
	ListInvitations(ctx context.Context, principalID string, ref model.ResourceRef) ([]model.Invitation, error)
	ListPendingInvitations(ctx context.Context, principalID string) ([]model.Invitation, error)
}

type Deps struct {
	Resources Resources
	Ranking   Ranking
	Relations Relations
	Media     media.Searcher
	// WS serves the realtime websocket. It runs outside the request timeout.
	WS http.Handler

	// JWTSecret enables bearer token identity. Without it the caller is
	// taken from the X-User-Id header set by a trusted gateway.
	JWTSecret []byte
	// InternalToken must be sent in X-Internal-Token to reach /internal.
	// Empty locks those routes.
	InternalToken  []byte
	RequestTimeout time.Duration
}

type Server struct {
	resources Resources
	ranking   Ranking
	relations Relations
	media     media.Searcher
	validate  *validator.Validate
	log       *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	s := &Server{
		resources: d.Resources,
		ranking:   d.Ranking,
		relations: d.Relations,
		media:     d.Media,
		validate:  newValidator(),
		log:       slog.With("component", "httpapi"),
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if d.WS != nil {
		r.With(identify(d.JWTSecret, true)).Method(http.MethodGet, "/ws", d.WS)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"status":  "ok",
				"service": "musicroom-core",
			})
		})

		// called by the signup and billing flows
		r.Route("/internal", func(r chi.Router) {
			r.Use(internalOnly(d.InternalToken))
			r.Post("/accounts", s.handleCreateAccount)
			r.Put("/accounts/{id}/tier", s.handleSetTier)
		})

		r.Group(func(r chi.Router) {
			r.Use(identify(d.JWTSecret, false))

			r.Get("/me", s.handleMe)
			r.Get("/me/connections", s.handleListConnections)
			r.Delete("/me/connections/{peerId}", s.handleRemoveConnection)
			r.Get("/me/requests", s.handleListRequests)
			r.Get("/me/invitations", s.handleListPendingInvitations)

			r.Post("/requests", s.handleSendRequest)
			r.Post("/requests/{id}/resolve", s.handleResolveRequest)
			r.Post("/invitations/{id}/respond", s.handleRespondInvitation)

			r.Get("/events", s.handleListEvents)
			r.Post("/events", s.handleCreateEvent)
			r.Get("/events/{id}", s.handleGetEvent)
			r.Patch("/events/{id}", s.handlePatchEvent)

			r.Get("/lists", s.handleListLists)
			r.Post("/lists", s.handleCreateList)
			r.Get("/lists/{id}", s.handleGetList)
			r.Patch("/lists/{id}", s.handlePatchList)

			for _, k := range []struct {
				path string
				kind model.ResourceKind
			}{
				{"/events/{id}", model.KindEvent},
				{"/lists/{id}", model.KindList},
			} {
				r.Post(k.path+"/deactivate", s.handleSetActive(k.kind, false))
				r.Post(k.path+"/reactivate", s.handleSetActive(k.kind, true))

				r.Get(k.path+"/tracks", s.handleStandings(k.kind))
				r.Post(k.path+"/tracks", s.handleAddTrack(k.kind))
				r.Post(k.path+"/next", s.handlePlayNext(k.kind))
				r.Post(k.path+"/recompute", s.handleRecompute(k.kind))

				r.Get(k.path+"/invitations", s.handleListInvitations(k.kind))
				r.Post(k.path+"/invitations", s.handleInvite(k.kind))
				r.Delete(k.path+"/invitations/{userId}", s.handleRevokeInvitation(k.kind))
				r.Post(k.path+"/join", s.handleJoin(k.kind))
			}

			r.Delete("/tracks/{trackId}", s.handleRemoveTrack)
			r.Post("/tracks/{trackId}/played", s.handleMarkPlayed)
			r.Put("/tracks/{trackId}/vote", s.handleVote)
			r.Delete("/tracks/{trackId}/vote", s.handleRetractVote)

			r.Get("/media/search", s.handleMediaSearch)
		})
	})

	return r
}
