package httpapi

import (
	"net/http"

	"musicroom-core/internal/model"
	"musicroom-core/internal/relation"
)

type sendRequestRequest struct {
	RecipientID string `json:"recipientId" validate:"required,uuid"`
}

func (s *Server) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	var req sendRequestRequest
	if !s.decode(w, r, &req) {
		return
	}
	rr, err := s.relations.SendRequest(r.Context(), AccountID(r), req.RecipientID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rr)
}

type outcomeRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=accept decline"`
}

func (s *Server) handleResolveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req outcomeRequest
	if !s.decode(w, r, &req) {
		return
	}
	rr, err := s.relations.Resolve(r.Context(), AccountID(r), id, relation.Outcome(req.Outcome))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rr)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	var incoming bool
	switch r.URL.Query().Get("direction") {
	case "", "incoming":
		incoming = true
	case "outgoing":
	default:
		writeError(w, http.StatusBadRequest, "direction must be incoming or outgoing")
		return
	}
	reqs, err := s.relations.ListRequests(r.Context(), AccountID(r), incoming)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reqs))
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.relations.ListConnections(r.Context(), AccountID(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(conns))
}

func (s *Server) handleRemoveConnection(w http.ResponseWriter, r *http.Request) {
	peerID, ok := pathID(w, r, "peerId")
	if !ok {
		return
	}
	if err := s.relations.RemoveConnection(r.Context(), AccountID(r), peerID); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type inviteRequest struct {
	InviteeID string `json:"inviteeId" validate:"required,uuid"`
	Role      string `json:"role" validate:"omitempty,oneof=guest collaborator manager"`
}

func (s *Server) handleInvite(kind model.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req inviteRequest
		if !s.decode(w, r, &req) {
			return
		}
		role := model.Role(req.Role)
		if role == "" {
			role = model.RoleGuest
		}
		inv, err := s.relations.Invite(r.Context(), relation.InviteRequest{
			GrantorID: AccountID(r),
			Resource:  model.ResourceRef{Kind: kind, ID: id},
			InviteeID: req.InviteeID,
			Role:      role,
		})
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}

func (s *Server) handleListInvitations(kind model.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		invs, err := s.relations.ListInvitations(r.Context(), AccountID(r), model.ResourceRef{Kind: kind, ID: id})
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(invs))
	}
}

func (s *Server) handleRevokeInvitation(kind model.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		userID, ok := pathID(w, r, "userId")
		if !ok {
			return
		}
		ref := model.ResourceRef{Kind: kind, ID: id}
		if err := s.relations.RevokeInvitation(r.Context(), AccountID(r), ref, userID); err != nil {
			s.writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleJoin(kind model.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		inv, err := s.relations.Join(r.Context(), AccountID(r), model.ResourceRef{Kind: kind, ID: id})
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func (s *Server) handleListPendingInvitations(w http.ResponseWriter, r *http.Request) {
	invs, err := s.relations.ListPendingInvitations(r.Context(), AccountID(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(invs))
}

func (s *Server) handleRespondInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req outcomeRequest
	if !s.decode(w, r, &req) {
		return
	}
	inv, err := s.relations.RespondInvitation(r.Context(), AccountID(r), id, relation.Outcome(req.Outcome))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
