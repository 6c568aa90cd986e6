package httpapi

import (
	"net/http"
	"time"

	"musicroom-core/internal/model"
	"musicroom-core/internal/resource"
)

type createAccountRequest struct {
	ID      string `json:"id" validate:"required,uuid"`
	Handle  string `json:"handle" validate:"required,max=64"`
	Contact string `json:"contact" validate:"required,max=254"`
	Tier    string `json:"tier" validate:"omitempty,oneof=standard elevated"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !s.decode(w, r, &req) {
		return
	}
	a := &model.Account{
		ID:      req.ID,
		Handle:  req.Handle,
		Contact: req.Contact,
		Tier:    model.Tier(req.Tier),
	}
	if err := s.resources.CreateAccount(r.Context(), a); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type setTierRequest struct {
	Tier string `json:"tier" validate:"required,oneof=standard elevated"`
}

func (s *Server) handleSetTier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req setTierRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.resources.SetTier(r.Context(), id, model.Tier(req.Tier)); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	a, err := s.resources.GetAccount(r.Context(), AccountID(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type createEventRequest struct {
	Name       string       `json:"name" validate:"required,max=200"`
	Visibility string       `json:"visibility" validate:"omitempty,oneof=public private"`
	AccessTier string       `json:"accessTier" validate:"omitempty,oneof=free premium location"`
	Fence      *model.Fence `json:"fence"`
	StartsAt   *time.Time   `json:"startsAt"`
	EndsAt     *time.Time   `json:"endsAt"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !s.decode(w, r, &req) {
		return
	}
	ev, err := s.resources.CreateEvent(r.Context(), AccountID(r), resource.EventInput{
		Name:       req.Name,
		Visibility: model.Visibility(req.Visibility),
		AccessTier: model.AccessTier(req.AccessTier),
		Fence:      req.Fence,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.resources.ListEvents(r.Context(), AccountID(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ev, err := s.resources.GetEvent(r.Context(), AccountID(r), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type patchEventRequest struct {
	Name        *string      `json:"name" validate:"omitempty,min=1,max=200"`
	Visibility  *string      `json:"visibility" validate:"omitempty,oneof=public private"`
	AccessTier  *string      `json:"accessTier" validate:"omitempty,oneof=free premium location"`
	Fence       *model.Fence `json:"fence"`
	StartsAt    *time.Time   `json:"startsAt"`
	EndsAt      *time.Time   `json:"endsAt"`
	ClearWindow bool         `json:"clearWindow"`
}

func (s *Server) handlePatchEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req patchEventRequest
	if !s.decode(w, r, &req) {
		return
	}
	p := resource.EventPatch{
		Name:        req.Name,
		Fence:       req.Fence,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		ClearWindow: req.ClearWindow,
	}
	if req.Visibility != nil {
		v := model.Visibility(*req.Visibility)
		p.Visibility = &v
	}
	if req.AccessTier != nil {
		t := model.AccessTier(*req.AccessTier)
		p.AccessTier = &t
	}
	ev, err := s.resources.UpdateEvent(r.Context(), AccountID(r), id, p)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type createListRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public private"`
	EditPolicy  string `json:"editPolicy" validate:"omitempty,oneof=open invite_only"`
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if !s.decode(w, r, &req) {
		return
	}
	l, err := s.resources.CreateList(r.Context(), AccountID(r), resource.ListInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  model.Visibility(req.Visibility),
		EditPolicy:  model.EditPolicy(req.EditPolicy),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.resources.ListLists(r.Context(), AccountID(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(lists))
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	l, err := s.resources.GetList(r.Context(), AccountID(r), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type patchListRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Visibility  *string `json:"visibility" validate:"omitempty,oneof=public private"`
	EditPolicy  *string `json:"editPolicy" validate:"omitempty,oneof=open invite_only"`
}

func (s *Server) handlePatchList(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req patchListRequest
	if !s.decode(w, r, &req) {
		return
	}
	p := resource.ListPatch{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Visibility != nil {
		v := model.Visibility(*req.Visibility)
		p.Visibility = &v
	}
	if req.EditPolicy != nil {
		e := model.EditPolicy(*req.EditPolicy)
		p.EditPolicy = &e
	}
	l, err := s.resources.UpdateList(r.Context(), AccountID(r), id, p)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleSetActive(kind model.ResourceKind, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		ref := model.ResourceRef{Kind: kind, ID: id}
		if err := s.resources.SetActive(r.Context(), AccountID(r), ref, active); err != nil {
			s.writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
