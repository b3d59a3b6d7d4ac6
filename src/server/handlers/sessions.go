package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dujjonku-map/server/src/server/data"
	"github.com/dujjonku-map/server/src/server/deeplink"
	"github.com/dujjonku-map/server/src/server/geo"
	"github.com/dujjonku-map/server/src/server/location"
	"github.com/dujjonku-map/server/src/server/session"
)

type SessionHandler struct {
	Registry *session.Registry
}

type createSessionRequest struct {
	Native         *geo.Point `json:"native"`
	Browser        *geo.Point `json:"browser"`
	LocationDenied bool       `json:"location_denied"`
}

type markerResponse struct {
	Store    data.Store     `json:"store"`
	DeepLink *deeplink.Plan `json:"deeplink,omitempty"`
	View     session.View   `json:"view"`
}

// Routes mounts the session endpoints under r.
func (h *SessionHandler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Get("/map", h.Map)
		r.Post("/map", h.ShowMap)
		r.Post("/confirm", h.Confirm)
		r.Post("/back", h.Back)
		r.Post("/markers/{index}", h.SelectMarker)
	})
}

// Create starts a session. The body carries the positions the client
// obtained itself; an empty body means no location capability at all.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	var native, browser location.Capability
	if req.Native != nil {
		native = location.Reported{Point: req.Native}
	}
	if req.Browser != nil || req.LocationDenied {
		browser = location.Reported{Point: req.Browser, Denied: req.LocationDenied}
	}

	s := h.Registry.Create(native, browser)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(s.View())
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	json.NewEncoder(w).Encode(s.View())
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.Registry.Delete(chi.URLParam(r, "id")); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Map(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	mv, err := s.MapView()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	json.NewEncoder(w).Encode(mv)
}

func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*session.Session).Confirm)
}

func (h *SessionHandler) ShowMap(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*session.Session).ShowMap)
}

func (h *SessionHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*session.Session).Back)
}

// SelectMarker records a marker tap and returns where to send the user.
func (h *SessionHandler) SelectMarker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, `{"error":"invalid marker index"}`, http.StatusBadRequest)
		return
	}

	st, view, err := s.SelectMarker(index)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	resp := markerResponse{Store: st, View: view}
	if st.URL != "" {
		plan, err := deeplink.NewPlan(st.URL, r.UserAgent())
		if err != nil {
			slog.Warn("Deep link planning failed", "session", s.ID, "url", st.URL, "error", err)
		} else {
			resp.DeepLink = &plan
		}
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *SessionHandler) transition(w http.ResponseWriter, r *http.Request, fn func(*session.Session) (session.View, error)) {
	w.Header().Set("Content-Type", "application/json")
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	view, err := fn(s)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	json.NewEncoder(w).Encode(view)
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.Registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return nil, false
	}
	return s, true
}

func writeSessionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrUnknownMarker):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrFailed),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, session.ErrNotReady):
		status = http.StatusConflict
	default:
		slog.Error("Session request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
