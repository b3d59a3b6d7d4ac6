package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dujjonku-map/server/src/server/storage"
	"github.com/dujjonku-map/server/src/server/store"
)

// Pinger is implemented by the database-backed snapshot stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports how many sessions are live.
type SessionCounter interface {
	Len() int
}

type HealthHandler struct {
	Store    store.Store // may implement Pinger
	Storage  storage.ObjectStorage
	Sessions SessionCounter
}

type healthResponse struct {
	Status       string            `json:"status"`
	Checks       map[string]string `json:"checks"`
	Sessions     int               `json:"sessions"`
	LastSnapshot string            `json:"last_snapshot,omitempty"`
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			resp.Checks[name] = "error: " + err.Error()
			resp.Status = "degraded"
			return
		}
		resp.Checks[name] = "ok"
	}

	if pinger, ok := h.Store.(Pinger); ok {
		check("database", pinger.Ping)
	}
	if h.Storage != nil {
		check("archive", h.Storage.Ping)
	}

	if h.Store != nil && resp.Status == "ok" {
		if latest := h.Store.ListSnapshots(1); len(latest) > 0 {
			resp.LastSnapshot = latest[0].UpdatedAt
		}
	}
	if h.Sessions != nil {
		resp.Sessions = h.Sessions.Len()
	}

	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}
