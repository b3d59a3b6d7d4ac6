package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dujjonku-map/server/src/server/data"
	"github.com/dujjonku-map/server/src/server/middleware"
	"github.com/dujjonku-map/server/src/server/storage"
	"github.com/dujjonku-map/server/src/server/store"
)

const defaultHistoryLimit = 50

// AdminHandler serves the snapshot history and operator actions.
type AdminHandler struct {
	Store    store.Store
	Storage  storage.ObjectStorage // optional
	Sessions Refresher
}

func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/snapshots", h.ListSnapshots)
	r.Get("/snapshots/{id}", h.GetSnapshot)
	r.Get("/snapshots/{id}/raw", h.RawSnapshot)
	r.Post("/refresh", h.Refresh)
}

// ListSnapshots returns the newest archived snapshots. GET /admin/snapshots?limit=
func (h *AdminHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	snaps := h.Store.ListSnapshots(limit)
	if snaps == nil {
		snaps = []data.SnapshotSummary{}
	}
	json.NewEncoder(w).Encode(snaps)
}

func (h *AdminHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := snapshotID(w, r)
	if !ok {
		return
	}
	stores, found := h.Store.GetSnapshotStores(id)
	if !found {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(stores)
}

// RawSnapshot streams the archived payload. S3 archives redirect to a
// presigned URL instead.
func (h *AdminHandler) RawSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := snapshotID(w, r)
	if !ok {
		return
	}
	if h.Storage == nil {
		writeError(w, http.StatusNotFound, "no archive configured")
		return
	}

	var key string
	for _, s := range h.Store.ListSnapshots(0) {
		if s.ID == id {
			key = s.ArchiveKey
			break
		}
	}
	if key == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if _, isS3 := h.Storage.(*storage.S3Storage); isS3 {
		u, err := h.Storage.PresignedURL(r.Context(), key, 15*time.Minute)
		if err != nil {
			slog.Error("Failed to presign archive URL", "key", key, "error", err)
			writeError(w, http.StatusBadGateway, "archive unavailable")
			return
		}
		http.Redirect(w, r, u, http.StatusFound)
		return
	}

	rc, err := h.Storage.Download(r.Context(), key)
	if err != nil {
		slog.Error("Failed to read archived snapshot", "key", key, "error", err)
		writeError(w, http.StatusNotFound, "archive missing")
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "application/json")
	io.Copy(w, rc)
}

// Refresh refetches the snapshot for every live session. POST /admin/refresh
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	n := h.Sessions.RefreshAll(r.Context())
	slog.Info("Operator refresh", "operator", middleware.Operator(r.Context()), "sessions", n)
	json.NewEncoder(w).Encode(map[string]any{"status": "refreshed", "sessions": n})
}

func snapshotID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot id")
		return 0, false
	}
	return id, true
}
