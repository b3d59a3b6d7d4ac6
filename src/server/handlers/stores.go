package handlers

import (
	"io/fs"
	"log/slog"
	"net/http"
)

// StoresFile serves the embedded sample snapshot. GET /stores.json
type StoresFile struct {
	FS fs.FS
}

func (h *StoresFile) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := fs.ReadFile(h.FS, "stores.json")
	if err != nil {
		slog.Error("Sample snapshot missing", "error", err)
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Write(raw)
}
