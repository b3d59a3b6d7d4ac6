package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/dujjonku-map/server/src/server/forge"
)

// Refresher refetches the snapshot for every live session.
type Refresher interface {
	RefreshAll(ctx context.Context) int
}

// WebhookHandler handles push events from the forge that publishes stores.json.
type WebhookHandler struct {
	Forge    forge.Forge
	Sessions Refresher
	// Branch is the branch Pages is built from.
	Branch string
}

// Handle processes a webhook push event. POST /webhooks/git
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}

	signature := r.Header.Get(h.Forge.SignatureHeader())
	if !h.Forge.VerifyWebhookSignature(body, signature) {
		slog.Warn("Webhook signature verification failed", "forge", h.Forge.Name())
		http.Error(w, `{"error":"invalid signature"}`, http.StatusUnauthorized)
		return
	}

	var payload struct {
		Ref string `json:"ref"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	branch := h.Branch
	if branch == "" {
		branch = "main"
	}
	if payload.Ref != "refs/heads/"+branch {
		w.Write([]byte(`{"status":"ignored","reason":"not the pages branch"}`))
		return
	}

	slog.Info("Webhook: snapshot republished, refreshing sessions", "ref", payload.Ref)
	n := h.Sessions.RefreshAll(r.Context())
	json.NewEncoder(w).Encode(map[string]any{"status": "refreshed", "sessions": n})
}
