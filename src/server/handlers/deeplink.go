package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dujjonku-map/server/src/server/deeplink"
)

// DeepLink plans the navigation for a store link. GET /deeplink?url=&ua=
// The ua parameter overrides the request's own User-Agent.
func DeepLink(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	q := r.URL.Query()
	ua := q.Get("ua")
	if ua == "" {
		ua = r.UserAgent()
	}

	plan, err := deeplink.NewPlan(q.Get("url"), ua)
	if errors.Is(err, deeplink.ErrEmptyURL) {
		http.Error(w, `{"error":"url is required"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	json.NewEncoder(w).Encode(plan)
}
