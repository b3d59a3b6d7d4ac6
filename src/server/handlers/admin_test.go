package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/dujjonku-map/server/src/server/data"
	"github.com/dujjonku-map/server/src/server/static"
	"github.com/dujjonku-map/server/src/server/storage"
	"github.com/dujjonku-map/server/src/server/store"
)

func newAdminServer(t *testing.T) (*httptest.Server, *countingRefresher) {
	t.Helper()
	st := store.NewMemoryStore()
	objects, err := storage.NewLocal(t.TempDir(), "http://localhost/archive")
	if err != nil {
		t.Fatal(err)
	}

	snap := testSnapshot()
	key := "snapshots/10-17-0930-1792229400.json"
	if err := objects.Upload(context.Background(), key, strings.NewReader(`{"t":"10/17 09:30"}`), "application/json"); err != nil {
		t.Fatal(err)
	}
	st.AddSnapshot(snap, key)

	ref := &countingRefresher{}
	h := &AdminHandler{Store: st, Storage: objects, Sessions: ref}
	r := chi.NewRouter()
	r.Route("/admin", h.Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, ref
}

func TestAdminHandler_Snapshots(t *testing.T) {
	srv, _ := newAdminServer(t)

	list := decode[[]data.SnapshotSummary](t, do(t, http.MethodGet, srv.URL+"/admin/snapshots", ""))
	if len(list) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(list))
	}
	if list[0].UpdatedAt != "10/17 09:30" || list[0].Available != 2 {
		t.Errorf("summary = %+v", list[0])
	}

	id := list[0].ID
	stores := decode[[]data.Store](t, do(t, http.MethodGet, srv.URL+"/admin/snapshots/"+itoa(id), ""))
	if len(stores) != 3 || stores[0].Name != "near" {
		t.Errorf("stores = %+v", stores)
	}

	resp := do(t, http.MethodGet, srv.URL+"/admin/snapshots/"+itoa(id)+"/raw", "")
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(raw) != `{"t":"10/17 09:30"}` {
		t.Errorf("raw = %d %q", resp.StatusCode, raw)
	}

	if resp := do(t, http.MethodGet, srv.URL+"/admin/snapshots/999", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown snapshot status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/admin/snapshots/abc", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/admin/snapshots?limit=-1", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAdminHandler_Refresh(t *testing.T) {
	srv, ref := newAdminServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/admin/refresh", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Sessions int `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Sessions != 2 || ref.calls.Load() != 1 {
		t.Errorf("sessions = %d, calls = %d", body.Sessions, ref.calls.Load())
	}
}

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

type fixedCount int

func (n fixedCount) Len() int { return int(n) }

func TestHealthHandler(t *testing.T) {
	withSnapshot := store.NewMemoryStore()
	withSnapshot.AddSnapshot(testSnapshot(), "")

	tests := []struct {
		name       string
		store      store.Store
		wantStatus int
		wantState  string
		wantLast   string
	}{
		{"memory store", withSnapshot, http.StatusOK, "ok", "10/17 09:30"},
		{"database down", failingStore{store.NewMemoryStore()}, http.StatusServiceUnavailable, "degraded", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &HealthHandler{Store: tt.store, Sessions: fixedCount(3)}
			rec := httptest.NewRecorder()
			h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp healthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantState || resp.Sessions != 3 || resp.LastSnapshot != tt.wantLast {
				t.Errorf("health = %+v", resp)
			}
		})
	}
}

func TestStoresFile(t *testing.T) {
	rec := httptest.NewRecorder()
	(&StoresFile{FS: static.Files}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stores.json", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap struct {
		Total  int          `json:"c"`
		Stores []data.Store `json:"d"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Total != len(snap.Stores) || snap.Total == 0 {
		t.Errorf("total = %d, stores = %d", snap.Total, len(snap.Stores))
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
