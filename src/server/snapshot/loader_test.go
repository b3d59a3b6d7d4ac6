package snapshot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dujjonku-map/server/src/server/data"
)

func assertFallback(t *testing.T, snap data.Snapshot) {
	t.Helper()
	if !snap.Fallback {
		t.Error("Fallback flag not set")
	}
	if len(snap.Stores) != 2 {
		t.Fatalf("len(Stores) = %d, want 2", len(snap.Stores))
	}
	in, out := snap.Stores[0], snap.Stores[1]
	if in.Name != "테스트카페" || in.Stock != 10 || in.Lat != 37.5219 || in.Lng != 127.0299 {
		t.Errorf("in-stock fallback store = %+v", in)
	}
	if out.Name != "품절카페" || out.Stock != 0 || out.Lat != 37.5045 || out.Lng != 127.0248 {
		t.Errorf("sold-out fallback store = %+v", out)
	}
	if snap.UpdatedAt != data.UpdatePlaceholder {
		t.Errorf("UpdatedAt = %q, want %q", snap.UpdatedAt, data.UpdatePlaceholder)
	}
}

type recorderFunc func(ctx context.Context, snap data.Snapshot, raw []byte) error

func (f recorderFunc) Record(ctx context.Context, snap data.Snapshot, raw []byte) error {
	return f(ctx, snap, raw)
}

func TestLoader_Success(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	var mu sync.Mutex
	var gotQuery map[string][]string
	var gotHeader http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotQuery = r.URL.Query()
		gotHeader = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"t":"14:30","c":3,"a":2,"d":[
			{"n":"a","a":"addr","y":37.5,"x":127.0,"s":4,"u":"https://map.naver.com/p/1"},
			{"n":"b","y":37.6,"x":127.1,"s":0},
			{"n":"c","y":37.7,"x":127.2,"s":1}]}`))
	}))
	defer srv.Close()

	recorded := 0
	l := NewLoader(srv.URL+"/stores.json", recorderFunc(func(_ context.Context, snap data.Snapshot, raw []byte) error {
		recorded++
		if len(raw) == 0 {
			t.Error("recorder got empty payload")
		}
		return errors.New("archive down")
	}))
	l.Now = func() time.Time { return fixed }

	snap := l.Load(context.Background())
	l.Wait()
	if snap.Fallback {
		t.Fatal("got fallback snapshot")
	}
	if snap.UpdatedAt != "14:30" || snap.Total != 3 || snap.Available != 2 {
		t.Errorf("snapshot header = %q/%d/%d", snap.UpdatedAt, snap.Total, snap.Available)
	}
	if len(snap.Stores) != 3 || snap.Stores[0].URL != "https://map.naver.com/p/1" {
		t.Errorf("stores = %+v", snap.Stores)
	}
	if snap.SoldOut() != 1 {
		t.Errorf("SoldOut = %d, want 1", snap.SoldOut())
	}
	if recorded != 1 {
		t.Errorf("recorded = %d, want 1", recorded)
	}

	mu.Lock()
	defer mu.Unlock()
	if got := gotQuery["t"]; len(got) != 1 || got[0] != strconv.FormatInt(fixed.UnixMilli(), 10) {
		t.Errorf("t param = %v", got)
	}
	if got := gotQuery["r"]; len(got) != 1 || got[0] == "" {
		t.Errorf("r param = %v", got)
	}
	if gotHeader.Get("Cache-Control") != "no-cache, no-store" {
		t.Errorf("Cache-Control = %q", gotHeader.Get("Cache-Control"))
	}
	if gotHeader.Get("Cookie") != "" {
		t.Errorf("Cookie header sent: %q", gotHeader.Get("Cookie"))
	}
}

func TestLoader_RecordsOffTheLoadPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"t":"14:30","d":[{"n":"a","y":37.5,"x":127.0,"s":1}]}`))
	}))
	defer srv.Close()

	release := make(chan struct{})
	var hasDeadline bool
	var recorded data.Snapshot
	l := NewLoader(srv.URL, recorderFunc(func(ctx context.Context, snap data.Snapshot, _ []byte) error {
		_, hasDeadline = ctx.Deadline()
		<-release
		if err := ctx.Err(); err != nil {
			return err
		}
		recorded = snap
		return nil
	}))
	l.RecordTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	loaded := make(chan data.Snapshot, 1)
	go func() { loaded <- l.Load(ctx) }()

	select {
	case snap := <-loaded:
		if snap.UpdatedAt != "14:30" {
			t.Errorf("UpdatedAt = %q, want %q", snap.UpdatedAt, "14:30")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Load waited for the archive write")
	}

	// Cancelling the load context must not abort the archive write.
	cancel()
	close(release)
	l.Wait()

	if !hasDeadline {
		t.Error("archive write has no deadline")
	}
	if recorded.UpdatedAt != "14:30" {
		t.Errorf("recorded UpdatedAt = %q, want %q", recorded.UpdatedAt, "14:30")
	}
}

func TestLoader_CacheBustingDiffersPerCall(t *testing.T) {
	var mu sync.Mutex
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		tokens = append(tokens, r.URL.Query().Get("r"))
		w.Write([]byte(`{"d":[]}`))
	}))
	defer srv.Close()

	l := NewLoader(srv.URL, nil)
	l.Load(context.Background())
	l.Load(context.Background())
	mu.Lock()
	defer mu.Unlock()
	if len(tokens) != 2 || tokens[0] == tokens[1] {
		t.Errorf("tokens = %v, want two distinct values", tokens)
	}
}

func TestLoader_Fallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"d":[{"n":`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			called := false
			l := NewLoader(srv.URL, recorderFunc(func(context.Context, data.Snapshot, []byte) error {
				called = true
				return nil
			}))
			assertFallback(t, l.Load(context.Background()))
			l.Wait()
			if called {
				t.Error("recorder called for fallback")
			}
		})
	}
}

func TestLoader_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	assertFallback(t, NewLoader(url, nil).Load(context.Background()))
}

func TestParse_Defaults(t *testing.T) {
	snap, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if snap.UpdatedAt != data.UpdatePlaceholder {
		t.Errorf("UpdatedAt = %q, want %q", snap.UpdatedAt, data.UpdatePlaceholder)
	}
	if snap.Stores == nil || len(snap.Stores) != 0 {
		t.Errorf("Stores = %v, want empty", snap.Stores)
	}

	snap, err = Parse([]byte(`{"d":[{"n":"a","s":2},{"n":"b","s":-1},{"n":"c"}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if snap.Total != 3 || snap.Available != 1 {
		t.Errorf("derived counts = %d/%d, want 3/1", snap.Total, snap.Available)
	}
	if snap.Stores[1].Stock != 0 {
		t.Errorf("negative stock not clamped: %d", snap.Stores[1].Stock)
	}
}
