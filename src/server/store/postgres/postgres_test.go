package postgres

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dujjonku-map/server/src/server/data"
)

// newTestStore connects to TEST_DATABASE_URL; the tests are skipped without it.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := New(url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	label := fmt.Sprintf("test-%d", time.Now().UnixNano())

	snap := data.Snapshot{
		UpdatedAt: label,
		Total:     2,
		Available: 1,
		Stores: []data.Store{
			{Name: "a", Lat: 37.5, Lng: 127.0, Stock: 1},
			{Name: "b", Lat: 37.6, Lng: 127.1, Stock: 0},
		},
	}

	id, added := s.AddSnapshot(snap, "")
	if !added {
		t.Fatal("AddSnapshot not added")
	}
	if _, added := s.AddSnapshot(snap, ""); added {
		t.Error("duplicate label was added")
	}
	if !s.HasSnapshot(label) {
		t.Errorf("HasSnapshot(%q) = false", label)
	}

	stores, ok := s.GetSnapshotStores(id)
	if !ok || len(stores) != 2 {
		t.Fatalf("GetSnapshotStores = (%v, %v)", stores, ok)
	}
	if stores[0].Name != "a" {
		t.Errorf("stores[0].Name = %q, want %q", stores[0].Name, "a")
	}

	list := s.ListSnapshots(1)
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("ListSnapshots(1) = %+v, want id %d first", list, id)
	}
}
