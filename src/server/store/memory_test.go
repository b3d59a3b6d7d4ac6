package store

import (
	"testing"

	"github.com/dujjonku-map/server/src/server/data"
)

func testSnapshot(label string) data.Snapshot {
	return data.Snapshot{
		UpdatedAt: label,
		Total:     2,
		Available: 1,
		Stores: []data.Store{
			{Name: "a", Lat: 37.5, Lng: 127.0, Stock: 3},
			{Name: "b", Lat: 37.6, Lng: 127.1, Stock: 0},
		},
	}
}

func TestMemoryStore_AddSnapshotDeduplicates(t *testing.T) {
	s := NewMemoryStore()

	id, added := s.AddSnapshot(testSnapshot("10:00"), "snapshots/10-00-1.json")
	if !added {
		t.Fatal("first AddSnapshot not added")
	}
	again, added := s.AddSnapshot(testSnapshot("10:00"), "")
	if added {
		t.Error("duplicate label was added")
	}
	if again != id {
		t.Errorf("duplicate id = %d, want %d", again, id)
	}
	if !s.HasSnapshot("10:00") {
		t.Error("HasSnapshot(10:00) = false")
	}
	if s.HasSnapshot("11:00") {
		t.Error("HasSnapshot(11:00) = true")
	}
}

func TestMemoryStore_ListSnapshotsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	for _, label := range []string{"09:00", "10:00", "11:00"} {
		s.AddSnapshot(testSnapshot(label), "")
	}

	all := s.ListSnapshots(0)
	if len(all) != 3 {
		t.Fatalf("len(ListSnapshots) = %d, want 3", len(all))
	}
	if all[0].UpdatedAt != "11:00" {
		t.Errorf("ListSnapshots[0] = %q, want %q", all[0].UpdatedAt, "11:00")
	}

	limited := s.ListSnapshots(2)
	if len(limited) != 2 {
		t.Errorf("len(ListSnapshots(2)) = %d, want 2", len(limited))
	}
}

func TestMemoryStore_GetSnapshotStores(t *testing.T) {
	s := NewMemoryStore()
	id, _ := s.AddSnapshot(testSnapshot("10:00"), "")

	rows, ok := s.GetSnapshotStores(id)
	if !ok {
		t.Fatal("GetSnapshotStores not found")
	}
	if len(rows) != 2 || rows[0].Name != "a" {
		t.Errorf("rows = %+v", rows)
	}

	rows[0].Name = "mutated"
	again, _ := s.GetSnapshotStores(id)
	if again[0].Name != "a" {
		t.Error("GetSnapshotStores returned shared slice")
	}

	if _, ok := s.GetSnapshotStores(99); ok {
		t.Error("GetSnapshotStores(99) found")
	}
}
