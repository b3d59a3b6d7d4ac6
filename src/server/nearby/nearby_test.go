package nearby

import (
	"testing"

	"github.com/dujjonku-map/server/src/server/data"
	"github.com/dujjonku-map/server/src/server/geo"
)

var origin = geo.Point{Lat: 37.5, Lng: 127.0}

func store(name string, lat, lng float64, stock int) data.Store {
	return data.Store{Name: name, Lat: lat, Lng: lng, Stock: stock}
}

func names(ranked []data.RankedStore) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Name
	}
	return out
}

func TestSelect_OrdersByDistance(t *testing.T) {
	stores := []data.Store{
		store("far", 37.6, 127.0, 1),
		store("near", 37.501, 127.0, 1),
		store("mid", 37.55, 127.0, 1),
		store("farthest", 38.0, 127.0, 1),
	}
	got := Select(stores, origin, 3)
	want := []string{"near", "mid", "far"}
	if len(got) != len(want) {
		t.Fatalf("len(Select) = %d, want %d", len(got), len(want))
	}
	for i, n := range names(got) {
		if n != want[i] {
			t.Errorf("Select[%d] = %q, want %q", i, n, want[i])
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].DistanceKM > got[i].DistanceKM {
			t.Errorf("distances not ascending at %d: %v > %v", i, got[i-1].DistanceKM, got[i].DistanceKM)
		}
	}
}

func TestSelect_FiltersSoldOut(t *testing.T) {
	stores := []data.Store{
		store("sold out close", 37.5, 127.0, 0),
		store("open", 37.6, 127.0, 2),
	}
	got := Select(stores, origin, 3)
	if len(got) != 1 || got[0].Name != "open" {
		t.Fatalf("Select = %v, want [open]", names(got))
	}
	for _, r := range got {
		if r.Stock <= 0 {
			t.Errorf("selected store %q has stock %d", r.Name, r.Stock)
		}
	}
}

func TestSelect_StableForTies(t *testing.T) {
	stores := []data.Store{
		store("first", 37.51, 127.0, 1),
		store("second", 37.51, 127.0, 1),
		store("third", 37.51, 127.0, 1),
	}
	got := names(Select(stores, origin, 3))
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Select[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSelect_NoPadding(t *testing.T) {
	tests := []struct {
		name   string
		stores []data.Store
		k      int
		want   int
	}{
		{"empty input", nil, 3, 0},
		{"fewer than k", []data.Store{store("a", 37.5, 127.0, 1)}, 3, 1},
		{"all sold out", []data.Store{store("a", 37.5, 127.0, 0), store("b", 37.6, 127.0, 0)}, 3, 0},
		{"zero k", []data.Store{store("a", 37.5, 127.0, 1)}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(tt.stores, origin, tt.k)
			if got == nil {
				t.Fatal("Select returned nil, want empty slice")
			}
			if len(got) != tt.want {
				t.Errorf("len(Select) = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSelect_AnnotatesStores(t *testing.T) {
	got := Select([]data.Store{store("a", 37.5045, 127.0248, 3)}, geo.Point{Lat: 37.5219, Lng: 127.0299}, 3)
	if len(got) != 1 {
		t.Fatalf("len(Select) = %d, want 1", len(got))
	}
	if got[0].Distance == "" {
		t.Error("Distance label is empty")
	}
	if len(got[0].Cell) != geo.DefaultCellPrecision {
		t.Errorf("Cell = %q, want %d characters", got[0].Cell, geo.DefaultCellPrecision)
	}
}

func TestMapStores_MutesSoldOut(t *testing.T) {
	got := MapStores([]data.Store{store("open", 37.5, 127.0, 1), store("empty", 37.6, 127.0, 0)})
	if len(got) != 2 {
		t.Fatalf("len(MapStores) = %d, want 2", len(got))
	}
	if got[0].Muted {
		t.Error("in-stock store is muted")
	}
	if !got[1].Muted {
		t.Error("sold-out store is not muted")
	}
	if got[1].Index != 1 {
		t.Errorf("Index = %d, want 1", got[1].Index)
	}
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		km   float64
		want string
	}{
		{0, "0m"},
		{0.8504, "850m"},
		{0.9996, "1000m"},
		{1, "1.0km"},
		{1.23, "1.2km"},
		{12.06, "12.1km"},
	}
	for _, tt := range tests {
		if got := FormatDistance(tt.km); got != tt.want {
			t.Errorf("FormatDistance(%v) = %q, want %q", tt.km, got, tt.want)
		}
	}
}
