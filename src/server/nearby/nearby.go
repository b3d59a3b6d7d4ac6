// Package nearby picks the closest in-stock stores for a user.
package nearby

import (
	"fmt"
	"math"
	"sort"

	"github.com/dujjonku-map/server/src/server/data"
	"github.com/dujjonku-map/server/src/server/geo"
)

// DefaultLimit is the number of stores shown on the list screen.
const DefaultLimit = 3

// Select returns up to k in-stock stores ordered by ascending distance from
// the user. Stores at equal distance keep their snapshot order.
func Select(stores []data.Store, from geo.Point, k int) []data.RankedStore {
	if k <= 0 {
		return []data.RankedStore{}
	}

	ranked := make([]data.RankedStore, 0, len(stores))
	for _, s := range stores {
		if !s.InStock() {
			continue
		}
		km := geo.Distance(from, geo.Point{Lat: s.Lat, Lng: s.Lng})
		ranked = append(ranked, data.RankedStore{
			Store:      s,
			DistanceKM: km,
			Distance:   FormatDistance(km),
			Cell:       geo.Cell(geo.Point{Lat: s.Lat, Lng: s.Lng}, geo.DefaultCellPrecision),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKM < ranked[j].DistanceKM
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// MapStores returns every store for the full map view, sold-out ones muted.
func MapStores(stores []data.Store) []data.MapStore {
	out := make([]data.MapStore, 0, len(stores))
	for i, s := range stores {
		out = append(out, data.MapStore{
			Store: s,
			Index: i,
			Muted: !s.InStock(),
			Cell:  geo.Cell(geo.Point{Lat: s.Lat, Lng: s.Lng}, geo.DefaultCellPrecision),
		})
	}
	return out
}

// FormatDistance renders km as whole meters below 1 km ("850m") and with one
// decimal above ("1.2km").
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%dm", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1fkm", km)
}
