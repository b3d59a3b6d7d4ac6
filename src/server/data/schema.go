package data

// UpdatePlaceholder is shown when a snapshot carries no timestamp label.
const UpdatePlaceholder = "--:--"

// Store is one retail location as published in the stores.json snapshot.
// Field names are the compressed keys of the published file.
type Store struct {
	Name    string  `json:"n"`
	Address string  `json:"a"`
	Lat     float64 `json:"y"`
	Lng     float64 `json:"x"`
	Stock   int     `json:"s"`
	URL     string  `json:"u"`
}

// InStock reports whether the store has any remaining stock.
func (s Store) InStock() bool {
	return s.Stock > 0
}

// Snapshot is one published stores.json: the update label, the store counts
// and the store list, in the compressed wire keys.
type Snapshot struct {
	UpdatedAt string  `json:"t"`
	Total     int     `json:"c"`
	Available int     `json:"a"`
	Stores    []Store `json:"d"`

	// Fallback is set when the snapshot is the built-in sample rather than fetched data.
	Fallback bool `json:"-"`
}

// SoldOut returns the number of stores without stock.
func (s Snapshot) SoldOut() int {
	if n := s.Total - s.Available; n > 0 {
		return n
	}
	return 0
}

// RankedStore is a store annotated with its distance from the user.
type RankedStore struct {
	Store
	DistanceKM float64 `json:"distance_km"`
	Distance   string  `json:"distance"`
	Cell       string  `json:"cell"`
}

// MapStore is a store as drawn on the full map; sold-out stores are muted.
type MapStore struct {
	Store
	Index int    `json:"index"`
	Muted bool   `json:"muted"`
	Cell  string `json:"cell"`
}

// SnapshotSummary is one archived snapshot in the history listing.
type SnapshotSummary struct {
	ID         int64  `json:"id" db:"id"`
	UpdatedAt  string `json:"updated_at" db:"updated_at"`
	Total      int    `json:"total" db:"total"`
	Available  int    `json:"available" db:"available"`
	ArchiveKey string `json:"archive_key,omitempty" db:"archive_key"`
	FetchedAt  string `json:"fetched_at" db:"fetched_at"`
}
