package store

import "github.com/dujjonku-map/server/src/server/data"

// Store keeps the history of fetched snapshots.
// Snapshots are deduplicated on their update label.
type Store interface {
	HasSnapshot(updatedAt string) bool
	AddSnapshot(snap data.Snapshot, archiveKey string) (id int64, added bool)
	ListSnapshots(limit int) []data.SnapshotSummary
	GetSnapshotStores(id int64) ([]data.Store, bool)
}
