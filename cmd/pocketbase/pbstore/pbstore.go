// Package pbstore keeps the snapshot history in PocketBase collections.
package pbstore

import (
	"log/slog"

	"github.com/pocketbase/pocketbase/core"

	"github.com/dujjonku-map/server/src/server/data"
	"github.com/dujjonku-map/server/src/server/geo"
)

// Store implements store.Store on top of the "snapshots" and
// "snapshot_stores" collections.
type Store struct {
	App core.App
}

func New(app core.App) *Store {
	return &Store{App: app}
}

func (s *Store) HasSnapshot(updatedAt string) bool {
	rec, _ := s.App.FindFirstRecordByFilter("snapshots", "updated_at = {:t}", map[string]any{
		"t": updatedAt,
	})
	return rec != nil
}

func (s *Store) AddSnapshot(snap data.Snapshot, archiveKey string) (int64, bool) {
	if existing, _ := s.App.FindFirstRecordByFilter("snapshots", "updated_at = {:t}", map[string]any{
		"t": snap.UpdatedAt,
	}); existing != nil {
		return int64(existing.GetInt("seq")), false
	}

	var seq int64
	err := s.App.RunInTransaction(func(txApp core.App) error {
		snapshots, err := txApp.FindCollectionByNameOrId("snapshots")
		if err != nil {
			return err
		}
		stores, err := txApp.FindCollectionByNameOrId("snapshot_stores")
		if err != nil {
			return err
		}

		seq = 1
		latest, err := txApp.FindRecordsByFilter("snapshots", "", "-seq", 1, 0)
		if err == nil && len(latest) > 0 {
			seq = int64(latest[0].GetInt("seq")) + 1
		}

		rec := core.NewRecord(snapshots)
		rec.Set("seq", seq)
		rec.Set("updated_at", snap.UpdatedAt)
		rec.Set("total", snap.Total)
		rec.Set("available", snap.Available)
		rec.Set("archive_key", archiveKey)
		if err := txApp.Save(rec); err != nil {
			return err
		}

		for i, st := range snap.Stores {
			row := core.NewRecord(stores)
			row.Set("snapshot", rec.Id)
			row.Set("position", i)
			row.Set("name", st.Name)
			row.Set("address", st.Address)
			row.Set("lat", st.Lat)
			row.Set("lng", st.Lng)
			row.Set("stock", st.Stock)
			row.Set("url", st.URL)
			row.Set("cell", geo.Cell(geo.Point{Lat: st.Lat, Lng: st.Lng}, geo.DefaultCellPrecision))
			if err := txApp.Save(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to save snapshot", "updated_at", snap.UpdatedAt, "error", err)
		return 0, false
	}
	return seq, true
}

func (s *Store) ListSnapshots(limit int) []data.SnapshotSummary {
	if limit < 0 {
		limit = 0
	}
	records, err := s.App.FindRecordsByFilter("snapshots", "", "-seq", limit, 0)
	if err != nil {
		slog.Error("Failed to list snapshots", "error", err)
		return []data.SnapshotSummary{}
	}

	out := make([]data.SnapshotSummary, 0, len(records))
	for _, r := range records {
		out = append(out, data.SnapshotSummary{
			ID:         int64(r.GetInt("seq")),
			UpdatedAt:  r.GetString("updated_at"),
			Total:      r.GetInt("total"),
			Available:  r.GetInt("available"),
			ArchiveKey: r.GetString("archive_key"),
			FetchedAt:  r.GetDateTime("created").String(),
		})
	}
	return out
}

func (s *Store) GetSnapshotStores(id int64) ([]data.Store, bool) {
	snap, err := s.App.FindFirstRecordByFilter("snapshots", "seq = {:seq}", map[string]any{
		"seq": id,
	})
	if err != nil || snap == nil {
		return nil, false
	}

	rows, err := s.App.FindRecordsByFilter("snapshot_stores", "snapshot = {:sid}", "position", 0, 0, map[string]any{
		"sid": snap.Id,
	})
	if err != nil {
		slog.Error("Failed to load snapshot stores", "seq", id, "error", err)
		return nil, false
	}

	stores := make([]data.Store, 0, len(rows))
	for _, r := range rows {
		stores = append(stores, data.Store{
			Name:    r.GetString("name"),
			Address: r.GetString("address"),
			Lat:     r.GetFloat("lat"),
			Lng:     r.GetFloat("lng"),
			Stock:   r.GetInt("stock"),
			URL:     r.GetString("url"),
		})
	}
	return stores, true
}
