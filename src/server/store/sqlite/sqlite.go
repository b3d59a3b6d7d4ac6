package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/dujjonku-map/server/src/server/data"
	"github.com/dujjonku-map/server/src/server/geo"
)

//go:embed migrations/001_initial.sql
var migrationSQL string

type SQLiteStore struct {
	db *sql.DB
}

func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite performs best with a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate() error {
	_, err := s.db.Exec(migrationSQL)
	if err != nil {
		return fmt.Errorf("running migration: %w", err)
	}
	slog.Info("SQLite migration completed")
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) HasSnapshot(updatedAt string) bool {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE updated_at = ?`, updatedAt).Scan(&n)
	if err != nil {
		slog.Error("HasSnapshot query failed", "error", err)
		return false
	}
	return n > 0
}

func (s *SQLiteStore) AddSnapshot(snap data.Snapshot, archiveKey string) (int64, bool) {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("AddSnapshot begin tx failed", "error", err)
		return 0, false
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO snapshots (updated_at, total, available, archive_key)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (updated_at) DO NOTHING`,
		snap.UpdatedAt, snap.Total, snap.Available, archiveKey,
	)
	if err != nil {
		slog.Error("AddSnapshot insert failed", "error", err, "updated_at", snap.UpdatedAt)
		return 0, false
	}

	if n, _ := res.RowsAffected(); n == 0 {
		var id int64
		if err := tx.QueryRow(`SELECT id FROM snapshots WHERE updated_at = ?`, snap.UpdatedAt).Scan(&id); err != nil {
			slog.Error("AddSnapshot lookup failed", "error", err)
		}
		return id, false
	}

	id, err := res.LastInsertId()
	if err != nil {
		slog.Error("AddSnapshot last insert id failed", "error", err)
		return 0, false
	}

	stmt, err := tx.Prepare(
		`INSERT INTO snapshot_stores (snapshot_id, position, name, address, lat, lng, stock, url, cell)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		slog.Error("AddSnapshot prepare failed", "error", err)
		return 0, false
	}
	defer stmt.Close()

	for i, st := range snap.Stores {
		cell := geo.Cell(geo.Point{Lat: st.Lat, Lng: st.Lng}, geo.DefaultCellPrecision)
		if _, err := stmt.Exec(id, i, st.Name, st.Address, st.Lat, st.Lng, st.Stock, st.URL, cell); err != nil {
			slog.Error("AddSnapshot store insert failed", "error", err, "name", st.Name)
			return 0, false
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("AddSnapshot commit failed", "error", err)
		return 0, false
	}
	return id, true
}

func (s *SQLiteStore) ListSnapshots(limit int) []data.SnapshotSummary {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, updated_at, total, available, archive_key, fetched_at
		 FROM snapshots ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		slog.Error("ListSnapshots query failed", "error", err)
		return nil
	}
	defer rows.Close()

	summaries := []data.SnapshotSummary{}
	for rows.Next() {
		var sum data.SnapshotSummary
		if err := rows.Scan(&sum.ID, &sum.UpdatedAt, &sum.Total, &sum.Available, &sum.ArchiveKey, &sum.FetchedAt); err != nil {
			slog.Error("ListSnapshots scan failed", "error", err)
			continue
		}
		summaries = append(summaries, sum)
	}
	return summaries
}

func (s *SQLiteStore) GetSnapshotStores(id int64) ([]data.Store, bool) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE id = ?`, id).Scan(&exists); err != nil {
		slog.Error("GetSnapshotStores lookup failed", "error", err, "id", id)
		return nil, false
	}
	if exists == 0 {
		return nil, false
	}

	rows, err := s.db.Query(
		`SELECT name, address, lat, lng, stock, url
		 FROM snapshot_stores WHERE snapshot_id = ? ORDER BY position`, id,
	)
	if err != nil {
		slog.Error("GetSnapshotStores query failed", "error", err, "id", id)
		return nil, false
	}
	defer rows.Close()

	stores := []data.Store{}
	for rows.Next() {
		var st data.Store
		if err := rows.Scan(&st.Name, &st.Address, &st.Lat, &st.Lng, &st.Stock, &st.URL); err != nil {
			slog.Error("GetSnapshotStores scan failed", "error", err)
			continue
		}
		stores = append(stores, st)
	}
	return stores, true
}
