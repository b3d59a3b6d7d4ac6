package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/dujjonku-map/server/src/server/data"
	"github.com/dujjonku-map/server/src/server/geo"
)

//go:embed migrations/001_initial.sql
var migrationSQL string

type PostgresStore struct {
	db *sqlx.DB
}

type storeRow struct {
	SnapshotID int64   `db:"snapshot_id"`
	Position   int     `db:"position"`
	Name       string  `db:"name"`
	Address    string  `db:"address"`
	Lat        float64 `db:"lat"`
	Lng        float64 `db:"lng"`
	Stock      int     `db:"stock"`
	URL        string  `db:"url"`
	Cell       string  `db:"cell"`
}

func New(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Migrate() error {
	_, err := s.db.Exec(migrationSQL)
	if err != nil {
		return fmt.Errorf("running migration: %w", err)
	}
	slog.Info("Database migration completed")
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) HasSnapshot(updatedAt string) bool {
	var exists bool
	err := s.db.Get(&exists, `SELECT EXISTS (SELECT 1 FROM snapshots WHERE updated_at = $1)`, updatedAt)
	if err != nil {
		slog.Error("HasSnapshot query failed", "error", err)
		return false
	}
	return exists
}

func (s *PostgresStore) AddSnapshot(snap data.Snapshot, archiveKey string) (int64, bool) {
	tx, err := s.db.Beginx()
	if err != nil {
		slog.Error("AddSnapshot begin tx failed", "error", err)
		return 0, false
	}
	defer tx.Rollback()

	var id int64
	err = tx.Get(&id,
		`INSERT INTO snapshots (updated_at, total, available, archive_key)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (updated_at) DO NOTHING
		 RETURNING id`,
		snap.UpdatedAt, snap.Total, snap.Available, archiveKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		if err := tx.Get(&id, `SELECT id FROM snapshots WHERE updated_at = $1`, snap.UpdatedAt); err != nil {
			slog.Error("AddSnapshot lookup failed", "error", err)
		}
		return id, false
	}
	if err != nil {
		slog.Error("AddSnapshot insert failed", "error", err, "updated_at", snap.UpdatedAt)
		return 0, false
	}

	if len(snap.Stores) > 0 {
		rows := make([]storeRow, 0, len(snap.Stores))
		for i, st := range snap.Stores {
			rows = append(rows, storeRow{
				SnapshotID: id,
				Position:   i,
				Name:       st.Name,
				Address:    st.Address,
				Lat:        st.Lat,
				Lng:        st.Lng,
				Stock:      st.Stock,
				URL:        st.URL,
				Cell:       geo.Cell(geo.Point{Lat: st.Lat, Lng: st.Lng}, geo.DefaultCellPrecision),
			})
		}
		_, err = tx.NamedExec(
			`INSERT INTO snapshot_stores (snapshot_id, position, name, address, lat, lng, stock, url, cell)
			 VALUES (:snapshot_id, :position, :name, :address, :lat, :lng, :stock, :url, :cell)`,
			rows,
		)
		if err != nil {
			slog.Error("AddSnapshot store insert failed", "error", err)
			return 0, false
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("AddSnapshot commit failed", "error", err)
		return 0, false
	}
	return id, true
}

func (s *PostgresStore) ListSnapshots(limit int) []data.SnapshotSummary {
	query := `SELECT id, updated_at, total, available, archive_key, fetched_at
		 FROM snapshots ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	summaries := []data.SnapshotSummary{}
	if err := s.db.Select(&summaries, query, args...); err != nil {
		slog.Error("ListSnapshots query failed", "error", err)
		return nil
	}
	return summaries
}

func (s *PostgresStore) GetSnapshotStores(id int64) ([]data.Store, bool) {
	var exists bool
	if err := s.db.Get(&exists, `SELECT EXISTS (SELECT 1 FROM snapshots WHERE id = $1)`, id); err != nil {
		slog.Error("GetSnapshotStores lookup failed", "error", err, "id", id)
		return nil, false
	}
	if !exists {
		return nil, false
	}

	var rows []storeRow
	err := s.db.Select(&rows,
		`SELECT snapshot_id, position, name, address, lat, lng, stock, url, cell
		 FROM snapshot_stores WHERE snapshot_id = $1 ORDER BY position`, id,
	)
	if err != nil {
		slog.Error("GetSnapshotStores query failed", "error", err, "id", id)
		return nil, false
	}

	stores := make([]data.Store, 0, len(rows))
	for _, r := range rows {
		stores = append(stores, data.Store{
			Name:    r.Name,
			Address: r.Address,
			Lat:     r.Lat,
			Lng:     r.Lng,
			Stock:   r.Stock,
			URL:     r.URL,
		})
	}
	return stores, true
}
