package hooks

import (
	"log/slog"

	"github.com/pocketbase/pocketbase/core"

	"github.com/dujjonku-map/server/src/server/data"
	"github.com/dujjonku-map/server/src/server/geo"
)

// Register adds the snapshot hooks to the PocketBase app.
func Register(app core.App) {
	// Rows entered through the dashboard get their geohash cell like fetched ones.
	app.OnRecordCreate("snapshot_stores").BindFunc(func(e *core.RecordEvent) error {
		if e.Record.GetString("cell") == "" {
			p := geo.Point{Lat: e.Record.GetFloat("lat"), Lng: e.Record.GetFloat("lng")}
			e.Record.Set("cell", geo.Cell(p, geo.DefaultCellPrecision))
		}
		return e.Next()
	})

	app.OnRecordCreate("snapshots").BindFunc(func(e *core.RecordEvent) error {
		if e.Record.GetString("updated_at") == "" {
			e.Record.Set("updated_at", data.UpdatePlaceholder)
		}
		if e.Record.GetInt("available") > e.Record.GetInt("total") {
			slog.Warn("Snapshot reports more available than total stores",
				"updated_at", e.Record.GetString("updated_at"),
				"total", e.Record.GetInt("total"),
				"available", e.Record.GetInt("available"))
		}
		return e.Next()
	})

	app.OnRecordAfterDeleteSuccess("snapshots").BindFunc(func(e *core.RecordEvent) error {
		slog.Info("Snapshot removed from history",
			"seq", e.Record.GetInt("seq"), "updated_at", e.Record.GetString("updated_at"))
		return e.Next()
	})
}
