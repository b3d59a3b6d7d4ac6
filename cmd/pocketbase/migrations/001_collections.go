package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		// ── snapshots ──
		snapshots := core.NewBaseCollection("snapshots")
		snapshots.Fields.Add(
			&core.NumberField{Name: "seq", Required: true, OnlyInt: true},
			&core.TextField{Name: "updated_at", Required: true, Max: 50},
			&core.NumberField{Name: "total", OnlyInt: true},
			&core.NumberField{Name: "available", OnlyInt: true},
			&core.TextField{Name: "archive_key", Max: 500},
			&core.AutodateField{Name: "created", OnCreate: true},
		)
		snapshots.Indexes = types.JSONArray[string]{
			"CREATE UNIQUE INDEX idx_snapshots_seq ON snapshots (seq)",
			"CREATE UNIQUE INDEX idx_snapshots_updated_at ON snapshots (updated_at)",
		}
		// Superusers only; the server writes through the app directly.
		if err := app.Save(snapshots); err != nil {
			return err
		}

		// ── snapshot_stores ──
		stores := core.NewBaseCollection("snapshot_stores")
		stores.Fields.Add(
			&core.RelationField{
				Name:          "snapshot",
				Required:      true,
				CollectionId:  snapshots.Id,
				MaxSelect:     1,
				CascadeDelete: true,
			},
			&core.NumberField{Name: "position", OnlyInt: true},
			&core.TextField{Name: "name", Required: true, Max: 300},
			&core.TextField{Name: "address", Max: 500},
			&core.NumberField{Name: "lat"},
			&core.NumberField{Name: "lng"},
			&core.NumberField{Name: "stock", OnlyInt: true},
			&core.URLField{Name: "url"},
			&core.TextField{Name: "cell", Max: 12},
		)
		stores.Indexes = types.JSONArray[string]{
			"CREATE UNIQUE INDEX idx_snapshot_stores_position ON snapshot_stores (snapshot, position)",
			"CREATE INDEX idx_snapshot_stores_cell ON snapshot_stores (cell)",
		}
		stores.ViewRule = types.Pointer("")
		stores.ListRule = types.Pointer("")
		if err := app.Save(stores); err != nil {
			return err
		}

		return nil
	}, func(app core.App) error {
		for _, name := range []string{"snapshot_stores", "snapshots"} {
			c, _ := app.FindCollectionByNameOrId(name)
			if c != nil {
				app.Delete(c)
			}
		}
		return nil
	})
}
