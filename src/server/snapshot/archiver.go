package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/dujjonku-map/server/src/server/data"
	"github.com/dujjonku-map/server/src/server/storage"
	"github.com/dujjonku-map/server/src/server/store"
)

// Archiver keeps a history of fetched snapshots: a summary row plus store
// rows in the Store, and the raw payload in object storage.
type Archiver struct {
	Store   store.Store
	Storage storage.ObjectStorage // nil disables raw archiving
	Now     func() time.Time

	flights singleflight.Group
}

func NewArchiver(s store.Store, objects storage.ObjectStorage) *Archiver {
	return &Archiver{Store: s, Storage: objects, Now: time.Now}
}

// Record stores snap unless a snapshot with the same label is already kept.
// Concurrent calls for one label share a single upload.
func (a *Archiver) Record(ctx context.Context, snap data.Snapshot, raw []byte) error {
	if snap.Fallback {
		return nil
	}
	_, err, _ := a.flights.Do(snap.UpdatedAt, func() (any, error) {
		return nil, a.record(ctx, snap, raw)
	})
	return err
}

func (a *Archiver) record(ctx context.Context, snap data.Snapshot, raw []byte) error {
	if a.Store.HasSnapshot(snap.UpdatedAt) {
		slog.Debug("Snapshot already archived", "updated_at", snap.UpdatedAt)
		return nil
	}

	var key string
	if a.Storage != nil {
		key = ArchiveKey(snap.UpdatedAt, a.now())
		if err := a.Storage.Upload(ctx, key, bytes.NewReader(raw), "application/json"); err != nil {
			return fmt.Errorf("uploading %s: %w", key, err)
		}
	}

	id, added := a.Store.AddSnapshot(snap, key)
	if added {
		slog.Info("Snapshot archived", "id", id, "updated_at", snap.UpdatedAt, "key", key)
	}
	return nil
}

func (a *Archiver) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// ArchiveKey returns the object key for a snapshot: snapshots/<label>-<epoch>.json.
func ArchiveKey(label string, at time.Time) string {
	return fmt.Sprintf("snapshots/%s-%d.json", slug(label), at.Unix())
}

func slug(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "unlabeled"
	}
	return s
}
