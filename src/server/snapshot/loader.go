// Package snapshot fetches the published stores.json snapshot.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dujjonku-map/server/src/server/data"
)

// Recorder receives every snapshot that was fetched successfully.
type Recorder interface {
	Record(ctx context.Context, snap data.Snapshot, raw []byte) error
}

// DefaultRecordTimeout bounds one archive write.
const DefaultRecordTimeout = 30 * time.Second

// Loader fetches the snapshot from a static URL. Load never fails; any
// problem yields the built-in fallback snapshot.
type Loader struct {
	URL           string
	Client        *http.Client
	Recorder      Recorder // optional
	RecordTimeout time.Duration
	Now           func() time.Time

	recording sync.WaitGroup
}

func NewLoader(dataURL string, recorder Recorder) *Loader {
	return &Loader{
		URL:           dataURL,
		Client:        &http.Client{Timeout: 10 * time.Second},
		Recorder:      recorder,
		RecordTimeout: DefaultRecordTimeout,
		Now:           time.Now,
	}
}

type wireSnapshot struct {
	UpdatedAt *string      `json:"t"`
	Total     *int         `json:"c"`
	Available *int         `json:"a"`
	Stores    []data.Store `json:"d"`
}

func (l *Loader) Load(ctx context.Context) data.Snapshot {
	raw, err := l.fetch(ctx)
	if err != nil {
		slog.Error("Snapshot load failed, using fallback", "error", err, "url", l.URL)
		return Fallback()
	}

	snap, err := Parse(raw)
	if err != nil {
		slog.Error("Snapshot decode failed, using fallback", "error", err, "url", l.URL)
		return Fallback()
	}

	slog.Info("Snapshot loaded", "updated_at", snap.UpdatedAt, "stores", len(snap.Stores), "available", snap.Available)

	if l.Recorder != nil {
		l.recording.Add(1)
		go l.record(context.WithoutCancel(ctx), snap, raw)
	}
	return snap
}

// record archives off the load path; a slow archive never delays a session.
func (l *Loader) record(ctx context.Context, snap data.Snapshot, raw []byte) {
	defer l.recording.Done()

	timeout := l.RecordTimeout
	if timeout <= 0 {
		timeout = DefaultRecordTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := l.Recorder.Record(ctx, snap, raw); err != nil {
		slog.Warn("Snapshot archive failed", "error", err, "updated_at", snap.UpdatedAt)
	}
}

// Wait blocks until every archive write started by Load has finished.
func (l *Loader) Wait() {
	l.recording.Wait()
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	target, err := l.bustedURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	// The client carries no cookie jar, so no credentials go out.
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("snapshot endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return body, nil
}

// bustedURL appends the t (epoch ms) and r (random token) query parameters.
func (l *Loader) bustedURL() (string, error) {
	u, err := url.Parse(l.URL)
	if err != nil {
		return "", fmt.Errorf("parsing data URL: %w", err)
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(now().UnixMilli(), 10))
	q.Set("r", cacheToken())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func cacheToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Parse decodes a stores.json payload. Missing fields get their defaults:
// no list means no stores, no label means the placeholder, and absent
// counts are derived from the list.
func Parse(raw []byte) (data.Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(raw, &w); err != nil {
		return data.Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}

	snap := data.Snapshot{
		UpdatedAt: data.UpdatePlaceholder,
		Stores:    w.Stores,
	}
	if snap.Stores == nil {
		snap.Stores = []data.Store{}
	}
	if w.UpdatedAt != nil && *w.UpdatedAt != "" {
		snap.UpdatedAt = *w.UpdatedAt
	}

	available := 0
	for i := range snap.Stores {
		if snap.Stores[i].Stock < 0 {
			snap.Stores[i].Stock = 0
		}
		if snap.Stores[i].InStock() {
			available++
		}
	}

	snap.Total = len(snap.Stores)
	if w.Total != nil {
		snap.Total = *w.Total
	}
	snap.Available = available
	if w.Available != nil {
		snap.Available = *w.Available
	}
	return snap, nil
}

// Fallback is the two-store sample used whenever the real snapshot cannot be
// fetched: one in stock, one sold out.
func Fallback() data.Snapshot {
	return data.Snapshot{
		UpdatedAt: data.UpdatePlaceholder,
		Total:     2,
		Available: 1,
		Stores: []data.Store{
			{Name: "테스트카페", Address: "서울시 강남구", Lat: 37.5219, Lng: 127.0299, Stock: 10, URL: "https://naver.me/test"},
			{Name: "품절카페", Address: "서울시 서초구", Lat: 37.5045, Lng: 127.0248, Stock: 0, URL: "https://naver.me/test2"},
		},
		Fallback: true,
	}
}
