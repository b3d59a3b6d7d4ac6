// Package ads drives interstitial advertisements through an external SDK
// gateway. Every failure here is logged and swallowed.
package ads

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// DefaultGroupID is the SDK's test interstitial unit.
const DefaultGroupID = "ait-ad-test-interstitial-id"

// Event types reported by the SDK.
const (
	EventLoaded       = "loaded"
	EventShow         = "show"
	EventImpression   = "impression"
	EventClicked      = "clicked"
	EventDismissed    = "dismissed"
	EventFailedToShow = "failedToShow"
)

type Event struct {
	Type string `json:"type"`
}

// Provider is the advertisement SDK.
type Provider interface {
	Supported() bool
	Load(ctx context.Context, groupID string) error
	Show(ctx context.Context, groupID string) ([]Event, error)
}

// ValidGroupID reports whether id looks like a real or test ad unit.
func ValidGroupID(id string) bool {
	return strings.HasPrefix(id, "ca-app-pub-") || strings.HasPrefix(id, "ait-ad-test-")
}

// Disabled is the provider used when ads are not configured.
type Disabled struct{}

func (Disabled) Supported() bool { return false }

func (Disabled) Load(context.Context, string) error { return nil }

func (Disabled) Show(context.Context, string) ([]Event, error) { return nil, nil }

// Manager tracks whether an ad is ready and reloads after each showing.
type Manager struct {
	provider Provider
	groupID  string

	mu      sync.Mutex
	loaded  bool
	loading bool
}

func NewManager(p Provider, groupID string) *Manager {
	if p == nil {
		p = Disabled{}
	}
	if !ValidGroupID(groupID) {
		if p.Supported() {
			slog.Warn("Invalid ad group id, ads disabled", "ad_group_id", groupID)
		}
		p = Disabled{}
	}
	return &Manager{provider: p, groupID: groupID}
}

func (m *Manager) Supported() bool {
	return m.provider.Supported()
}

// Loaded reports whether an ad is ready to show.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Preload fetches the next ad unless one is ready or already loading.
func (m *Manager) Preload(ctx context.Context) {
	if !m.provider.Supported() {
		slog.Debug("Ads not supported, skipping preload")
		return
	}

	m.mu.Lock()
	if m.loaded || m.loading {
		m.mu.Unlock()
		return
	}
	m.loading = true
	m.mu.Unlock()

	err := m.provider.Load(ctx, m.groupID)

	m.mu.Lock()
	m.loading = false
	m.loaded = err == nil
	m.mu.Unlock()

	if err != nil {
		slog.Error("Ad load failed", "error", err)
		return
	}
	slog.Debug("Ad loaded", "ad_group_id", m.groupID)
}

// Show displays the loaded ad. Without one it only starts a load.
// A dismissed ad or a failed showing triggers the next preload.
func (m *Manager) Show(ctx context.Context) {
	if !m.provider.Supported() {
		slog.Debug("Ads not supported, skipping show")
		return
	}

	m.mu.Lock()
	ready := m.loaded
	m.loaded = false
	m.mu.Unlock()

	if !ready {
		slog.Info("Ad not loaded yet, skipping show")
		m.Preload(ctx)
		return
	}

	events, err := m.provider.Show(ctx, m.groupID)
	if err != nil {
		slog.Error("Ad show failed", "error", err)
		m.Preload(ctx)
		return
	}

	for _, ev := range events {
		slog.Debug("Ad event", "type", ev.Type)
		if ev.Type == EventDismissed || ev.Type == EventFailedToShow {
			m.Preload(ctx)
			return
		}
	}
}
