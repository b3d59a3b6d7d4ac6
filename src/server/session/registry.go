package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dujjonku-map/server/src/server/ads"
	"github.com/dujjonku-map/server/src/server/location"
)

// DefaultTTL is how long an untouched session is kept.
const DefaultTTL = 30 * time.Minute

// RegistryConfig holds what every session shares.
type RegistryConfig struct {
	Session    Config
	TTL        time.Duration
	Loader     DataLoader
	Maps       MapChecker   // optional
	AdProvider ads.Provider // optional
	AdGroupID  string
	Clock      Clock
}

// Registry owns the live sessions.
type Registry struct {
	cfg RegistryConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create registers a session for a client and starts it in the background.
// native and browser are the client's location capabilities; nil means absent.
func (r *Registry) Create(native, browser location.Capability) *Session {
	s := New(uuid.NewString(), r.cfg.Session, Deps{
		Loader:   r.cfg.Loader,
		Resolver: location.NewResolver(native, browser),
		Maps:     r.cfg.Maps,
		Ads:      ads.NewManager(r.cfg.AdProvider, r.cfg.AdGroupID),
		Clock:    r.cfg.Clock,
	})

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	slog.Info("Session created", "session", s.ID)
	go s.Start()
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch()
	return s, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reap closes sessions idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Reap() int {
	cutoff := r.cfg.Clock.Now().Add(-r.cfg.TTL)

	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		slog.Info("Reaped idle sessions", "count", len(expired))
	}
	return len(expired)
}

// Run reaps idle sessions every half TTL until ctx is done. The schedule
// runs on the registry clock, so a ManualClock drives it like the session
// timers.
func (r *Registry) Run(ctx context.Context) {
	interval := r.cfg.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	var (
		mu      sync.Mutex
		timer   Timer
		stopped bool
	)
	var tick func()
	tick = func() {
		r.Reap()
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			timer = r.cfg.Clock.AfterFunc(interval, tick)
		}
	}

	mu.Lock()
	timer = r.cfg.Clock.AfterFunc(interval, tick)
	mu.Unlock()

	<-ctx.Done()

	mu.Lock()
	stopped = true
	timer.Stop()
	mu.Unlock()
}

// RefreshAll refetches the snapshot for every live session and returns how
// many were refreshed.
func (r *Registry) RefreshAll(ctx context.Context) int {
	r.mu.RLock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.RUnlock()

	var refreshed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, s := range live {
		g.Go(func() error {
			if err := s.Refresh(gctx); err != nil {
				slog.Debug("Session refresh skipped", "session", s.ID, "error", err)
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Refreshed sessions", "refreshed", refreshed.Load(), "live", len(live))
	return int(refreshed.Load())
}

// Close tears down every session.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
