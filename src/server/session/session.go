// Package session runs the nearby-store flow for one client: it loads the
// snapshot, resolves the user's location, picks the nearest stores and walks
// the loading → found → list ⇄ map screens.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dujjonku-map/server/src/server/data"
	"github.com/dujjonku-map/server/src/server/geo"
	"github.com/dujjonku-map/server/src/server/maps"
	"github.com/dujjonku-map/server/src/server/nearby"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrFailed          = errors.New("session failed to initialize")
	ErrClosed          = errors.New("session closed")
	ErrNotReady        = errors.New("session data not ready")
	ErrUnknownMarker   = errors.New("unknown marker")
	ErrRefreshInFlight = errors.New("refresh already in flight")
)

const (
	DefaultRefreshInterval   = 10 * time.Minute
	DefaultAdPreloadInterval = 5 * time.Minute
)

type DataLoader interface {
	Load(ctx context.Context) data.Snapshot
}

type LocationResolver interface {
	Resolve(ctx context.Context) geo.Point
}

type MapChecker interface {
	Check(ctx context.Context) error
}

// Ads is satisfied by *ads.Manager.
type Ads interface {
	Preload(ctx context.Context)
	Show(ctx context.Context)
}

type Config struct {
	RevealDelay       time.Duration
	ListAdDelay       time.Duration
	RefreshInterval   time.Duration
	AdPreloadInterval time.Duration
	NearbyLimit       int
}

func (c Config) withDefaults() Config {
	if c.RevealDelay <= 0 {
		c.RevealDelay = DefaultRevealDelay
	}
	if c.ListAdDelay <= 0 {
		c.ListAdDelay = DefaultListAdDelay
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.AdPreloadInterval <= 0 {
		c.AdPreloadInterval = DefaultAdPreloadInterval
	}
	if c.NearbyLimit <= 0 {
		c.NearbyLimit = nearby.DefaultLimit
	}
	return c
}

type Deps struct {
	Loader   DataLoader
	Resolver LocationResolver
	Maps     MapChecker // optional
	Ads      Ads        // optional
	Clock    Clock      // defaults to RealClock
}

type Session struct {
	ID string

	cfg      Config
	loader   DataLoader
	resolver LocationResolver
	maps     MapChecker
	ads      Ads
	clock    Clock

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	refreshing atomic.Bool
	ready      chan struct{}

	mu       sync.Mutex
	machine  Machine
	snap     data.Snapshot
	nearby   []data.RankedStore
	location geo.Point
	failure  *maps.Failure
	loaded   bool
	closed   bool
	lastSeen time.Time

	revealTimer  Timer
	listAdTimer  Timer
	refreshTimer Timer
	adTimer      Timer
}

// View is what the client renders for the current screen.
type View struct {
	ID               string             `json:"id"`
	State            State              `json:"state"`
	Ready            bool               `json:"ready"`
	UpdatedAt        string             `json:"updated_at"`
	Total            int                `json:"total"`
	Available        int                `json:"available"`
	SoldOut          int                `json:"sold_out"`
	Nearby           []data.RankedStore `json:"nearby"`
	Location         geo.Point          `json:"location"`
	Fallback         bool               `json:"fallback"`
	MarkerSelections int                `json:"marker_selections"`
	Failure          *maps.Failure      `json:"failure,omitempty"`
}

// MapView is the full-map screen: every store, sold-out ones muted.
type MapView struct {
	UpdatedAt string          `json:"updated_at"`
	Location  geo.Point       `json:"location"`
	Available int             `json:"available"`
	SoldOut   int             `json:"sold_out"`
	Stores    []data.MapStore `json:"stores"`
}

func New(id string, cfg Config, deps Deps) *Session {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock{}
	}
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:       id,
		cfg:      cfg,
		loader:   deps.Loader,
		resolver: deps.Resolver,
		maps:     deps.Maps,
		ads:      deps.Ads,
		clock:    clock,
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
		machine:  NewMachine(cfg.RevealDelay, cfg.ListAdDelay),
		snap:     data.Snapshot{UpdatedAt: data.UpdatePlaceholder},
		nearby:   []data.RankedStore{},
		lastSeen: clock.Now(),
	}
}

// Start initializes the session. When the map cannot be used the failure is
// recorded on the view and initialization stops there.
func (s *Session) Start() error {
	defer close(s.ready)
	ctx := s.ctx

	if s.maps != nil {
		if err := s.maps.Check(ctx); err != nil {
			var f *maps.Failure
			if !errors.As(err, &f) {
				f = &maps.Failure{Title: "Map API failed to load", Description: err.Error()}
			}
			s.mu.Lock()
			s.failure = f
			s.mu.Unlock()
			slog.Error("Session initialization halted", "session", s.ID, "error", err)
			return f
		}
	}

	s.mu.Lock()
	s.goLocked(s.preloadAd)
	s.mu.Unlock()

	s.refreshing.Store(true)
	var snap data.Snapshot
	var loc geo.Point
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap = s.loader.Load(gctx)
		return nil
	})
	g.Go(func() error {
		loc = s.resolver.Resolve(gctx)
		return nil
	})
	_ = g.Wait()
	s.refreshing.Store(false)

	ranked := nearby.Select(snap.Stores, loc, s.cfg.NearbyLimit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.snap = snap
	s.nearby = ranked
	s.location = loc
	s.loaded = true
	if err := s.applyLocked(EventDataReady); err != nil {
		return err
	}
	s.refreshTimer = s.clock.AfterFunc(s.cfg.RefreshInterval, s.refreshTick)
	s.adTimer = s.clock.AfterFunc(s.cfg.AdPreloadInterval, s.adTick)

	slog.Info("Session ready", "session", s.ID, "stores", len(snap.Stores), "nearby", len(ranked), "fallback", snap.Fallback)
	return nil
}

// Ready is closed once Start has returned.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Confirm moves from the found screen to the list.
func (s *Session) Confirm() (View, error) { return s.act(EventConfirm) }

// ShowMap switches from the list to the map.
func (s *Session) ShowMap() (View, error) { return s.act(EventShowMap) }

// Back returns from the map to the list.
func (s *Session) Back() (View, error) { return s.act(EventBack) }

// SelectMarker records a tap on the store at index in the snapshot list.
func (s *Session) SelectMarker(index int) (data.Store, View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return data.Store{}, s.viewLocked(), err
	}

	next, effects, err := s.machine.Apply(EventMarkerSelected)
	if err != nil {
		return data.Store{}, s.viewLocked(), err
	}
	if index < 0 || index >= len(s.snap.Stores) {
		return data.Store{}, s.viewLocked(), ErrUnknownMarker
	}

	s.lastSeen = s.clock.Now()
	s.machine = next
	for _, e := range effects {
		s.runLocked(e)
	}
	return s.snap.Stores[index], s.viewLocked(), nil
}

// act applies a client action; only client actions count as activity.
func (s *Session) act(ev Event) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.dispatchLocked(ev)
	if err == nil {
		s.lastSeen = s.clock.Now()
	}
	return s.viewLocked(), err
}

func (s *Session) dispatch(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(ev)
}

func (s *Session) dispatchLocked(ev Event) error {
	if err := s.usableLocked(); err != nil {
		return err
	}
	return s.applyLocked(ev)
}

func (s *Session) usableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.failure != nil {
		return ErrFailed
	}
	return nil
}

func (s *Session) applyLocked(ev Event) error {
	next, effects, err := s.machine.Apply(ev)
	if err != nil {
		return err
	}
	s.machine = next
	for _, e := range effects {
		s.runLocked(e)
	}
	return nil
}

func (s *Session) runLocked(e Effect) {
	switch e.Kind {
	case EffectScheduleReveal:
		stopTimer(s.revealTimer)
		s.revealTimer = s.clock.AfterFunc(e.Delay, func() {
			if err := s.dispatch(EventRevealElapsed); err != nil && !errors.Is(err, ErrClosed) {
				slog.Warn("Reveal failed", "session", s.ID, "error", err)
			}
		})
	case EffectScheduleAd:
		stopTimer(s.listAdTimer)
		s.listAdTimer = s.clock.AfterFunc(e.Delay, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.goLocked(s.showAd)
		})
	case EffectShowAd:
		s.goLocked(s.showAd)
	case EffectRefresh:
		s.goLocked(func() {
			if err := s.Refresh(s.ctx); err != nil && !errors.Is(err, ErrClosed) {
				slog.Info("Scheduled refresh skipped", "session", s.ID, "error", err)
			}
		})
	}
}

// goLocked runs f in the background unless the session is closed.
func (s *Session) goLocked(f func()) {
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		f()
	}()
}

func (s *Session) showAd() {
	if s.ads != nil {
		s.ads.Show(s.ctx)
	}
}

func (s *Session) preloadAd() {
	if s.ads != nil {
		s.ads.Preload(s.ctx)
	}
}

func (s *Session) refreshTick() {
	if err := s.dispatch(EventRefreshTick); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.refreshTimer = s.clock.AfterFunc(s.cfg.RefreshInterval, s.refreshTick)
	}
}

func (s *Session) adTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.goLocked(s.preloadAd)
	s.adTimer = s.clock.AfterFunc(s.cfg.AdPreloadInterval, s.adTick)
}

// Refresh refetches the snapshot and recomputes the nearby list for the
// location resolved at start. Only one fetch runs at a time; a call made while
// one is outstanding returns ErrRefreshInFlight.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotReady
	}
	loc := s.location
	s.mu.Unlock()

	if !s.refreshing.CompareAndSwap(false, true) {
		slog.Info("Refresh skipped, fetch in flight", "session", s.ID)
		return ErrRefreshInFlight
	}
	defer s.refreshing.Store(false)

	snap := s.loader.Load(ctx)
	ranked := nearby.Select(snap.Stores, loc, s.cfg.NearbyLimit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.snap = snap
	s.nearby = ranked
	slog.Debug("Session refreshed", "session", s.ID, "updated_at", snap.UpdatedAt)
	return nil
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	ranked := make([]data.RankedStore, len(s.nearby))
	copy(ranked, s.nearby)
	return View{
		ID:               s.ID,
		State:            s.machine.State,
		Ready:            s.loaded,
		UpdatedAt:        s.snap.UpdatedAt,
		Total:            s.snap.Total,
		Available:        s.snap.Available,
		SoldOut:          s.snap.SoldOut(),
		Nearby:           ranked,
		Location:         s.location,
		Fallback:         s.snap.Fallback,
		MarkerSelections: s.machine.MarkerSelections,
		Failure:          s.failure,
	}
}

func (s *Session) MapView() (MapView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return MapView{}, err
	}
	if !s.loaded {
		return MapView{}, ErrNotReady
	}
	return MapView{
		UpdatedAt: s.snap.UpdatedAt,
		Location:  s.location,
		Available: s.snap.Available,
		SoldOut:   s.snap.SoldOut(),
		Stores:    nearby.MapStores(s.snap.Stores),
	}, nil
}

// Store returns the snapshot store at index.
func (s *Session) Store(index int) (data.Store, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.snap.Stores) {
		return data.Store{}, false
	}
	return s.snap.Stores[index], true
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.clock.Now()
	s.mu.Unlock()
}

// Close stops every timer and waits for background work to finish.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stopTimer(s.revealTimer)
	stopTimer(s.listAdTimer)
	stopTimer(s.refreshTimer)
	stopTimer(s.adTimer)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	slog.Debug("Session closed", "session", s.ID)
}

// Wait blocks until background ad and refresh work has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
