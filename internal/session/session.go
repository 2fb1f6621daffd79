// ABOUTME: One user's tracker session: caching service, event bus, registry and recents.
// ABOUTME: The CLI and the MCP server both drive the write protocol through it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harperreed/tracker/internal/events"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/recent"
	"github.com/harperreed/tracker/internal/registry"
	"github.com/harperreed/tracker/internal/remote"
	tsync "github.com/harperreed/tracker/internal/sync"
	"github.com/harperreed/tracker/internal/tracktile"
)

var (
	// ErrTrackerNotFound is returned when no tracker matches a reference.
	ErrTrackerNotFound = errors.New("tracker not found")
	// ErrAmbiguous is returned when a reference matches several trackers or values.
	ErrAmbiguous = errors.New("reference is ambiguous")
	// ErrNotInstalled is returned for operations that need an installed tracker.
	ErrNotInstalled = errors.New("tracker is not installed")
)

// Options configures a Session.
type Options struct {
	Account tsync.Account
	// Location decides day boundaries. Defaults to time.Local.
	Location      *time.Location
	IncludePublic bool
	Development   bool
	// Language is used to parse localized numbers such as targets.
	Language string
	// Throttle spaces quick adds of one tracker. Zero uses the default.
	Throttle time.Duration
	Now      func() time.Time
}

// Session wires the components that read and write one account's trackers.
type Session struct {
	service  *tracktile.Service
	bus      *events.Bus
	registry *registry.Registry
	recents  *tsync.RecentValues
	opts     Options

	mu        sync.Mutex
	quickAdds map[string]*tsync.QuickAdd
}

// New creates a session over backend. Recent values are recorded in store
// when it is not nil.
func New(backend remote.Backend, store recent.Store, opts Options) *Session {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	svc := tracktile.New(backend, tracktile.Options{IncludePublic: opts.IncludePublic, Location: opts.Location})
	bus := events.NewBus()
	svc.Attach(bus)

	s := &Session{
		service:   svc,
		bus:       bus,
		registry:  registry.New(svc, bus, registry.Options{Development: opts.Development}),
		opts:      opts,
		quickAdds: map[string]*tsync.QuickAdd{},
	}
	if store != nil {
		s.recents = tsync.NewRecentValues(store, bus)
	}
	return s
}

// Close unsubscribes every component and closes the bus.
func (s *Session) Close() {
	if s.recents != nil {
		s.recents.Close()
	}
	s.registry.Close()
	s.service.Detach()
	s.bus.Close()
}

// Bus returns the session's event bus.
func (s *Session) Bus() *events.Bus { return s.bus }

// Location returns the time zone used for days.
func (s *Session) Location() *time.Location { return s.opts.Location }

// Now returns the session clock's current time in the session location.
func (s *Session) Now() time.Time { return s.opts.Now().In(s.opts.Location) }

func (s *Session) load(ctx context.Context) error {
	if err := s.registry.Load(ctx); err != nil {
		return err
	}
	if !s.registry.Loaded() {
		if err := s.registry.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Refresh drops cached values and reloads the tracker list.
func (s *Session) Refresh(ctx context.Context) error {
	s.bus.Refresh.Publish(events.Refresh{})
	s.service.Reset()
	if err := s.registry.Reload(ctx); err != nil {
		return err
	}
	return s.registry.Err()
}

// Trackers returns the ordinary trackers followed by the pillar trackers,
// each sorted for display.
func (s *Session) Trackers(ctx context.Context) ([]models.Tracker, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return append(s.registry.Trackers(), s.registry.PillarTrackers()...), nil
}

// Installed returns the installed ordinary trackers in display order.
func (s *Session) Installed(ctx context.Context) ([]models.Tracker, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.registry.Installed(), nil
}

// Find resolves ref as a tracker id or metric id, then as a
// case-insensitive name, then as an id prefix.
func (s *Session) Find(ctx context.Context, ref string) (models.Tracker, error) {
	if err := s.load(ctx); err != nil {
		return models.Tracker{}, err
	}
	if t, ok := s.registry.Find(ref); ok {
		return t, nil
	}

	all := append(s.registry.Trackers(), s.registry.PillarTrackers()...)
	byName := matching(all, func(t models.Tracker) bool { return strings.EqualFold(t.Name, ref) })
	if len(byName) == 0 && ref != "" {
		byName = matching(all, func(t models.Tracker) bool {
			return strings.HasPrefix(t.ID, ref) || (t.MetricID != "" && strings.HasPrefix(t.MetricID, ref))
		})
	}

	switch len(byName) {
	case 0:
		return models.Tracker{}, fmt.Errorf("%w: %s", ErrTrackerNotFound, ref)
	case 1:
		return byName[0], nil
	default:
		return models.Tracker{}, fmt.Errorf("%w: %q matches %d trackers", ErrAmbiguous, ref, len(byName))
	}
}

func matching(trackers []models.Tracker, keep func(models.Tracker) bool) []models.Tracker {
	var out []models.Tracker
	for _, t := range trackers {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// ContextFor returns the values context t's records are written to.
func ContextFor(t models.Tracker) models.ValuesContext {
	if t.System == models.TrackerPillarCodeSystem {
		return models.PillarValuesContext
	}
	return models.DefaultValuesContext
}

// InstallOptions are the settings changed by Install. Empty fields keep the
// tracker's current or default setting.
type InstallOptions struct {
	Unit   string
	Target *float64
	// TargetText is a localized target, used when Target is nil.
	TargetText string
}

// Install installs ref or updates its settings. It reports whether anything
// was written.
func (s *Session) Install(ctx context.Context, ref string, opts InstallOptions) (models.Tracker, bool, error) {
	t, err := s.Find(ctx, ref)
	if err != nil {
		return models.Tracker{}, false, err
	}

	settings := tsync.NewSettingsSync(s.service, s.bus, t)
	if opts.Unit != "" {
		if err := settings.SetUnit(opts.Unit); err != nil {
			return t, false, err
		}
	}
	switch {
	case opts.Target != nil:
		settings.SetTarget(*opts.Target)
	case opts.TargetText != "":
		settings.SetTargetText(opts.TargetText, s.opts.Language)
	}
	return settings.Close(ctx)
}

// Uninstall removes ref's install. Its values are kept.
func (s *Session) Uninstall(ctx context.Context, ref string) (models.Tracker, error) {
	t, err := s.Find(ctx, ref)
	if err != nil {
		return models.Tracker{}, err
	}
	if !t.IsInstalled() {
		return t, fmt.Errorf("%w: %s", ErrNotInstalled, t.Name)
	}
	if err := s.service.UninstallTracker(ctx, t.MetricID); err != nil {
		return t, err
	}
	s.bus.TrackerRemoved.Publish(t)
	return t.Demote(), nil
}

// Reorder moves the trackers named by refs to the front of the installed
// list, in that order, and stores the resulting positions.
func (s *Session) Reorder(ctx context.Context, refs []string) ([]models.Tracker, error) {
	installed, err := s.Installed(ctx)
	if err != nil {
		return nil, err
	}

	var ordered []models.Tracker
	seen := map[string]bool{}
	for _, ref := range refs {
		t, err := s.Find(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !t.IsInstalled() {
			return nil, fmt.Errorf("%w: %s", ErrNotInstalled, t.Name)
		}
		if seen[t.MetricID] {
			continue
		}
		seen[t.MetricID] = true
		ordered = append(ordered, t)
	}
	for _, t := range installed {
		if !seen[t.MetricID] {
			ordered = append(ordered, t)
		}
	}

	if err := s.registry.SyncOrder(ctx, ordered); err != nil {
		return nil, err
	}
	return s.registry.Installed(), nil
}
