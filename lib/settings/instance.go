package settings

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("settings")

// BootState is the readiness stage of an instance.
type BootState int32

const (
	BootUnbooted BootState = iota
	BootBooting
	BootLoading
	BootRunning
	BootSaving
)

func (b BootState) String() string {
	switch b {
	case BootUnbooted:
		return "unbooted"
	case BootBooting:
		return "booting"
	case BootLoading:
		return "loading"
	case BootRunning:
		return "running"
	case BootSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// Options configure a new instance.
type Options struct {
	// Persistors are mirrored on every change, in the given order.
	Persistors []IPersistor
	// Defaults provides the values used by ResetToDefaults and for keys no
	// backend knows after boot.
	Defaults IDefaultsProvider
	// Categories are attached during boot.
	Categories []*Category
	// RequirePersistors rejects instances without any persistor.
	RequirePersistors bool
}

// WhenLoadedFunc is called once an instance reaches BootRunning. Returning
// true removes the callback, false keeps it for the next (re)load.
type WhenLoadedFunc func(s *Settings) (remove bool)

// bootProgress tracks the loading phase.
type bootProgress struct {
	total      int
	loaded     int
	lastChange time.Time
	finishing  bool
	reload     bool
	err        error
}

// Settings is a named store of categorized values, mirrored into backends
// and observed by bound values.
type Settings struct {
	name string
	tx   *txLock

	mu         sync.RWMutex
	values     map[string]map[string]any // category -> key -> value
	observers  map[string][]IObserver    // key -> observers
	changes    changeLog
	persistors []IPersistor
	defaults   IDefaultsProvider
	categories []*Category
	orphan     *Category
	isEmpty    bool
	state      BootState
	boot       bootProgress
	whenLoaded []WhenLoadedFunc
	ready      chan struct{}
	readyOnce  sync.Once

	stats *instanceStats
}

// New creates and boots a named instance. The name must be unique among the
// live instances of the process.
func New(name string, opts Options) (*Settings, error) {
	if strings.TrimSpace(name) == "" {
		return nil, NewError(RetCBadInput, "settings name must not be empty")
	}
	if opts.RequirePersistors && len(opts.Persistors) == 0 {
		return nil, NewError(RetCBadInput, "settings %q requires at least one persistor", name)
	}
	for i, p := range opts.Persistors {
		if p == nil {
			return nil, NewError(RetCBadInput, "settings %q: persistor %d is nil", name, i)
		}
	}

	s := &Settings{
		name:       name,
		tx:         newTxLock(),
		values:     make(map[string]map[string]any),
		observers:  make(map[string][]IObserver),
		persistors: slices.Clone(opts.Persistors),
		defaults:   opts.Defaults,
		isEmpty:    true,
		state:      BootUnbooted,
		ready:      make(chan struct{}),
		stats:      newInstanceStats(name),
	}

	if err := register(s); err != nil {
		return nil, err
	}

	Logger.Debugf("created settings %q with %d persistor(s)", name, len(s.persistors))
	s.start(opts.Categories)
	return s, nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Name returns the unique name of the instance.
func (s *Settings) Name() string {
	return s.name
}

// State returns the current boot state.
func (s *Settings) State() BootState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsEmpty reports whether the instance never held a value.
func (s *Settings) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isEmpty
}

// Persistors returns the attached backends in fan-out order.
func (s *Settings) Persistors() []IPersistor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.persistors)
}

// Defaults returns the defaults provider or nil.
func (s *Settings) Defaults() IDefaultsProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// The readers below wait for a running transaction to finish, so they never
// observe half of a bulk change. Inside a transaction they read directly.

// Changes returns a copy of the change log, oldest first.
func (s *Settings) Changes(ctx context.Context) ([]Change, error) {
	release, err := s.joinTx(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changes.snapshot(), nil
}

// Keys returns all keys holding a value, sorted.
func (s *Settings) Keys(ctx context.Context) ([]string, error) {
	release, err := s.joinTx(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for _, bucket := range s.values {
		for k := range bucket {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Snapshot returns a flat copy of all values.
func (s *Settings) Snapshot(ctx context.Context) (map[string]any, error) {
	release, err := s.joinTx(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flattenLocked(), nil
}

// Categories returns the names of all categories holding values, sorted.
func (s *Settings) Categories(ctx context.Context) ([]string, error) {
	release, err := s.joinTx(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.values))
	for c := range s.values {
		names = append(names, c)
	}
	sort.Strings(names)
	return names, nil
}

// Stats returns the instance's counters and timers.
func (s *Settings) Stats() map[string]int64 {
	return s.stats.snapshot()
}

// Dump renders the instance, its values and the change log for debugging.
func (s *Settings) Dump(ctx context.Context) (string, error) {
	release, err := s.joinTx(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("settings %q (%s)\n", s.name, s.state))
	for _, p := range s.persistors {
		sb.WriteString(fmt.Sprintf("  persistor %-12s %s\n", p.TypeName(), p.URL()))
	}
	if s.defaults != nil {
		sb.WriteString(fmt.Sprintf("  defaults  %s\n", s.defaults.TypeName()))
	}

	flat := s.flattenLocked()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-30s = %v\n", k, flat[k]))
	}
	for _, c := range s.changes.entries {
		sb.WriteString(fmt.Sprintf("  change: %s\n", c))
	}
	return sb.String(), nil
}

// --------------------------------------------------------------------------
// Value Map (callers hold s.mu)
// --------------------------------------------------------------------------

func (s *Settings) lookupLocked(key string) (any, bool) {
	cat, ok := CategoryOf(key, CurrentConfig().Delimiter)
	if !ok {
		return nil, false
	}
	bucket, ok := s.values[cat]
	if !ok {
		return nil, false
	}
	v, ok := bucket[key]
	return v, ok
}

// storeLocked writes value under key. A nil value deletes the key, empty
// buckets are removed.
func (s *Settings) storeLocked(key string, value any) {
	cat, ok := CategoryOf(key, CurrentConfig().Delimiter)
	if !ok {
		return
	}
	if value == nil {
		if bucket, ok := s.values[cat]; ok {
			delete(bucket, key)
			if len(bucket) == 0 {
				delete(s.values, cat)
			}
		}
		return
	}
	bucket, ok := s.values[cat]
	if !ok {
		bucket = make(map[string]any)
		s.values[cat] = bucket
	}
	bucket[key] = value
	s.isEmpty = false
}

func (s *Settings) flattenLocked() map[string]any {
	out := make(map[string]any)
	for _, bucket := range s.values {
		for k, v := range bucket {
			out[k] = v
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Registration API
// --------------------------------------------------------------------------

// RegisterObserver adds obs to the observer index under its key. If the
// instance holds a value for the key, obs receives it.
func (s *Settings) RegisterObserver(ctx context.Context, obs IObserver) error {
	if obs == nil {
		return NewError(RetCBadInput, "observer must not be nil")
	}
	key, err := Sanitize(obs.Key())
	if err != nil {
		return err
	}
	if key != obs.Key() {
		return keyError(RetCBadInput, obs.Key(), "observer key %q is not sanitized (expected %q)", obs.Key(), key)
	}

	s.mu.Lock()
	list := s.observers[key]
	for _, o := range list {
		if o.ID() == obs.ID() {
			s.mu.Unlock()
			return nil
		}
	}
	s.observers[key] = append(list, obs)
	value, ok := s.lookupLocked(key)
	running := s.state == BootRunning || s.state == BootSaving
	s.mu.Unlock()

	if ok && running {
		return obs.SetValue(WithBootContext(ctx), value)
	}
	return nil
}

// UnregisterObserver removes the observer with id from key. It reports
// whether an observer was removed.
func (s *Settings) UnregisterObserver(key string, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unregisterLocked(key, id)
}

func (s *Settings) unregisterLocked(key string, id uuid.UUID) bool {
	list := s.observers[key]
	for i, o := range list {
		if o.ID() == id {
			list = slices.Delete(list, i, i+1)
			if len(list) == 0 {
				delete(s.observers, key)
			} else {
				s.observers[key] = list
			}
			return true
		}
	}
	return false
}

// Observers returns the observers bound to key.
func (s *Settings) Observers(key string) []IObserver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.observers[key])
}

// RegisterCategory makes s the owner of c and its whole subtree. Observers
// bound below c are moved to s.
func (s *Settings) RegisterCategory(ctx context.Context, c *Category) error {
	if c == nil {
		return NewError(RetCBadInput, "category must not be nil")
	}
	s.mu.Lock()
	if !slices.Contains(s.categories, c) {
		s.categories = append(s.categories, c)
	}
	s.mu.Unlock()
	return c.SetSettings(ctx, s)
}

// OrphanCategory returns the category holding keys without a category of
// their own. It is created on first use.
func (s *Settings) OrphanCategory(ctx context.Context) *Category {
	s.mu.Lock()
	if s.orphan != nil {
		c := s.orphan
		s.mu.Unlock()
		return c
	}
	c := NewCategory(CurrentConfig().OrphanCategory)
	s.orphan = c
	s.categories = append(s.categories, c)
	s.mu.Unlock()

	if err := c.SetSettings(ctx, s); err != nil {
		Logger.Warningf("settings %q: attaching orphan category failed: %v", s.name, err)
	}
	return c
}

// --------------------------------------------------------------------------
// Backends
// --------------------------------------------------------------------------

// AddPersistor attaches p. While the instance is loading, p becomes part of
// the boot sequence and the settle window restarts.
func (s *Settings) AddPersistor(ctx context.Context, p IPersistor) error {
	if p == nil {
		return NewError(RetCBadInput, "persistor must not be nil")
	}

	s.mu.Lock()
	if slices.Contains(s.persistors, p) {
		s.mu.Unlock()
		return nil
	}
	s.persistors = append(s.persistors, p)
	loading := s.state == BootLoading
	if loading {
		s.boot.total++
		s.boot.lastChange = time.Now()
	}
	s.mu.Unlock()

	Logger.Debugf("settings %q: added persistor %s (loading=%t)", s.name, p.TypeName(), loading)
	if loading {
		s.loadProvider(WithBootContext(context.WithoutCancel(ctx)), p)
	}
	return nil
}

// RemovePersistor detaches p. It reports whether p was attached.
func (s *Settings) RemovePersistor(p IPersistor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.Index(s.persistors, p)
	if idx < 0 {
		return false
	}
	s.persistors = slices.Delete(s.persistors, idx, idx+1)
	return true
}

// forgetCategory drops c from the categories registered at s.
func (s *Settings) forgetCategory(c *Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := slices.Index(s.categories, c); idx >= 0 {
		s.categories = slices.Delete(s.categories, idx, idx+1)
	}
	if s.orphan == c {
		s.orphan = nil
	}
}
