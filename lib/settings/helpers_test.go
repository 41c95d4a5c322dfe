package settings

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test Persistors
// --------------------------------------------------------------------------

// fakePersistor records every call and keeps its values in a map.
type fakePersistor struct {
	name string

	mu        sync.Mutex
	values    map[string]any
	calls     []string
	failSet   error
	failFetch error
}

func newFakePersistor(name string) *fakePersistor {
	return &fakePersistor{name: name, values: map[string]any{}}
}

func (f *fakePersistor) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakePersistor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePersistor) Value(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

// put writes directly into the backend, bypassing any instance.
func (f *fakePersistor) put(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

func (f *fakePersistor) TypeName() string { return "fake" }
func (f *fakePersistor) URL() string      { return "mem://" + f.name }

func (f *fakePersistor) SetValue(ctx context.Context, key string, value any) error {
	return f.SetValues(ctx, map[string]any{key: value})
}

func (f *fakePersistor) SetValues(_ context.Context, values map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetValues")
	if f.failSet != nil {
		return f.failSet
	}
	for k, v := range values {
		if v == nil {
			delete(f.values, k)
		} else {
			f.values[k] = v
		}
	}
	return nil
}

func (f *fakePersistor) FetchValue(_ context.Context, key string) (any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch != nil {
		return nil, false, f.failFetch
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakePersistor) FetchValues(_ context.Context, keys []string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]any{}
	for _, k := range keys {
		if v, ok := f.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *fakePersistor) FetchAllKeyValues(context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.values), nil
}

func (f *fakePersistor) KeyWasChanged(_ context.Context, from, to string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("KeyWasChanged %s->%s", from, to))
	delete(f.values, from)
	if value != nil {
		f.values[to] = value
	}
	return nil
}

func (f *fakePersistor) ValueWasChanged(_ context.Context, key string, _, to any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ValueWasChanged " + key)
	f.values[key] = to
	return nil
}

// loadablePersistor adds Load and Save. Load blocks until gate is closed
// (if set) and then returns loadErr.
type loadablePersistor struct {
	*fakePersistor
	gate    chan struct{}
	loadErr error
	saves   atomic.Int32
}

func newLoadablePersistor(name string, gate chan struct{}) *loadablePersistor {
	return &loadablePersistor{fakePersistor: newFakePersistor(name), gate: gate}
}

func (l *loadablePersistor) Load(ctx context.Context) (int, error) {
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if l.loadErr != nil {
		return 0, l.loadErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.values), nil
}

func (l *loadablePersistor) Save(context.Context) (int, error) {
	l.saves.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.values), nil
}

// staticDefaults is a defaults provider over a fixed map.
type staticDefaults map[string]any

func (d staticDefaults) TypeName() string { return "static" }
func (d staticDefaults) FetchAllKeyValues(context.Context) (map[string]any, error) {
	return maps.Clone(map[string]any(d)), nil
}

// --------------------------------------------------------------------------
// Test Observer
// --------------------------------------------------------------------------

// countingObserver counts the values it receives.
type countingObserver struct {
	id  uuid.UUID
	key string

	mu       sync.Mutex
	values   []any
	defaults []any
}

func newCountingObserver(key string) *countingObserver {
	return &countingObserver{id: uuid.New(), key: key}
}

func (o *countingObserver) ID() uuid.UUID { return o.id }
func (o *countingObserver) Key() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.key
}

func (o *countingObserver) SetValue(_ context.Context, v any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values = append(o.values, v)
	return nil
}

func (o *countingObserver) SetDefaultValue(_ context.Context, v any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.defaults = append(o.defaults, v)
	return nil
}

func (o *countingObserver) Rebind(ctx context.Context, s *Settings, key string) error {
	o.mu.Lock()
	o.key = key
	o.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.RegisterObserver(ctx, o)
}

func (o *countingObserver) Received() []any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]any(nil), o.values...)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

var errRejected = errors.New("rejected")

var instanceCounter atomic.Int64

// uniqueName returns an instance name no other test uses.
func uniqueName(t testing.TB) string {
	return fmt.Sprintf("%s-%d", t.Name(), instanceCounter.Add(1))
}

// withConfig applies c for the duration of the test.
func withConfig(t testing.TB, c Config) {
	Configure(c)
	t.Cleanup(func() { Configure(DefaultConfig()) })
}

// --------------------------------------------------------------------------
// Readers
// --------------------------------------------------------------------------

func mustChanges(t *testing.T, s *Settings) []Change {
	t.Helper()
	changes, err := s.Changes(context.Background())
	require.NoError(t, err)
	return changes
}

func mustSnapshot(t *testing.T, s *Settings) map[string]any {
	t.Helper()
	values, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	return values
}

func mustKeys(t *testing.T, s *Settings) []string {
	t.Helper()
	keys, err := s.Keys(context.Background())
	require.NoError(t, err)
	return keys
}

func mustCategories(t *testing.T, s *Settings) []string {
	t.Helper()
	categories, err := s.Categories(context.Background())
	require.NoError(t, err)
	return categories
}

// --------------------------------------------------------------------------
// Test Logger
// --------------------------------------------------------------------------

// recordingLogger keeps every warning written to the package logger.
type recordingLogger struct {
	logger.ILogger

	mu       sync.Mutex
	warnings []string
}

// recordWarnings swaps the package logger for the duration of the test.
func recordWarnings(t *testing.T) *recordingLogger {
	t.Helper()
	rec := &recordingLogger{ILogger: Logger}
	Logger = rec
	t.Cleanup(func() { Logger = rec.ILogger })
	return rec
}

func (r *recordingLogger) Warningf(format string, args ...interface{}) {
	r.mu.Lock()
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
	r.mu.Unlock()
	r.ILogger.Warningf(format, args...)
}

// Warnings returns the recorded warnings containing substr.
func (r *recordingLogger) Warnings(substr string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, w := range r.warnings {
		if strings.Contains(w, substr) {
			out = append(out, w)
		}
	}
	return out
}
