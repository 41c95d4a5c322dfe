package settings

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// --------------------------------------------------------------------------
// Boot Sequence
// --------------------------------------------------------------------------

// start runs the boot sequence: attach categories, then load every provider.
func (s *Settings) start(categories []*Category) {
	ctx := WithBootContext(context.Background())

	s.mu.Lock()
	s.state = BootBooting
	s.mu.Unlock()

	for _, c := range categories {
		if err := s.RegisterCategory(ctx, c); err != nil {
			Logger.Warningf("settings %q: registering category %q failed: %v", s.name, c.FullName(), err)
		}
	}

	if s.name == StandardName && !CurrentConfig().LoadStandard {
		s.mu.Lock()
		s.state = BootRunning
		s.mu.Unlock()
		Logger.Debugf("settings %q: loading disabled, running without persistors", s.name)
		s.markReady()
		return
	}
	s.beginLoading(ctx, false)
}

// providersLocked returns every backend plus the defaults provider.
func (s *Settings) providersLocked() []any {
	providers := make([]any, 0, len(s.persistors)+1)
	for _, p := range s.persistors {
		providers = append(providers, p)
	}
	if s.defaults != nil {
		providers = append(providers, s.defaults)
	}
	return providers
}

// beginLoading enters BootLoading and starts all loads. If no provider
// needs loading the instance is running when beginLoading returns.
func (s *Settings) beginLoading(ctx context.Context, reload bool) {
	s.mu.Lock()
	providers := s.providersLocked()
	s.state = BootLoading
	s.boot = bootProgress{total: len(providers), lastChange: time.Now(), reload: reload}

	var loadable []ISaveLoadable
	for _, p := range providers {
		if l, ok := p.(ISaveLoadable); ok {
			loadable = append(loadable, l)
		} else {
			s.boot.loaded++
		}
	}
	if len(loadable) == 0 {
		s.boot.finishing = true
	}
	s.mu.Unlock()

	Logger.Debugf("settings %q: loading %d of %d provider(s)", s.name, len(loadable), len(providers))
	if len(loadable) == 0 {
		s.finishLoading(ctx)
		return
	}
	for _, l := range loadable {
		s.startLoad(ctx, l)
	}
}

// loadProvider takes a provider added during BootLoading into account.
func (s *Settings) loadProvider(ctx context.Context, p any) {
	if l, ok := p.(ISaveLoadable); ok {
		s.startLoad(ctx, l)
		return
	}
	s.mu.Lock()
	s.boot.loaded++
	s.mu.Unlock()
	s.attemptReady(ctx, 1)
}

// startLoad loads l in its own goroutine.
func (s *Settings) startLoad(ctx context.Context, l ISaveLoadable) {
	go func() {
		start := time.Now()
		n, err := l.Load(ctx)
		if err != nil {
			bootFailuresTotal.Inc()
			Logger.Errorf("settings %q: loading %s failed, staying in %s: %v", s.name, typeNameOf(l), BootLoading, err)
			s.mu.Lock()
			if s.boot.err == nil {
				s.boot.err = wrapError(RetCFailedLoading, err, "settings %q: loading %s failed", s.name, typeNameOf(l))
			}
			s.mu.Unlock()
			return
		}
		Logger.Debugf("settings %q: loaded %d value(s) from %s in %s", s.name, n, typeNameOf(l), time.Since(start))

		s.mu.Lock()
		s.boot.loaded++
		s.mu.Unlock()
		s.attemptReady(ctx, 1)
	}()
}

// attemptReady finishes loading once every provider is loaded and no
// provider was added during the settle window. Otherwise it retries after a
// short delay, up to the configured number of attempts.
func (s *Settings) attemptReady(ctx context.Context, attempt int) {
	cfg := CurrentConfig()

	s.mu.Lock()
	if s.state != BootLoading || s.boot.finishing || s.boot.err != nil || s.boot.loaded < s.boot.total {
		s.mu.Unlock()
		return
	}
	if wait := cfg.BootSettle - time.Since(s.boot.lastChange); wait > 0 {
		s.mu.Unlock()
		if attempt >= cfg.BootMaxAttempts {
			Logger.Warningf("settings %q: not ready after %d attempts, giving up", s.name, attempt)
			return
		}
		time.AfterFunc(cfg.BootRetryDelay, func() { s.attemptReady(ctx, attempt+1) })
		return
	}
	s.boot.finishing = true
	s.mu.Unlock()

	s.finishLoading(ctx)
}

// finishLoading hydrates the value map from all providers, switches to
// BootRunning, pushes values to the observers and fires the callbacks.
func (s *Settings) finishLoading(ctx context.Context) {
	ctx = WithBootContext(ctx)
	s.mu.RLock()
	persistors := append([]IPersistor(nil), s.persistors...)
	defaults := s.defaults
	s.mu.RUnlock()

	var snapshots []map[string]any
	for _, p := range persistors {
		all, err := p.FetchAllKeyValues(ctx)
		if err != nil {
			Logger.Warningf("settings %q: reading %s failed: %v", s.name, p.TypeName(), err)
			continue
		}
		snapshots = append(snapshots, all)
	}
	hydrated := sanitizeLenient(s.name, reconcileAll(snapshots))

	var defaultValues map[string]any
	if defaults != nil {
		all, err := defaults.FetchAllKeyValues(ctx)
		if err != nil {
			Logger.Warningf("settings %q: reading defaults from %s failed: %v", s.name, defaults.TypeName(), err)
		}
		defaultValues = sanitizeLenient(s.name, all)
	}

	owner, err := s.tx.Acquire(context.Background())
	if err != nil {
		Logger.Errorf("settings %q: finishing boot failed: %v", s.name, err)
		return
	}
	txCtx := withTx(ctx, s, owner)

	s.mu.Lock()
	override := s.boot.reload
	for k, v := range hydrated {
		if _, exists := s.lookupLocked(k); override || !exists {
			s.storeLocked(k, v)
		}
	}
	for k, v := range defaultValues {
		if _, exists := s.lookupLocked(k); !exists {
			s.storeLocked(k, v)
		}
	}
	var notes []notification
	for key, list := range s.observers {
		if v, ok := s.lookupLocked(key); ok {
			notes = append(notes, notification{key: key, value: v, obs: append([]IObserver(nil), list...)})
		}
	}
	s.state = BootRunning
	s.boot.finishing = false
	callbacks := s.whenLoaded
	s.whenLoaded = nil
	s.mu.Unlock()

	if err := s.notify(txCtx, notes, applyOptions{}); err != nil {
		Logger.Warningf("settings %q: filling observers after boot: %v", s.name, err)
	}
	s.tx.Release(owner)

	Logger.Infof("settings %q: running with %d value(s)", s.name, len(hydrated))
	s.markReady()

	var keep []WhenLoadedFunc
	for _, cb := range callbacks {
		if !cb(s) {
			keep = append(keep, cb)
		}
	}
	if len(keep) > 0 {
		s.mu.Lock()
		s.whenLoaded = append(keep, s.whenLoaded...)
		s.mu.Unlock()
	}
}

func (s *Settings) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// sanitizeLenient sanitizes backend keys, dropping the ones that cannot be.
func sanitizeLenient(name string, values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		sk, err := Sanitize(k)
		if err != nil {
			Logger.Warningf("settings %q: ignoring stored key %q: %v", name, k, err)
			continue
		}
		out[sk] = v
	}
	return out
}

func typeNameOf(p any) string {
	if t, ok := p.(interface{ TypeName() string }); ok {
		return t.TypeName()
	}
	return "provider"
}

// --------------------------------------------------------------------------
// Readiness
// --------------------------------------------------------------------------

// Ready returns a channel that is closed once the instance reached
// BootRunning for the first time.
func (s *Settings) Ready() <-chan struct{} {
	return s.ready
}

// WaitReady blocks until the instance is running or ctx is done.
func (s *Settings) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		if err := s.BootError(); err != nil {
			return err
		}
		return wrapError(RetCFailedLoading, ctx.Err(), "settings %q: not ready (%s)", s.name, s.State())
	}
}

// BootError returns the error of the first failed provider load.
func (s *Settings) BootError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.boot.err == nil {
		return nil
	}
	return s.boot.err
}

// WhenLoaded registers cb to run once the instance is running. If it
// already is, cb runs right away. Callbacks returning false run again after
// every Reload.
func (s *Settings) WhenLoaded(cb WhenLoadedFunc) {
	s.mu.Lock()
	if s.state != BootRunning && s.state != BootSaving {
		s.whenLoaded = append(s.whenLoaded, cb)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if !cb(s) {
		s.mu.Lock()
		s.whenLoaded = append(s.whenLoaded, cb)
		s.mu.Unlock()
	}
}

// --------------------------------------------------------------------------
// Save & Reload
// --------------------------------------------------------------------------

// Save persists every backend that supports it, concurrently. It returns
// the total number of saved values.
func (s *Settings) Save(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.state != BootRunning {
		state := s.state
		s.mu.Unlock()
		return 0, NewError(RetCBadInput, "settings %q: cannot save while %s", s.name, state)
	}
	s.state = BootSaving
	var targets []ISaveLoadable
	for _, p := range s.persistors {
		if l, ok := p.(ISaveLoadable); ok {
			targets = append(targets, l)
		}
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = BootRunning
		s.mu.Unlock()
	}()

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range targets {
		g.Go(func() error {
			n, err := l.Save(gctx)
			total.Add(int64(n))
			if err != nil {
				return wrapError(RetCFailedSaving, err, "settings %q: saving %s failed", s.name, typeNameOf(l))
			}
			return nil
		})
	}
	err := g.Wait()
	Logger.Debugf("settings %q: saved %d value(s) to %d persistor(s)", s.name, total.Load(), len(targets))
	return int(total.Load()), err
}

// Reload runs the loading phase again. Values read from the backends
// replace the in-memory values.
func (s *Settings) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.state != BootRunning {
		state := s.state
		s.mu.Unlock()
		return NewError(RetCBadInput, "settings %q: cannot reload while %s", s.name, state)
	}
	s.mu.Unlock()

	s.beginLoading(WithBootContext(context.WithoutCancel(ctx)), true)
	return nil
}
