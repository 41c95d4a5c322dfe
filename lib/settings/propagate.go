package settings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// observerRef identifies one observer on one key.
type observerRef struct {
	key string
	id  uuid.UUID
}

// applyOptions control a single apply run.
type applyOptions struct {
	exclude  map[observerRef]struct{}
	defaults bool
	// fanout replaces the default SetValues fan-out.
	fanout func(ctx context.Context, p IPersistor) error
}

// notification is one observer call collected under the data mutex.
type notification struct {
	key   string
	value any
	obs   []IObserver
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// BulkChanges runs body as one transaction. Other callers observe either
// none or all of the changes made inside body. Nested calls with the context
// passed to body run inline.
func (s *Settings) BulkChanges(ctx context.Context, body func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return body(ctx)
	}
	owner, err := s.tx.Acquire(ctx)
	if err != nil {
		return wrapError(RetCInternalError, err, "settings %q: acquiring transaction failed", s.name)
	}
	defer s.tx.Release(owner)

	transactionsTotal.Inc()
	s.stats.inc(statTransactions, 1)
	return body(withTx(ctx, s, owner))
}

// BulkChangesAsync runs BulkChanges in a new goroutine. The returned channel
// receives the result and is closed afterwards.
func (s *Settings) BulkChangesAsync(ctx context.Context, body func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- s.BulkChanges(ctx, body)
	}()
	return done
}

// --------------------------------------------------------------------------
// Public Operations
// --------------------------------------------------------------------------

// SetValue stores a single value. See SetValues.
func (s *Settings) SetValue(ctx context.Context, key string, value any, exclude ...IObserver) error {
	return s.SetValues(ctx, map[string]any{key: value}, exclude...)
}

// SetValues stores values, notifies observers and mirrors the values into
// every backend. A nil value removes the key. If any key cannot be sanitized
// nothing is changed. Observers in exclude are not notified, which lets a
// caller write through its own observers without hearing the echo.
func (s *Settings) SetValues(ctx context.Context, values map[string]any, exclude ...IObserver) error {
	sanitized, err := SanitizeAll(values)
	if err != nil {
		return err
	}
	opts := applyOptions{exclude: excludeSet(exclude)}
	return s.BulkChanges(ctx, func(ctx context.Context) error {
		return s.apply(ctx, sanitized, opts)
	})
}

// SetValuesAsync is SetValues without waiting for the result.
func (s *Settings) SetValuesAsync(ctx context.Context, values map[string]any, exclude ...IObserver) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- s.SetValues(ctx, values, exclude...)
	}()
	return done
}

func excludeSet(observers []IObserver) map[observerRef]struct{} {
	if len(observers) == 0 {
		return nil
	}
	set := make(map[observerRef]struct{}, len(observers))
	for _, o := range observers {
		if o != nil {
			set[observerRef{key: o.Key(), id: o.ID()}] = struct{}{}
		}
	}
	return set
}

// GetValue returns the value stored under key. A missing key is not an
// error; only a key that cannot be sanitized is.
func (s *Settings) GetValue(ctx context.Context, key string) (any, bool, error) {
	k, err := Sanitize(key)
	if err != nil {
		return nil, false, err
	}

	release, err := s.joinTx(ctx)
	if err != nil {
		return nil, false, err
	}
	defer release()

	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.lookupLocked(k)
	return value, ok, nil
}

// ValueWasChanged is called by an observer that changed its own value from
// from to to. The stored value decides what happens:
//   - it already equals to: nothing
//   - otherwise to is stored and propagated (last writer wins)
//
// The caller is not notified of its own change.
func (s *Settings) ValueWasChanged(ctx context.Context, key string, from, to any, caller IObserver) error {
	k, err := Sanitize(key)
	if err != nil {
		return err
	}

	return s.BulkChanges(ctx, func(ctx context.Context) error {
		s.mu.RLock()
		current, had := s.lookupLocked(k)
		s.mu.RUnlock()

		if had && sameValue(current, to) {
			return nil
		}
		if had && !sameValue(current, from) {
			Logger.Debugf("settings %q: %s changed concurrently (stored %v, expected %v), storing %v", s.name, k, current, from, to)
		}

		opts := applyOptions{
			fanout: func(ctx context.Context, p IPersistor) error {
				return p.ValueWasChanged(ctx, k, current, to)
			},
		}
		if caller != nil {
			opts.exclude = map[observerRef]struct{}{{key: k, id: caller.ID()}: {}}
		}
		return s.apply(ctx, map[string]any{k: to}, opts)
	})
}

// KeyWasChanged renames from to to. The observer index and stored value move
// along. value replaces the stored value if it is not nil. A nil caller moves
// every observer of from. Outside the boot context the rename is recorded and
// forwarded to the backends.
func (s *Settings) KeyWasChanged(ctx context.Context, from, to string, value any, caller IObserver) error {
	fromKey, err := Sanitize(from)
	if err != nil {
		return err
	}
	toKey, err := Sanitize(to)
	if err != nil {
		return err
	}
	if fromKey == toKey {
		return nil
	}
	boot := IsBootContext(ctx)

	return s.BulkChanges(ctx, func(ctx context.Context) error {
		s.mu.Lock()
		moved := s.moveObserversLocked(fromKey, toKey, caller)

		stored, had := s.lookupLocked(fromKey)
		if _, remaining := s.observers[fromKey]; !remaining && had {
			s.storeLocked(fromKey, nil)
		}
		if value == nil && had {
			value = stored
		}
		if value != nil {
			s.storeLocked(toKey, value)
		}

		if !boot {
			now := time.Now()
			s.appendChangesLocked([]Change{
				{Key: fromKey, Action: ChangeKey, From: fromKey, To: "", At: now},
				{Key: toKey, Action: ChangeKey, From: "", To: toKey, At: now},
			})
		}
		persistors := append([]IPersistor(nil), s.persistors...)
		s.mu.Unlock()

		Logger.Debugf("settings %q: renamed %s -> %s (%d observer(s), boot=%t)", s.name, fromKey, toKey, moved, boot)
		if boot {
			return nil
		}
		return s.fanout(ctx, persistors, func(ctx context.Context, p IPersistor) error {
			return p.KeyWasChanged(ctx, fromKey, toKey, value)
		})
	})
}

// ResetToDefaults replaces all values with the defaults of the defaults
// provider, in one transaction. The change log is cleared, observers receive
// the defaults as new default and current value, and every backend receives
// the defaults.
func (s *Settings) ResetToDefaults(ctx context.Context) error {
	return s.BulkChanges(ctx, func(ctx context.Context) error {
		s.mu.Lock()
		s.values = make(map[string]map[string]any)
		s.changes.clear()
		s.isEmpty = true
		provider := s.defaults
		s.mu.Unlock()

		defaults := map[string]any{}
		if provider != nil {
			fetched, err := provider.FetchAllKeyValues(ctx)
			if err != nil {
				return wrapError(RetCFailedLoading, err, "settings %q: fetching defaults from %s failed", s.name, provider.TypeName())
			}
			defaults = fetched
		}
		sanitized, err := SanitizeAll(defaults)
		if err != nil {
			return err
		}
		Logger.Infof("settings %q: reset to %d default value(s)", s.name, len(sanitized))
		return s.apply(ctx, sanitized, applyOptions{defaults: true})
	})
}

// FetchValueFromPersistors asks every backend for key and reconciles the
// answers: the majority wins, ties go to the first backend. Failing backends
// are skipped; if all fail the error is returned.
func (s *Settings) FetchValueFromPersistors(ctx context.Context, key string) (any, bool, error) {
	k, err := Sanitize(key)
	if err != nil {
		return nil, false, err
	}
	persistors := s.Persistors()

	var (
		found  []any
		errs   []error
		failed int
	)
	for _, p := range persistors {
		v, ok, err := p.FetchValue(ctx, k)
		if err != nil {
			failed++
			errs = append(errs, err)
			Logger.Warningf("settings %q: fetching %s from %s failed: %v", s.name, k, p.TypeName(), err)
			continue
		}
		if ok {
			found = append(found, v)
		}
	}
	if len(persistors) > 0 && failed == len(persistors) {
		return nil, false, wrapError(RetCFailedLoading, errors.Join(errs...), "settings %q: no persistor could fetch %s", s.name, k)
	}
	v, ok := Reconcile(found)
	return v, ok, nil
}

// --------------------------------------------------------------------------
// Apply (callers hold the transaction)
// --------------------------------------------------------------------------

// apply runs the steps of one change in order: diff, write map, notify
// observers, fan out to backends, append change records.
func (s *Settings) apply(ctx context.Context, values map[string]any, opts applyOptions) error {
	now := time.Now()
	boot := IsBootContext(ctx)

	// 1 + 2: diff and write under the data mutex
	s.mu.Lock()
	var records []Change
	var notes []notification
	for k, v := range values {
		old, had := s.lookupLocked(k)
		changed := !had && v != nil || had && !sameValue(old, v)
		if changed {
			records = append(records, Change{Key: k, Action: ChangeValue, From: describe(old), To: describe(v), At: now})
		}
		s.storeLocked(k, v)
		if changed || opts.defaults {
			if obs := s.observers[k]; len(obs) > 0 {
				notes = append(notes, notification{key: k, value: v, obs: append([]IObserver(nil), obs...)})
			}
		}
	}
	persistors := append([]IPersistor(nil), s.persistors...)
	s.mu.Unlock()

	// 3: observers
	obsErr := s.notify(ctx, notes, opts)

	// 4: backends
	var fanErr error
	if opts.fanout != nil {
		fanErr = s.fanout(ctx, persistors, opts.fanout)
	} else {
		fanErr = s.fanout(ctx, persistors, func(ctx context.Context, p IPersistor) error {
			return p.SetValues(ctx, values)
		})
	}

	// 5: change log
	if !boot && len(records) > 0 {
		s.mu.Lock()
		s.appendChangesLocked(records)
		s.mu.Unlock()
	}

	if fanErr != nil {
		return fanErr
	}
	return obsErr
}

// notify pushes values to observers. Failures are logged and collected but
// never stop the remaining notifications.
func (s *Settings) notify(ctx context.Context, notes []notification, opts applyOptions) error {
	var errs []error
	for _, n := range notes {
		for _, o := range n.obs {
			if _, skip := opts.exclude[observerRef{key: n.key, id: o.ID()}]; skip {
				continue
			}
			if o.Key() != n.key {
				Logger.Warningf("settings %q: observer %s is bound to %s but indexed under %s, skipping", s.name, o.ID(), o.Key(), n.key)
				continue
			}
			if opts.defaults {
				if err := o.SetDefaultValue(ctx, n.value); err != nil {
					errs = append(errs, err)
					continue
				}
			}
			if err := o.SetValue(ctx, n.value); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		observerErrorsTotal.Add(len(errs))
		s.stats.inc(statObserverErrors, int64(len(errs)))
		for _, err := range errs {
			Logger.Warningf("settings %q: observer rejected value: %v", s.name, err)
		}
	}
	return errors.Join(errs...)
}

// fanout calls fn for every backend in order and stops at the first error.
// Backends that already succeeded are not rolled back.
func (s *Settings) fanout(ctx context.Context, persistors []IPersistor, fn func(ctx context.Context, p IPersistor) error) error {
	if len(persistors) == 0 {
		return nil
	}
	start := time.Now()
	defer s.stats.fanout(start)

	for _, p := range persistors {
		if err := fn(ctx, p); err != nil {
			fanoutErrorsTotal.Inc()
			s.stats.inc(statPersistorErrors, 1)
			Logger.Errorf("settings %q: persistor %s failed: %v", s.name, p.TypeName(), err)
			return wrapError(RetCFailedUpdating, err, "settings %q: persistor %s rejected the change", s.name, p.TypeName())
		}
	}
	return nil
}

// appendChangesLocked appends records to the change log and warns once the
// log is longer than MaxChanges.
func (s *Settings) appendChangesLocked(records []Change) {
	if len(records) == 0 {
		return
	}
	maxChanges := CurrentConfig().MaxChanges
	if n := s.changes.append(records); n > maxChanges {
		Logger.Warningf("settings %q: change log holds %d entries, more than the maximum of %d", s.name, n, maxChanges)
	}
	changesCounter(s.name).Add(len(records))
	s.stats.inc(statChanges, int64(len(records)))
}

// moveObserversLocked moves caller (or every observer if caller is nil)
// from one key to another and returns the number of moved observers.
func (s *Settings) moveObserversLocked(from, to string, caller IObserver) int {
	var moving []IObserver
	if caller == nil {
		moving = s.observers[from]
		delete(s.observers, from)
	} else {
		for _, o := range s.observers[from] {
			if o.ID() == caller.ID() {
				moving = append(moving, o)
			}
		}
		if len(moving) > 0 {
			s.unregisterLocked(from, caller.ID())
		} else {
			moving = []IObserver{caller}
		}
	}
	for _, o := range moving {
		dup := false
		for _, existing := range s.observers[to] {
			if existing.ID() == o.ID() {
				dup = true
				break
			}
		}
		if !dup {
			s.observers[to] = append(s.observers[to], o)
		}
	}
	return len(moving)
}
