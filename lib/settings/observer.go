package settings

import (
	"context"
	"encoding/json"
	"sync"
	"weak"

	"github.com/google/uuid"
)

// IObserver is a value holder bound to one key of one instance. The
// instance pushes values through SetValue and SetDefaultValue; categories
// move observers between keys and instances through Rebind.
type IObserver interface {
	// ID distinguishes observers sharing a key.
	ID() uuid.UUID
	// Key returns the sanitized key the observer is bound to.
	Key() string
	// SetValue receives a value from the instance. nil means the key was removed.
	SetValue(ctx context.Context, value any) error
	// SetDefaultValue receives a new default value.
	SetDefaultValue(ctx context.Context, value any) error
	// Rebind moves the observer to key of s. A nil s unbinds it.
	Rebind(ctx context.Context, s *Settings, key string) error
}

// Value is a typed observer. It keeps a local copy of its value, reports
// local changes to its instance and receives changes made elsewhere.
type Value[T any] struct {
	id uuid.UUID

	mu       sync.RWMutex
	key      string
	value    T
	def      T
	settings weak.Pointer[Settings]
}

// NewValue creates an unbound value holding def.
func NewValue[T any](key string, def T) *Value[T] {
	return &Value[T]{
		id:    uuid.New(),
		key:   key,
		value: def,
		def:   def,
	}
}

// ID implements IObserver.
func (v *Value[T]) ID() uuid.UUID {
	return v.id
}

// Key implements IObserver.
func (v *Value[T]) Key() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Default returns the default value.
func (v *Value[T]) Default() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.def
}

// Settings returns the instance the value is bound to, or nil.
func (v *Value[T]) Settings() *Settings {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.settings.Value()
}

// Set changes the value locally and reports the change to the bound
// instance. The value itself is not notified again.
func (v *Value[T]) Set(ctx context.Context, value T) error {
	v.mu.Lock()
	from := v.value
	v.value = value
	s := v.settings.Value()
	key := v.key
	v.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.ValueWasChanged(ctx, key, from, value, v)
}

// SetValue implements IObserver. A nil value resets to the default.
func (v *Value[T]) SetValue(_ context.Context, value any) error {
	if value == nil {
		v.mu.Lock()
		v.value = v.def
		v.mu.Unlock()
		return nil
	}
	t, err := coerce[T](value)
	if err != nil {
		err.Key = v.Key()
		return err
	}
	v.mu.Lock()
	v.value = t
	v.mu.Unlock()
	return nil
}

// SetDefaultValue implements IObserver.
func (v *Value[T]) SetDefaultValue(_ context.Context, value any) error {
	if value == nil {
		return nil
	}
	t, err := coerce[T](value)
	if err != nil {
		err.Key = v.Key()
		return err
	}
	v.mu.Lock()
	v.def = t
	v.mu.Unlock()
	return nil
}

// Bind binds the value to s under its current key. A nil s selects the
// standard instance.
func (v *Value[T]) Bind(ctx context.Context, s *Settings) error {
	if s == nil {
		s = Standard()
	}
	key, err := Sanitize(v.Key())
	if err != nil {
		return err
	}
	return v.Rebind(ctx, s, key)
}

// Rebind implements IObserver.
func (v *Value[T]) Rebind(ctx context.Context, s *Settings, key string) error {
	v.mu.Lock()
	old := v.settings.Value()
	oldKey := v.key
	if old == s && oldKey == key {
		v.mu.Unlock()
		return nil
	}
	if old == s {
		v.mu.Unlock()
		return v.SetKey(ctx, key)
	}
	v.key = key
	if s != nil {
		v.settings = weak.Make(s)
	} else {
		v.settings = weak.Pointer[Settings]{}
	}
	v.mu.Unlock()

	if old != nil {
		old.UnregisterObserver(oldKey, v.id)
	}
	if s == nil {
		return nil
	}
	return s.RegisterObserver(ctx, v)
}

// SetKey renames the key of the value. A bound instance moves its stored
// value along.
func (v *Value[T]) SetKey(ctx context.Context, key string) error {
	to, err := Sanitize(key)
	if err != nil {
		return err
	}

	v.mu.Lock()
	from := v.key
	if from == to {
		v.mu.Unlock()
		return nil
	}
	v.key = to
	s := v.settings.Value()
	value := v.value
	v.mu.Unlock()

	if s == nil {
		return nil
	}
	if err := s.KeyWasChanged(ctx, from, to, value, v); err != nil {
		v.mu.Lock()
		v.key = from
		v.mu.Unlock()
		return err
	}
	return nil
}

// Unbind removes the value from its instance.
func (v *Value[T]) Unbind() {
	v.mu.Lock()
	s := v.settings.Value()
	key := v.key
	v.settings = weak.Pointer[Settings]{}
	v.mu.Unlock()

	if s != nil {
		s.UnregisterObserver(key, v.id)
	}
}

// --------------------------------------------------------------------------
// Coercion
// --------------------------------------------------------------------------

// coerce converts value to T. Values of a different type are converted
// through their JSON encoding, so numbers decoded as float64 by a backend fit
// an int observer.
func coerce[T any](value any) (T, *Error) {
	var zero T
	if value == nil {
		return zero, nil
	}
	if t, ok := value.(T); ok {
		return t, nil
	}
	raw, err := json.Marshal(value)
	if err == nil {
		var out T
		if err = json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
	}
	return zero, wrapError(RetCFailedInserting, err, "type mismatch: cannot insert %T into %T", value, zero)
}

// Get reads key from s and converts it to T.
func Get[T any](ctx context.Context, s *Settings, key string) (T, bool, error) {
	var zero T
	value, ok, err := s.GetValue(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	t, cerr := coerce[T](value)
	if cerr != nil {
		cerr.Key = key
		return zero, true, cerr
	}
	return t, true, nil
}
