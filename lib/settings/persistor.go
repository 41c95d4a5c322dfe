package settings

import "context"

// --------------------------------------------------------------------------
// Backend Interfaces
// --------------------------------------------------------------------------

// IPersistor is a backend mirrored by a Settings instance. Keys are always
// sanitized before they reach a backend. All methods must be safe for
// concurrent use.
type IPersistor interface {
	// TypeName identifies the kind of backend in logs and dumps.
	TypeName() string
	// URL describes where the backend keeps its data. It may be empty.
	URL() string

	// SetValue stores a single value. A nil value removes the key.
	SetValue(ctx context.Context, key string, value any) error
	// SetValues stores a batch of values. A nil value removes the key.
	SetValues(ctx context.Context, values map[string]any) error

	// FetchValue returns the stored value. ok is false if the key is unknown.
	FetchValue(ctx context.Context, key string) (value any, ok bool, err error)
	// FetchValues returns the stored values for keys. Unknown keys are omitted.
	FetchValues(ctx context.Context, keys []string) (map[string]any, error)
	// FetchAllKeyValues returns everything the backend holds.
	FetchAllKeyValues(ctx context.Context) (map[string]any, error)

	// KeyWasChanged is called after a key was renamed.
	KeyWasChanged(ctx context.Context, from, to string, value any) error
	// ValueWasChanged is called after an observer changed its value.
	ValueWasChanged(ctx context.Context, key string, from, to any) error
}

// ISaveLoadable is implemented by backends that load their state in bulk
// during boot and can persist it on demand.
type ISaveLoadable interface {
	// Load reads the backend's state and returns the number of loaded values.
	Load(ctx context.Context) (count int, err error)
	// Save persists the backend's state and returns the number of saved values.
	Save(ctx context.Context) (count int, err error)
}

// IDefaultsProvider is a read-only source of default values. It never
// receives change notifications. A provider may additionally implement
// ISaveLoadable to take part in the boot sequence.
type IDefaultsProvider interface {
	TypeName() string
	FetchAllKeyValues(ctx context.Context) (map[string]any, error)
}
