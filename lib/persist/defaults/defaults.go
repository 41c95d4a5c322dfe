package defaults

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"sync"

	"github.com/ValentinKolb/dSettings/lib/persist/file"
	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("persist")

// --------------------------------------------------------------------------
// Static Defaults
// --------------------------------------------------------------------------

type staticImpl struct {
	values map[string]any
}

// New returns a provider serving a copy of values.
func New(values map[string]any) settings.IDefaultsProvider {
	return &staticImpl{values: maps.Clone(values)}
}

func (d *staticImpl) TypeName() string {
	return "defaults"
}

func (d *staticImpl) FetchAllKeyValues(context.Context) (map[string]any, error) {
	return maps.Clone(d.values), nil
}

// --------------------------------------------------------------------------
// File Defaults
// --------------------------------------------------------------------------

// IFileDefaults is a defaults provider read from a settings file during
// boot.
type IFileDefaults interface {
	settings.IDefaultsProvider
	settings.ISaveLoadable
	Path() string
}

type fileImpl struct {
	path string

	mu     sync.RWMutex
	values map[string]any
}

// FromFile returns a provider for the JSON, YAML or TOML file at path. The
// file is read by Load, which the owning instance calls during boot.
func FromFile(path string) (IFileDefaults, error) {
	if _, err := file.FormatOf(path); err != nil {
		return nil, err
	}
	return &fileImpl{path: path, values: map[string]any{}}, nil
}

func (d *fileImpl) Path() string {
	return d.path
}

func (d *fileImpl) TypeName() string {
	return "defaults-file"
}

func (d *fileImpl) FetchAllKeyValues(context.Context) (map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.values), nil
}

// Load reads the file. A missing file provides no defaults.
func (d *fileImpl) Load(context.Context) (int, error) {
	values, err := file.ReadValues(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		Logger.Warningf("defaults file %s does not exist", d.path)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	d.values = values
	d.mu.Unlock()
	return len(values), nil
}

// Save does nothing, defaults are read-only.
func (d *fileImpl) Save(context.Context) (int, error) {
	return 0, nil
}
