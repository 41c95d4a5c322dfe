package file

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/samber/oops"
)

var Logger = logger.GetLogger("persist")

// IFilePersistor is a settings backend stored in a single file.
type IFilePersistor interface {
	settings.IPersistor
	settings.ISaveLoadable
	// Path returns the absolute path of the file.
	Path() string
	// Format returns the encoding picked from the file extension.
	Format() Format
}

// Options configure a file backend.
type Options struct {
	// AutoSave writes the file after every change. Without it the file is
	// only written by Save.
	AutoSave bool
	// Perm is the mode of the written file, default 0o644.
	Perm os.FileMode
}

type persistorImpl struct {
	path   string
	format Format
	opts   Options

	mu     sync.RWMutex
	values map[string]any

	// serializes file writes
	saveMu sync.Mutex
}

// New creates a backend for the file at path. The file is not read until
// Load is called, which the owning instance does during boot.
func New(path string, opts *Options) (IFilePersistor, error) {
	if path == "" {
		return nil, oops.Errorf("settings file path must not be empty")
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, oops.Wrapf(err, "resolving %s", path)
	}

	o := Options{Perm: 0o644}
	if opts != nil {
		o.AutoSave = opts.AutoSave
		if opts.Perm != 0 {
			o.Perm = opts.Perm
		}
	}

	return &persistorImpl{
		path:   abs,
		format: format,
		opts:   o,
		values: make(map[string]any),
	}, nil
}

func (p *persistorImpl) Path() string {
	return p.path
}

func (p *persistorImpl) Format() Format {
	return p.format
}

// --------------------------------------------------------------------------
// Interface Methods (docu see settings/persistor.go)
// --------------------------------------------------------------------------

func (p *persistorImpl) TypeName() string {
	return "file"
}

func (p *persistorImpl) URL() string {
	return "file://" + p.path
}

func (p *persistorImpl) SetValue(ctx context.Context, key string, value any) error {
	p.mu.Lock()
	p.storeLocked(key, value)
	p.mu.Unlock()
	return p.autoSave(ctx)
}

func (p *persistorImpl) SetValues(ctx context.Context, values map[string]any) error {
	p.mu.Lock()
	for k, v := range values {
		p.storeLocked(k, v)
	}
	p.mu.Unlock()
	return p.autoSave(ctx)
}

func (p *persistorImpl) FetchValue(_ context.Context, key string) (any, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok, nil
}

func (p *persistorImpl) FetchValues(_ context.Context, keys []string) (map[string]any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (p *persistorImpl) FetchAllKeyValues(context.Context) (map[string]any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.values), nil
}

func (p *persistorImpl) KeyWasChanged(ctx context.Context, from, to string, value any) error {
	p.mu.Lock()
	old, had := p.values[from]
	delete(p.values, from)
	if value == nil && had {
		value = old
	}
	p.storeLocked(to, value)
	p.mu.Unlock()
	return p.autoSave(ctx)
}

func (p *persistorImpl) ValueWasChanged(ctx context.Context, key string, _, to any) error {
	p.mu.Lock()
	p.storeLocked(key, to)
	p.mu.Unlock()
	return p.autoSave(ctx)
}

// Load replaces the in-memory values with the content of the file. A
// missing file loads nothing and keeps the current values.
func (p *persistorImpl) Load(context.Context) (int, error) {
	values, err := ReadValues(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		Logger.Debugf("settings file %s does not exist yet", p.path)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.values = values
	p.mu.Unlock()

	Logger.Infof("loaded %d value(s) from %s", len(values), p.path)
	return len(values), nil
}

// Save writes all values to the file.
func (p *persistorImpl) Save(context.Context) (int, error) {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.RLock()
	snapshot := maps.Clone(p.values)
	p.mu.RUnlock()

	if err := WriteValues(p.path, snapshot, p.opts.Perm); err != nil {
		return 0, err
	}
	Logger.Debugf("saved %d value(s) to %s", len(snapshot), p.path)
	return len(snapshot), nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// storeLocked writes value under key, nil deletes. Callers hold p.mu.
func (p *persistorImpl) storeLocked(key string, value any) {
	if value == nil {
		delete(p.values, key)
		return
	}
	p.values[key] = value
}

func (p *persistorImpl) autoSave(ctx context.Context) error {
	if !p.opts.AutoSave {
		return nil
	}
	_, err := p.Save(ctx)
	return err
}
