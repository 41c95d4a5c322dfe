package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/ValentinKolb/dSettings/lib/persist/file"
	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/ValentinKolb/dSettings/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/samber/oops"
)

var Logger = logger.GetLogger("persist")

// Options configure a store backend.
type Options struct {
	// Prefix is prepended to every key, so several instances can share one
	// store.
	Prefix string
	// SnapshotPath is the file Save writes the store snapshot to and Load
	// reads it from. Without it Save and Load do nothing.
	SnapshotPath string
}

// IStorePersistor is a settings backend on top of a key-value store.
type IStorePersistor interface {
	settings.IPersistor
	settings.ISaveLoadable
	// Store returns the underlying store.
	Store() store.IStore
}

type persistorImpl struct {
	store store.IStore
	opts  Options

	// renames read and write two keys
	renameMu sync.Mutex
}

// New creates a backend writing JSON encoded values into s.
func New(s store.IStore, opts *Options) IStorePersistor {
	p := &persistorImpl{store: s}
	if opts != nil {
		p.opts = *opts
	}
	return p
}

func (p *persistorImpl) Store() store.IStore {
	return p.store
}

// --------------------------------------------------------------------------
// Interface Methods (docu see settings/persistor.go)
// --------------------------------------------------------------------------

func (p *persistorImpl) TypeName() string {
	return "kvstore"
}

func (p *persistorImpl) URL() string {
	info, err := p.store.GetDBInfo()
	dbType := "store"
	if err == nil && info.DbType != "" {
		dbType = string(info.DbType)
	}
	return "kvstore://" + dbType + "/" + p.opts.Prefix
}

func (p *persistorImpl) SetValue(_ context.Context, key string, value any) error {
	return p.put(key, value)
}

func (p *persistorImpl) SetValues(_ context.Context, values map[string]any) error {
	for k, v := range values {
		if err := p.put(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (p *persistorImpl) FetchValue(_ context.Context, key string) (any, bool, error) {
	return p.get(p.opts.Prefix + key)
}

func (p *persistorImpl) FetchValues(_ context.Context, keys []string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		v, ok, err := p.get(p.opts.Prefix + k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

func (p *persistorImpl) FetchAllKeyValues(context.Context) (map[string]any, error) {
	keys, err := p.store.Keys(p.opts.Prefix)
	if err != nil {
		return nil, oops.Wrapf(err, "listing keys with prefix %q", p.opts.Prefix)
	}
	out := make(map[string]any, len(keys))
	for _, full := range keys {
		v, ok, err := p.get(full)
		if err != nil {
			return nil, err
		}
		if ok {
			out[strings.TrimPrefix(full, p.opts.Prefix)] = v
		}
	}
	return out, nil
}

func (p *persistorImpl) KeyWasChanged(_ context.Context, from, to string, value any) error {
	p.renameMu.Lock()
	defer p.renameMu.Unlock()

	if value == nil {
		old, ok, err := p.get(p.opts.Prefix + from)
		if err != nil {
			return err
		}
		if ok {
			value = old
		}
	}
	if err := p.put(from, nil); err != nil {
		return err
	}
	return p.put(to, value)
}

func (p *persistorImpl) ValueWasChanged(_ context.Context, key string, _, to any) error {
	return p.put(key, to)
}

// Load replaces the store content with the snapshot file. A missing file
// loads nothing.
func (p *persistorImpl) Load(context.Context) (int, error) {
	if p.opts.SnapshotPath == "" {
		return p.count()
	}
	f, err := os.Open(p.opts.SnapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		Logger.Debugf("snapshot %s does not exist yet", p.opts.SnapshotPath)
		return 0, nil
	}
	if err != nil {
		return 0, oops.Wrapf(err, "opening snapshot %s", p.opts.SnapshotPath)
	}
	defer f.Close()

	if err := p.store.Load(f); err != nil {
		return 0, oops.Wrapf(err, "loading snapshot %s", p.opts.SnapshotPath)
	}
	n, err := p.count()
	if err == nil {
		Logger.Infof("loaded %d value(s) from snapshot %s", n, p.opts.SnapshotPath)
	}
	return n, err
}

// Save writes a snapshot of the whole store to the snapshot file.
func (p *persistorImpl) Save(context.Context) (int, error) {
	if p.opts.SnapshotPath == "" {
		return 0, nil
	}
	var buf bytes.Buffer
	if err := p.store.Save(&buf); err != nil {
		return 0, oops.Wrapf(err, "creating snapshot")
	}
	if err := file.WriteAtomic(p.opts.SnapshotPath, buf.Bytes(), 0o644); err != nil {
		return 0, err
	}
	return p.count()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (p *persistorImpl) put(key string, value any) error {
	full := p.opts.Prefix + key
	if value == nil {
		// a delete is a write to the store even if the key is missing
		has, err := p.store.Has(full)
		if err != nil {
			return oops.Wrapf(err, "checking %s", full)
		}
		if !has {
			return nil
		}
		if err := p.store.Delete(full); err != nil {
			return oops.Wrapf(err, "deleting %s", full)
		}
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return oops.Wrapf(err, "encoding value of %s", key)
	}
	if err := p.store.Set(full, raw); err != nil {
		return oops.Wrapf(err, "storing %s", full)
	}
	return nil
}

func (p *persistorImpl) get(full string) (any, bool, error) {
	raw, ok, err := p.store.Get(full)
	if err != nil {
		return nil, false, oops.Wrapf(err, "reading %s", full)
	}
	if !ok {
		return nil, false, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, oops.Wrapf(err, "decoding value of %s", full)
	}
	return v, true, nil
}

func (p *persistorImpl) count() (int, error) {
	keys, err := p.store.Keys(p.opts.Prefix)
	if err != nil {
		return 0, oops.Wrapf(err, "listing keys with prefix %q", p.opts.Prefix)
	}
	return len(keys), nil
}
