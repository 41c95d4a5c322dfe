package memory

import (
	"context"

	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("persist")

// persistorImpl keeps values in a concurrent map. Nothing survives the
// process.
type persistorImpl struct {
	name   string
	values *xsync.MapOf[string, any]
}

// New creates an empty in-memory backend. The name only shows up in URL.
func New(name string) settings.IPersistor {
	return &persistorImpl{
		name:   name,
		values: xsync.NewMapOf[string, any](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see settings/persistor.go)
// --------------------------------------------------------------------------

func (p *persistorImpl) TypeName() string {
	return "memory"
}

func (p *persistorImpl) URL() string {
	return "memory://" + p.name
}

func (p *persistorImpl) SetValue(_ context.Context, key string, value any) error {
	p.store(key, value)
	return nil
}

func (p *persistorImpl) SetValues(_ context.Context, values map[string]any) error {
	for k, v := range values {
		p.store(k, v)
	}
	return nil
}

func (p *persistorImpl) FetchValue(_ context.Context, key string) (any, bool, error) {
	v, ok := p.values.Load(key)
	return v, ok, nil
}

func (p *persistorImpl) FetchValues(_ context.Context, keys []string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := p.values.Load(k); ok {
			out[k] = v
		}
	}
	return out, nil
}

func (p *persistorImpl) FetchAllKeyValues(context.Context) (map[string]any, error) {
	out := make(map[string]any, p.values.Size())
	p.values.Range(func(k string, v any) bool {
		out[k] = v
		return true
	})
	return out, nil
}

func (p *persistorImpl) KeyWasChanged(_ context.Context, from, to string, value any) error {
	old, had := p.values.LoadAndDelete(from)
	if value == nil && had {
		value = old
	}
	p.store(to, value)
	Logger.Debugf("memory %s: moved %s -> %s", p.name, from, to)
	return nil
}

func (p *persistorImpl) ValueWasChanged(_ context.Context, key string, _, to any) error {
	p.store(key, to)
	return nil
}

func (p *persistorImpl) store(key string, value any) {
	if value == nil {
		p.values.Delete(key)
		return
	}
	p.values.Store(key, value)
}
