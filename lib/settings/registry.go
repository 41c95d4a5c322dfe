package settings

import (
	"runtime"
	"sort"
	"sync"
	"weak"

	"github.com/puzpuzpuz/xsync/v3"
)

// registry maps instance names to weak references. Instances stay alive only
// as long as their owners hold them; dead entries are pruned by a cleanup.
var registry = xsync.NewMapOf[string, weak.Pointer[Settings]]()

// register reserves the name of s. A name held by a live instance is
// rejected.
func register(s *Settings) error {
	ref := weak.Make(s)
	duplicate := false
	registry.Compute(s.name, func(old weak.Pointer[Settings], loaded bool) (weak.Pointer[Settings], bool) {
		if loaded && old.Value() != nil {
			duplicate = true
			return old, false
		}
		return ref, false
	})
	if duplicate {
		return NewError(RetCBadInput, "settings named %q already exist", s.name)
	}

	runtime.AddCleanup(s, unregister, s.name)
	return nil
}

// unregister drops the entry of name if its instance is gone.
func unregister(name string) {
	registry.Compute(name, func(old weak.Pointer[Settings], loaded bool) (weak.Pointer[Settings], bool) {
		if !loaded {
			return old, true
		}
		return old, old.Value() == nil
	})
}

// Lookup returns the live instance named name, or nil.
func Lookup(name string) *Settings {
	ref, ok := registry.Load(name)
	if !ok {
		return nil
	}
	return ref.Value()
}

// Names returns the names of all live instances, sorted.
func Names() []string {
	var names []string
	registry.Range(func(name string, ref weak.Pointer[Settings]) bool {
		if ref.Value() != nil {
			names = append(names, name)
		}
		return true
	})
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Standard Instance
// --------------------------------------------------------------------------

var (
	standardMu sync.Mutex
	standard   *Settings
)

// SetStandard installs s as the process-wide default instance. The slot can
// be set once; later calls fail with BadInput.
func SetStandard(s *Settings) error {
	if s == nil {
		return NewError(RetCBadInput, "standard settings must not be nil")
	}
	standardMu.Lock()
	defer standardMu.Unlock()
	if standard != nil {
		return NewError(RetCBadInput, "standard settings already set to %q", standard.name)
	}
	standard = s
	return nil
}

// Standard returns the process-wide default instance. If none was set, an
// instance named StandardName without persistors is created and installed.
func Standard() *Settings {
	standardMu.Lock()
	defer standardMu.Unlock()
	if standard != nil {
		return standard
	}
	s, err := New(StandardName, Options{})
	if err != nil {
		// the name is taken by an instance created directly
		if existing := Lookup(StandardName); existing != nil {
			standard = existing
			return standard
		}
		Logger.Panicf("creating standard settings failed: %v", err)
	}
	standard = s
	return standard
}
