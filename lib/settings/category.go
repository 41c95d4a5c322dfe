package settings

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"weak"

	"github.com/google/uuid"
)

// treeMu guards the structure of every category tree: parents, children,
// bindings and cached names. Instance methods are never called while it is
// held.
var treeMu sync.Mutex

// binding is an observer bound below a category under a leaf name.
type binding struct {
	leaf string
	obs  IObserver
}

// rebind is a pending observer move collected under treeMu and applied
// after it was released.
type rebind struct {
	obs      IObserver
	settings *Settings
	key      string
}

// Category is a named node of a settings hierarchy. Parents and the owning
// instance are referenced weakly; a category owns its children.
type Category struct {
	leaf     string
	parent   weak.Pointer[Category]
	children []*Category
	settings weak.Pointer[Settings]
	bindings []binding

	name      string
	nameValid bool
}

// NewCategory creates a detached category. The leaf name is normalized.
func NewCategory(leaf string) *Category {
	c := CurrentConfig()
	return &Category{leaf: NormalizeWith(leaf, c.Naming, c.Delimiter)}
}

// LeafName returns the name of the category without its ancestors.
func (c *Category) LeafName() string {
	return c.leaf
}

// Parent returns the parent category or nil.
func (c *Category) Parent() *Category {
	treeMu.Lock()
	defer treeMu.Unlock()
	return c.parent.Value()
}

// Children returns the direct children.
func (c *Category) Children() []*Category {
	treeMu.Lock()
	defer treeMu.Unlock()
	return slices.Clone(c.children)
}

// Settings returns the owning instance or nil.
func (c *Category) Settings() *Settings {
	treeMu.Lock()
	defer treeMu.Unlock()
	return c.settings.Value()
}

// FullName returns the delimiter joined leaf names of all ancestors.
func (c *Category) FullName() string {
	treeMu.Lock()
	defer treeMu.Unlock()
	return c.fullNameLocked()
}

// Depth returns the number of categories from the root to c, c included.
func (c *Category) Depth() int {
	treeMu.Lock()
	defer treeMu.Unlock()
	return len(c.ancestorsLocked())
}

// Ancestors returns the chain from the root down to c, c included.
func (c *Category) Ancestors() []*Category {
	treeMu.Lock()
	defer treeMu.Unlock()
	return c.ancestorsLocked()
}

// KeyFor returns the full key of leaf inside this category.
func (c *Category) KeyFor(leaf string) string {
	return c.FullName() + CurrentConfig().Delimiter + leaf
}

// Descendants visits c and every category below it in pre-order. Branches
// deeper than the configured maximum nesting are skipped and logged.
func (c *Category) Descendants(visit func(*Category)) {
	treeMu.Lock()
	nodes := c.descendantsLocked()
	treeMu.Unlock()

	for _, n := range nodes {
		visit(n)
	}
}

// --------------------------------------------------------------------------
// Structure
// --------------------------------------------------------------------------

// AttachChild makes child a child of c. The attach is refused (and logged)
// if it would create a cycle or exceed the maximum nesting.
func (c *Category) AttachChild(child *Category) bool {
	return c.AttachChildContext(context.Background(), child)
}

// AttachChildContext is AttachChild for callers inside a transaction.
func (c *Category) AttachChildContext(ctx context.Context, child *Category) bool {
	if child == nil || child == c {
		return false
	}
	maxNesting := CurrentConfig().MaxNesting

	treeMu.Lock()
	if slices.Contains(c.ancestorsLocked(), child) {
		treeMu.Unlock()
		Logger.Warningf("category %q: attaching %q would create a cycle", c.leaf, child.leaf)
		return false
	}
	if depth := len(c.ancestorsLocked()) + child.heightLocked(); depth > maxNesting {
		treeMu.Unlock()
		Logger.Warningf("category %q: attaching %q exceeds max nesting (%d > %d)", c.leaf, child.leaf, depth, maxNesting)
		return false
	}

	if old := child.parent.Value(); old != nil {
		old.removeChildLocked(child)
	}
	child.parent = weak.Make(c)
	c.children = append(c.children, child)

	owner := child.settings.Value()
	if s := c.settings.Value(); s != nil {
		owner = s
	}
	work := child.reassignLocked(owner)
	treeMu.Unlock()

	if err := applyRebinds(WithBootContext(ctx), work); err != nil {
		Logger.Warningf("category %q: rebinding after attach failed: %v", child.leaf, err)
	}
	return true
}

// Detach removes c from its parent. c keeps its owning instance; bound
// observers are rekeyed to the shorter path.
func (c *Category) Detach() {
	c.DetachContext(context.Background())
}

// DetachContext is Detach for callers inside a transaction.
func (c *Category) DetachContext(ctx context.Context) {
	treeMu.Lock()
	parent := c.parent.Value()
	if parent == nil {
		treeMu.Unlock()
		return
	}
	parent.removeChildLocked(c)
	c.parent = weak.Pointer[Category]{}
	work := c.reassignLocked(c.settings.Value())
	treeMu.Unlock()

	if err := applyRebinds(WithBootContext(ctx), work); err != nil {
		Logger.Warningf("category %q: rebinding after detach failed: %v", c.leaf, err)
	}
}

// SetSettings makes s the owner of c and its subtree. Bound observers are
// moved from their old instance to s. A nil s detaches the subtree from any
// instance.
func (c *Category) SetSettings(ctx context.Context, s *Settings) error {
	treeMu.Lock()
	old := c.settings.Value()
	work := c.reassignLocked(s)
	treeMu.Unlock()

	if old != nil && old != s {
		old.forgetCategory(c)
	}
	return applyRebinds(WithBootContext(ctx), work)
}

// --------------------------------------------------------------------------
// Bindings
// --------------------------------------------------------------------------

// Bind binds obs to leaf inside this category. The observer's key becomes
// the sanitized full key and, if the category has an owner, the observer is
// registered there.
func (c *Category) Bind(ctx context.Context, leaf string, obs IObserver) error {
	if obs == nil {
		return NewError(RetCBadInput, "observer must not be nil")
	}
	treeMu.Lock()
	for _, b := range c.bindings {
		if b.obs.ID() == obs.ID() {
			treeMu.Unlock()
			return keyError(RetCBadInput, leaf, "observer already bound to %q", b.leaf)
		}
	}
	c.bindings = append(c.bindings, binding{leaf: leaf, obs: obs})
	key := c.fullNameLocked() + CurrentConfig().Delimiter + leaf
	owner := c.settings.Value()
	treeMu.Unlock()

	sanitized, err := Sanitize(key)
	if err != nil {
		return err
	}
	return obs.Rebind(WithBootContext(ctx), owner, sanitized)
}

// Unbind removes the observer with id from this category and from the
// owning instance.
func (c *Category) Unbind(id uuid.UUID) bool {
	treeMu.Lock()
	idx := slices.IndexFunc(c.bindings, func(b binding) bool { return b.obs.ID() == id })
	if idx < 0 {
		treeMu.Unlock()
		return false
	}
	obs := c.bindings[idx].obs
	c.bindings = slices.Delete(c.bindings, idx, idx+1)
	owner := c.settings.Value()
	treeMu.Unlock()

	if owner != nil {
		owner.UnregisterObserver(obs.Key(), id)
	}
	return true
}

// --------------------------------------------------------------------------
// Helpers (callers hold treeMu)
// --------------------------------------------------------------------------

func (c *Category) ancestorsLocked() []*Category {
	limit := CurrentConfig().MaxNesting + 1
	chain := []*Category{c}
	for p := c.parent.Value(); p != nil && len(chain) <= limit; p = p.parent.Value() {
		chain = append(chain, p)
	}
	slices.Reverse(chain)
	return chain
}

func (c *Category) fullNameLocked() string {
	if c.nameValid {
		return c.name
	}
	chain := c.ancestorsLocked()
	names := make([]string, len(chain))
	for i, a := range chain {
		names[i] = a.leaf
	}
	c.name = strings.Join(names, CurrentConfig().Delimiter)
	c.nameValid = true
	return c.name
}

// heightLocked returns the number of levels of the subtree rooted at c.
func (c *Category) heightLocked() int {
	h := 0
	for _, child := range c.children {
		h = max(h, child.heightLocked())
	}
	return h + 1
}

func (c *Category) removeChildLocked(child *Category) {
	if idx := slices.Index(c.children, child); idx >= 0 {
		c.children = slices.Delete(c.children, idx, idx+1)
	}
}

// descendantsLocked collects c and its subtree in pre-order.
func (c *Category) descendantsLocked() []*Category {
	maxNesting := CurrentConfig().MaxNesting
	var out []*Category
	var walk func(n *Category, depth int)
	walk = func(n *Category, depth int) {
		if depth > maxNesting {
			Logger.Warningf("category %q: nesting deeper than %d, skipping branch", n.leaf, maxNesting)
			return
		}
		out = append(out, n)
		for _, child := range n.children {
			walk(child, depth+1)
		}
	}
	walk(c, len(c.ancestorsLocked()))
	return out
}

// reassignLocked sets the owner of the subtree, invalidates all cached names
// and returns the observer moves that follow from it.
func (c *Category) reassignLocked(s *Settings) []rebind {
	delim := CurrentConfig().Delimiter
	var work []rebind
	for _, n := range c.descendantsLocked() {
		n.nameValid = false
	}
	for _, n := range c.descendantsLocked() {
		if s != nil {
			n.settings = weak.Make(s)
		} else {
			n.settings = weak.Pointer[Settings]{}
		}
		prefix := n.fullNameLocked()
		for _, b := range n.bindings {
			work = append(work, rebind{obs: b.obs, settings: s, key: prefix + delim + b.leaf})
		}
	}
	return work
}

func applyRebinds(ctx context.Context, work []rebind) error {
	var errs []error
	for _, w := range work {
		key, err := Sanitize(w.key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := w.obs.Rebind(ctx, w.settings, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
