package settings

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Transaction Lock
// --------------------------------------------------------------------------

// txLock serializes the transactions of one instance. Acquiring hands out an
// owner token; only the owner can release the lock again.
type txLock struct {
	sem   chan struct{}
	mu    sync.Mutex
	owner uuid.UUID
}

func newTxLock() *txLock {
	return &txLock{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is free or ctx is done.
func (l *txLock) Acquire(ctx context.Context) (uuid.UUID, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}

	owner := uuid.New()
	l.mu.Lock()
	l.owner = owner
	l.mu.Unlock()
	return owner, nil
}

// Release frees the lock if owner holds it. It returns false otherwise.
func (l *txLock) Release(owner uuid.UUID) bool {
	l.mu.Lock()
	if owner == uuid.Nil || l.owner != owner {
		l.mu.Unlock()
		return false
	}
	l.owner = uuid.Nil
	l.mu.Unlock()

	<-l.sem
	return true
}

// Owner returns the current owner token or uuid.Nil.
func (l *txLock) Owner() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// --------------------------------------------------------------------------
// Context Plumbing
// --------------------------------------------------------------------------

// txCtxKey keys the active transaction of one instance inside a context.
type txCtxKey struct{ s *Settings }

type changeCtxKey struct{}

// withTx returns a context marking the transaction owner of s as active.
func withTx(ctx context.Context, s *Settings, owner uuid.UUID) context.Context {
	return context.WithValue(ctx, txCtxKey{s}, owner)
}

// inTx reports whether ctx carries the transaction currently holding the
// lock of s. Tokens of finished transactions are ignored.
func (s *Settings) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txCtxKey{s}).(uuid.UUID)
	return ok && owner != uuid.Nil && owner == s.tx.Owner()
}

// joinTx acquires the transaction lock unless ctx already holds it. The
// returned func releases whatever was acquired.
func (s *Settings) joinTx(ctx context.Context) (func(), error) {
	if s.inTx(ctx) {
		return func() {}, nil
	}
	owner, err := s.tx.Acquire(ctx)
	if err != nil {
		return nil, wrapError(RetCInternalError, err, "settings %q: acquiring transaction failed", s.name)
	}
	return func() { s.tx.Release(owner) }, nil
}

// TransactionID returns the transaction carried by ctx for s, if any.
func (s *Settings) TransactionID(ctx context.Context) (uuid.UUID, bool) {
	if !s.inTx(ctx) {
		return uuid.Nil, false
	}
	return ctx.Value(txCtxKey{s}).(uuid.UUID), true
}

// WithChangeContext names the context a change happens in.
func WithChangeContext(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, changeCtxKey{}, name)
}

// WithBootContext marks ctx as boot context. Changes made in it are not
// recorded and key renames are not forwarded to backends.
func WithBootContext(ctx context.Context) context.Context {
	return WithChangeContext(ctx, BootContext)
}

// ChangeContext returns the name set by WithChangeContext.
func ChangeContext(ctx context.Context) string {
	name, _ := ctx.Value(changeCtxKey{}).(string)
	return name
}

// IsBootContext reports whether ctx is (or contains) the boot context.
func IsBootContext(ctx context.Context) bool {
	return strings.Contains(ChangeContext(ctx), BootContext)
}
