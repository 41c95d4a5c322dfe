package lstore

import (
	"io"
	"sync/atomic"

	"github.com/ValentinKolb/dSettings/lib/db"
	"github.com/ValentinKolb/dSettings/lib/store"
)

type storeImpl struct {
	db    db.KVDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db:    factory(),
		index: atomic.Uint64{},
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Set operation is not supported")
	}
	s.db.Set(key, value, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Delete(key string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	s.db.Delete(key, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	val, ok := s.db.Get(key)
	return val, ok, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
	}
	return s.db.Has(key), nil
}

func (s *storeImpl) Keys(prefix string) ([]string, error) {
	if !s.db.SupportsFeature(db.FeatureScan) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "Keys operation is not supported")
	}
	return s.db.Keys(prefix), nil
}

func (s *storeImpl) Save(w io.Writer) error {
	if !s.db.SupportsFeature(db.FeatureSave) {
		return store.NewError(store.RetCUnsupportedOperation, "Save operation is not supported")
	}
	if err := s.db.Save(w); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	return nil
}

func (s *storeImpl) Load(r io.Reader) error {
	if !s.db.SupportsFeature(db.FeatureLoad) {
		return store.NewError(store.RetCUnsupportedOperation, "Load operation is not supported")
	}
	if err := s.db.Load(r); err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	// continue after the highest index of the snapshot
	s.index.Store(s.db.WriteIdx())
	return nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
