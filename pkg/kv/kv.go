package kv

import (
	"github.com/pkg/errors"
)

// Storage is a small k/v store used for client-side persisted state.
type Storage interface {
	Put(key, value []byte) error
	// Get returns the stored value and whether the key exists.
	Get(key []byte) ([]byte, bool, error)
	Delete(key []byte) error
	// Iterate walks all keys under prefix in ascending key order. Returning
	// an error from fn stops the walk.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Write() error
}

// BatchStorage is a Storage supporting atomic multi-key writes.
type BatchStorage interface {
	Storage
	Batch() Batch
}

const (
	TypeLeveldb = "leveldb"
	TypeMemory  = "memory"
)

// Open constructs a BatchStorage of the given type. Leveldb storages persist
// under path; memory storages ignore it.
func Open(typ string, path string, sync bool) (BatchStorage, error) {
	switch typ {
	case TypeLeveldb:
		return NewLevelDB(path, sync)
	case TypeMemory:
		return NewMemory(), nil
	default:
		return nil, errors.Errorf("unsupported kv type %s", typ)
	}
}
