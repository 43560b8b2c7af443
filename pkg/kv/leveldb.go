package kv

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var _ BatchStorage = (*ldbStorage)(nil)

type ldbStorage struct {
	db   *leveldb.DB
	sync bool
}

func NewLevelDB(path string, sync bool) (BatchStorage, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		Filter:                 filter.NewBloomFilter(10),
		OpenFilesCacheCapacity: 64,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open leveldb at %s", path)
	}
	return &ldbStorage{db: db, sync: sync}, nil
}

func (s *ldbStorage) Put(key, value []byte) error {
	return s.db.Put(key, value, &opt.WriteOptions{Sync: s.sync})
}

func (s *ldbStorage) Get(key []byte) ([]byte, bool, error) {
	value, err := s.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *ldbStorage) Delete(key []byte) error {
	return s.db.Delete(key, &opt.WriteOptions{Sync: s.sync})
}

func (s *ldbStorage) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		key := append([]byte{}, iter.Key()...)
		value := append([]byte{}, iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *ldbStorage) Close() error {
	return s.db.Close()
}

type ldbBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
	sync  bool
}

func (s *ldbStorage) Batch() Batch {
	return &ldbBatch{db: s.db, batch: new(leveldb.Batch), sync: s.sync}
}

func (b *ldbBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

func (b *ldbBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

func (b *ldbBatch) Write() error {
	return b.db.Write(b.batch, &opt.WriteOptions{Sync: b.sync})
}
