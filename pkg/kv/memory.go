package kv

import (
	"bytes"
	"sort"
	"sync"
)

var _ BatchStorage = (*memStorage)(nil)

// memStorage is an in-memory BatchStorage for tests and ephemeral clients.
type memStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() BatchStorage {
	return &memStorage{data: make(map[string][]byte)}
}

func (s *memStorage) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = append([]byte{}, value...)
	return nil
}

func (s *memStorage) Get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, value...), true, nil
}

func (s *memStorage) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *memStorage) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		if bytes.HasPrefix([]byte(key), prefix) {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	for _, key := range keys {
		value, ok, err := s.Get([]byte(key))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn([]byte(key), value); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStorage) Close() error {
	return nil
}

type memBatch struct {
	storage *memStorage
	puts    map[string][]byte
	deletes map[string]struct{}
}

func (s *memStorage) Batch() Batch {
	return &memBatch{
		storage: s,
		puts:    make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (b *memBatch) Put(key, value []byte) {
	delete(b.deletes, string(key))
	b.puts[string(key)] = append([]byte{}, value...)
}

func (b *memBatch) Delete(key []byte) {
	delete(b.puts, string(key))
	b.deletes[string(key)] = struct{}{}
}

func (b *memBatch) Write() error {
	b.storage.mu.Lock()
	defer b.storage.mu.Unlock()
	for key, value := range b.puts {
		b.storage.data[key] = value
	}
	for key := range b.deletes {
		delete(b.storage.data, key)
	}
	return nil
}
