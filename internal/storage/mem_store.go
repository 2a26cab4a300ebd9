package storage

import (
	"context"
	"sync"
)

// MemStore keeps everything in memory. Tests and dry runs use it.
type MemStore struct {
	mu    sync.Mutex
	ix    *index
	blobs map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{ix: newIndex(), blobs: map[string][]byte{}}
}

func (m *MemStore) Put(_ context.Context, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash := HashOf(data)
	if m.ix.acquire(hash) {
		m.blobs[hash] = append([]byte(nil), data...)
	}
	return hash, nil
}

func (m *MemStore) Get(_ context.Context, hash string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}
	return append([]byte(nil), data...), nil
}

func (m *MemStore) Release(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, err := m.ix.release(hash)
	if err != nil {
		return err
	}
	if last {
		delete(m.blobs, hash)
	}
	return nil
}

func (m *MemStore) Hashes(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ix.hashes(), nil
}

func (m *MemStore) Refs(pluginID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ix.refs(pluginID), nil
}

func (m *MemStore) Plugins() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ix.plugins(), nil
}

func (m *MemStore) SetRefs(pluginID string, refs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ix.setRefs(pluginID, refs)
	return nil
}
