package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/plugsmith/internal/logfields"
)

const indexFile = "index.json"

// FSStore keeps blobs and the index under one directory:
//
//	.plugsmith/backups/
//	  index.json         (reference counts, per-plugin path -> hash)
//	  blobs/
//	    ab/cd1234...     (first 2 hex chars = subdir)
//
// The index is read and rewritten whole on every mutation, so separate
// processes see each other's records as long as they do not overlap.
type FSStore struct {
	dir string
	mu  sync.Mutex
}

// NewFSStore opens (creating when needed) the store rooted at dir. A corrupt
// index is reported here rather than on first use.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0o750); err != nil {
		return nil, fmt.Errorf("create backup store %s: %w", dir, err)
	}
	s := &FSStore{dir: dir}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FSStore) Put(_ context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ix, err := s.load()
	if err != nil {
		return "", err
	}
	hash := HashOf(data)
	blob := s.blobPath(hash)
	fresh := ix.acquire(hash)
	if fresh {
		if err := writeAtomic(blob, data); err != nil {
			return "", fmt.Errorf("write blob: %w", err)
		}
	}
	if err := s.save(ix); err != nil {
		if fresh {
			_ = os.Remove(blob)
		}
		return "", err
	}
	return hash, nil
}

func (s *FSStore) Get(_ context.Context, hash string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// #nosec G304 -- blob paths are built from hex hashes
	data, err := os.ReadFile(s.blobPath(hash))
	if os.IsNotExist(err) {
		return nil, ErrNotFound{Hash: hash}
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FSStore) Release(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ix, err := s.load()
	if err != nil {
		return err
	}
	last, err := ix.release(hash)
	if err != nil {
		return err
	}
	if err := s.save(ix); err != nil {
		return err
	}
	if !last {
		return nil
	}
	blob := s.blobPath(hash)
	if err := os.Remove(blob); err != nil && !os.IsNotExist(err) {
		slog.Warn("Unreferenced backup blob left on disk", logfields.Path(blob), logfields.Error(err))
		return nil
	}
	_ = os.Remove(filepath.Dir(blob)) // only succeeds when empty
	return nil
}

func (s *FSStore) Hashes(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, err := s.load()
	if err != nil {
		return nil, err
	}
	return ix.hashes(), nil
}

func (s *FSStore) Refs(pluginID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, err := s.load()
	if err != nil {
		return nil, err
	}
	return ix.refs(pluginID), nil
}

func (s *FSStore) Plugins() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, err := s.load()
	if err != nil {
		return nil, err
	}
	return ix.plugins(), nil
}

func (s *FSStore) SetRefs(pluginID string, refs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ix, err := s.load()
	if err != nil {
		return err
	}
	ix.setRefs(pluginID, refs)
	return s.save(ix)
}

func (s *FSStore) blobPath(hash string) string {
	if len(hash) < 3 {
		return filepath.Join(s.dir, "blobs", hash)
	}
	return filepath.Join(s.dir, "blobs", hash[:2], hash[2:])
}

func (s *FSStore) load() (*index, error) {
	path := filepath.Join(s.dir, indexFile)
	// #nosec G304 -- fixed file name under the configured store dir
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newIndex(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup index: %w", err)
	}
	ix := newIndex()
	if err := json.Unmarshal(data, ix); err != nil {
		return nil, fmt.Errorf("parse backup index %s: %w", path, err)
	}
	if ix.Counts == nil {
		ix.Counts = map[string]int{}
	}
	if ix.Plugins == nil {
		ix.Plugins = map[string]map[string]string{}
	}
	return ix, nil
}

func (s *FSStore) save(ix *index) error {
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup index: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, indexFile), data); err != nil {
		return fmt.Errorf("write backup index: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
