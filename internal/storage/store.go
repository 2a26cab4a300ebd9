// Package storage keeps content-addressed copies of project files that an
// installer is about to overwrite, so the inverse step can put them back.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"maps"
	"slices"
)

// Store holds reference-counted blobs plus, per plugin, an index from
// project-relative path to blob hash.
type Store interface {
	// Put stores data and returns its hash. Storing content that is already
	// present adds a reference instead of a second copy.
	Put(ctx context.Context, data []byte) (string, error)
	// Get returns the blob for hash or ErrNotFound.
	Get(ctx context.Context, hash string) ([]byte, error)
	// Release drops one reference; the blob goes away with the last one.
	Release(ctx context.Context, hash string) error
	// Hashes lists the blobs currently held, sorted.
	Hashes(ctx context.Context) ([]string, error)

	Refs(pluginID string) (map[string]string, error)
	// Plugins lists the plugins that have an index, sorted.
	Plugins() ([]string, error)
	// SetRefs replaces a plugin's index. An empty index forgets the plugin.
	SetRefs(pluginID string, refs map[string]string) error
}

var (
	_ Store = (*FSStore)(nil)
	_ Store = (*MemStore)(nil)
)

// ErrNotFound is returned for a hash the store does not hold.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	return "backup blob not found: " + e.Hash
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// HashOf returns the hex SHA256 of data.
func HashOf(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// index is the bookkeeping shared by both stores. It is serialised as is by
// FSStore.
type index struct {
	Counts  map[string]int               `json:"counts"`
	Plugins map[string]map[string]string `json:"plugins"`
}

func newIndex() *index {
	return &index{Counts: map[string]int{}, Plugins: map[string]map[string]string{}}
}

// acquire adds a reference and reports whether the blob is new.
func (ix *index) acquire(hash string) bool {
	ix.Counts[hash]++
	return ix.Counts[hash] == 1
}

// release drops a reference and reports whether it was the last.
func (ix *index) release(hash string) (bool, error) {
	n, ok := ix.Counts[hash]
	if !ok {
		return false, ErrNotFound{Hash: hash}
	}
	if n <= 1 {
		delete(ix.Counts, hash)
		return true, nil
	}
	ix.Counts[hash] = n - 1
	return false, nil
}

func (ix *index) hashes() []string {
	return slices.Sorted(maps.Keys(ix.Counts))
}

func (ix *index) plugins() []string {
	return slices.Sorted(maps.Keys(ix.Plugins))
}

func (ix *index) refs(pluginID string) map[string]string {
	out := maps.Clone(ix.Plugins[pluginID])
	if out == nil {
		out = map[string]string{}
	}
	return out
}

func (ix *index) setRefs(pluginID string, refs map[string]string) {
	if len(refs) == 0 {
		delete(ix.Plugins, pluginID)
		return
	}
	ix.Plugins[pluginID] = maps.Clone(refs)
}
