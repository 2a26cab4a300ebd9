package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{"fs": fs, "mem": NewMemStore()}
}

func TestBackupsSaveAndTake(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := NewBackups(store)

			require.NoError(t, b.Save(ctx, "p", "www/index.html", []byte("original")))
			has, err := b.Has("p", "www/index.html")
			require.NoError(t, err)
			require.True(t, has)

			got, ok, err := b.Take(ctx, "p", "www/index.html")
			require.NoError(t, err)
			require.True(t, ok)
			require.False(t, got.Created)
			require.Equal(t, []byte("original"), got.Data)

			_, ok, err = b.Take(ctx, "p", "www/index.html")
			require.NoError(t, err)
			require.False(t, ok)

			hashes, err := store.Hashes(ctx)
			require.NoError(t, err)
			require.Empty(t, hashes)
		})
	}
}

func TestBackupsFirstSaveWins(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := NewBackups(store)

			require.NoError(t, b.Save(ctx, "p", "a.txt", []byte("before plugin")))
			require.NoError(t, b.Save(ctx, "p", "a.txt", []byte("plugin copy")))

			got, ok, err := b.Take(ctx, "p", "a.txt")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "before plugin", string(got.Data))
		})
	}
}

func TestBackupsSharedContentAcrossPlugins(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := NewBackups(store)

			require.NoError(t, b.Save(ctx, "a", "x.txt", []byte("same")))
			require.NoError(t, b.Save(ctx, "b", "y.txt", []byte("same")))

			_, ok, err := b.Take(ctx, "a", "x.txt")
			require.NoError(t, err)
			require.True(t, ok)

			got, ok, err := b.Take(ctx, "b", "y.txt")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "same", string(got.Data))

			paths, err := b.Paths("b")
			require.NoError(t, err)
			require.Empty(t, paths)
		})
	}
}

func TestBackupsCreatedMarkers(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := NewBackups(store)

			require.NoError(t, b.MarkCreated("p", "www/css/a.css"))
			require.NoError(t, b.Save(ctx, "p", "www/css/b.css", []byte("old b")))
			require.NoError(t, b.MarkCreated("p", "www/css/b.css"))
			require.NoError(t, b.MarkCreated("p", "www/cssx/c.css"))

			under, err := b.Under("p", "www/css")
			require.NoError(t, err)
			require.Equal(t, []string{"www/css/b.css", "www/css/a.css"}, under)

			got, ok, err := b.Take(ctx, "p", "www/css/a.css")
			require.NoError(t, err)
			require.True(t, ok)
			require.True(t, got.Created)

			got, ok, err = b.Take(ctx, "p", "www/css/b.css")
			require.NoError(t, err)
			require.True(t, ok)
			require.False(t, got.Created)
			require.Equal(t, "old b", string(got.Data))

			paths, err := b.Paths("p")
			require.NoError(t, err)
			require.Equal(t, []string{"www/cssx/c.css"}, paths)
		})
	}
}

func TestBackupsPeekKeepsRecord(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := NewBackups(store)
			require.NoError(t, b.Save(ctx, "p", "a.txt", []byte("before")))
			require.NoError(t, b.MarkCreated("p", "www/"))

			got, ok, err := b.Peek(ctx, "p", "a.txt")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "before", string(got.Data))

			got, ok, err = b.Peek(ctx, "p", "www/")
			require.NoError(t, err)
			require.True(t, ok)
			require.True(t, got.Created)

			_, ok, err = b.Peek(ctx, "p", "missing")
			require.NoError(t, err)
			require.False(t, ok)

			paths, err := b.Paths("p")
			require.NoError(t, err)
			require.Len(t, paths, 2)
		})
	}
}

func TestBackupsHoldersExcludeCaller(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			b := NewBackups(store)
			require.NoError(t, b.MarkCreated("c", "package.json#dependencies/left-pad"))
			require.NoError(t, b.MarkCreated("a", "package.json#dependencies/left-pad"))
			require.NoError(t, b.MarkCreated("b", "www/other.js"))

			holders, err := b.Holders("a", "package.json#dependencies/left-pad")
			require.NoError(t, err)
			require.Equal(t, []string{"c"}, holders)

			plugins, err := store.Plugins()
			require.NoError(t, err)
			require.Equal(t, []string{"a", "b", "c"}, plugins)
		})
	}
}

func TestBackupsHandoff(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := NewBackups(store)
			key := "package.json#dependencies/electron"
			require.NoError(t, b.Save(ctx, "first", key, []byte("^30.0.0")))
			require.NoError(t, b.Save(ctx, "second", key, []byte("^31.0.0")))

			require.NoError(t, b.Handoff(ctx, "first", "second", key))

			has, err := b.Has("first", key)
			require.NoError(t, err)
			require.False(t, has)
			got, ok, err := b.Take(ctx, "second", key)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "^30.0.0", string(got.Data))

			hashes, err := store.Hashes(ctx)
			require.NoError(t, err)
			require.Empty(t, hashes)
			plugins, err := store.Plugins()
			require.NoError(t, err)
			require.Empty(t, plugins)

			require.NoError(t, b.Handoff(ctx, "first", "second", key))
		})
	}
}
