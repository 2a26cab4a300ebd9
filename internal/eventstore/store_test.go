package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/plugsmith/internal/actions"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndGetByTxnID(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, &Event{
		TxnID:    "txn-1",
		Phase:    actions.PhaseBegin,
		Payload:  []byte(`{"seq":1}`),
		Metadata: map[string]string{"key": "value"},
	}))
	require.NoError(t, store.Append(ctx, &Event{TxnID: "txn-2", Phase: actions.PhaseBegin}))
	require.NoError(t, store.Append(ctx, &Event{TxnID: "txn-1", Phase: actions.PhaseCommit}))

	events, err := store.GetByTxnID(ctx, "txn-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, actions.PhaseBegin, events[0].Phase)
	require.Equal(t, actions.PhaseCommit, events[1].Phase)
	require.Equal(t, `{"seq":1}`, string(events[0].Payload))
	require.Equal(t, "value", events[0].Metadata["key"])
	require.Less(t, events[0].Seq, events[1].Seq)
	require.False(t, events[1].At.IsZero())
}

func TestGetRange(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := range 3 {
		require.NoError(t, store.Append(ctx, &Event{
			TxnID: "t",
			Phase: actions.PhaseStep,
			At:    base.Add(time.Duration(i) * time.Hour),
		}))
	}

	events, err := store.GetRange(ctx, base.Add(30*time.Minute), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.True(t, events[0].At.Equal(base.Add(time.Hour)))
}

func TestFileBackedStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), &Event{TxnID: "t", Phase: actions.PhaseBegin}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	events, err := reopened.GetByTxnID(t.Context(), "t")
	require.NoError(t, err)
	require.Len(t, events, 1)
}
