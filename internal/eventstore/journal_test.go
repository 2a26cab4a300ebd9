package eventstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/plugsmith/internal/actions"
	"git.home.luguber.info/inful/plugsmith/internal/plugin"
)

func TestJournalRoundTrip(t *testing.T) {
	j := NewJournal(newStore(t))
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	rec := actions.Record{
		TxnID:    "txn-1",
		Seq:      2,
		Phase:    actions.PhaseFailed,
		PluginID: "com.example.p",
		Op:       actions.OpInstall,
		Action:   "asset a -> b",
		Error:    "boom",
		At:       at,
	}
	require.NoError(t, j.Record(t.Context(), rec))

	got, err := j.Records(t.Context(), "txn-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].At.Equal(at))
	got[0].At = at
	require.Equal(t, rec, got[0])
}

func TestJournalWithActionStack(t *testing.T) {
	store := newStore(t)
	j := NewJournal(store)

	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("disk full") }

	committed := actions.NewStack(actions.WithJournal(j), actions.WithPluginID("com.example.a"))
	committed.Push(actions.New("com.example.a", plugin.Asset{Src: "a", Target: "a"}, actions.OpInstall, ok, ok))
	require.NoError(t, committed.Process(t.Context()))

	// Keep start times distinct at millisecond resolution.
	time.Sleep(5 * time.Millisecond)

	failed := actions.NewStack(actions.WithJournal(j), actions.WithPluginID("com.example.b"))
	failed.Push(actions.New("com.example.b", plugin.Asset{Src: "a", Target: "a"}, actions.OpInstall, ok, fail))
	failed.Push(actions.New("com.example.b", plugin.JSModule{Src: "m.js"}, actions.OpInstall, fail, ok))
	require.Error(t, failed.Process(t.Context()))

	proj := NewTxnHistoryProjection(store, 10)
	require.NoError(t, proj.Rebuild(t.Context()))

	history := proj.GetHistory()
	require.Len(t, history, 2)
	require.Equal(t, failed.TxnID(), history[0].TxnID)
	require.Equal(t, committed.TxnID(), history[1].TxnID)

	c, found := proj.GetTxn(committed.TxnID())
	require.True(t, found)
	require.Equal(t, StatusCommitted, c.Status)
	require.Equal(t, "com.example.a", c.PluginID)
	require.Equal(t, actions.OpInstall, c.Op)
	require.Equal(t, 1, c.Steps)
	require.NotNil(t, c.FinishedAt)

	f, found := proj.GetTxn(failed.TxnID())
	require.True(t, found)
	require.Equal(t, StatusRolledBack, f.Status)
	require.Equal(t, "js-module m.js", f.FailedAction)
	require.Equal(t, "disk full", f.Error)
	require.Equal(t, 0, f.RolledBack)
	require.Len(t, f.RollbackFailures, 1)
	require.False(t, proj.LastSyncTime().IsZero())
}

func TestProjectionApply(t *testing.T) {
	proj := NewTxnHistoryProjection(newStore(t), 1)
	now := time.Now()

	proj.Apply(&Event{TxnID: "a", Phase: actions.PhaseBegin, At: now})
	proj.Apply(&Event{TxnID: "b", Phase: actions.PhaseBegin, At: now.Add(time.Second)})
	proj.Apply(&Event{Phase: actions.PhaseBegin})

	history := proj.GetHistory()
	require.Len(t, history, 1)
	require.Equal(t, "b", history[0].TxnID)
	require.Equal(t, StatusRunning, history[0].Status)
	require.Zero(t, history[0].Duration())
}
