package actions

import (
	"context"
	"time"
)

// Phase marks where in a transaction a journal record was written.
type Phase string

const (
	PhaseBegin          Phase = "begin"
	PhaseStep           Phase = "step"
	PhaseCommit         Phase = "commit"
	PhaseFailed         Phase = "failed"
	PhaseRollback       Phase = "rollback"
	PhaseRollbackFailed Phase = "rollback_failed"
)

// Record is one journal line.
type Record struct {
	TxnID    string
	Seq      int
	Phase    Phase
	PluginID string
	Op       Op
	Action   string
	Error    string
	At       time.Time
}

// Journal receives transaction records. Journal errors are logged by the
// stack and never fail a batch.
type Journal interface {
	Record(ctx context.Context, rec Record) error
}
