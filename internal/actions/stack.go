package actions

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/plugsmith/internal/logfields"
)

// Stack is an ordered queue of actions processed as one transaction.
// A Stack is not safe for concurrent use.
type Stack struct {
	txnID     string
	pluginID  string
	pending   []Action
	completed []Action
	journal   Journal
	now       func() time.Time
	seq       int
}

// Option configures a Stack.
type Option func(*Stack)

// WithJournal records every transaction phase to j.
func WithJournal(j Journal) Option {
	return func(s *Stack) { s.journal = j }
}

// WithTxnID overrides the generated transaction id.
func WithTxnID(id string) Option {
	return func(s *Stack) { s.txnID = id }
}

// WithPluginID tags begin and commit records with the plugin being processed.
func WithPluginID(id string) Option {
	return func(s *Stack) { s.pluginID = id }
}

// NewStack returns an empty stack with a fresh transaction id.
func NewStack(opts ...Option) *Stack {
	s := &Stack{txnID: uuid.NewString(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TxnID returns the transaction id used for logs and the journal.
func (s *Stack) TxnID() string { return s.txnID }

// Push appends an action. Nothing runs until Process.
func (s *Stack) Push(a Action) {
	s.pending = append(s.pending, a)
}

// Pending returns the actions not yet run.
func (s *Stack) Pending() []Action {
	return append([]Action(nil), s.pending...)
}

// Completed returns the actions whose forward step succeeded and have not been
// rolled back.
func (s *Stack) Completed() []Action {
	return append([]Action(nil), s.completed...)
}

// Process runs every pending action in push order. On the first failure it
// rolls back the completed actions in reverse order and returns that failure.
//
// Cancellation is honoured only before the first action runs; once started,
// steps receive a context that is never cancelled.
func (s *Stack) Process(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryCanceled, "install batch canceled before start").
			WithContext("txn_id", s.txnID).
			Build()
	}
	run := context.WithoutCancel(ctx)

	s.record(run, Record{Phase: PhaseBegin, PluginID: s.pluginID, Action: countLabel(len(s.pending))})
	slog.Debug("Processing action stack", logfields.TxnID(s.txnID), logfields.Count(len(s.pending)))

	for len(s.pending) > 0 {
		a := s.pending[0]
		s.pending = s.pending[1:]

		if err := a.Forward.Run(run); err != nil {
			slog.Warn("Action failed, rolling back",
				logfields.TxnID(s.txnID),
				logfields.PluginID(a.PluginID),
				logfields.Op(string(a.Forward.Op)),
				logfields.Item(a.Name),
				logfields.Error(err))
			s.record(run, Record{Phase: PhaseFailed, PluginID: a.PluginID, Op: a.Forward.Op, Action: a.Name, Error: err.Error()})
			s.pending = nil
			failures := s.rollback(run)
			return s.failure(a, err, failures)
		}

		s.completed = append(s.completed, a)
		s.record(run, Record{Phase: PhaseStep, PluginID: a.PluginID, Op: a.Forward.Op, Action: a.Name})
	}

	s.record(run, Record{Phase: PhaseCommit, PluginID: s.pluginID, Action: countLabel(len(s.completed))})
	return nil
}

// rollback reverses completed actions newest first and returns the
// descriptions of reverse steps that failed.
func (s *Stack) rollback(ctx context.Context) []string {
	var failures []string
	for i := len(s.completed) - 1; i >= 0; i-- {
		a := s.completed[i]
		if err := a.Reverse.Run(ctx); err != nil {
			slog.Error("Rollback step failed",
				logfields.TxnID(s.txnID),
				logfields.Step(i),
				logfields.PluginID(a.PluginID),
				logfields.Op(string(a.Reverse.Op)),
				logfields.Item(a.Name),
				logfields.Error(err))
			s.record(ctx, Record{Phase: PhaseRollbackFailed, PluginID: a.PluginID, Op: a.Reverse.Op, Action: a.Name, Error: err.Error()})
			failures = append(failures, a.Name+": "+err.Error())
			continue
		}
		s.record(ctx, Record{Phase: PhaseRollback, PluginID: a.PluginID, Op: a.Reverse.Op, Action: a.Name})
	}
	s.completed = nil
	return failures
}

func (s *Stack) failure(a Action, err error, rollbackFailures []string) error {
	classified, ok := err.(*ferrors.ClassifiedError)
	if !ok {
		classified = ferrors.WrapError(err, ferrors.CategoryFileSystem, string(a.Forward.Op)+" "+a.Name+" failed").Build()
	}
	classified = classified.WithContext("txn_id", s.txnID).WithContext("action", a.String())
	if len(rollbackFailures) > 0 {
		classified = classified.WithContext("rollback_failures", rollbackFailures)
	}
	return classified
}

func (s *Stack) record(ctx context.Context, rec Record) {
	if s.journal == nil {
		return
	}
	s.seq++
	rec.TxnID = s.txnID
	rec.Seq = s.seq
	rec.At = s.now()
	if err := s.journal.Record(ctx, rec); err != nil {
		slog.Warn("Failed to write journal record", logfields.TxnID(s.txnID), logfields.Error(err))
	}
}

func countLabel(n int) string {
	if n == 1 {
		return "1 action"
	}
	return strconv.Itoa(n) + " actions"
}
