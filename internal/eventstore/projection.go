package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/plugsmith/internal/actions"
)

// Transaction statuses.
const (
	StatusRunning    = "running"
	StatusCommitted  = "committed"
	StatusRolledBack = "rolled_back"
)

// TxnSummary is a read model of one action-stack transaction.
type TxnSummary struct {
	TxnID      string     `json:"txn_id"`
	PluginID   string     `json:"plugin_id,omitempty"`
	Op         actions.Op `json:"op,omitempty"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Steps      int        `json:"steps"`
	RolledBack int        `json:"rolled_back"`
	// FailedAction and Error describe the step that aborted the transaction.
	FailedAction string `json:"failed_action,omitempty"`
	Error        string `json:"error,omitempty"`
	// RollbackFailures lists reverse steps that could not be applied.
	RollbackFailures []string `json:"rollback_failures,omitempty"`
}

// Duration returns how long the transaction ran, or 0 while it is running.
func (s *TxnSummary) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// TxnHistoryProjection maintains an in-memory view of transaction history,
// reconstructed from the journal.
type TxnHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	txns     map[string]*TxnSummary
	history  []*TxnSummary // newest first
	maxSize  int
	lastSync time.Time
}

// NewTxnHistoryProjection creates a projection backed by store.
func NewTxnHistoryProjection(store Store, maxHistorySize int) *TxnHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &TxnHistoryProjection{
		store:   store,
		txns:    make(map[string]*TxnSummary),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from every stored event.
func (p *TxnHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.txns = make(map[string]*TxnSummary)
	for _, event := range events {
		p.applyEventLocked(event)
	}

	p.history = p.history[:0]
	for _, s := range p.txns {
		p.history = append(p.history, s)
	}
	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event.
func (p *TxnHistoryProjection) Apply(event *Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.applyEventLocked(event); s != nil && !p.inHistoryLocked(s.TxnID) {
		p.history = append([]*TxnSummary{s}, p.history...)
		if len(p.history) > p.maxSize {
			p.history = p.history[:p.maxSize]
		}
	}
}

func (p *TxnHistoryProjection) applyEventLocked(event *Event) *TxnSummary {
	txnID := event.TxnID
	if txnID == "" {
		return nil
	}

	summary, exists := p.txns[txnID]
	if !exists {
		summary = &TxnSummary{TxnID: txnID, Status: StatusRunning, StartedAt: event.At}
		p.txns[txnID] = summary
	}

	var payload StepPayload
	_ = json.Unmarshal(event.Payload, &payload)

	switch event.Phase {
	case actions.PhaseBegin:
		summary.StartedAt = event.At
		summary.PluginID = payload.PluginID
	case actions.PhaseStep:
		summary.Steps++
		if summary.Op == "" {
			summary.Op = payload.Op
		}
	case actions.PhaseCommit:
		finished := event.At
		summary.FinishedAt = &finished
		summary.Status = StatusCommitted
	case actions.PhaseFailed:
		finished := event.At
		summary.FinishedAt = &finished
		summary.Status = StatusRolledBack
		summary.FailedAction = payload.Action
		summary.Error = payload.Error
		if summary.Op == "" {
			summary.Op = payload.Op
		}
	case actions.PhaseRollback:
		summary.RolledBack++
	case actions.PhaseRollbackFailed:
		summary.RollbackFailures = append(summary.RollbackFailures, payload.Action+": "+payload.Error)
	}
	if summary.PluginID == "" {
		summary.PluginID = payload.PluginID
	}
	return summary
}

func (p *TxnHistoryProjection) inHistoryLocked(txnID string) bool {
	for _, h := range p.history {
		if h.TxnID == txnID {
			return true
		}
	}
	return false
}

// GetHistory returns transactions, newest first.
func (p *TxnHistoryProjection) GetHistory() []*TxnSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*TxnSummary, len(p.history))
	copy(result, p.history)
	return result
}

// GetTxn returns the summary for one transaction.
func (p *TxnHistoryProjection) GetTxn(txnID string) (*TxnSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.txns[txnID]
	if !exists {
		return nil, false
	}
	cp := *summary
	return &cp, true
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *TxnHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
