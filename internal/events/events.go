// Package events emits install lifecycle notifications. The orchestrator
// reports to a Sink; emission failures are logged by the caller and never
// fail an install.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/plugsmith/internal/logfields"
)

// Type names an event.
type Type string

const (
	PluginAdded     Type = "plugin.added"
	PluginRemoved   Type = "plugin.removed"
	PluginFailed    Type = "plugin.failed"
	ItemSkipped     Type = "item.skipped"
	ManifestWritten Type = "manifest.written"
)

// Event is one notification.
type Event struct {
	Type      Type      `json:"type"`
	PluginID  string    `json:"plugin_id,omitempty"`
	Version   string    `json:"version,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	TxnID     string    `json:"txn_id,omitempty"`
	Item      string    `json:"item,omitempty"`
	Path      string    `json:"path,omitempty"`
	Modules   int       `json:"modules,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives events.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// LogSink writes events to the default slog logger.
type LogSink struct{}

// Emit implements Sink.
func (LogSink) Emit(_ context.Context, e Event) error {
	attrs := []any{
		slog.String("event", string(e.Type)),
		logfields.PluginID(e.PluginID),
	}
	if e.TxnID != "" {
		attrs = append(attrs, logfields.TxnID(e.TxnID))
	}
	if e.Item != "" {
		attrs = append(attrs, logfields.Item(e.Item))
	}
	if e.Path != "" {
		attrs = append(attrs, logfields.Path(e.Path))
	}

	switch e.Type {
	case ItemSkipped:
		slog.Warn("Skipping item with unknown type", attrs...)
	case PluginFailed:
		slog.Error("Plugin operation failed", append(attrs, slog.String(logfields.KeyError, e.Error))...)
	default:
		slog.Debug("Event", attrs...)
	}
	return nil
}

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	Events []Event
}

// Emit implements Sink.
func (r *Recorder) Emit(_ context.Context, e Event) error {
	r.Events = append(r.Events, e)
	return nil
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []Type {
	out := make([]Type, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}
