package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tidwall/pretty"

	"git.home.luguber.info/inful/plugsmith/internal/eventstore"
	ferrors "git.home.luguber.info/inful/plugsmith/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Txn   string `help:"Show the steps of one transaction"`
	Limit int    `short:"n" help:"Number of transactions to show" default:"20"`
	JSON  bool   `help:"Print JSON"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if !cfg.JournalEnabled() {
		return ferrors.ConfigError("journal is disabled").
			WithContext("field", "journal.enabled").
			UserAction().
			Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.Resolve(cfg.Journal.Path))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryJournal, "open journal").
			WithContext("path", cfg.Journal.Path).
			Build()
	}
	defer func() { _ = store.Close() }()

	proj := eventstore.NewTxnHistoryProjection(store, h.Limit)
	if err := proj.Rebuild(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryJournal, "read journal").Build()
	}

	if h.Txn == "" {
		history := proj.GetHistory()
		if h.JSON {
			return writeJSON(g.out(), history)
		}
		return printHistory(g.out(), history)
	}

	summary, ok := proj.GetTxn(h.Txn)
	if !ok {
		return ferrors.NewError(ferrors.CategoryNotFound, fmt.Sprintf("transaction %s not found", h.Txn)).
			UserAction().
			Build()
	}
	records, err := eventstore.NewJournal(store).Records(ctx, h.Txn)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryJournal, "read transaction").Build()
	}
	if h.JSON {
		return writeJSON(g.out(), map[string]any{"summary": summary, "records": records})
	}
	if err := printHistory(g.out(), []*eventstore.TxnSummary{summary}); err != nil {
		return err
	}
	for _, rec := range records {
		line := fmt.Sprintf("  %3d %-15s %s", rec.Seq, rec.Phase, rec.Action)
		if rec.Error != "" {
			line += "  error=" + rec.Error
		}
		if _, err := fmt.Fprintln(g.out(), line); err != nil {
			return err
		}
	}
	return nil
}

func printHistory(w io.Writer, history []*eventstore.TxnSummary) error {
	if len(history) == 0 {
		_, err := fmt.Fprintln(w, "No transactions recorded")
		return err
	}
	for _, s := range history {
		line := fmt.Sprintf("%s  %s  %-9s %-11s %s  steps=%d",
			s.StartedAt.Format(time.RFC3339), s.TxnID, s.Op, s.Status, s.PluginID, s.Steps)
		if s.RolledBack > 0 {
			line += fmt.Sprintf(" rolled_back=%d", s.RolledBack)
		}
		if s.Error != "" {
			line += "  error=" + s.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(data))
	return err
}
