package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"git.home.luguber.info/inful/plugsmith/internal/actions"
)

// StepPayload is the JSON body stored for every journal record.
type StepPayload struct {
	Seq      int        `json:"seq"`
	PluginID string     `json:"plugin_id,omitempty"`
	Op       actions.Op `json:"op,omitempty"`
	Action   string     `json:"action,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Journal writes action-stack records to a Store.
type Journal struct {
	store Store
}

var _ actions.Journal = (*Journal)(nil)

// NewJournal wraps store.
func NewJournal(store Store) *Journal {
	return &Journal{store: store}
}

// Record implements actions.Journal.
func (j *Journal) Record(ctx context.Context, rec actions.Record) error {
	payload, err := json.Marshal(StepPayload{
		Seq:      rec.Seq,
		PluginID: rec.PluginID,
		Op:       rec.Op,
		Action:   rec.Action,
		Error:    rec.Error,
	})
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	return j.store.Append(ctx, &Event{
		TxnID:    rec.TxnID,
		Phase:    rec.Phase,
		At:       rec.At,
		Payload:  payload,
		Metadata: map[string]string{"seq": strconv.Itoa(rec.Seq)},
	})
}

// Records returns a transaction's records in order.
func (j *Journal) Records(ctx context.Context, txnID string) ([]actions.Record, error) {
	events, err := j.store.GetByTxnID(ctx, txnID)
	if err != nil {
		return nil, err
	}
	out := make([]actions.Record, 0, len(events))
	for _, e := range events {
		rec, err := decodeRecord(e)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRecord(e *Event) (actions.Record, error) {
	var p StepPayload
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return actions.Record{}, fmt.Errorf("unmarshal journal record %d: %w", e.Seq, err)
		}
	}
	return actions.Record{
		TxnID:    e.TxnID,
		Seq:      p.Seq,
		Phase:    e.Phase,
		PluginID: p.PluginID,
		Op:       p.Op,
		Action:   p.Action,
		Error:    p.Error,
		At:       e.At,
	}, nil
}
