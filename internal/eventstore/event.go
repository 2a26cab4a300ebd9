package eventstore

import (
	"time"

	"git.home.luguber.info/inful/plugsmith/internal/actions"
)

// Event is one stored journal row.
type Event struct {
	// Seq is assigned by the store and increases with every append.
	Seq      int64
	TxnID    string
	Phase    actions.Phase
	At       time.Time
	Payload  []byte
	Metadata map[string]string
}
