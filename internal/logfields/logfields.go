package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPluginID   = "plugin_id"
	KeyVersion    = "version"
	KeyItemType   = "item_type"
	KeyItem       = "item"
	KeyFile       = "file"
	KeyPath       = "path"
	KeyTxnID      = "txn_id"
	KeyStep       = "step"
	KeyOp         = "op"
	KeyPlatform   = "platform"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyURL        = "url"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func PluginID(id string) slog.Attr    { return slog.String(KeyPluginID, id) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func ItemType(t string) slog.Attr     { return slog.String(KeyItemType, t) }
func Item(desc string) slog.Attr      { return slog.String(KeyItem, desc) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func TxnID(id string) slog.Attr       { return slog.String(KeyTxnID, id) }
func Step(n int) slog.Attr            { return slog.Int(KeyStep, n) }
func Op(op string) slog.Attr          { return slog.String(KeyOp, op) }
func Platform(p string) slog.Attr     { return slog.String(KeyPlatform, p) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
