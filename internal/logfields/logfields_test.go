package logfields

import (
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"PluginID", KeyPluginID, "org.example.camera", PluginID("org.example.camera")},
		{"Version", KeyVersion, "1.2.0", Version("1.2.0")},
		{"ItemType", KeyItemType, "js-module", ItemType("js-module")},
		{"Item", KeyItem, "js-module www/a.js", Item("js-module www/a.js")},
		{"File", KeyFile, "plugins/x/www/a.js", File("plugins/x/www/a.js")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"TxnID", KeyTxnID, "t-1", TxnID("t-1")},
		{"Op", KeyOp, "install", Op("install")},
		{"Platform", KeyPlatform, "electron", Platform("electron")},
		{"URL", KeyURL, "https://example.com/p.git", URL("https://example.com/p.git")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric & float helpers.
func TestNumericHelpers(t *testing.T) {
	if v := Step(3); v.Key != KeyStep || v.Value.Int64() != 3 {
		t.Fatalf("Step mismatch: %v", v)
	}
	if v := Count(2); v.Key != KeyCount {
		t.Fatalf("Count key mismatch: %s", v.Key)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
