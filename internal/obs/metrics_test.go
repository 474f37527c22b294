package obs

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(ledgerOps.WithLabelValues("deposit", "ok"))
	ObserveOperation("deposit", "ok", 5*time.Millisecond)
	ObserveOperation("deposit", "ok", 5*time.Millisecond)
	if got := testutil.ToFloat64(ledgerOps.WithLabelValues("deposit", "ok")); got != before+2 {
		t.Fatalf("ledger_operations_total=%v, want %v", got, before+2)
	}
}

func TestRecordInconsistency(t *testing.T) {
	before := testutil.ToFloat64(ledgerInconsistencies.WithLabelValues("stale_index"))
	RecordInconsistency("stale_index")
	if got := testutil.ToFloat64(ledgerInconsistencies.WithLabelValues("stale_index")); got != before+1 {
		t.Fatalf("ledger_inconsistencies_total=%v, want %v", got, before+1)
	}
}

func TestWriteTextfile(t *testing.T) {
	Init()
	Init()
	SetBuildInfo("test", "abc123", "file")
	ObserveOperation("open", "ok", time.Millisecond)

	path := filepath.Join(t.TempDir(), "tabung.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"ledger_operations_total", `tabung_build_info{commit="abc123",store="file",version="test"} 1`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("textfile missing %q:\n%s", want, data)
		}
	}
}

func TestWarnWritesJSON(t *testing.T) {
	l := Logger()
	original := l.Writer()
	var buf bytes.Buffer
	l.SetOutput(&buf)
	defer l.SetOutput(original)

	Warn("index entry left behind", map[string]any{"account": "1234567"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["level"] != "warn" || entry["msg"] != "index entry left behind" || entry["account"] != "1234567" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
