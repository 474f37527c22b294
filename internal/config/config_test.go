package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATA_DIR", "PG_DSN", "KAFKA_BROKERS", "KAFKA_TOPIC", "METRICS_FILE", "SAME_TYPE_FEE_RATE", "AUTH_RATE", "AUTH_BURST"} {
		t.Setenv(envPrefix+k, "")
	}
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "database" || cfg.KafkaTopic != "ledger.audit" || !cfg.SameTypeFeeRate.IsZero() || cfg.AuthRate != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TABUNG_DATA_DIR", "/var/lib/tabung")
	t.Setenv("TABUNG_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TABUNG_SAME_TYPE_FEE_RATE", "0.01")
	t.Setenv("TABUNG_AUTH_RATE", "0.5")
	t.Setenv("TABUNG_AUTH_BURST", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/tabung" {
		t.Fatalf("DataDir=%q", cfg.DataDir)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("KafkaBrokers=%v", cfg.KafkaBrokers)
	}
	if !cfg.SameTypeFeeRate.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("SameTypeFeeRate=%s", cfg.SameTypeFeeRate)
	}
	if cfg.AuthRate != 0.5 || cfg.AuthBurst != 3 {
		t.Fatalf("auth limit=%v/%d", cfg.AuthRate, cfg.AuthBurst)
	}
}

func TestLoadDotEnvDoesNotOverrideProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TABUNG_METRICS_FILE=/tmp/from-file.prom\nTABUNG_KAFKA_TOPIC=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TABUNG_KAFKA_TOPIC", "from-env")
	t.Setenv("TABUNG_METRICS_FILE", "")
	os.Unsetenv("TABUNG_METRICS_FILE")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KafkaTopic != "from-env" {
		t.Fatalf("KafkaTopic=%q", cfg.KafkaTopic)
	}
	if cfg.MetricsFile != "/tmp/from-file.prom" {
		t.Fatalf("MetricsFile=%q", cfg.MetricsFile)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"TABUNG_SAME_TYPE_FEE_RATE": "1.5",
		"TABUNG_AUTH_RATE":          "fast",
		"TABUNG_AUTH_BURST":         "0",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", k, v)
			}
		})
	}
}
