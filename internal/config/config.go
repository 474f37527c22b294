// Package config loads ledger settings from the environment, optionally seeded
// from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const envPrefix = "TABUNG_"

// Config holds everything the CLI needs to build a ledger.
type Config struct {
	DataDir         string
	PGDSN           string
	KafkaBrokers    []string
	KafkaTopic      string
	MetricsFile     string
	SameTypeFeeRate decimal.Decimal
	AuthRate        float64
	AuthBurst       int
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		DataDir:         "database",
		KafkaTopic:      "ledger.audit",
		SameTypeFeeRate: decimal.Zero,
		AuthBurst:       5,
	}
}

// Load reads envFiles (a missing file is fine) and then TABUNG_* variables.
// Variables already set in the process win over file values.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	if v := get("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.PGDSN = get("PG_DSN")
	if v := get("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if v := get("KAFKA_TOPIC"); v != "" {
		cfg.KafkaTopic = v
	}
	cfg.MetricsFile = get("METRICS_FILE")

	if v := get("SAME_TYPE_FEE_RATE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return Config{}, fmt.Errorf("%sSAME_TYPE_FEE_RATE: want a rate in [0,1), got %q", envPrefix, v)
		}
		cfg.SameTypeFeeRate = d
	}
	if v := get("AUTH_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 {
			return Config{}, fmt.Errorf("%sAUTH_RATE: %q is not a non-negative number", envPrefix, v)
		}
		cfg.AuthRate = r
	}
	if v := get("AUTH_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("%sAUTH_BURST: %q is not a positive integer", envPrefix, v)
		}
		cfg.AuthBurst = n
	}
	return cfg, nil
}

func get(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}
