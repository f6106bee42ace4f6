// Package config holds the program-wide configuration: the defaults,
// the config-file/--.env load path, and jsonschema validation. See the
// teacher's internal/config/config.go for the pattern this mirrors.
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/joho/godotenv"

	"github.com/cc-sentinel/sentinel/internal/slog"
)

// Keys is the process-wide configuration value, populated by Init and
// read (never written) by every other package from then on.
var Keys = ProgramConfig{
	Addr:              ":80",
	Upstream:          "localhost:8080",
	Mode:              "test",
	DB:                "./var/sentinel.db",
	AlertThreshold:    0.2,
	ShortHorizon:      "10m",
	MediumHorizon:     "1h",
	LongHorizon:       "24h",
	BlocklistURL:      "",
	BlocklistInterval: "10m",
	NatsSubject:       "sentinel.alerts",
	LogLevel:          "info",
}

// ExpressionRule is one named boolean heuristic compiled by the
// expression filter plugin.
type ExpressionRule struct {
	Name   string `json:"name"`
	Expr   string `json:"expr"`
	Reason string `json:"reason"`
}

// ProgramConfig is the shape of the configuration file. Five of its
// fields (addr, upstream, mode, db, nats-url) can be overridden after it
// by SENTINEL_-prefixed environment variables; see overlayEnv. See
// config.schema.json for the authoritative validation rules.
type ProgramConfig struct {
	// Address the acquisition server listens on.
	Addr string `json:"addr"`

	// Origin host:port every clean request is forwarded to.
	Upstream string `json:"upstream"`

	// "train" retrains models from persisted rows before each
	// prediction; "test" only predicts.
	Mode string `json:"mode"`

	// Path to the sqlite database file backing the persistence layer.
	DB string `json:"db"`

	// Fraction below which a path's reliability triggers an alert.
	AlertThreshold float64 `json:"alert-threshold"`

	// Durations (time.ParseDuration syntax) of the typing tree's three
	// timestamp horizons.
	ShortHorizon  string `json:"short-horizon"`
	MediumHorizon string `json:"medium-horizon"`
	LongHorizon   string `json:"long-horizon"`

	// CSV feed of known-bad source addresses; empty disables the
	// blocklist filter plugin entirely.
	BlocklistURL      string `json:"blocklist-url"`
	BlocklistInterval string `json:"blocklist-interval"`

	// Expression filter plugin rules, evaluated in order.
	ExpressionRules []ExpressionRule `json:"expression-rules"`

	// NATS server URL republishing alerts onto NatsSubject; empty
	// disables the NatsObserver entirely.
	NatsURL     string `json:"nats-url"`
	NatsSubject string `json:"nats-subject"`

	// "debug", "info", "warn", or "err".
	LogLevel string `json:"log-level"`

	// Topology document bootstrapping the typing tree's core nodes.
	TypingTopologyFile string `json:"typing-topology-file"`
}

// Init loads flagConfigFile (if it exists), validates it against
// config.schema.json, decodes it over the defaults in Keys, then
// overlays a .env file via godotenv for secrets/host-specific values
// that don't belong in a checked-in config file.
func Init(flagConfigFile string) {
	if flagConfigFile != "" {
		raw, err := os.ReadFile(flagConfigFile)
		if err != nil {
			if !os.IsNotExist(err) {
				slog.Fatalf("config: reading %s: %v", flagConfigFile, err)
			}
		} else {
			if err := Validate(bytes.NewReader(raw)); err != nil {
				slog.Fatalf("config: validating %s: %v", flagConfigFile, err)
			}
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&Keys); err != nil {
				slog.Fatalf("config: decoding %s: %v", flagConfigFile, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warnf("config: loading .env: %v", err)
	}
	overlayEnv(&Keys)
}

func overlayEnv(k *ProgramConfig) {
	if v := os.Getenv("SENTINEL_ADDR"); v != "" {
		k.Addr = v
	}
	if v := os.Getenv("SENTINEL_UPSTREAM"); v != "" {
		k.Upstream = v
	}
	if v := os.Getenv("SENTINEL_MODE"); v != "" {
		k.Mode = v
	}
	if v := os.Getenv("SENTINEL_DB"); v != "" {
		k.DB = v
	}
	if v := os.Getenv("SENTINEL_NATS_URL"); v != "" {
		k.NatsURL = v
	}
}
