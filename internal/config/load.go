package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	toml "github.com/pelletier/go-toml/v2"
)

// rawConfig mirrors the on-disk document shape. Type-keyed maps use
// string keys like "msg_type_0" and "strategy_1"; they are converted
// to numeric keys after decoding.
type rawConfig struct {
	Scenario     string `yaml:"scenario" toml:"scenario"`
	DurationSecs uint32 `yaml:"duration_secs" toml:"duration_secs"`

	Producers struct {
		Count          int                `yaml:"count" toml:"count"`
		MessagesPerSec uint64             `yaml:"messages_per_sec" toml:"messages_per_sec"`
		Distribution   map[string]float64 `yaml:"distribution" toml:"distribution"`
	} `yaml:"producers" toml:"producers"`

	Processors struct {
		Count             int               `yaml:"count" toml:"count"`
		ProcessingTimesNs map[string]uint64 `yaml:"processing_times_ns" toml:"processing_times_ns"`
	} `yaml:"processors" toml:"processors"`

	Strategies struct {
		Count             int               `yaml:"count" toml:"count"`
		ProcessingTimesNs map[string]uint64 `yaml:"processing_times_ns" toml:"processing_times_ns"`
	} `yaml:"strategies" toml:"strategies"`

	Stage1Rules []struct {
		MsgType    uint8   `yaml:"msg_type" toml:"msg_type"`
		Processors []uint8 `yaml:"processors" toml:"processors"`
	} `yaml:"stage1_rules" toml:"stage1_rules"`

	Stage2Rules []struct {
		MsgType          uint8 `yaml:"msg_type" toml:"msg_type"`
		Strategy         uint8 `yaml:"strategy" toml:"strategy"`
		OrderingRequired *bool `yaml:"ordering_required" toml:"ordering_required"`
	} `yaml:"stage2_rules" toml:"stage2_rules"`
}

// Load reads, decodes, overlays environment overrides and validates a
// scenario file. The decoder is chosen by file extension: .toml uses
// TOML, everything else (.yaml, .yml, .json) goes through the YAML
// decoder, which accepts JSON as a subset.
func Load(path string) (*SystemConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw rawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse TOML config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg, err := raw.build()
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// build converts the raw document into a SystemConfig, filling the
// same defaults the system has always shipped with.
func (r *rawConfig) build() (*SystemConfig, error) {
	cfg := &SystemConfig{
		Scenario:     r.Scenario,
		DurationSecs: r.DurationSecs,
	}
	if cfg.Scenario == "" {
		cfg.Scenario = "unknown"
	}
	if cfg.DurationSecs == 0 {
		cfg.DurationSecs = 10
	}

	cfg.Producers.Count = r.Producers.Count
	if cfg.Producers.Count == 0 {
		cfg.Producers.Count = 4
	}
	cfg.Producers.MessagesPerSec = r.Producers.MessagesPerSec
	if cfg.Producers.MessagesPerSec == 0 {
		cfg.Producers.MessagesPerSec = 1_000_000
	}
	dist, err := typedKeys(r.Producers.Distribution, "msg_type_")
	if err != nil {
		return nil, fmt.Errorf("producers.distribution: %w", err)
	}
	cfg.Producers.Distribution = dist

	cfg.Processors.Count = r.Processors.Count
	if cfg.Processors.Count == 0 {
		cfg.Processors.Count = 4
	}
	procTimes, err := typedKeys(r.Processors.ProcessingTimesNs, "msg_type_")
	if err != nil {
		return nil, fmt.Errorf("processors.processing_times_ns: %w", err)
	}
	cfg.Processors.ProcessingTimesNs = procTimes

	cfg.Strategies.Count = r.Strategies.Count
	if cfg.Strategies.Count == 0 {
		cfg.Strategies.Count = 3
	}
	stratTimes, err := typedKeys(r.Strategies.ProcessingTimesNs, "strategy_")
	if err != nil {
		return nil, fmt.Errorf("strategies.processing_times_ns: %w", err)
	}
	cfg.Strategies.ProcessingTimesNs = stratTimes

	for _, rule := range r.Stage1Rules {
		cfg.Stage1Rules = append(cfg.Stage1Rules, Stage1Rule{
			MsgType:    rule.MsgType,
			Processors: rule.Processors,
		})
	}
	for _, rule := range r.Stage2Rules {
		ordering := true
		if rule.OrderingRequired != nil {
			ordering = *rule.OrderingRequired
		}
		cfg.Stage2Rules = append(cfg.Stage2Rules, Stage2Rule{
			MsgType:          rule.MsgType,
			Strategy:         rule.Strategy,
			OrderingRequired: ordering,
		})
	}
	return cfg, nil
}

// typedKeys converts keys of the form "<prefix>N" to their numeric id.
// Keys without the prefix are rejected so that typos surface instead
// of silently dropping an entry.
func typedKeys[V float64 | uint64](in map[string]V, prefix string) (map[uint8]V, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[uint8]V, len(in))
	for key, value := range in {
		rest, found := strings.CutPrefix(key, prefix)
		if !found {
			return nil, fmt.Errorf("key %q does not start with %q", key, prefix)
		}
		id, err := strconv.ParseUint(rest, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("key %q has a non-numeric suffix: %w", key, err)
		}
		out[uint8(id)] = value
	}
	return out, nil
}
