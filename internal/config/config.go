// Package config loads and validates the pipeline scenario description.
//
// A scenario file may be YAML, JSON or TOML, chosen by extension.
// After decoding, a small set of scalar fields can be overridden from
// PIPELINE_* environment variables, then the result is validated as a
// whole. The pipeline core only ever sees a validated SystemConfig.
package config

import (
	"fmt"
	"math"

	"github.com/kelseyhightower/envconfig"
)

// MaxMsgType is the highest routing key the pipeline accepts.
const MaxMsgType = 7

// maxComponentCount bounds producer, processor and strategy counts.
const maxComponentCount = 16

// DefaultProcessingNs is the processor service time used when a
// message type has no configured entry.
const DefaultProcessingNs = 100

// ProducerConfig describes the producer pool.
type ProducerConfig struct {
	Count          int
	MessagesPerSec uint64
	// Distribution maps message type to emission probability.
	Distribution map[uint8]float64
}

// ProcessorConfig describes the processor pool.
type ProcessorConfig struct {
	Count int
	// ProcessingTimesNs maps message type to simulated service time.
	ProcessingTimesNs map[uint8]uint64
}

// StrategyConfig describes the terminal strategy pool.
type StrategyConfig struct {
	Count int
	// ProcessingTimesNs maps strategy id to simulated service time.
	ProcessingTimesNs map[uint8]uint64
}

// Stage1Rule pins a message type to a candidate processor set.
type Stage1Rule struct {
	MsgType    uint8
	Processors []uint8
}

// Stage2Rule pins a message type to its terminal strategy.
type Stage2Rule struct {
	MsgType          uint8
	Strategy         uint8
	OrderingRequired bool
}

// SystemConfig is the validated scenario handed to the supervisor.
type SystemConfig struct {
	Scenario     string
	DurationSecs uint32

	Producers  ProducerConfig
	Processors ProcessorConfig
	Strategies StrategyConfig

	Stage1Rules []Stage1Rule
	Stage2Rules []Stage2Rule
}

// envOverrides lists the scalars that may be overridden from the
// environment without editing the scenario file.
type envOverrides struct {
	DurationSecs   uint32 `envconfig:"DURATION_SECS"`
	MessagesPerSec uint64 `envconfig:"MESSAGES_PER_SEC"`
	Scenario       string `envconfig:"SCENARIO"`
}

// applyEnv overlays PIPELINE_* environment variables onto cfg.
func applyEnv(cfg *SystemConfig) error {
	var env envOverrides
	if err := envconfig.Process("PIPELINE", &env); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	if env.DurationSecs > 0 {
		cfg.DurationSecs = env.DurationSecs
	}
	if env.MessagesPerSec > 0 {
		cfg.Producers.MessagesPerSec = env.MessagesPerSec
	}
	if env.Scenario != "" {
		cfg.Scenario = env.Scenario
	}
	return nil
}

// Validate checks structural correctness. Soft conditions that the
// loader tolerates are reported by Warnings instead.
func (c *SystemConfig) Validate() error {
	if c.DurationSecs == 0 {
		return fmt.Errorf("duration_secs must be greater than 0")
	}
	if c.Producers.Count < 1 || c.Producers.Count > maxComponentCount {
		return fmt.Errorf("producers.count must be in [1,%d], got %d", maxComponentCount, c.Producers.Count)
	}
	if c.Producers.MessagesPerSec == 0 {
		return fmt.Errorf("producers.messages_per_sec must be greater than 0")
	}
	if c.Processors.Count < 1 || c.Processors.Count > maxComponentCount {
		return fmt.Errorf("processors.count must be in [1,%d], got %d", maxComponentCount, c.Processors.Count)
	}
	if c.Strategies.Count < 1 || c.Strategies.Count > maxComponentCount {
		return fmt.Errorf("strategies.count must be in [1,%d], got %d", maxComponentCount, c.Strategies.Count)
	}
	if len(c.Producers.Distribution) == 0 {
		return fmt.Errorf("producers.distribution must not be empty")
	}
	for msgType, prob := range c.Producers.Distribution {
		if msgType > MaxMsgType {
			return fmt.Errorf("distribution references message type %d, max is %d", msgType, MaxMsgType)
		}
		if prob < 0 || prob > 1 {
			return fmt.Errorf("distribution probability for type %d out of [0,1]: %v", msgType, prob)
		}
	}
	if len(c.Stage1Rules) == 0 {
		return fmt.Errorf("at least one stage1 rule is required")
	}
	for _, rule := range c.Stage1Rules {
		if rule.MsgType > MaxMsgType {
			return fmt.Errorf("stage1 rule references message type %d, max is %d", rule.MsgType, MaxMsgType)
		}
		if len(rule.Processors) == 0 {
			return fmt.Errorf("stage1 rule for type %d has no processors", rule.MsgType)
		}
		for _, id := range rule.Processors {
			if int(id) >= c.Processors.Count {
				return fmt.Errorf("stage1 rule for type %d references processor %d, only %d exist",
					rule.MsgType, id, c.Processors.Count)
			}
		}
	}
	if len(c.Stage2Rules) == 0 {
		return fmt.Errorf("at least one stage2 rule is required")
	}
	for _, rule := range c.Stage2Rules {
		if rule.MsgType > MaxMsgType {
			return fmt.Errorf("stage2 rule references message type %d, max is %d", rule.MsgType, MaxMsgType)
		}
		if int(rule.Strategy) >= c.Strategies.Count {
			return fmt.Errorf("stage2 rule for type %d references strategy %d, only %d exist",
				rule.MsgType, rule.Strategy, c.Strategies.Count)
		}
	}
	return nil
}

// Warnings reports soft misconfigurations: conditions the run
// tolerates but an operator should see.
func (c *SystemConfig) Warnings() []string {
	var warnings []string
	sum := 0.0
	for _, prob := range c.Producers.Distribution {
		sum += prob
	}
	if math.Abs(sum-1.0) > 0.01 {
		warnings = append(warnings, fmt.Sprintf("distribution probabilities sum to %.4f, expected 1.0", sum))
	}
	for _, rule := range c.Stage1Rules {
		if len(rule.Processors) > 1 {
			warnings = append(warnings,
				fmt.Sprintf("stage1 rule for type %d balances across %d processors; ordering for this type is not guaranteed",
					rule.MsgType, len(rule.Processors)))
		}
	}
	return warnings
}
