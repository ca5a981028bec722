// Package config loads per-stage retry, guard-retry, and backpressure
// overrides from YAML, so a pipeline's resilience knobs can be tuned without
// a rebuild. Constructing policies programmatically remains fully supported;
// config is an optional convenience layer on top of graph/interceptor/events.
package config

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stageflow/stageflow/graph"
	"github.com/stageflow/stageflow/interceptor"
)

// RetryConfig is the YAML-decodable mirror of interceptor.RetryConfig.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	Backoff     Backoff  `yaml:"backoff"`
	Jitter      Jitter   `yaml:"jitter"`
}

// ToInterceptorConfig converts to the runtime type consumed by
// interceptor.NewRetryInterceptor.
func (c RetryConfig) ToInterceptorConfig() interceptor.RetryConfig {
	return interceptor.RetryConfig{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   time.Duration(c.BaseDelay),
		MaxDelay:    time.Duration(c.MaxDelay),
		Backoff:     c.Backoff.kind,
		Jitter:      c.Jitter.kind,
	}
}

// GuardRetryPolicy is the YAML-decodable mirror of graph.GuardRetryPolicy.
type GuardRetryPolicy struct {
	MaxAttempts      int      `yaml:"max_attempts"`
	StagnationWindow int      `yaml:"stagnation_window"`
	Timeout          Duration `yaml:"timeout"`
}

// ToGraphPolicy converts to the runtime type consumed by graph.WithGuard.
func (p GuardRetryPolicy) ToGraphPolicy() graph.GuardRetryPolicy {
	return graph.GuardRetryPolicy{
		MaxAttempts:      p.MaxAttempts,
		StagnationWindow: p.StagnationWindow,
		Timeout:          time.Duration(p.Timeout),
	}
}

// BackpressureConfig sizes a stage's event-sink or chunk queue.
type BackpressureConfig struct {
	MaxQueueSize   int  `yaml:"max_queue_size"`
	DropOnOverflow bool `yaml:"drop_on_overflow"`
}

// PipelineConfig groups per-stage overrides loaded from YAML. Stage names
// are the keys; a stage with no entry in a map falls back to whatever
// default the caller constructs in code.
type PipelineConfig struct {
	Retry        map[string]RetryConfig        `yaml:"retry"`
	GuardRetry   map[string]GuardRetryPolicy   `yaml:"guard_retry"`
	Backpressure map[string]BackpressureConfig `yaml:"backpressure"`
}

// Load decodes a PipelineConfig from r and validates every entry.
func Load(r io.Reader) (*PipelineConfig, error) {
	var cfg PipelineConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return &PipelineConfig{}, nil
		}
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects overrides that could never produce a working policy.
func (c *PipelineConfig) Validate() error {
	for stage, r := range c.Retry {
		if r.MaxAttempts < 1 {
			return fmt.Errorf("config: retry[%s]: max_attempts must be >= 1, got %d", stage, r.MaxAttempts)
		}
		if r.BaseDelay < 0 || r.MaxDelay < 0 {
			return fmt.Errorf("config: retry[%s]: delays must be non-negative", stage)
		}
	}
	for stage, g := range c.GuardRetry {
		if g.MaxAttempts < 1 {
			return fmt.Errorf("config: guard_retry[%s]: max_attempts must be >= 1, got %d", stage, g.MaxAttempts)
		}
		if g.StagnationWindow < 0 {
			return fmt.Errorf("config: guard_retry[%s]: stagnation_window must be >= 0", stage)
		}
	}
	for stage, b := range c.Backpressure {
		if b.MaxQueueSize < 1 {
			return fmt.Errorf("config: backpressure[%s]: max_queue_size must be >= 1, got %d", stage, b.MaxQueueSize)
		}
	}
	return nil
}
