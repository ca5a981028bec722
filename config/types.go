package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stageflow/stageflow/interceptor"
)

// Duration decodes from a Go duration string ("250ms", "2s") instead of
// requiring nanosecond integers in YAML.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or a plain integer number
// of nanoseconds, matching encoding/json's time.Duration leniency.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!str":
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", value.Value, err)
		}
		*d = Duration(parsed)
	case "!!int":
		var n int64
		if err := value.Decode(&n); err != nil {
			return err
		}
		*d = Duration(time.Duration(n))
	default:
		return fmt.Errorf("config: invalid duration value %q", value.Value)
	}
	return nil
}

// Backoff decodes a backoff curve name ("exponential", "linear", "constant")
// into interceptor.BackoffKind.
type Backoff struct {
	kind interceptor.BackoffKind
}

// Kind returns the decoded interceptor.BackoffKind.
func (b Backoff) Kind() interceptor.BackoffKind { return b.kind }

// UnmarshalYAML maps the YAML string to the matching BackoffKind.
func (b *Backoff) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	switch name {
	case "", "exponential":
		b.kind = interceptor.BackoffExponential
	case "linear":
		b.kind = interceptor.BackoffLinear
	case "constant":
		b.kind = interceptor.BackoffConstant
	default:
		return fmt.Errorf("config: unknown backoff kind %q", name)
	}
	return nil
}

// Jitter decodes a jitter strategy name ("none", "full", "equal",
// "decorrelated") into interceptor.JitterKind.
type Jitter struct {
	kind interceptor.JitterKind
}

// Kind returns the decoded interceptor.JitterKind.
func (j Jitter) Kind() interceptor.JitterKind { return j.kind }

// UnmarshalYAML maps the YAML string to the matching JitterKind.
func (j *Jitter) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	switch name {
	case "", "none":
		j.kind = interceptor.JitterNone
	case "full":
		j.kind = interceptor.JitterFull
	case "equal":
		j.kind = interceptor.JitterEqual
	case "decorrelated":
		j.kind = interceptor.JitterDecorrelated
	default:
		return fmt.Errorf("config: unknown jitter kind %q", name)
	}
	return nil
}
