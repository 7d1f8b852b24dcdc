package module

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"conductor/internal/pkg/convert"
)

// Well-known configuration keys. Anything else lives in Params.
const (
	KeyAllocationLimit     = "allocation_limit"
	KeyConfidenceThreshold = "confidence_threshold"
	KeyMaxPositions        = "max_positions"
	KeyMaxPositionSize     = "max_position_size"
)

// Config is a module's live numeric configuration.
type Config struct {
	AllocationLimit     float64        `json:"allocation_limit"`
	ConfidenceThreshold float64        `json:"confidence_threshold"`
	MaxPositions        int            `json:"max_positions"`
	MaxPositionSize     float64        `json:"max_position_size"`
	Params              map[string]any `json:"params,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		AllocationLimit:     10000,
		ConfidenceThreshold: 0.6,
		MaxPositions:        5,
	}
}

func (c Config) Clone() Config {
	out := c
	if c.Params != nil {
		out.Params = maps.Clone(c.Params)
	}
	return out
}

// Value looks up a well-known field or a custom parameter by name.
func (c Config) Value(name string) (any, bool) {
	switch name {
	case KeyAllocationLimit:
		return c.AllocationLimit, true
	case KeyConfidenceThreshold:
		return c.ConfidenceThreshold, true
	case KeyMaxPositions:
		return float64(c.MaxPositions), true
	case KeyMaxPositionSize:
		return c.MaxPositionSize, true
	}
	v, ok := c.Params[name]
	return v, ok
}

// Set writes a single value. Well-known fields must be numeric and in range.
func (c *Config) Set(name string, value any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("config key cannot be empty")
	}
	switch name {
	case KeyAllocationLimit, KeyConfidenceThreshold, KeyMaxPositions, KeyMaxPositionSize:
		f, ok := convert.ToFloat64(value)
		if !ok {
			return fmt.Errorf("%s must be numeric, got %v", name, value)
		}
		if f < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
		switch name {
		case KeyAllocationLimit:
			c.AllocationLimit = f
		case KeyConfidenceThreshold:
			if f > 1 {
				return fmt.Errorf("%s must be in [0,1]", name)
			}
			c.ConfidenceThreshold = f
		case KeyMaxPositions:
			c.MaxPositions = int(f)
		case KeyMaxPositionSize:
			c.MaxPositionSize = f
		}
		return nil
	}
	switch value.(type) {
	case nil:
		delete(c.Params, name)
		return nil
	case map[string]any, []any:
		return fmt.Errorf("param %s: only numbers, strings and booleans are supported", name)
	}
	if c.Params == nil {
		c.Params = make(map[string]any)
	}
	c.Params[name] = convert.Normalize(value)
	return nil
}

// Merge applies every value or none of them.
func (c *Config) Merge(values map[string]any) error {
	next := c.Clone()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := next.Set(k, values[k]); err != nil {
			return err
		}
	}
	*c = next
	return nil
}

// Flatten returns well-known fields and custom params in a single map, the
// shape persisted alongside trades and read back by the optimizer.
func (c Config) Flatten() map[string]any {
	out := make(map[string]any, len(c.Params)+4)
	for k, v := range c.Params {
		out[k] = v
	}
	out[KeyAllocationLimit] = c.AllocationLimit
	out[KeyConfidenceThreshold] = c.ConfidenceThreshold
	out[KeyMaxPositions] = float64(c.MaxPositions)
	out[KeyMaxPositionSize] = c.MaxPositionSize
	return out
}
