package config

import (
	"sort"
	"strings"
	"time"
)

// Config wraps a nested map[string]any for typed, defaulted lookups.
// Keys may be dotted paths ("queue.capacity") that descend into nested maps.
// Every accessor returns its default when the path is missing or the value
// cannot be converted.
type Config struct {
	data map[string]any
}

// New creates a Config from the given map.
// If data is nil, an empty Config is returned.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// lookup resolves a dotted path. A literal key containing dots wins over
// descent, so flat maps keep working.
func (c Config) lookup(path string) (any, bool) {
	if v, ok := c.data[path]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}
	child, ok := asMap(c.data[head])
	if !ok {
		return nil, false
	}
	return Config{data: child}.lookup(rest)
}

// asMap accepts both decoded shapes of a nested object.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

// Sub returns the nested section at path, or an empty Config.
func (c Config) Sub(path string) Config {
	v, ok := c.lookup(path)
	if !ok {
		return New(nil)
	}
	m, ok := asMap(v)
	if !ok {
		return New(nil)
	}
	return New(m)
}

// String returns the string value at path, or defaultVal.
func (c Config) String(path, defaultVal string) string {
	if s, ok := c.get(path).(string); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration at path, or defaultVal.
//
// Accepts:
//   - string: parsed with time.ParseDuration ("250ms", "1m")
//   - int, int64, whole float64: interpreted as seconds
//   - time.Duration: used directly
func (c Config) Duration(path string, defaultVal time.Duration) time.Duration {
	return c.duration(path, time.Second, defaultVal)
}

// Millis is Duration with bare numbers read as milliseconds, for keys
// such as "retry_base_delay_ms".
func (c Config) Millis(path string, defaultVal time.Duration) time.Duration {
	return c.duration(path, time.Millisecond, defaultVal)
}

func (c Config) duration(path string, unit time.Duration, defaultVal time.Duration) time.Duration {
	switch val := c.get(path).(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case float64:
		return time.Duration(val * float64(unit))
	case int:
		return time.Duration(val) * unit
	case int64:
		return time.Duration(val) * unit
	case time.Duration:
		return val
	}
	return defaultVal
}

// Bool returns the boolean at path, or defaultVal.
func (c Config) Bool(path string, defaultVal bool) bool {
	if b, ok := c.get(path).(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer at path, or defaultVal. A float64 converts only
// when it has no fractional part.
func (c Config) Int(path string, defaultVal int) int {
	switch val := c.get(path).(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float64 at path, or defaultVal.
func (c Config) Float(path string, defaultVal float64) float64 {
	switch val := c.get(path).(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// StringSlice returns the string list at path, or defaultVal if any
// element is not a string.
func (c Config) StringSlice(path string, defaultVal []string) []string {
	switch val := c.get(path).(type) {
	case []string:
		return val
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			result = append(result, s)
		}
		return result
	}
	return defaultVal
}

// Has returns true if path resolves to a value.
func (c Config) Has(path string) bool {
	_, ok := c.lookup(path)
	return ok
}

// Keys returns the top-level keys, sorted.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Raw returns the underlying map.
// The returned map should not be modified.
func (c Config) Raw() map[string]any {
	return c.data
}

func (c Config) get(path string) any {
	v, _ := c.lookup(path)
	return v
}
