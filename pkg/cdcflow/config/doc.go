/*
Package config provides typed lookups over decoded YAML or JSON documents.

# Overview

Config wraps a nested map[string]any. Lookups take dotted paths and return
a caller-supplied default when the path is missing or holds the wrong type,
so reading an engine file needs no type assertions:

	cfg, err := config.FromFile("cdcflow.yaml")
	if err != nil {
	    return err
	}

	capacity := cfg.Int("queue.capacity", 1024)
	strategy := cfg.String("queue.backpressure", "block")
	base := cfg.Millis("dispatcher.retry_base_delay_ms", 100*time.Millisecond)
	names := cfg.StringSlice("dispatcher.middleware", nil)

Sub narrows to a section:

	dispatcher := cfg.Sub("dispatcher")
	retries := dispatcher.Int("max_retries", 3)

# Type Coercion

Duration reads bare numbers as seconds and Millis reads them as
milliseconds; both parse strings with time.ParseDuration.

Int accepts int, int64 and whole float64 values (JSON numbers decode as
float64).

# Environment

FromFile expands ${VAR} references before parsing, so secrets and
per-host values can stay out of the file.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
