/*
Package config provides type-safe configuration extraction from map[string]any.

Config wraps a decoded YAML or JSON document and exposes typed accessors that
fall back to a default on missing keys or type mismatches. Queue policies and
simulator scenarios are read through it.

# Basic Usage

	cfg := config.New(map[string]any{
	    "min_gap":   "100ms",
	    "recurring": 0.2,
	    "dedupe":    true,
	})

	gap := cfg.Seconds("min_gap", 0)     // 0.1
	every := cfg.Seconds("recurring", 0) // 0.2
	dedupe := cfg.Bool("dedupe", false)  // true

# Type Coercion

Duration and Seconds accept:
  - string: parsed with time.ParseDuration ("30s", "1h30m")
  - int/float64: interpreted as seconds
  - time.Duration: used directly

Int converts a float64 only when it has no fractional part.

# Nested Documents

Sub returns a nested map as a Config and List returns a list of maps:

	for _, q := range cfg.List("queues") {
	    name := q.String("event", "")
	    policy := q.Sub("policy")
	}

# File Loading

	cfg, err := config.FromFile("scenario.yaml")

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
