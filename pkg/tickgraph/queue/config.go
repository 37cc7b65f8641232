package queue

import (
	"github.com/randalmurphal/tickgraph/pkg/tickgraph/config"
)

// ConfigFrom reads a queue policy from a config section.
//
// Keys:
//   - min_gap: duration or seconds (default 0)
//   - recurring: duration or seconds, 0 for one-shot (default 0)
//   - dedupe: bool (default false)
func ConfigFrom(c config.Config) QueueConfig {
	return QueueConfig{
		MinGap:    c.Seconds("min_gap", 0),
		Recurring: c.Seconds("recurring", 0),
		Dedupe:    c.Bool("dedupe", false),
	}
}
