package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration string. Empty means zero.
// path is only used to label errors (e.g. "http.timeout").
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// HTTPTimeout returns the parsed http.timeout (0 = disabled).
func (c *Config) HTTPTimeout() time.Duration {
	d, _ := ParseDurationField("http.timeout", c.HTTP.Timeout)
	return d
}
