// Package tfutils maps candle interval codes to durations.
package tfutils

import (
	"fmt"
	"time"
)

// DefaultInterval is used whenever an interval code is not recognized.
const DefaultInterval = "1m"

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseInterval parses an interval code (e.g., "5m", "1h") to time.Duration
func ParseInterval(interval string) (time.Duration, error) {
	d, ok := intervals[interval]
	if !ok {
		return 0, fmt.Errorf("unsupported interval: %q", interval)
	}
	return d, nil
}

// IntervalDuration returns the duration for interval, falling back to one minute
// for unknown codes.
func IntervalDuration(interval string) time.Duration {
	if d, ok := intervals[interval]; ok {
		return d
	}
	return intervals[DefaultInterval]
}

// IntervalMillis is IntervalDuration expressed in milliseconds.
func IntervalMillis(interval string) int64 {
	return IntervalDuration(interval).Milliseconds()
}

// SupportedIntervals returns all supported interval codes, shortest first
func SupportedIntervals() []string {
	return []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}
}

// IsValidInterval checks if an interval code is supported
func IsValidInterval(interval string) bool {
	_, ok := intervals[interval]
	return ok
}
