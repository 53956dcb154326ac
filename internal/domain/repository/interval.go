package repository

import "time"

// Interval represents kline resolution buckets as the exchange names them.
type Interval string

const (
	IV1m  Interval = "1m"
	IV5m  Interval = "5m"
	IV15m Interval = "15m"
	IV30m Interval = "30m"
	IV1h  Interval = "1h"
	IV4h  Interval = "4h"
	IV1d  Interval = "1d"
	IV1w  Interval = "1w"
)

var intervalDurations = map[Interval]time.Duration{
	IV1m:  time.Minute,
	IV5m:  5 * time.Minute,
	IV15m: 15 * time.Minute,
	IV30m: 30 * time.Minute,
	IV1h:  time.Hour,
	IV4h:  4 * time.Hour,
	IV1d:  24 * time.Hour,
	IV1w:  7 * 24 * time.Hour,
}

// Cache TTL per interval for the gateway's kline cache. Short intervals
// refresh often, long intervals are cheap to keep around.
var intervalCacheTTL = map[Interval]time.Duration{
	IV1m:  60 * time.Second,
	IV5m:  300 * time.Second,
	IV15m: 600 * time.Second,
	IV30m: 600 * time.Second,
	IV1h:  1800 * time.Second,
	IV4h:  3600 * time.Second,
	IV1d:  3600 * time.Second,
	IV1w:  3600 * time.Second,
}

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	_, ok := intervalDurations[iv]
	return ok
}

// DefaultInterval returns the default interval.
func DefaultInterval() Interval { return IV1h }

// NormalizeInterval converts a raw string to a valid interval (or default).
func NormalizeInterval(s string) Interval {
	if s == "" {
		return DefaultInterval()
	}
	iv := Interval(s)
	if IsValidInterval(iv) {
		return iv
	}
	return DefaultInterval()
}

// IntervalDuration returns the bucket width of iv.
func IntervalDuration(iv Interval) time.Duration {
	if d, ok := intervalDurations[iv]; ok {
		return d
	}
	return time.Hour
}

// IntervalCacheTTL returns how long cached klines for iv stay fresh.
func IntervalCacheTTL(iv Interval) time.Duration {
	if ttl, ok := intervalCacheTTL[iv]; ok {
		return ttl
	}
	return 600 * time.Second
}
