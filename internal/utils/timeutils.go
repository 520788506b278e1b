package utils

import "time"

// MetricsWindow is the lookback used for every metrics and entity query.
const MetricsWindow = time.Hour

// FromUnixMillis converts an epoch-millisecond timestamp into UTC time.
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// WindowMillis returns MetricsWindow in milliseconds, the unit the upstream API expects.
func WindowMillis() int64 {
	return MetricsWindow.Milliseconds()
}
