package constants

import "time"

const (
	// Reconciliation cadence of the watch daemon
	DefaultSyncInterval = 15 * time.Second
	// Debounce window for local store change events
	DefaultWatchDebounce = 250 * time.Millisecond
	// Delay before re-verifying the remote after the platform reports connectivity
	DefaultRecheckDelay = 1 * time.Second
	// Interval of the TCP reachability probe
	DefaultProbeInterval = 5 * time.Second
	// Timeout of a single probe dial
	DefaultProbeTimeout = 3 * time.Second
	// HTTP timeout of remote calls
	DefaultRequestTimeout = 30 * time.Second
)
