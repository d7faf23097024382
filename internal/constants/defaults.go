// Package constants provides common constants used across the telemetry project.
package constants

import "time"

const (
	// DefaultReachabilityTimeout bounds a single connectivity probe dial.
	DefaultReachabilityTimeout = 4 * time.Second
	// DefaultShutdownTimeout is the default timeout for shutdown operations.
	DefaultShutdownTimeout = 30 * time.Second
)
