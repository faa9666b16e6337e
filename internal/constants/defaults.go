package constants

import "time"

// Default request/response API values
const (
	DefaultAPITimeoutSec         = 15
	DefaultMessagesPage          = 1
	DefaultBootstrapFetchRetries = 3
)

// Default event-stream values
const (
	DefaultDisconnectGraceSec  = 5
	DefaultReconnectInitialMs  = 500
	DefaultReconnectMaxSec     = 30
	DefaultReconnectMultiplier = 2.0
)

// Presence and typing windows
const (
	TypingQuietPeriod    = 2 * time.Second
	TypingIndicatorTTL   = 5 * time.Second
	RecentlyActiveWindow = 5 * time.Minute
)

// Default daemon values
const (
	DefaultStatusPort            = 8074
	DefaultGracefulShutdownSec   = 10
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
)

// TempIDPrefix marks a client-generated message identity that has not yet
// been confirmed by the server.
const TempIDPrefix = "temp-"
