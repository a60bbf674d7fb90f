package realtime

import "time"

// Transport limits.
const (
	// Max bytes per websocket frame read (hard limit). History replies can be large.
	maxFrameBytes = 1 << 20 // 1 MiB
)

const (
	// Reconnect policy defaults.
	defaultMaxRetries = 5
	defaultRetryDelay = 1 * time.Second

	defaultConnectTimeout = 20 * time.Second
	defaultWriteTimeout   = 5 * time.Second

	// Heartbeat defaults (can be overridden by env).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
	maxPingFailures   = 3
)
