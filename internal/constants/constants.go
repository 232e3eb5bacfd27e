// Package constants provides shared configuration values used across the devmon application.
package constants

import "time"

// Configuration file defaults
const (
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "devmon.yaml"

	// DefaultAPIHost is the default host for the API server
	DefaultAPIHost = "127.0.0.1"

	// DefaultAPIPort is the default port for the API server
	DefaultAPIPort = 5560

	// DefaultAPIAddress is the default API address for client connections
	DefaultAPIAddress = "http://127.0.0.1:5560"
)

// Tool argument defaults
const (
	// DefaultServerName is used when a tool call omits the server name
	DefaultServerName = "default"

	// DefaultServerCommand is used when a tool call omits the command
	DefaultServerCommand = "npm run dev"

	// DefaultServerPort is the advisory port assumed for dev servers
	DefaultServerPort = 3000

	// DefaultLogLines is the default number of log lines returned by tools
	DefaultLogLines = 50
)

// Timeout and duration defaults
const (
	// StartConfirmWindow is how long start waits to distinguish an immediate
	// spawn failure from a successfully backgrounded server
	StartConfirmWindow = 1 * time.Second

	// StopGracePeriod is how long stop waits after signalling before the
	// entry is marked stopped regardless of the outcome
	StopGracePeriod = 2 * time.Second

	// RestartSettleDelay is the pause between stop and start during restart
	RestartSettleDelay = 500 * time.Millisecond

	// PortProbeTimeout bounds the TCP liveness probe used by check
	PortProbeTimeout = 500 * time.Millisecond

	// DefaultRequestTimeout is the default timeout for API requests
	DefaultRequestTimeout = 30 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

// Log buffer configuration
const (
	// DefaultLogBufferLines is the per-server bounded buffer capacity
	DefaultLogBufferLines = 500

	// DefaultLogChunkLimit is the maximum length of a single buffered chunk
	// before it is cut and suffixed with a truncation marker
	DefaultLogChunkLimit = 1000

	// PersistedLogLines is how many trailing log lines are written to the
	// state file per server
	PersistedLogLines = 10

	// MaxLogLines is the maximum number of log lines that can be requested
	// to prevent memory exhaustion (DoS protection)
	MaxLogLines = 10000

	// ScannerBufferSize is the initial buffer size for log line scanning
	ScannerBufferSize = 64 * 1024 // 64KB

	// ScannerMaxBufferSize is the maximum buffer size for log line scanning
	ScannerMaxBufferSize = 1024 * 1024 // 1MB
)

// Console log store configuration
const (
	// DefaultConsoleGroupCap is the per-(port|project) group entry cap
	DefaultConsoleGroupCap = 500

	// DefaultConsoleGlobalCap is the cap across all console log groups
	DefaultConsoleGlobalCap = 2000

	// DefaultConsoleQueryLimit is the default limit for console log queries
	DefaultConsoleQueryLimit = 100
)
