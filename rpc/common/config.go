package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig holds the transport-level settings of the server.
type ServerTransportConfig struct {
	// Endpoint is the listen address (host:port for tcp, a socket path
	// for unix)
	Endpoint string
	// TCPNoDelay disables Nagle's algorithm on TCP connections
	TCPNoDelay bool
	// WriteBufferSize sets the socket write buffer size in bytes (0 = OS default)
	WriteBufferSize int
	// ReadBufferSize sets the socket read buffer size in bytes (0 = OS default)
	ReadBufferSize int
	// TCPKeepAliveSec enables TCP keep-alive with the given period (0 = disabled)
	TCPKeepAliveSec int
	// MaxWorkersPerConn limits concurrent request workers per connection
	MaxWorkersPerConn int
	// BufferSize is the per-request read buffer size in bytes
	BufferSize int
}

// ServerConfig holds all configuration parameters for the database server.
type ServerConfig struct {
	// DataDir is the directory holding the served databases, one
	// subdirectory per database
	DataDir string

	// UsersFile is the path of the user registry
	UsersFile string

	// AdminUser and AdminPassword bootstrap the user registry when the
	// users file does not exist yet
	AdminUser     string
	AdminPassword string

	// MetricsEndpoint, when set, serves Prometheus metrics on this
	// address under /metrics
	MetricsEndpoint string

	// Serializer names the wire encoding (json, gob, binary, bson)
	Serializer string

	// TimeoutSecond is the per-request read/write deadline
	TimeoutSecond int64

	// Transport settings
	Transport ServerTransportConfig

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Serializer", c.Serializer)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.MaxWorkersPerConn))

	addSection("Storage")
	addField("Data Directory", c.DataDir)
	addField("Users File", c.UsersFile)

	if c.MetricsEndpoint != "" {
		addSection("Metrics")
		addField("Endpoint", c.MetricsEndpoint)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the transport-level settings of the client.
type ClientTransportConfig struct {
	// Endpoints lists the server addresses; requests are distributed
	// round robin
	Endpoints []string
	// ConnectionsPerEndpoint opens this many connections per endpoint
	ConnectionsPerEndpoint int
	// RetryCount is the number of send attempts before giving up
	RetryCount int
	// TCPNoDelay disables Nagle's algorithm on TCP connections
	TCPNoDelay bool
	// WriteBufferSize sets the socket write buffer size in bytes (0 = OS default)
	WriteBufferSize int
	// ReadBufferSize sets the socket read buffer size in bytes (0 = OS default)
	ReadBufferSize int
}

// ClientConfig holds all configuration parameters for the database client.
type ClientConfig struct {
	// Serializer names the wire encoding; must match the server
	Serializer string

	// TimeoutSecond is the per-request deadline
	TimeoutSecond int64

	// Transport settings
	Transport ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Serializer", c.Serializer)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
