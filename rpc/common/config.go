package common

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Wire constants shared by both dialects
// --------------------------------------------------------------------------

// NoExpiration is the on-wire sentinel for "this record never expires".
const NoExpiration int64 = 0x7FFFFFFFFFFFFFFF

// ExpireOnWire maps a caller-supplied seconds-from-now expiration onto the
// wire representation. Zero or negative means no expiration.
func ExpireOnWire(xt int64) int64 {
	if xt <= 0 {
		return NoExpiration
	}
	return xt
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all construction parameters shared by both protocol
// engines. The zero value is not usable; start from DefaultClientConfig.
type ClientConfig struct {
	// TCP endpoint of the server
	Host string
	Port int

	// Per-socket receive timeout in seconds, 0 disables
	TimeoutSecond int

	// Whether to set TCP_NODELAY on new sockets
	TCPNoDelay bool

	// Whether checked-in sockets return to the idle pool. When false each
	// caller keeps one persistent socket for the client's lifetime.
	Pooling bool

	// Database index used when a call omits one (multi-database dialect only)
	DefaultDB uint16

	// Name of the value serializer (see the serializer package)
	Serializer string
}

// DefaultClientConfig returns the canonical defaults: localhost:1978, text
// values, pooling enabled, TCP_NODELAY on, no receive timeout.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:       "127.0.0.1",
		Port:       1978,
		TCPNoDelay: true,
		Pooling:    true,
		Serializer: "text",
	}
}

// Endpoint returns the host:port dial target
func (c *ClientConfig) Endpoint() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// String returns a formatted string representation of the configuration
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
	addField("Endpoint", c.Endpoint())
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("TCP NoDelay", fmt.Sprintf("%t", c.TCPNoDelay))
	addField("Pooling", fmt.Sprintf("%t", c.Pooling))
	addField("Default DB", strconv.Itoa(int(c.DefaultDB)))
	addField("Serializer", c.Serializer)

	return sb.String()
}
