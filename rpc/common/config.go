package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerShardType string

const (
	ShardTypeMemory ServerShardType = "memory" // values live in the server process
	ShardTypeFile   ServerShardType = "file"   // values are kept in a JSON, YAML or TOML file
	ShardTypeStore  ServerShardType = "store"  // values are kept in a local key-value store
)

// ParseShardType converts a name into a ServerShardType.
func ParseShardType(s string) (ServerShardType, error) {
	switch t := ServerShardType(strings.ToLower(strings.TrimSpace(s))); t {
	case ShardTypeMemory, ShardTypeFile, ShardTypeStore:
		return t, nil
	default:
		return "", fmt.Errorf("invalid shard type %q (use memory, file or store)", s)
	}
}

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type selects the backend of the shard
	Type ServerShardType
	// Path is the settings file of a file shard or the snapshot file of a
	// store shard (optional)
	Path string
}

// TransportConfig holds the network settings of the server transport.
type TransportConfig struct {
	// Endpoint is the address the server listens on
	Endpoint string
	// TimeoutSecond bounds reading a request and writing the response
	TimeoutSecond int64
}

// ServerConfig holds all configuration parameters for the RPC server.
type ServerConfig struct {
	// Shards served by this server
	Shards []ServerShard

	// Network settings
	Transport TransportConfig

	// SaveOnShutdown persists all shards when the server stops
	SaveOnShutdown bool

	// Logging configuration
	LogLevel string
}

// Validate checks the configuration for missing or duplicate settings.
func (c *ServerConfig) Validate() error {
	if c.Transport.Endpoint == "" {
		return fmt.Errorf("no endpoint configured")
	}
	if len(c.Shards) == 0 {
		return fmt.Errorf("no shards configured")
	}
	seen := make(map[uint64]bool, len(c.Shards))
	for _, shard := range c.Shards {
		if seen[shard.ShardID] {
			return fmt.Errorf("shard %d configured twice", shard.ShardID)
		}
		seen[shard.ShardID] = true
		if _, err := ParseShardType(string(shard.Type)); err != nil {
			return fmt.Errorf("shard %d: %w", shard.ShardID, err)
		}
		if shard.Type == ShardTypeFile && shard.Path == "" {
			return fmt.Errorf("shard %d: file shards need a path", shard.ShardID)
		}
	}
	return nil
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

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.Transport.TimeoutSecond))
	addField("Save On Shutdown", strconv.FormatBool(c.SaveOnShutdown))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		desc := string(shard.Type)
		if shard.Path != "" {
			desc += " (" + shard.Path + ")"
		}
		addField(strconv.FormatUint(shard.ShardID, 10), desc)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
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

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(max(1, c.RetryCount)))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
