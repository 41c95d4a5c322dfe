package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/dSettings/lib/logging"
	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/ValentinKolb/dSettings/rpc/common"
	"github.com/ValentinKolb/dSettings/rpc/serializer"
	"github.com/ValentinKolb/dSettings/rpc/transport"
	"github.com/ValentinKolb/dSettings/rpc/transport/http"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is prepended to every environment variable (DSETTINGS_<flag>)
	EnvPrefix = "dsettings"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// InitConfig loads .env files, environment variables and the optional config
// file into viper. Flags are bound later by BindCommandFlags and take
// precedence over all of them.
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Printf("Error reading config file %s: %v\n", file, err)
		}
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupSettingsFlags adds the flags of the process-wide settings
// configuration to a command
func SetupSettingsFlags(cmd *cobra.Command) {
	d := settings.DefaultConfig()

	key := "delimiter"
	cmd.PersistentFlags().String(key, d.Delimiter, WrapString("Separator between the category segments of a key"))

	key = "orphan-category"
	cmd.PersistentFlags().String(key, d.OrphanCategory, WrapString("Category prefixed to keys that have none"))

	key = "max-changes"
	cmd.PersistentFlags().Int(key, d.MaxChanges, WrapString("Change log length above which an instance logs a warning"))

	key = "max-nesting"
	cmd.PersistentFlags().Int(key, d.MaxNesting, WrapString("Maximum depth of the category tree"))

	key = "naming"
	cmd.PersistentFlags().String(key, d.Naming.String(), WrapString("Naming convention applied to key segments (snake, camel, unchanged)"))

	key = "strict-keys"
	cmd.PersistentFlags().Bool(key, d.StrictKeys, WrapString("Reject keys without a category instead of moving them to the orphan category"))

	key = "boot-settle"
	cmd.PersistentFlags().Duration(key, d.BootSettle, WrapString("Time without new backends before an instance is ready"))
}

// ApplySettingsConfig configures the settings core from viper
func ApplySettingsConfig() error {
	naming, err := settings.ParseNamingConvention(viper.GetString("naming"))
	if err != nil {
		return err
	}

	d := settings.DefaultConfig()
	settings.Configure(settings.Config{
		Delimiter:       viper.GetString("delimiter"),
		OrphanCategory:  viper.GetString("orphan-category"),
		MaxChanges:      viper.GetInt("max-changes"),
		MaxNesting:      viper.GetInt("max-nesting"),
		Naming:          naming,
		LoadStandard:    false,
		StrictKeys:      viper.GetBool("strict-keys"),
		BootSettle:      viper.GetDuration("boot-settle"),
		BootRetryDelay:  d.BootRetryDelay,
		BootMaxAttempts: d.BootMaxAttempts,
	})
	return nil
}

// InitLogging sets the level of all package loggers
func InitLogging() error {
	return logging.InitLoggers(viper.GetString("log-level"))
}

// --------------------------------------------------------------------------
// RPC Client
// --------------------------------------------------------------------------

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the dSettings server. Multiple endpoints can be specified as a comma-separated list and are used round robin"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	var endpoints []string
	for _, e := range strings.Split(viper.GetString("transport-endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}

	return &common.ClientConfig{
		Endpoints:     endpoints,
		TimeoutSecond: viper.GetInt("timeout"),
		RetryCount:    viper.GetInt("transport-retries"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	name := viper.GetString("serializer")
	if name == "" {
		name = "json"
	}
	return serializer.ByName(name)
}

// GetTransport creates transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http", "":
		return http.NewHttpClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server side of the configured transport
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "http", "":
		return http.NewHttpServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return uint64(viper.GetInt("shard"))
}

// GetTimeout returns the client timeout as a duration
func GetTimeout() time.Duration {
	if sec := viper.GetInt("timeout"); sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return 10 * time.Second
}
