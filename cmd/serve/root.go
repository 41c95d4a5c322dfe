package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dSettings/cmd/util"
	"github.com/ValentinKolb/dSettings/rpc/common"
	"github.com/ValentinKolb/dSettings/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dSettings server",
		Long:    `Start the dSettings server with the specified configuration. Every shard hosts one settings backend that clients attach as a remote persistor. The configuration can be set via command line flags, a config file or environment variables. The format of the environment variables is DSETTINGS_<flag> (e.g. DSETTINGS_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "1=memory", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TYPE or ID=TYPE(PATH) where TYPE is one of: memory, file(settings.yaml), store or store(snapshot.json)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for reading a request and writing its response"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080)"))

	key = "save-on-shutdown"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to save all file and store shards when the server stops"))
}

// ParseShards parses a comma-separated list of shard definitions in the
// format ID=TYPE or ID=TYPE(PATH)
func ParseShards(s string) ([]common.ServerShard, error) {
	var shards []common.ServerShard
	for _, shardConfig := range strings.Split(s, ",") {
		shardConfig = strings.TrimSpace(shardConfig)
		if shardConfig == "" {
			continue
		}
		parts := strings.SplitN(shardConfig, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		// Parse shard ID
		shardID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %v", parts[0], err)
		}

		// Parse shard type and optional path
		typeName, path := strings.TrimSpace(parts[1]), ""
		if open := strings.Index(typeName, "("); open >= 0 {
			if !strings.HasSuffix(typeName, ")") {
				return nil, fmt.Errorf("invalid shard type: %s (missing closing parenthesis)", typeName)
			}
			path = strings.TrimSpace(typeName[open+1 : len(typeName)-1])
			typeName = typeName[:open]
		}
		shardType, err := common.ParseShardType(typeName)
		if err != nil {
			return nil, err
		}

		shards = append(shards, common.ServerShard{
			ShardID: shardID,
			Type:    shardType,
			Path:    path,
		})
	}
	return shards, nil
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	shards, err := ParseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}

	serveCmdConfig.Shards = shards
	serveCmdConfig.Transport = common.TransportConfig{
		Endpoint:      viper.GetString("endpoint"),
		TimeoutSecond: viper.GetInt64("timeout"),
	}
	serveCmdConfig.SaveOnShutdown = viper.GetBool("save-on-shutdown")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if err := cmdUtil.InitLogging(); err != nil {
		return err
	}
	return serveCmdConfig.Validate()
}

// run starts the dSettings server and blocks until SIGINT or SIGTERM
func run(cmd *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serv.Serve(ctx)
}
