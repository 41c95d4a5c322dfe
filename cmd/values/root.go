package values

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dSettings/cmd/util"
	"github.com/ValentinKolb/dSettings/lib/persist/defaults"
	"github.com/ValentinKolb/dSettings/lib/persist/file"
	"github.com/ValentinKolb/dSettings/lib/settings"
	"github.com/ValentinKolb/dSettings/rpc/client"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cmd")

var (
	instance *settings.Settings
	closers  []func() error

	// ValueCommands represents the values command group
	ValueCommands = &cobra.Command{
		Use:   "values",
		Short: "Read and change settings values",
		Long: `Read and change the values of a settings instance. The instance is
assembled from the given backends: settings files (--file), a remote shard
(--remote) and an optional defaults file (--defaults). Changes are mirrored
into every backend and saved before the command returns.`,
		PersistentPreRunE:  setupInstance,
		PersistentPostRunE: closeInstance,
	}
)

func init() {
	// Add common RPC flags to the values command
	util.SetupRPCClientFlags(ValueCommands)
	util.SetupSettingsFlags(ValueCommands)

	key := "file"
	ValueCommands.PersistentFlags().StringSlice(key, nil, util.WrapString("Settings file used as backend (json, yaml, yml or toml). Can be given multiple times"))

	key = "remote"
	ValueCommands.PersistentFlags().Bool(key, false, util.WrapString("Attach the shard of the dSettings server as backend"))

	key = "shard"
	ValueCommands.PersistentFlags().Int(key, 1, util.WrapString("ID of the shard to connect to"))

	key = "defaults"
	ValueCommands.PersistentFlags().String(key, "", util.WrapString("File holding the default values used by reset"))

	key = "instance"
	ValueCommands.PersistentFlags().String(key, "cli", util.WrapString("Name of the settings instance"))

	// Add subcommands
	ValueCommands.AddCommand(getCmd)
	ValueCommands.AddCommand(setCmd)
	ValueCommands.AddCommand(delCmd)
	ValueCommands.AddCommand(renameCmd)
	ValueCommands.AddCommand(resetCmd)
	ValueCommands.AddCommand(fetchCmd)
	ValueCommands.AddCommand(saveCmd)
	ValueCommands.AddCommand(dumpCmd)
}

// setupInstance builds the settings instance from the configured backends
// and waits until it is ready
func setupInstance(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}
	if err := util.ApplySettingsConfig(); err != nil {
		return err
	}

	var opts settings.Options
	opts.RequirePersistors = true

	for _, path := range viper.GetStringSlice("file") {
		p, err := file.New(path, nil)
		if err != nil {
			return err
		}
		opts.Persistors = append(opts.Persistors, p)
	}

	if viper.GetBool("remote") {
		s, err := util.GetSerializer()
		if err != nil {
			return err
		}
		t, err := util.GetTransport()
		if err != nil {
			return err
		}
		p, err := client.NewRPCPersistor(util.GetShardID(), *util.GetClientConfig(), t, s)
		if err != nil {
			return err
		}
		closers = append(closers, p.Close)
		opts.Persistors = append(opts.Persistors, p)
	}

	if path := viper.GetString("defaults"); path != "" {
		d, err := defaults.FromFile(path)
		if err != nil {
			return err
		}
		opts.Defaults = d
	}

	if len(opts.Persistors) == 0 {
		return fmt.Errorf("no backend configured (use --file or --remote)")
	}

	inst, err := settings.New(viper.GetString("instance"), opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), util.GetTimeout())
	defer cancel()
	if err := inst.WaitReady(ctx); err != nil {
		return err
	}

	Logger.Debugf("instance %q ready with %d backend(s)", inst.Name(), len(opts.Persistors))
	instance = inst
	return nil
}

// closeInstance releases the transports of remote backends
func closeInstance(_ *cobra.Command, _ []string) error {
	var firstErr error
	for _, c := range closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	closers = nil
	instance = nil
	return firstErr
}
