package values

import (
	"fmt"
	"sort"

	"github.com/ValentinKolb/dSettings/rpc/common"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, ok, err := instance.GetValue(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, found=%t, value=%s\n", key, ok, formatValue(value))
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Long:  "Sets the value for a key. Values are parsed as JSON (numbers, booleans, lists, objects) and fall back to plain strings.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := instance.SetValue(cmd.Context(), args[0], parseValue(args[1])); err != nil {
				return err
			}
			return save(cmd, "set successfully")
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := instance.SetValue(cmd.Context(), args[0], nil); err != nil {
				return err
			}
			return save(cmd, "delete successfully")
		},
	}
	renameCmd = &cobra.Command{
		Use:   "rename [from] [to]",
		Short: "Moves the value of a key to a new key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := instance.KeyWasChanged(cmd.Context(), args[0], args[1], nil, nil); err != nil {
				return err
			}
			return save(cmd, "rename successfully")
		},
	}
	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Replaces all values with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := instance.ResetToDefaults(cmd.Context()); err != nil {
				return err
			}
			return save(cmd, "reset successfully")
		},
	}
	fetchCmd = &cobra.Command{
		Use:   "fetch [key]",
		Short: "Reads a key from every backend and prints the majority value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, ok, err := instance.FetchValueFromPersistors(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key=%s, found=%t, value=%s\n", key, ok, formatValue(value))
			return nil
		},
	}
	saveCmd = &cobra.Command{
		Use:   "save",
		Short: "Saves all backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return save(cmd, "save successfully")
		},
	}
	dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Prints the instance, its values and its change log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dump, err := instance.Dump(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, dump)

			if withStats, _ := cmd.Flags().GetBool("stats"); withStats {
				stats := instance.Stats()
				names := make([]string, 0, len(stats))
				for name := range stats {
					names = append(names, name)
				}
				sort.Strings(names)
				fmt.Fprintf(out, "  stats: %d metric(s)\n", len(names))
				for _, name := range names {
					fmt.Fprintf(out, "  stat: %-28s %d\n", name, stats[name])
				}
			}
			return nil
		},
	}
)

func init() {
	dumpCmd.Flags().Bool("stats", false, "Also print the counters and timers of the instance")
}

// save persists every backend and reports the number of saved values
func save(cmd *cobra.Command, msg string) error {
	n, err := instance.Save(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d value(s) saved)\n", msg, n)
	return nil
}

// parseValue reads a command line argument as JSON and falls back to the
// raw string
func parseValue(arg string) any {
	if v, err := common.DecodeValue([]byte(arg)); err == nil && v != nil {
		return v
	}
	return arg
}

func formatValue(v any) string {
	b, err := common.EncodeValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if b == nil {
		return "null"
	}
	return string(b)
}
