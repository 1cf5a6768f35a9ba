package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nodectl/internal/app"
	pkgerrors "nodectl/pkg/errors"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persisted settings",
	Long: `Show and change settings.

Values are resolved from, highest priority first: NODECTL_* environment
variables, the .env file, the settings file, the database, then defaults.
"set" and "unset" change the database layer only.`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := appInstance.Settings.Keys()
		out := cmd.OutOrStdout()
		if len(keys) == 0 {
			fmt.Fprintln(out, "No settings.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintln(w, "---\t-----")
		for _, key := range keys {
			value, _ := appInstance.Settings.Get(key)
			fmt.Fprintf(w, "%s\t%s\n", key, value)
		}
		return w.Flush()
	},
}

var settingsGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Print the effective value of a setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		value, ok := appInstance.Settings.Get(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", pkgerrors.ErrSettingNotFound, args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:               "set <key> <value>",
	Short:             "Persist a setting",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if err := appInstance.Storage.SetSetting(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to save setting: %w", err)
		}
		if err := appInstance.Reload(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s = %s\n", args[0], args[1])
		if origin := appInstance.SettingOrigin(args[0]); origin != app.LayerDatabase {
			effective, _ := appInstance.Settings.Get(args[0])
			fmt.Fprintf(out, "note: overridden by the %s layer, effective value is %q\n", origin, effective)
		}
		return nil
	},
}

var settingsUnsetCmd = &cobra.Command{
	Use:               "unset <key>",
	Short:             "Remove a persisted setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if err := appInstance.Storage.DeleteSetting(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to remove setting: %w", err)
		}
		if err := appInstance.Reload(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "removed %s\n", args[0])
		if effective, ok := appInstance.Settings.Get(args[0]); ok {
			fmt.Fprintf(out, "note: still set by the %s layer, effective value is %q\n",
				appInstance.SettingOrigin(args[0]), effective)
		}
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsUnsetCmd)
	rootCmd.AddCommand(settingsCmd)
}
