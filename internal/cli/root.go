package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nodectl/internal/app"
	"nodectl/internal/envfile"
	"nodectl/internal/logger"
)

var (
	appInstance *app.App
	version     = "dev"
)

// skipApp marks commands that run without the database.
const skipApp = "skipApp"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nodectl",
	Short: "Node-side toolbox for the node manager",
	Long: `nodectl - node-side toolbox for the node manager

  Inspect and exercise the node from your terminal.

  Quick start:
    nodectl storage-dir
    nodectl ip
    nodectl speedtest
    nodectl tui

  Core features:
    • Storage directory resolution from env, .env, config file and database
    • Bounded speed test against Cloudflare (latency, download, upload)
    • Public IP resolution racing several echo services
    • Periodic IP watch with history`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger.SetVerbose(verbose)

		levelChanged := cmd.Flags().Changed("log-level")
		if levelChanged {
			level, _ := cmd.Flags().GetString("log-level")
			if err := logger.SetLevel(level); err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
		}

		if cmd.Annotations[skipApp] != "" {
			return nil
		}
		if err := initApp(cmd); err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		// Export .env variables (proxy settings among them) to this process.
		applied, err := envfile.Apply(appInstance.Env)
		if err != nil {
			return err
		}
		if len(applied) > 0 {
			logger.Debug("exported from %s: %s", appInstance.Config.EnvFile, strings.Join(applied, ", "))
		}

		if !levelChanged && !verbose {
			if level, ok := appInstance.Settings.Get(app.KeyLogLevel); ok {
				if err := logger.SetLevel(level); err != nil {
					logger.Warn("ignoring %s=%q: %v", app.KeyLogLevel, level, err)
				}
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		// Cleanup
		if appInstance != nil {
			err := appInstance.Close()
			appInstance = nil
			return err
		}
		return nil
	},
}

func initApp(cmd *cobra.Command) error {
	if appInstance != nil {
		return nil
	}
	opts := app.Options{}
	opts.ConfigPath, _ = cmd.Flags().GetString("config")
	opts.DBPath, _ = cmd.Flags().GetString("db")
	opts.EnvFile, _ = cmd.Flags().GetString("env-file")

	var err error
	appInstance, err = app.New(opts)
	return err
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "settings file (.toml, .yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "", "database path")
	rootCmd.PersistentFlags().String("env-file", "", "path to the .env file (default ./.env)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{skipApp: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nodectl %s\n", version)
	},
}
