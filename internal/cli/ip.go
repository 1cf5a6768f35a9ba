package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nodectl/internal/publicip"
)

var ipCmd = &cobra.Command{
	Use:   "ip",
	Short: "Resolve the public IP address",
	Long: `Resolve the node's public IP address by asking several IP echo services
in parallel. The first valid answer wins; the command fails only when every
service fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg, err := resolverConfig(cmd)
		if err != nil {
			return err
		}

		answer, err := appInstance.ResolveIP(ctx, cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, answer.IP)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "  via %s in %d ms\n", answer.Service, answer.Elapsed.Milliseconds())
		}
		return nil
	},
}

var ipWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-resolve the public IP periodically",
	Long:  `Resolve the public IP on an interval, record every lookup and report changes until interrupted.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := resolverConfig(cmd)
		if err != nil {
			return err
		}

		interval, err := appInstance.WatchInterval()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("interval") {
			interval, _ = cmd.Flags().GetDuration("interval")
		}

		out := cmd.OutOrStdout()
		watcher, err := appInstance.NewWatcher(cfg, interval, func(previous, current string) {
			if previous == "" {
				fmt.Fprintf(out, "Public IP: %s\n", current)
				return
			}
			fmt.Fprintf(out, "Public IP changed: %s -> %s\n", previous, current)
		})
		if err != nil {
			return err
		}

		if err := watcher.Start(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching public IP every %s (Ctrl+C to stop)\n", interval)

		<-ctx.Done()
		return watcher.Stop()
	},
}

var ipHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show public IP lookup history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		limit, _ := cmd.Flags().GetInt("limit")

		history, err := appInstance.Storage.GetIPHistory(ctx, limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(history) == 0 {
			fmt.Fprintln(out, "No IP lookups recorded.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tADDRESS\tSERVICE\tELAPSED\tSTATUS")
		fmt.Fprintln(w, "----\t-------\t-------\t-------\t------")

		for _, entry := range history {
			timeStr := entry.ResolvedAt.Local().Format("2006-01-02 15:04:05")
			if !entry.Success {
				fmt.Fprintf(w, "%s\t-\t-\t-\tFAIL (%s)\n", timeStr, truncate(entry.ErrorMessage, 40))
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d ms\tOK\n",
				timeStr, entry.Address, entry.Service, entry.ElapsedMS)
		}
		return w.Flush()
	},
}

// resolverConfig reads resolver settings and applies the ip flags on top.
func resolverConfig(cmd *cobra.Command) (publicip.Config, error) {
	cfg, err := appInstance.ResolverConfig()
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if cmd.Flags().Changed("service") {
		cfg.Services, _ = cmd.Flags().GetStringSlice("service")
	}
	return cfg, nil
}

func init() {
	ipCmd.PersistentFlags().Duration("timeout", publicip.DefaultTimeout, "per-service timeout")
	ipCmd.PersistentFlags().StringSlice("service", nil, "IP echo service URL (repeatable)")

	ipWatchCmd.Flags().Duration("interval", 0, "lookup interval (default from settings, 5m)")
	ipHistoryCmd.Flags().IntP("limit", "n", 20, "number of history entries")

	ipCmd.AddCommand(ipWatchCmd)
	ipCmd.AddCommand(ipHistoryCmd)
	rootCmd.AddCommand(ipCmd)
}
