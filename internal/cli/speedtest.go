package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"nodectl/internal/speedtest"
)

var speedtestCmd = &cobra.Command{
	Use:   "speedtest",
	Short: "Measure latency and bandwidth",
	Long: `Measure unloaded latency, download and upload bandwidth against a
Cloudflare speed test server.

The whole run is bounded by --max-time. A phase that runs out of time reports
what it measured so far; request and server errors abort the run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg, err := appInstance.SpeedTestConfig()
		if err != nil {
			return err
		}

		// Flags override settings
		if cmd.Flags().Changed("max-time") {
			cfg.MaxTime, _ = cmd.Flags().GetDuration("max-time")
		}
		if cmd.Flags().Changed("rate-limit") {
			cfg.RateLimitMB, _ = cmd.Flags().GetFloat64("rate-limit")
		}
		if cmd.Flags().Changed("server") {
			cfg.Server, _ = cmd.Flags().GetString("server")
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		errOut := cmd.ErrOrStderr()
		if !asJSON {
			cfg.Progress = func(phase string) {
				fmt.Fprintf(errOut, "  %s...\n", phase)
			}
		}

		result, err := appInstance.RunSpeedTest(ctx, cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Fprintf(out, "\nSpeed Test\n")
		fmt.Fprintln(out, strings.Repeat("═", 40))
		fmt.Fprintf(out, "Server:     %s", result.Server.Host)
		if result.Server.Colo != "" {
			fmt.Fprintf(out, " (%s)", result.Server.Colo)
		}
		fmt.Fprintln(out)
		if result.ExternalIP != "" {
			fmt.Fprintf(out, "Client IP:  %s\n", result.ExternalIP)
		}
		fmt.Fprintf(out, "Latency:    %.1f ms (jitter %.1f ms, %d samples)\n",
			result.Ping.LatencyMS, result.Ping.JitterMS, result.Ping.Samples)
		fmt.Fprintf(out, "Download:   %s\n", formatThroughput(result.Download))
		fmt.Fprintf(out, "Upload:     %s\n", formatThroughput(result.Upload))
		fmt.Fprintf(out, "Run ID:     %s\n", result.RunID)

		return nil
	},
}

var speedtestHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show speed test history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		limit, _ := cmd.Flags().GetInt("limit")

		history, err := appInstance.Storage.GetSpeedTestHistory(ctx, limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(history) == 0 {
			fmt.Fprintln(out, "No speed tests recorded.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tLATENCY\tDOWNLOAD\tUPLOAD\tCOLO\tSTATUS")
		fmt.Fprintln(w, "----\t-------\t--------\t------\t----\t------")

		for _, entry := range history {
			timeStr := entry.TestedAt.Local().Format("2006-01-02 15:04:05")
			if !entry.Success {
				fmt.Fprintf(w, "%s\t-\t-\t-\t-\tFAIL (%s)\n", timeStr, truncate(entry.ErrorMessage, 40))
				continue
			}
			fmt.Fprintf(w, "%s\t%.1f ms\t%.2f Mbps\t%.2f Mbps\t%s\tOK\n",
				timeStr, entry.LatencyMS,
				entry.DownloadBps*8/1_000_000, entry.UploadBps*8/1_000_000,
				entry.ServerColo)
		}
		return w.Flush()
	},
}

func formatThroughput(t speedtest.Throughput) string {
	return fmt.Sprintf("%.2f Mbps (%s in %s)", t.Mbps(), formatBytes(t.Bytes), t.Elapsed.Round(time.Millisecond))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func init() {
	speedtestCmd.Flags().Duration("max-time", speedtest.DefaultMaxTime, "time budget for the whole run")
	speedtestCmd.Flags().Float64("rate-limit", 0, "download rate limit in MiB/s (0 = unlimited)")
	speedtestCmd.Flags().String("server", speedtest.DefaultServer, "speed test server")
	speedtestCmd.Flags().Bool("json", false, "print the result as JSON")

	speedtestHistoryCmd.Flags().IntP("limit", "n", 20, "number of history entries")

	speedtestCmd.AddCommand(speedtestHistoryCmd)
	rootCmd.AddCommand(speedtestCmd)
}
