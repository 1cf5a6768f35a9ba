package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"nodectl/internal/envfile"
	"nodectl/internal/randstr"
	"nodectl/internal/wsclose"
)

var storageDirCmd = &cobra.Command{
	Use:   "storage-dir",
	Short: "Print the node's storage directory",
	Long: `Print the directory the node stores its data in.

The "storage.dir" setting wins when present, even when empty. Otherwise the
directory is "storage" under userDataPath.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), appInstance.StorageDir())
		return nil
	},
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show variables from the .env file",
	Long: `Parse the .env file and print its variables sorted by name.
A missing file prints nothing; a malformed one is an error.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := envFilePath(cmd)
		if err != nil {
			return err
		}

		vars, err := envfile.Load(path)
		if err != nil {
			return err
		}

		export, _ := cmd.Flags().GetBool("export")
		out := cmd.OutOrStdout()

		names := make([]string, 0, len(vars))
		for name := range vars {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if export {
				fmt.Fprintf(out, "export %s=%s\n", name, shellQuote(vars[name]))
			} else {
				fmt.Fprintf(out, "%s=%s\n", name, vars[name])
			}
		}
		return nil
	},
}

var randomCmd = &cobra.Command{
	Use:         "random [length]",
	Short:       "Generate a random alphanumeric string",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		length := randstr.DefaultLength
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid length %q: %w", args[0], err)
			}
			length = n
		}

		count, _ := cmd.Flags().GetInt("count")
		for i := 0; i < count; i++ {
			fmt.Fprintln(cmd.OutOrStdout(), randstr.String(length))
		}
		return nil
	},
}

var closeReasonCmd = &cobra.Command{
	Use:               "close-reason <code>",
	Short:             "Describe a WebSocket close code",
	Args:              cobra.ExactArgs(1),
	Annotations:       map[string]string{skipApp: "true"},
	ValidArgsFunction: completeCloseCodes,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid close code %q: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), wsclose.Reason(code))
		return nil
	},
}

// envFilePath picks --file, then --env-file, then ./.env.
func envFilePath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		return path, nil
	}
	if path, _ := cmd.Flags().GetString("env-file"); path != "" {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(wd, envfile.FileName), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func init() {
	envCmd.Flags().StringP("file", "f", "", "path to the .env file")
	envCmd.Flags().Bool("export", false, "print as shell export statements")

	randomCmd.Flags().IntP("count", "n", 1, "number of strings to generate")

	rootCmd.AddCommand(storageDirCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(randomCmd)
	rootCmd.AddCommand(closeReasonCmd)
}
