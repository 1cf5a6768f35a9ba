package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// ensureApp lazily initializes appInstance for shell completion.
// Cobra may invoke ValidArgsFunction without running PersistentPreRunE.
func ensureApp(cmd *cobra.Command) error {
	return initApp(cmd)
}

// completeSettingKeys completes the first argument with known setting keys.
func completeSettingKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	if err := ensureApp(cmd); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var completions []string
	for _, key := range appInstance.Settings.Keys() {
		if strings.HasPrefix(strings.ToLower(key), strings.ToLower(toComplete)) {
			completions = append(completions, key)
		}
	}

	return completions, cobra.ShellCompDirectiveNoFileComp
}

// completeCloseCodes suggests the close codes with a fixed description.
func completeCloseCodes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{
		"1000\tNormal closure",
		"1006\tAbnormal closure",
		"1008\tProtocol error",
		"1012\tService is restarting",
	}, cobra.ShellCompDirectiveNoFileComp
}
