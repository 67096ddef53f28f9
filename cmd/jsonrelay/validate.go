package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jsonrelay/internal/core/engine"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check an endpoint configuration file",
	Long:  `Compile the endpoint configuration and report its endpoints and any rules that will never produce a field.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := endpointsFile(cmd)
		snapshot, warnings, err := engine.Load(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d endpoint(s)\n", path, len(snapshot.IDs()))
		for _, id := range snapshot.IDs() {
			ep, _ := snapshot.Endpoint(id)
			target := ep.TargetURL
			if target == "" {
				target = "<none>"
			}
			fmt.Fprintf(out, "  %s -> %s (%d rules, timeout %s)\n", id, target, len(ep.Rules), ep.Timeout)
		}
		for _, w := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}
		return nil
	},
}

// endpointsFile prefers the command's own --endpoints flag over settings.
func endpointsFile(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("endpoints"); f != nil && f.Changed {
		return f.Value.String()
	}
	return viper.GetString("endpoints.file")
}

func SetupValidateCmd() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("endpoints", "e", "config.json", "Endpoint configuration file (JSON or YAML)")
}
