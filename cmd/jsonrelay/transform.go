package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"jsonrelay/internal/core/engine"
)

var transformCmd = &cobra.Command{
	Use:   "transform <endpoint> [file]",
	Short: "Apply an endpoint's rules to a payload without forwarding it",
	Long: `Read a JSON payload from file (or stdin when omitted or "-"), apply the rules
of the named endpoint and print the output document.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, _, err := engine.Load(endpointsFile(cmd))
		if err != nil {
			return err
		}
		ep, ok := snapshot.Endpoint(args[0])
		if !ok {
			return fmt.Errorf("endpoint %s not found", args[0])
		}

		var payload []byte
		if len(args) == 2 && args[1] != "-" {
			payload, err = os.ReadFile(args[1])
		} else {
			payload, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}
		if !sonic.Valid(payload) {
			return fmt.Errorf("invalid JSON payload")
		}

		result, err := engine.Apply(gjson.ParseBytes(payload), ep.Rules)
		if err != nil {
			return err
		}
		out, err := result.Document.Marshal()
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}

		cmd.OutOrStdout().Write(pretty.Pretty(out))
		for _, o := range result.Omitted {
			fmt.Fprintf(cmd.ErrOrStderr(), "omitted %s\n", o)
		}
		return nil
	},
}

func SetupTransformCmd() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().StringP("endpoints", "e", "config.json", "Endpoint configuration file (JSON or YAML)")
}
