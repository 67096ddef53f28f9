package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jsonrelay/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "jsonrelay",
	Short: "JSON transformation relay",
	Long: `jsonrelay receives JSON documents on per-endpoint routes, rewrites them with
declarative field rules and forwards the result to each endpoint's target.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default is ./configs/jsonrelay.yaml)")
}

func initConfig() {
	config.Init(cfgFile)
}
