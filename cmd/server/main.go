package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/browserbase-mcp/internal/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()

	rootCmd := &cobra.Command{
		Use:          "browserbase-mcp",
		Short:        "MCP server for driving remote browser sessions",
		Long:         "browserbase-mcp serves browser automation tools over MCP (stdio) and HTTP. Each session is a remote browser reached over CDP, with named tabs, idle expiry and an optional live view.",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	if err := config.BindFlags(rootCmd, v); err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(newRecordingsCmd(v))

	return rootCmd
}
