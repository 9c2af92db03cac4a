package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shehryarbajwa/browserbase-mcp/internal/config"
	"github.com/shehryarbajwa/browserbase-mcp/internal/recording"
)

func newRecordingsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recordings",
		Short: "Inspect archived session recordings",
	}

	cmd.AddCommand(
		newRecordingsListCmd(v),
		newRecordingsExtractCmd(),
	)

	return cmd
}

func newRecordingsListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list <session-id>",
		Short: "List the archives stored for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			archiver, err := recording.NewArchiver(cfg.ScreenshotsDir, cfg.RecordingsDir)
			if err != nil {
				return err
			}

			archives, err := archiver.List(args[0])
			if err != nil {
				return err
			}
			if len(archives) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No recordings for session %s\n", args[0])
				return nil
			}
			for _, path := range archives {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
}

func newRecordingsExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <archive> <dir>",
		Short: "Unpack an archived recording",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := recording.Extract(args[0], args[1]); err != nil {
				return fmt.Errorf("extract %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %s to %s\n", args[0], args[1])
			return nil
		},
	}
}
