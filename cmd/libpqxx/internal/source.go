package internal

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Fetch and patch the libpqxx sources",
	Long:  `Source downloads the release archive, verifies its checksum, unpacks it into the workspace and applies the source patches.`,
	Args:  cobra.NoArgs,
	RunE:  runSource,
}

func init() {
	rootCmd.AddCommand(sourceCmd)
}

func runSource(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	builder, err := newBuilder(cmd, cfg)
	if err != nil {
		return err
	}
	srcDir, err := builder.Source(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), srcDir)
	return nil
}
