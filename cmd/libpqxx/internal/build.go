package internal

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Configure and compile libpqxx",
	Long:  `Build configures and compiles libpqxx in the workspace, fetching the sources first when they are missing.`,
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	builder, err := newBuilder(cmd, cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	res, err := builder.Plan(ctx)
	if err != nil {
		return err
	}
	ws, err := builder.Workspace()
	if err != nil {
		return err
	}
	srcDir := ws.Source
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		if srcDir, err = builder.Source(ctx); err != nil {
			return err
		}
	}

	drv, err := builder.Configure(ctx, res, srcDir)
	if err != nil {
		return err
	}
	return builder.Compile(ctx, drv)
}
