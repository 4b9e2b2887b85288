package internal

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var packageOutput string

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Install a compiled build into the package directory",
	Long:  `Package copies the license and installs the compiled build into the package directory. Run build first.`,
	Args:  cobra.NoArgs,
	RunE:  runPackage,
}

func init() {
	packageCmd.Flags().StringVar(&packageOutput, "output", "", "Also copy the package to a directory or .zip file")
	rootCmd.AddCommand(packageCmd)
}

func runPackage(cmd *cobra.Command, args []string) error {
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
	drv, err := builder.Driver(res, ws.Source)
	if err != nil {
		return err
	}
	if err := builder.Package(ctx, drv, ws.Source); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), drv.OutputDir())

	if packageOutput != "" {
		dest, err := filepath.Abs(packageOutput)
		if err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
		if err := outputResult(drv.OutputDir(), dest); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}
