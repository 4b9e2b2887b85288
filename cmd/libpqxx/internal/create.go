package internal

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var createOutput string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Run the whole recipe: source, build and package",
	Long: `Create fetches, patches, configures, builds and packages libpqxx for the
configured settings. A workspace that already holds a finished build is reused.`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createOutput, "output", "", "Also copy the package to a directory or .zip file")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	builder, err := newBuilder(cmd, cfg)
	if err != nil {
		return err
	}

	m, err := builder.Run(context.Background())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", recipeRef(), err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", recipeRef(), m.PackageDir)
	fmt.Fprintln(out, m.Metadata.Flags(m.PackageDir))

	if createOutput != "" {
		dest, err := filepath.Abs(createOutput)
		if err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
		if err := outputResult(m.PackageDir, dest); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}
