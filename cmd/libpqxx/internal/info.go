package internal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/llar-formulas/libpqxx/recipe"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the link metadata of the package",
	Long:  `Info prints the libraries, system libraries and directories consumers link against for the configured settings.`,
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Print the metadata as JSON")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	builder, err := newBuilder(cmd, cfg)
	if err != nil {
		return err
	}
	ws, err := builder.Workspace()
	if err != nil {
		return err
	}

	p := cfg.Platform().Normalize()
	info := recipe.Info(p, recipe.SelectBuildSystem(p))

	out := cmd.OutOrStdout()
	if infoJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintf(out, "name:        %s\n", recipeRef())
	fmt.Fprintf(out, "license:     %s\n", recipe.License)
	fmt.Fprintf(out, "libs:        %s\n", strings.Join(info.Libs, " "))
	fmt.Fprintf(out, "system libs: %s\n", strings.Join(info.SystemLibs, " "))
	fmt.Fprintf(out, "flags:       %s\n", info.Flags(ws.Package))
	return nil
}

func recipeRef() string {
	return recipe.Name + "/" + recipe.Version
}
