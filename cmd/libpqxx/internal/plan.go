package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/llar-formulas/libpqxx/recipe"
)

var planJSON bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the build plan without running anything",
	Long:  `Plan validates the settings, locates libpq and prints the configure arguments or CMake definitions a build would use.`,
	Args:  cobra.NoArgs,
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the plan as JSON")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	builder, err := newBuilder(cmd, cfg)
	if err != nil {
		return err
	}
	res, err := builder.Plan(context.Background())
	if err != nil {
		return err
	}
	if planJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Key      string      `json:"key"`
			BuildSys string      `json:"build_system"`
			Standard string      `json:"cppstd"`
			Plan     recipe.Plan `json:"plan"`
		}{res.Platform.Key(), res.Plan.Kind().String(), res.Standard, res.Plan})
	}
	printPlan(cmd.OutOrStdout(), res)
	return nil
}

func printPlan(w io.Writer, res *recipe.Result) {
	fmt.Fprintf(w, "build system: %s\n", res.Plan.Kind())
	fmt.Fprintf(w, "cppstd:       %s\n", res.Standard)
	fmt.Fprintf(w, "settings:     %s\n", res.Platform.Key())
	switch plan := res.Plan.(type) {
	case *recipe.AutotoolsPlan:
		fmt.Fprintf(w, "configure:    %s\n", strings.Join(plan.ConfigureArgs, " "))
		for _, k := range plan.EnvKeys() {
			fmt.Fprintf(w, "env:          %s=%s\n", k, plan.Env[k])
		}
	case *recipe.CMakePlan:
		for _, k := range slices.Sorted(maps.Keys(plan.BoolDefines)) {
			v := "OFF"
			if plan.BoolDefines[k] {
				v = "ON"
			}
			fmt.Fprintf(w, "define:       %s=%s\n", k, v)
		}
		for _, k := range slices.Sorted(maps.Keys(plan.Defines)) {
			fmt.Fprintf(w, "define:       %s=%s\n", k, plan.Defines[k])
		}
	}
}
