package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llar-formulas/libpqxx/recipe"
)

var (
	patchesDiff  bool
	patchesApply string
)

var patchesCmd = &cobra.Command{
	Use:   "patches",
	Short: "List the source patches",
	Long: `Patches lists the fixes applied to the libpqxx sources. With --diff each
patch is printed as a diff; with --apply the patches are applied to a source tree.`,
	Args: cobra.NoArgs,
	RunE: runPatches,
}

func init() {
	patchesCmd.Flags().BoolVar(&patchesDiff, "diff", false, "Print each patch as a diff")
	patchesCmd.Flags().StringVar(&patchesApply, "apply", "", "Apply the patches to the source tree at `dir`")
	rootCmd.AddCommand(patchesCmd)
}

func runPatches(cmd *cobra.Command, args []string) error {
	patches := recipe.Patches()
	if patchesApply != "" {
		if err := recipe.ApplySourcePatches(patchesApply, patches); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d patches to %s\n", len(patches), patchesApply)
		return nil
	}

	out := cmd.OutOrStdout()
	for i, p := range patches {
		fmt.Fprintf(out, "%d. %s: %s\n", i+1, p.Path, p.Description)
		if patchesDiff {
			fmt.Fprintln(out, p.Diff())
		}
	}
	return nil
}
