package internal

import (
	"fmt"
	"io"

	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"

	"github.com/llar-formulas/libpqxx/internal/build"
	"github.com/llar-formulas/libpqxx/internal/config"
	"github.com/llar-formulas/libpqxx/internal/deps"
	"github.com/llar-formulas/libpqxx/internal/env"
	"github.com/llar-formulas/libpqxx/internal/fetch"
	"github.com/llar-formulas/libpqxx/recipe"
)

// Persistent flags shared by every command.
var (
	profilePath     string
	osFlag          string
	archFlag        string
	buildTypeFlag   string
	compilerFlag    string
	compilerVersion string
	cppStdFlag      string
	optionFlags     []string
	workDirFlag     string
	jobsFlag        int
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "libpqxx",
	Short: "libpqxx builds the libpqxx C++ client library for PostgreSQL",
	Long: `libpqxx fetches, patches, configures, builds and packages libpqxx ` + recipe.Version + `
against libpq ` + recipe.LibpqRequirement.Version + `, with CMake on Windows and Autotools elsewhere.`,
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&profilePath, "profile", "", "Profile file (default <config dir>/libpqxx/profile.yaml)")
	f.StringVar(&osFlag, "os", "", "Target OS (Windows, Linux, Macos)")
	f.StringVar(&archFlag, "arch", "", "Target architecture")
	f.StringVar(&buildTypeFlag, "build-type", "", "Build type (Release, Debug, RelWithDebInfo, MinSizeRel)")
	f.StringVar(&compilerFlag, "compiler", "", "Compiler name (gcc, clang, apple-clang, Visual Studio)")
	f.StringVar(&compilerVersion, "compiler-version", "", "Compiler version")
	f.StringVar(&cppStdFlag, "cppstd", "", "C++ standard (17, 20)")
	f.StringArrayVarP(&optionFlags, "option", "o", nil, "Recipe option name=value (shared, fPIC), repeatable")
	f.StringVar(&workDirFlag, "workdir", "", "Workspace root (default <cache dir>/.libpqxx)")
	f.IntVarP(&jobsFlag, "jobs", "j", 0, "Build parallelism (default number of CPUs)")
	f.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the profile and applies the command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(profilePath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	set := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}
	set("os", &cfg.Settings.OS, osFlag)
	set("arch", &cfg.Settings.Arch, archFlag)
	set("build-type", &cfg.Settings.BuildType, buildTypeFlag)
	set("compiler", &cfg.Settings.Compiler.Name, compilerFlag)
	set("compiler-version", &cfg.Settings.Compiler.Version, compilerVersion)
	set("cppstd", &cfg.Settings.Compiler.CppStd, cppStdFlag)
	set("workdir", &cfg.WorkDir, workDirFlag)
	if flags.Changed("jobs") {
		cfg.Jobs = jobsFlag
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	for _, pair := range optionFlags {
		if err := cfg.SetOption(pair); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(w io.Writer, cfg *config.Config) *log.Logger {
	l := log.New(w, "", log.Llevel)
	if cfg.Verbose {
		l.SetOutputLevel(log.Ldebug)
	} else {
		l.SetOutputLevel(log.Linfo)
	}
	return l
}

// newBuilder wires the pipeline for the configured platform.
func newBuilder(cmd *cobra.Command, cfg *config.Config) (*build.Builder, error) {
	logger := newLogger(cmd.ErrOrStderr(), cfg)

	workDir := cfg.WorkDir
	if workDir == "" {
		dir, err := env.WorkDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get work dir: %w", err)
		}
		workDir = dir
	}
	opts := []build.Option{
		build.WithLogger(logger),
		build.WithPlanner(recipe.NewPlanner(recipe.WithLogger(logger))),
		build.WithFetcher(fetch.New(env.DownloadDir(workDir), fetch.WithLogger(logger))),
		build.WithResolver(deps.NewResolver(deps.WithRoots(cfg.Roots()), deps.WithLogger(logger))),
		build.WithJobs(cfg.Jobs),
		build.WithCMake(cfg.CMake.Generator, cfg.CMake.Toolchain),
	}
	if !cfg.Verbose {
		opts = append(opts, build.WithOutput(io.Discard, cmd.ErrOrStderr()))
	} else {
		opts = append(opts, build.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	}
	return build.NewBuilder(workDir, cfg.Platform(), opts...), nil
}
