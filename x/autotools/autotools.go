// Package autotools wraps the classic configure/make/make-install workflow.
package autotools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/llar-formulas/libpqxx/recipe"
	"github.com/llar-formulas/libpqxx/x/buildsys"
)

// AutoTools drives Autotools-style builds.
type AutoTools struct {
	sourceDir  string
	buildDir   string
	installDir string
	jobs       int
	args       []string
	runner     buildsys.Runner
}

var _ buildsys.Driver = (*AutoTools)(nil)

// New returns a ready-to-use AutoTools. An empty buildDir builds in the
// source tree.
func New(sourceDir, buildDir, installDir string) *AutoTools {
	a := &AutoTools{
		sourceDir:  sourceDir,
		buildDir:   buildDir,
		installDir: installDir,
		jobs:       runtime.NumCPU(),
	}
	a.runner.Dir = a.workDir()
	return a
}

// Jobs sets the make parallelism. Values below 1 run make serially.
func (a *AutoTools) Jobs(n int) { a.jobs = n }

// Output redirects the output of every command.
func (a *AutoTools) Output(stdout, stderr io.Writer) {
	a.runner.Stdout = stdout
	a.runner.Stderr = stderr
}

// Env sets key=value for every command spawned later.
func (a *AutoTools) Env(key, value string) {
	a.runner.Setenv(key, value)
}

// Environ returns the variables set through Env and Use.
func (a *AutoTools) Environ() map[string]string {
	return a.runner.Environ()
}

// Apply takes the configure arguments and environment of plan.
// Arguments are passed by Configure ahead of its own.
func (a *AutoTools) Apply(plan *recipe.AutotoolsPlan) {
	a.args = append(a.args, plan.ConfigureArgs...)
	for _, k := range plan.EnvKeys() {
		a.Env(k, plan.Env[k])
	}
}

// Use adds the include/lib/pkgconfig paths of a dependency installed at
// root to the compiler flags of every command.
func (a *AutoTools) Use(root string) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("use %s: %w", root, err)
	}
	includeDir := filepath.Join(root, "include")
	libDir := filepath.Join(root, "lib")
	pkgconfigDir := filepath.Join(libDir, "pkgconfig")

	if _, err := os.Stat(pkgconfigDir); err == nil {
		a.runner.PrependPath("PKG_CONFIG_PATH", pkgconfigDir)
	}
	if _, err := os.Stat(includeDir); err == nil {
		a.runner.AppendFlag("CPPFLAGS", "-I"+includeDir)
	}
	if _, err := os.Stat(libDir); err == nil {
		a.runner.AppendFlag("LDFLAGS", "-L"+libDir)
	}
	return nil
}

// Configure runs <sourceDir>/configure inside buildDir.
// --prefix is prepended automatically when installDir is set, followed by
// the applied plan arguments and then args.
func (a *AutoTools) Configure(ctx context.Context, args ...string) error {
	dir := a.workDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	exe := filepath.Join(a.sourceDir, "configure")
	if err := checkExecutable(exe); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	return a.runner.Run(ctx, exe, a.ConfigureArgs(args...)...)
}

// ConfigureArgs returns the full argument list Configure passes.
func (a *AutoTools) ConfigureArgs(args ...string) []string {
	flags := make([]string, 0, 1+len(a.args)+len(args))
	if a.installDir != "" {
		flags = append(flags, "--prefix="+a.installDir)
	}
	flags = append(flags, a.args...)
	return append(flags, args...)
}

// Build runs "make" with optional extra arguments.
func (a *AutoTools) Build(ctx context.Context, args ...string) error {
	return a.runner.Run(ctx, "make", append(a.jobsArgs(), args...)...)
}

// Install runs "make install" with optional extra arguments appended.
func (a *AutoTools) Install(ctx context.Context, args ...string) error {
	return a.runner.Run(ctx, "make", append([]string{"install"}, args...)...)
}

// OutputDir returns installDir if set, otherwise buildDir.
func (a *AutoTools) OutputDir() string {
	if a.installDir != "" {
		return a.installDir
	}
	return a.buildDir
}

func (a *AutoTools) jobsArgs() []string {
	if a.jobs <= 1 {
		return nil
	}
	return []string{"-j" + strconv.Itoa(a.jobs)}
}

func (a *AutoTools) workDir() string {
	if a.buildDir == "" {
		return a.sourceDir
	}
	return a.buildDir
}
