// Package build runs the recipe pipeline: fetch, patch, configure,
// compile and package, in a per-settings workspace.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/qiniu/x/log"
	"github.com/rogpeppe/go-internal/lockedfile"

	"github.com/llar-formulas/libpqxx/internal/deps"
	"github.com/llar-formulas/libpqxx/recipe"
	"github.com/llar-formulas/libpqxx/x/buildsys"
)

// Fetcher downloads and unpacks a checksummed archive into destDir.
type Fetcher interface {
	Get(ctx context.Context, url, sha256, destDir string) (string, error)
}

// Resolver locates an installed requirement.
type Resolver interface {
	Resolve(ctx context.Context, req recipe.Requirement) (*deps.Dependency, error)
}

// Builder builds the recipe for one target platform.
type Builder struct {
	platform  recipe.Platform
	workDir   string
	planner   *recipe.Planner
	fetcher   Fetcher
	resolver  Resolver
	newDriver DriverFactory
	jobs      int
	generator string
	toolchain string
	stdout    io.Writer
	stderr    io.Writer
	logger    *log.Logger

	initOnce sync.Once
	initErr  error
	resolved recipe.Platform
	ws       Workspace
	dep      *deps.Dependency
}

// Option configures a Builder.
type Option func(*Builder)

func WithPlanner(p *recipe.Planner) Option { return func(b *Builder) { b.planner = p } }

func WithFetcher(f Fetcher) Option { return func(b *Builder) { b.fetcher = f } }

func WithResolver(r Resolver) Option { return func(b *Builder) { b.resolver = r } }

func WithDriverFactory(f DriverFactory) Option { return func(b *Builder) { b.newDriver = f } }

// WithJobs sets the build parallelism; 0 keeps the driver default.
func WithJobs(n int) Option { return func(b *Builder) { b.jobs = n } }

// WithCMake sets the CMake generator and toolchain file. Empty values keep
// the CMake defaults.
func WithCMake(generator, toolchain string) Option {
	return func(b *Builder) { b.generator, b.toolchain = generator, toolchain }
}

// WithOutput redirects the output of the build tools.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(b *Builder) { b.stdout, b.stderr = stdout, stderr }
}

func WithLogger(l *log.Logger) Option { return func(b *Builder) { b.logger = l } }

// NewBuilder returns a Builder for p working under workDir. Fetcher and
// Resolver must be provided through options before any step runs.
func NewBuilder(workDir string, p recipe.Platform, opts ...Option) *Builder {
	b := &Builder{
		platform:  p,
		workDir:   workDir,
		newDriver: NewDriver,
		logger:    log.Std,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.planner == nil {
		b.planner = recipe.NewPlanner(recipe.WithLogger(b.logger))
	}
	return b
}

// init validates the platform and settles the workspace. It runs before
// any step touches the file system or spawns a command.
func (b *Builder) init() error {
	b.initOnce.Do(func() {
		p := b.platform.Normalize()
		if err := b.planner.ValidateCompiler(p); err != nil {
			b.initErr = err
			return
		}
		std, err := b.planner.ResolveCppStandard(p)
		if err != nil {
			b.initErr = err
			return
		}
		b.resolved = p.WithCppStd(std)
		b.ws = newWorkspace(b.workDir, b.resolved.Key())
	})
	return b.initErr
}

// Workspace returns the directories of this build.
func (b *Builder) Workspace() (Workspace, error) {
	if err := b.init(); err != nil {
		return Workspace{}, err
	}
	return b.ws, nil
}

// Plan resolves the requirements and returns the build plan.
func (b *Builder) Plan(ctx context.Context) (*recipe.Result, error) {
	if err := b.init(); err != nil {
		return nil, err
	}
	if b.resolver == nil {
		return nil, fmt.Errorf("plan: no dependency resolver")
	}
	var paths recipe.DependencyPaths
	for _, req := range b.planner.Requirements(b.resolved) {
		dep, err := b.resolver.Resolve(ctx, req)
		if err != nil {
			return nil, err
		}
		if req.Name == recipe.LibpqRequirement.Name {
			b.dep = dep
			paths = dep.Paths()
		}
	}
	res, err := b.planner.Plan(b.resolved, paths)
	if err != nil {
		return nil, err
	}
	b.logger.Debugf("Plan for %s: %s", b.ws.Root, res.Plan.Kind())
	return res, nil
}

// Source downloads the release, unpacks it into a fresh source directory
// and applies the source patches. It returns the source directory.
func (b *Builder) Source(ctx context.Context) (string, error) {
	if err := b.init(); err != nil {
		return "", err
	}
	if b.fetcher == nil {
		return "", fmt.Errorf("source: no fetcher")
	}
	// The source directory only ever holds a fully patched tree: it is
	// removed first and replaced once every patch has applied.
	if err := os.RemoveAll(b.ws.Source); err != nil {
		return "", err
	}
	staging := filepath.Join(b.ws.Root, ".extract")
	if err := os.RemoveAll(staging); err != nil {
		return "", err
	}
	defer os.RemoveAll(staging)

	b.logger.Infof("Fetching %s %s", recipe.Name, recipe.Version)
	if _, err := b.fetcher.Get(ctx, recipe.SourceURL(), recipe.SourceSHA256, staging); err != nil {
		return "", fmt.Errorf("source: %w", err)
	}

	extracted := filepath.Join(staging, recipe.ExtractedDir())
	if err := recipe.ApplySourcePatches(extracted, recipe.Patches()); err != nil {
		return "", fmt.Errorf("source: %w", err)
	}
	if err := os.Rename(extracted, b.ws.Source); err != nil {
		return "", fmt.Errorf("source: %w", err)
	}
	return b.ws.Source, nil
}

// Driver returns the driver for res without running anything.
func (b *Builder) Driver(res *recipe.Result, srcDir string) (buildsys.Driver, error) {
	if err := b.init(); err != nil {
		return nil, err
	}
	ws := b.ws
	ws.Source = srcDir
	return b.newDriver(DriverConfig{
		Result:     res,
		Workspace:  ws,
		Dependency: b.dep,
		Jobs:       b.jobs,
		Generator:  b.generator,
		Toolchain:  b.toolchain,
		Stdout:     b.stdout,
		Stderr:     b.stderr,
	})
}

// Configure creates the driver for res and runs its configure step.
// The returned driver is passed to Compile and Package.
func (b *Builder) Configure(ctx context.Context, res *recipe.Result, srcDir string) (buildsys.Driver, error) {
	drv, err := b.Driver(res, srcDir)
	if err != nil {
		return nil, err
	}
	b.logger.Infof("Configuring with %s", res.Plan.Kind())
	if err := drv.Configure(ctx); err != nil {
		return nil, fmt.Errorf("configure: %w", err)
	}
	return drv, nil
}

// Compile runs the build step of drv.
func (b *Builder) Compile(ctx context.Context, drv buildsys.Driver) error {
	b.logger.Infof("Building")
	if err := drv.Build(ctx); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}

// Package copies the license into <output>/licenses and installs the
// build into the output directory of drv.
func (b *Builder) Package(ctx context.Context, drv buildsys.Driver, srcDir string) error {
	b.logger.Infof("Packaging into %s", drv.OutputDir())
	if err := copyLicense(srcDir, drv.OutputDir()); err != nil {
		return fmt.Errorf("package: %w", err)
	}
	if err := drv.Install(ctx); err != nil {
		return fmt.Errorf("package: %w", err)
	}
	return nil
}

// Run executes every step under an exclusive lock on the workspace.
// A workspace holding a manifest from an earlier build is returned as is.
func (b *Builder) Run(ctx context.Context) (*Manifest, error) {
	if err := b.init(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(b.ws.Root, 0o755); err != nil {
		return nil, err
	}
	unlock, err := lockedfile.MutexAt(filepath.Join(b.ws.Root, ".lock")).Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another process may have finished the same build while we waited.
	if m, err := loadManifest(b.ws.manifestPath()); err == nil {
		if _, err := os.Stat(m.PackageDir); err == nil {
			b.logger.Infof("%s/%s already built in %s", recipe.Name, recipe.Version, m.PackageDir)
			return m, nil
		}
		b.logger.Infof("Package %s is gone, rebuilding", m.PackageDir)
	}

	res, err := b.Plan(ctx)
	if err != nil {
		return nil, err
	}
	srcDir, err := b.Source(ctx)
	if err != nil {
		return nil, err
	}
	drv, err := b.Configure(ctx, res, srcDir)
	if err != nil {
		return nil, err
	}
	if err := b.Compile(ctx, drv); err != nil {
		return nil, err
	}
	if err := b.Package(ctx, drv, srcDir); err != nil {
		return nil, err
	}

	m := &Manifest{
		Key:        b.resolved.Key(),
		BuildSys:   res.Plan.Kind().String(),
		PackageDir: drv.OutputDir(),
		Metadata:   recipe.Info(res.Platform, res.Plan.Kind()),
		BuildTime:  time.Now(),
	}
	if err := saveManifest(b.ws.manifestPath(), m); err != nil {
		return nil, err
	}
	return m, nil
}

func copyLicense(srcDir, outDir string) error {
	data, err := os.ReadFile(filepath.Join(srcDir, recipe.LicenseFile))
	if err != nil {
		return err
	}
	dir := filepath.Join(outDir, "licenses")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, recipe.LicenseFile), data, 0o644)
}
