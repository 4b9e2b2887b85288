// Package deps locates the installed libraries a recipe requires.
package deps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/llar-formulas/libpqxx/recipe"
)

var (
	// ErrNotFound is returned when no root can be found for a requirement.
	ErrNotFound = errors.New("dependency not found")

	// ErrNoSharedLibrary is returned when a requirement must be linked
	// dynamically but its root holds only static libraries.
	ErrNoSharedLibrary = errors.New("no shared library")
)

// probes maps a requirement name to the executable reporting its install
// layout.
var probes = map[string]string{
	"libpq": "pg_config",
}

// sharedLibs lists, relative to an install root, the file patterns of the
// shared variant of a requirement.
var sharedLibs = map[string][]string{
	"libpq": {"lib/libpq.so*", "lib/libpq*.dylib", "lib/libpq*.dll", "bin/libpq*.dll"},
}

// Dependency is a resolved requirement.
type Dependency struct {
	Name    string
	Version string
	Root    string
}

// Paths returns where the headers, libraries and probe executable live.
func (d *Dependency) Paths() recipe.DependencyPaths {
	p := recipe.DependencyPaths{
		Root:       d.Root,
		IncludeDir: filepath.Join(d.Root, "include"),
		LibDir:     filepath.Join(d.Root, "lib"),
	}
	if probe, ok := probes[d.Name]; ok {
		p.ConfigProbe = filepath.Join(d.Root, "bin", exeName(probe))
	}
	return p
}

// Resolver finds dependency roots from explicit configuration, then from
// <NAME>_ROOT environment variables, then by asking a probe executable
// found on PATH.
type Resolver struct {
	roots  map[string]string
	logger *log.Logger

	lookPath func(string) (string, error)
	output   func(ctx context.Context, name string, args ...string) (string, error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRoots sets explicit install roots keyed by requirement name.
func WithRoots(roots map[string]string) Option {
	return func(r *Resolver) { r.roots = roots }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver returns a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		logger:   log.Std,
		lookPath: exec.LookPath,
		output:   commandOutput,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve locates req.
func (r *Resolver) Resolve(ctx context.Context, req recipe.Requirement) (*Dependency, error) {
	root, from, err := r.root(ctx, req.Name)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", req, err)
	}
	if fi, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", req, err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("resolve %s: %s is not a directory", req, root)
	}
	if req.ForceShared && !hasSharedLib(root, req.Name) {
		return nil, fmt.Errorf("resolve %s: %s: %w", req, root, ErrNoSharedLibrary)
	}
	r.logger.Infof("Using %s at %s (%s)", req, root, from)

	return &Dependency{
		Name:    req.Name,
		Version: req.Version,
		Root:    root,
	}, nil
}

// hasSharedLib reports whether root holds a shared build of name.
// Requirements without known patterns are assumed to have one.
func hasSharedLib(root, name string) bool {
	patterns, ok := sharedLibs[name]
	if !ok {
		return true
	}
	for _, pat := range patterns {
		if m, _ := filepath.Glob(filepath.Join(root, filepath.FromSlash(pat))); len(m) > 0 {
			return true
		}
	}
	return false
}

func (r *Resolver) root(ctx context.Context, name string) (root, from string, err error) {
	if root := r.roots[name]; root != "" {
		return root, "profile", nil
	}

	key := envKey(name)
	if root := os.Getenv(key); root != "" {
		return root, key, nil
	}

	probe, ok := probes[name]
	if !ok {
		return "", "", fmt.Errorf("%w: set %s", ErrNotFound, key)
	}
	exe, err := r.lookPath(exeName(probe))
	if err != nil {
		return "", "", fmt.Errorf("%w: set %s or put %s on PATH", ErrNotFound, key, probe)
	}
	bindir, err := r.output(ctx, exe, "--bindir")
	if err != nil {
		return "", "", fmt.Errorf("%s --bindir: %w", probe, err)
	}
	return filepath.Dir(filepath.Clean(bindir)), probe, nil
}

// envKey returns the variable naming the root of a dependency, e.g.
// LIBPQ_ROOT.
func envKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_ROOT"
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func commandOutput(ctx context.Context, name string, args ...string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}
