// Package buildsys defines what the recipe needs from a build driver and
// the process plumbing the drivers share.
package buildsys

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Driver captures the lifecycle shared by the CMake and Autotools helpers.
// A Driver is created and configured once per build, then passed to the
// build and install steps.
type Driver interface {
	// Env sets a variable for every command the driver runs later.
	Env(key, val string)

	// Lifecycle.
	Configure(ctx context.Context, args ...string) error
	Build(ctx context.Context, args ...string) error
	Install(ctx context.Context, args ...string) error

	// Where artifacts land.
	OutputDir() string
}

// Runner executes external commands with a private environment overlay.
// The process environment is never modified.
type Runner struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
	env    map[string]string
}

// Setenv records an override applied to every command.
func (r *Runner) Setenv(key, val string) {
	if r.env == nil {
		r.env = make(map[string]string)
	}
	r.env[key] = val
}

// Getenv returns the override for key, or the process value when there
// is none.
func (r *Runner) Getenv(key string) string {
	if v, ok := r.env[key]; ok {
		return v
	}
	return os.Getenv(key)
}

// Environ returns the overrides.
func (r *Runner) Environ() map[string]string {
	return r.env
}

// PrependPath prepends value to a PATH-style variable.
func (r *Runner) PrependPath(key, value string) {
	sep := ":"
	if runtime.GOOS == "windows" {
		sep = ";"
	}
	if cur := r.Getenv(key); cur != "" {
		value += sep + cur
	}
	r.Setenv(key, value)
}

// AppendFlag appends a space-separated flag to a variable.
func (r *Runner) AppendFlag(key, flag string) {
	if cur := r.Getenv(key); cur != "" {
		flag = cur + " " + flag
	}
	r.Setenv(key, flag)
}

// Run executes name with args and returns an error naming the command
// when it exits non-zero.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if len(r.env) > 0 {
		cmd.Env = MergeEnv(os.Environ(), r.env)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// MergeEnv returns base with every key in overrides replaced or appended.
// base is not modified.
func MergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, len(base), len(base)+len(overrides))
	copy(out, base)
	idx := make(map[string]int, len(out))
	for i, kv := range out {
		if k, _, ok := strings.Cut(kv, "="); ok {
			idx[k] = i
		}
	}
	for k, v := range overrides {
		if i, ok := idx[k]; ok {
			out[i] = k + "=" + v
		} else {
			out = append(out, k+"="+v)
		}
	}
	return out
}
