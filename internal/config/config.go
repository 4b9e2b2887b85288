// Package config loads the build profile: target settings, recipe options
// and dependency locations.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/llar-formulas/libpqxx/recipe"
)

// Compiler names the toolchain of the target.
type Compiler struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	CppStd  string `yaml:"cppstd,omitempty"`
}

// Settings describe the target system.
type Settings struct {
	OS        string   `yaml:"os"`
	Arch      string   `yaml:"arch"`
	BuildType string   `yaml:"build_type,omitempty"`
	Compiler  Compiler `yaml:"compiler"`
}

// CMake tunes the CMake driver used for Windows builds.
type CMake struct {
	Generator string `yaml:"generator,omitempty"`
	Toolchain string `yaml:"toolchain,omitempty"`
}

// Options are the recipe options.
type Options struct {
	Shared bool `yaml:"shared"`
	FPIC   bool `yaml:"fPIC"`
}

// Dependency points at an installed requirement.
type Dependency struct {
	Root string `yaml:"root"`
}

// Config is a build profile.
type Config struct {
	Settings     Settings              `yaml:"settings"`
	Options      Options               `yaml:"options"`
	Dependencies map[string]Dependency `yaml:"dependencies,omitempty"`
	CMake        CMake                 `yaml:"cmake,omitempty"`
	WorkDir      string                `yaml:"workdir,omitempty"`
	Jobs         int                   `yaml:"jobs,omitempty"`
	Verbose      bool                  `yaml:"verbose,omitempty"`
}

// detect guesses the host compiler; replaced in tests.
var detect = detectCompiler

// Default returns the profile of the host: its OS and architecture, the
// detected compiler, a static library with position-independent code.
func Default() *Config {
	return &Config{
		Settings: Settings{
			OS:       recipe.ParseOS(runtime.GOOS).String(),
			Arch:     archName(runtime.GOARCH),
			Compiler: detect(),
		},
		Options: Options{
			Shared: false,
			FPIC:   true,
		},
		Dependencies: make(map[string]Dependency),
	}
}

// DefaultPath returns <UserConfigDir>/libpqxx/profile.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, recipe.Name, "profile.yaml"), nil
}

// Load reads the profile at path, or at DefaultPath when path is empty.
// A missing file yields Default. Fields absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	if cfg.Dependencies == nil {
		cfg.Dependencies = make(map[string]Dependency)
	}
	return cfg, nil
}

// Save writes cfg to path, creating its directory.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}

// Platform returns the target described by the profile.
func (c *Config) Platform() recipe.Platform {
	return recipe.Platform{
		OS:              recipe.ParseOS(c.Settings.OS),
		Arch:            c.Settings.Arch,
		BuildType:       c.Settings.BuildType,
		Compiler:        c.Settings.Compiler.Name,
		CompilerVersion: c.Settings.Compiler.Version,
		CppStd:          c.Settings.Compiler.CppStd,
		Shared:          c.Options.Shared,
		FPIC:            c.Options.FPIC,
	}
}

// Roots returns the configured dependency roots keyed by name.
func (c *Config) Roots() map[string]string {
	roots := make(map[string]string, len(c.Dependencies))
	for name, d := range c.Dependencies {
		if d.Root != "" {
			roots[name] = d.Root
		}
	}
	return roots
}

// SetOption sets a recipe option from a "name=value" pair.
func (c *Config) SetOption(pair string) error {
	name, value, ok := strings.Cut(pair, "=")
	if !ok {
		return fmt.Errorf("option %q: want name=value", pair)
	}
	b, err := recipe.ParseBoolOption(value)
	if err != nil {
		return fmt.Errorf("option %s: %w", name, err)
	}
	switch strings.TrimSpace(name) {
	case "shared":
		c.Options.Shared = b
	case "fPIC":
		c.Options.FPIC = b
	default:
		return fmt.Errorf("unknown option %q", name)
	}
	return nil
}

func archName(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "x86"
	case "arm64":
		return "armv8"
	}
	return goarch
}

func detectCompiler() Compiler {
	if runtime.GOOS == "windows" {
		return Compiler{Name: "Visual Studio", Version: "16"}
	}
	candidates := []struct{ exe, name string }{{"gcc", "gcc"}, {"clang", "clang"}}
	if runtime.GOOS == "darwin" {
		candidates = []struct{ exe, name string }{{"clang", "apple-clang"}, {"gcc", "gcc"}}
	}
	for _, c := range candidates {
		exe, err := exec.LookPath(c.exe)
		if err != nil {
			continue
		}
		out, err := exec.Command(exe, "-dumpversion").Output()
		if err != nil {
			continue
		}
		return Compiler{Name: c.name, Version: majorVersion(string(out))}
	}
	return Compiler{}
}

func majorVersion(v string) string {
	v = strings.TrimSpace(v)
	major, _, _ := strings.Cut(v, ".")
	return major
}
