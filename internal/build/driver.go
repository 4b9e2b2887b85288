package build

import (
	"fmt"
	"io"

	"github.com/llar-formulas/libpqxx/internal/deps"
	"github.com/llar-formulas/libpqxx/recipe"
	"github.com/llar-formulas/libpqxx/x/autotools"
	"github.com/llar-formulas/libpqxx/x/buildsys"
	"github.com/llar-formulas/libpqxx/x/cmake"
)

// DriverConfig is everything a DriverFactory needs to set up a driver.
type DriverConfig struct {
	Result     *recipe.Result
	Workspace  Workspace
	Dependency *deps.Dependency
	Jobs       int
	Generator  string
	Toolchain  string
	Stdout     io.Writer
	Stderr     io.Writer
}

// DriverFactory returns a driver ready to configure the build described
// by cfg.
type DriverFactory func(cfg DriverConfig) (buildsys.Driver, error)

// NewDriver is the default DriverFactory. It builds with CMake or
// Autotools depending on the plan variant.
func NewDriver(cfg DriverConfig) (buildsys.Driver, error) {
	ws := cfg.Workspace
	switch plan := cfg.Result.Plan.(type) {
	case *recipe.CMakePlan:
		c := cmake.New(ws.Source, ws.Build, ws.Package)
		if bt := cfg.Result.Platform.BuildType; bt != "" {
			c.BuildType(bt)
		}
		if cfg.Generator != "" {
			c.Generator(cfg.Generator)
		}
		if cfg.Toolchain != "" {
			c.Toolchain(cfg.Toolchain)
		}
		c.Apply(plan)
		if cfg.Dependency != nil {
			c.Use(cfg.Dependency.Root)
		}
		if cfg.Jobs > 0 {
			c.Jobs(cfg.Jobs)
		}
		c.Output(cfg.Stdout, cfg.Stderr)
		return c, nil
	case *recipe.AutotoolsPlan:
		a := autotools.New(ws.Source, ws.Build, ws.Package)
		a.Apply(plan)
		if cfg.Dependency != nil {
			if err := a.Use(cfg.Dependency.Root); err != nil {
				return nil, err
			}
		}
		if cfg.Jobs > 0 {
			a.Jobs(cfg.Jobs)
		}
		a.Output(cfg.Stdout, cfg.Stderr)
		return a, nil
	}
	return nil, fmt.Errorf("unsupported plan %T", cfg.Result.Plan)
}
