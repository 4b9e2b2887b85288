package recipe

import (
	"maps"
	"slices"
)

// BuildSystemKind selects the driver used to configure and build the library.
type BuildSystemKind int

const (
	Autotools BuildSystemKind = iota
	CMake
)

func (k BuildSystemKind) String() string {
	if k == CMake {
		return "cmake"
	}
	return "autotools"
}

// Plan is the driver-specific part of a build plan. It is either an
// *AutotoolsPlan or a *CMakePlan.
type Plan interface {
	Kind() BuildSystemKind
	isPlan()
}

// AutotoolsPlan holds the arguments for ./configure and the environment
// variables the configure script reads.
type AutotoolsPlan struct {
	ConfigureArgs []string          `json:"configure_args"`
	Env           map[string]string `json:"env"`
}

func (*AutotoolsPlan) Kind() BuildSystemKind { return Autotools }
func (*AutotoolsPlan) isPlan()               {}

// EnvKeys returns the environment variable names in sorted order.
func (p *AutotoolsPlan) EnvKeys() []string {
	return slices.Sorted(maps.Keys(p.Env))
}

// CMakePlan holds the cache definitions passed on the cmake command line.
type CMakePlan struct {
	Defines     map[string]string `json:"defines"`
	BoolDefines map[string]bool   `json:"bool_defines"`
}

func (*CMakePlan) Kind() BuildSystemKind { return CMake }
func (*CMakePlan) isPlan()               {}

// Result is a fully validated plan for one build invocation.
type Result struct {
	// Platform is the normalized input with the C++ standard resolved.
	Platform Platform
	Standard string
	Plan     Plan
}

// UseCMake reports whether the CMake driver builds this plan.
func (r *Result) UseCMake() bool {
	return r.Plan.Kind() == CMake
}

// DependencyPaths locates an installed dependency.
type DependencyPaths struct {
	Root       string
	IncludeDir string
	LibDir     string

	// ConfigProbe is the executable reporting the dependency's build
	// flags, pg_config for libpq.
	ConfigProbe string
}
