package recipe

import (
	"os"
	"slices"

	"github.com/llar-formulas/libpqxx/internal/version"
	"github.com/qiniu/x/log"
)

// MinimalCppStd is the oldest C++ standard libpqxx 7 compiles with.
const MinimalCppStd = "17"

// SupportedCppStds are the standards this library version was validated
// against. The upper bound is not a technical ceiling.
var SupportedCppStds = []string{"17", "20"}

// MinimalCompilerVersions maps a compiler name to the first version with
// usable C++17 support. Compilers not listed are not checked.
var MinimalCompilerVersions = map[string]string{
	"Visual Studio": "15",
	"gcc":           "7",
	"clang":         "6",
	"apple-clang":   "10",
}

// Planner turns a Platform into a build Plan.
type Planner struct {
	logger    *log.Logger
	minimal   map[string]string
	standards []string
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger receiving informational notes.
func WithLogger(l *log.Logger) Option {
	return func(p *Planner) {
		p.logger = l
	}
}

// NewPlanner creates a Planner using the built-in compatibility tables.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{
		logger:    log.New(os.Stderr, "", log.Llevel),
		minimal:   MinimalCompilerVersions,
		standards: SupportedCppStds,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ValidateCompiler fails if the compiler is known and older than its
// minimal version.
func (pl *Planner) ValidateCompiler(p Platform) error {
	minimum, ok := pl.minimal[p.Compiler]
	if !ok {
		return nil
	}
	if version.Less(p.CompilerVersion, minimum) {
		return &UnsupportedToolchainError{
			Compiler: p.Compiler,
			Version:  p.CompilerVersion,
			Minimum:  minimum,
		}
	}
	return nil
}

// ResolveCppStandard returns the C++ standard to build with. An unset
// standard defaults to MinimalCppStd.
func (pl *Planner) ResolveCppStandard(p Platform) (string, error) {
	if p.CppStd == "" {
		pl.logger.Infof("Setting C++ standard to %s", MinimalCppStd)
		return MinimalCppStd, nil
	}
	if !slices.Contains(pl.standards, p.CppStd) {
		return "", &UnsupportedStandardError{Standard: p.CppStd, Supported: slices.Clone(pl.standards)}
	}
	return p.CppStd, nil
}

// SelectBuildSystem picks CMake on Windows, where the Autotools build does
// not produce usable artifacts, and Autotools everywhere else.
func SelectBuildSystem(p Platform) BuildSystemKind {
	if p.OS == Windows {
		return CMake
	}
	return Autotools
}

// PlanAutotools returns the configure invocation for p.
// Exactly one of static and shared output is enabled.
func PlanAutotools(p Platform, deps DependencyPaths) *AutotoolsPlan {
	static, shared := "yes", "no"
	if p.Shared {
		static, shared = "no", "yes"
	}
	args := []string{
		"--disable-documentation",
		"--with-postgres-include=" + deps.IncludeDir,
		"--with-postgres-lib=" + deps.LibDir,
		"--enable-static=" + static,
		"--enable-shared=" + shared,
	}
	if !p.Shared && p.FPIC {
		args = append(args, "--with-pic")
	}
	if p.CppStd != "" {
		args = append(args, "CXXFLAGS=-std=c++"+p.CppStd)
	}
	return &AutotoolsPlan{
		ConfigureArgs: args,
		Env: map[string]string{
			"PG_CONFIG": deps.ConfigProbe,
		},
	}
}

// PlanCMake returns the cmake definitions for p. Dependencies reach CMake
// through the prefix path, not through the plan.
func PlanCMake(p Platform) *CMakePlan {
	plan := &CMakePlan{
		Defines: map[string]string{},
		BoolDefines: map[string]bool{
			"BUILD_DOC":         false,
			"BUILD_TEST":        false,
			"BUILD_SHARED_LIBS": p.Shared,
		},
	}
	if p.CppStd != "" {
		plan.Defines["CMAKE_CXX_STANDARD"] = p.CppStd
	}
	return plan
}

// Plan validates p and returns the plan for the selected build system.
// Validation errors are returned before anything is planned.
func (pl *Planner) Plan(p Platform, deps DependencyPaths) (*Result, error) {
	p = p.Normalize()
	if err := pl.ValidateCompiler(p); err != nil {
		return nil, err
	}
	std, err := pl.ResolveCppStandard(p)
	if err != nil {
		return nil, err
	}
	p = p.WithCppStd(std)

	res := &Result{Platform: p, Standard: std}
	switch SelectBuildSystem(p) {
	case CMake:
		res.Plan = PlanCMake(p)
	default:
		res.Plan = PlanAutotools(p, deps)
	}
	return res, nil
}
