package recipe

import (
	"strconv"
	"strings"
)

// OS identifies the target operating system of a build.
type OS int

const (
	Other OS = iota
	Windows
	Linux
	Macos
)

func (o OS) String() string {
	switch o {
	case Windows:
		return "Windows"
	case Linux:
		return "Linux"
	case Macos:
		return "Macos"
	}
	return "Other"
}

// ParseOS maps both settings-style names ("Windows", "Macos") and GOOS
// values ("windows", "darwin") to an OS. Unknown names map to Other.
func ParseOS(name string) OS {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "windows":
		return Windows
	case "linux":
		return Linux
	case "macos", "darwin", "macosx", "osx":
		return Macos
	}
	return Other
}

// Platform describes the target of one build invocation.
// It is passed by value and never modified in place.
type Platform struct {
	OS              OS
	Arch            string
	BuildType       string // empty means the driver default, Release
	Compiler        string
	CompilerVersion string
	CppStd          string // empty means unset
	Shared          bool
	FPIC            bool
}

// WithCppStd returns a copy of p with the C++ standard set to std.
func (p Platform) WithCppStd(std string) Platform {
	p.CppStd = std
	return p
}

// Normalize returns a copy of p with options that do not exist on the
// target removed. fPIC has no meaning for Windows toolchains.
func (p Platform) Normalize() Platform {
	if p.OS == Windows {
		p.FPIC = false
	}
	return p
}

// Key returns a stable identifier for the settings and options of p.
// Setting values are joined with "-" and options appended after "+",
// e.g. "x86_64-gcc-9-17-Linux+fPIC=True-shared=False". An unset build
// type is left out. The key is used as a directory name.
func (p Platform) Key() string {
	settings := []string{p.Arch, p.BuildType, p.Compiler, p.CompilerVersion, p.CppStd, p.OS.String()}
	parts := settings[:0]
	for _, s := range settings {
		if s != "" {
			parts = append(parts, strings.ReplaceAll(s, " ", "_"))
		}
	}
	opts := "shared=" + boolOption(p.Shared)
	if p.OS != Windows {
		opts = "fPIC=" + boolOption(p.FPIC) + "-" + opts
	}
	return strings.Join(parts, "-") + "+" + opts
}

// ParseBoolOption parses an option value such as "True", "false" or "1".
func ParseBoolOption(s string) (bool, error) {
	return strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
}

func boolOption(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
