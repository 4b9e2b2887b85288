package recipe

import (
	"path/filepath"
	"strings"
)

// PackageInfo is the link-time metadata of a packaged build.
type PackageInfo struct {
	Libs        []string `json:"libs"`
	SystemLibs  []string `json:"system_libs,omitempty"`
	IncludeDirs []string `json:"include_dirs"`
	LibDirs     []string `json:"lib_dirs"`
}

// Info returns the metadata for a build of p with the given driver.
// Autotools names the shared library after the release ("pqxx-7.0");
// the patched CMake build and static builds use plain "pqxx".
func Info(p Platform, kind BuildSystemKind) PackageInfo {
	lib := "pqxx"
	if kind == Autotools && p.Shared {
		lib = libName()
	}
	info := PackageInfo{
		Libs:        []string{lib},
		IncludeDirs: []string{"include"},
		LibDirs:     []string{"lib"},
	}
	switch p.OS {
	case Windows:
		info.SystemLibs = []string{"wsock32", "Ws2_32"}
	case Linux:
		info.SystemLibs = []string{"pthread"}
	}
	return info
}

// AllLibs returns the package libraries followed by the system libraries.
func (i PackageInfo) AllLibs() []string {
	libs := make([]string, 0, len(i.Libs)+len(i.SystemLibs))
	libs = append(libs, i.Libs...)
	return append(libs, i.SystemLibs...)
}

// Flags renders compiler and linker flags for a package installed at root,
// in the form pkg-config --cflags --libs prints them.
func (i PackageInfo) Flags(root string) string {
	var flags []string
	for _, dir := range i.IncludeDirs {
		flags = append(flags, "-I"+filepath.Join(root, dir))
	}
	for _, dir := range i.LibDirs {
		flags = append(flags, "-L"+filepath.Join(root, dir))
	}
	for _, lib := range i.AllLibs() {
		flags = append(flags, "-l"+lib)
	}
	return strings.Join(flags, " ")
}
