// Package recipe describes how libpqxx is fetched, patched, configured and
// packaged, and turns a target Platform into a concrete build Plan.
package recipe

import (
	"fmt"
	"strings"
)

const (
	Name        = "libpqxx"
	Version     = "7.0.0"
	Description = "The official C++ client API for PostgreSQL"
	Homepage    = "https://github.com/jtv/libpqxx"
	License     = "BSD-3-Clause"

	// SourceSHA256 is the checksum of the release tarball at SourceURL.
	SourceSHA256 = "7527bfde17a7123776fa0891f1b83273b32e1bc78dad7af1e893bd2b980ef882"

	// LicenseFile is the license file shipped in the source tree.
	LicenseFile = "COPYING"
)

// SourceURL returns the release tarball location.
func SourceURL() string {
	return fmt.Sprintf("%s/archive/%s.tar.gz", Homepage, Version)
}

// ExtractedDir is the top-level directory of the release tarball.
func ExtractedDir() string {
	return Name + "-" + Version
}

// Requirement is a library that must be installed before building.
type Requirement struct {
	Name    string
	Version string

	// ForceShared asks the resolver to provide the shared variant of the
	// dependency regardless of its own default.
	ForceShared bool
}

func (r Requirement) String() string {
	return r.Name + "/" + r.Version
}

// LibpqRequirement is the PostgreSQL client library this recipe builds against.
var LibpqRequirement = Requirement{Name: "libpq", Version: "9.6.9"}

// Requirements returns the dependencies of a build for p.
// A shared Windows build links libpq dynamically.
func (pl *Planner) Requirements(p Platform) []Requirement {
	req := LibpqRequirement
	if p.Shared && p.OS == Windows {
		pl.logger.Infof("Override %s:shared to True.", req.Name)
		req.ForceShared = true
	}
	return []Requirement{req}
}

// libName returns the versioned library name, e.g. "pqxx-7.0".
func libName() string {
	parts := strings.SplitN(Version, ".", 3)
	if len(parts) < 2 {
		return "pqxx-" + Version
	}
	return "pqxx-" + parts[0] + "." + parts[1]
}
