package recipe

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyPatched reports that a patch's match text is gone but its
	// replacement is present: the tree has been patched before.
	ErrAlreadyPatched = errors.New("patch already applied")

	// ErrSourceDrift reports that neither the match text nor the
	// replacement is present: upstream changed the patched code.
	ErrSourceDrift = errors.New("match text not found")
)

// UnsupportedToolchainError is returned when the compiler is older than
// the minimum known to support C++17.
type UnsupportedToolchainError struct {
	Compiler string
	Version  string
	Minimum  string
}

func (e *UnsupportedToolchainError) Error() string {
	return fmt.Sprintf("%s requires a compiler that supports at least C++%s. %s %s is not supported (minimum %s)",
		Name, MinimalCppStd, e.Compiler, e.Version, e.Minimum)
}

// UnsupportedStandardError is returned when the requested C++ standard is
// not one this version of the library was validated against.
type UnsupportedStandardError struct {
	Standard  string
	Supported []string
}

func (e *UnsupportedStandardError) Error() string {
	return fmt.Sprintf("%s requires a compiler that supports at least C++%s: cppstd %q is not one of [%s]",
		Name, MinimalCppStd, e.Standard, strings.Join(e.Supported, ", "))
}

// PatchApplicationError is returned when a source patch cannot be applied.
// A failed patch leaves the source tree in an unspecified state.
type PatchApplicationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *PatchApplicationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("patch %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("patch %s: %s", e.Path, e.Reason)
}

func (e *PatchApplicationError) Unwrap() error {
	return e.Err
}
