//go:build !windows

package autotools

import "golang.org/x/sys/unix"

// checkExecutable fails when path cannot be executed by the current user.
func checkExecutable(path string) error {
	return unix.Access(path, unix.X_OK)
}
