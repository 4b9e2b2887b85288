package env

import (
	"os"
	"path/filepath"

	"github.com/llar-formulas/libpqxx/recipe"
)

// WorkDir returns the default workspace root, <UserCacheDir>/.libpqxx.
func WorkDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, "."+recipe.Name), nil
}

// DownloadDir returns the directory holding downloaded archives under
// workDir. It is shared by the builds of every setting.
func DownloadDir(workDir string) string {
	return filepath.Join(workDir, "downloads")
}
