package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/llar-formulas/libpqxx/recipe"
)

// Workspace directory layout:
//
//	workDir/
//	  downloads/                    # archive cache shared by all settings
//	  libpqxx-7.0.0/
//	    <settings key>/             # Workspace.Root
//	      .lock
//	      .cache.json               # Manifest of the last successful build
//	      source/                   # extracted and patched sources
//	      build/                    # driver build tree
//	      package/                  # install prefix, licenses/
const cacheFile = ".cache.json"

// Manifest records a successful build.
type Manifest struct {
	Key        string             `json:"key"`
	BuildSys   string             `json:"build_system"`
	PackageDir string             `json:"package_dir"`
	Metadata   recipe.PackageInfo `json:"metadata"`
	BuildTime  time.Time          `json:"build_time"`
}

// Workspace holds the directories of one settings-specific build.
type Workspace struct {
	Root    string
	Source  string
	Build   string
	Package string
}

func newWorkspace(workDir, key string) Workspace {
	root := filepath.Join(workDir, recipe.Name+"-"+recipe.Version, key)
	return Workspace{
		Root:    root,
		Source:  filepath.Join(root, "source"),
		Build:   filepath.Join(root, "build"),
		Package: filepath.Join(root, "package"),
	}
}

func (w Workspace) manifestPath() string {
	return filepath.Join(w.Root, cacheFile)
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func saveManifest(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
