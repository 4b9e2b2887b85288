package recipe

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// SourcePatch replaces one literal block of text in a file of the source tree.
type SourcePatch struct {
	// Path is slash-separated and relative to the source root.
	Path        string
	Match       string
	Replace     string
	Description string
}

// Diff renders the patch as a textual diff against its match text.
func (sp SourcePatch) Diff() string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(sp.Match, sp.Replace, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(sp.Match, diffs))
}

// ApplySourcePatches applies patches in order to the tree rooted at root.
// Match text is a literal and only its first occurrence is replaced.
// The first patch that cannot be applied stops the run with a
// *PatchApplicationError; earlier patches stay applied.
func ApplySourcePatches(root string, patches []SourcePatch) error {
	for _, sp := range patches {
		if err := applyPatch(root, sp); err != nil {
			return err
		}
	}
	return nil
}

func applyPatch(root string, sp SourcePatch) error {
	file := filepath.Join(root, filepath.FromSlash(sp.Path))
	info, err := os.Stat(file)
	if err != nil {
		reason := "cannot stat file"
		if errors.Is(err, fs.ErrNotExist) {
			reason = "file not found"
		}
		return &PatchApplicationError{Path: sp.Path, Reason: reason, Err: err}
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return &PatchApplicationError{Path: sp.Path, Reason: "cannot read file", Err: err}
	}
	content := string(data)
	if !strings.Contains(content, sp.Match) {
		if sp.Replace != "" && strings.Contains(content, sp.Replace) {
			return &PatchApplicationError{Path: sp.Path, Reason: sp.Description, Err: ErrAlreadyPatched}
		}
		return &PatchApplicationError{Path: sp.Path, Reason: sp.Description, Err: ErrSourceDrift}
	}
	content = strings.Replace(content, sp.Match, sp.Replace, 1)
	if err := os.WriteFile(file, []byte(content), info.Mode().Perm()); err != nil {
		return &PatchApplicationError{Path: sp.Path, Reason: "cannot write file", Err: err}
	}
	return nil
}
