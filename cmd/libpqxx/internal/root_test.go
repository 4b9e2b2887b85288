package internal

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"github.com/llar-formulas/libpqxx/recipe"
)

// execute runs the root command with args and returns what it printed on
// stdout. Flag state is reset afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(resetFlags)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags() {
	profilePath, osFlag, archFlag, buildTypeFlag = "", "", "", ""
	compilerFlag, compilerVersion, cppStdFlag = "", "", ""
	optionFlags, workDirFlag, jobsFlag, verbose = nil, "", 0, false
	planJSON, infoJSON, patchesDiff = false, false, false
	patchesApply, packageOutput, createOutput = "", "", ""

	unchange := func(f *pflag.Flag) { f.Changed = false }
	rootCmd.PersistentFlags().VisitAll(unchange)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(unchange)
	}
}

func linuxArgs(t *testing.T, cmd string, extra ...string) []string {
	return append([]string{cmd,
		"--os", "Linux", "--arch", "x86_64",
		"--compiler", "gcc", "--compiler-version", "9",
		"--workdir", t.TempDir(),
	}, extra...)
}

func TestPatchesList(t *testing.T) {
	out, err := execute(t, "patches")
	if err != nil {
		t.Fatalf("patches: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(recipe.Patches()) {
		t.Fatalf("patches printed %d lines, want %d:\n%s", len(lines), len(recipe.Patches()), out)
	}
	if !strings.HasPrefix(lines[2], "3. src/connection.cxx") {
		t.Errorf("line 3 = %q", lines[2])
	}
}

func TestPatchesDiff(t *testing.T) {
	out, err := execute(t, "patches", "--diff")
	if err != nil {
		t.Fatalf("patches --diff: %v", err)
	}
	if strings.Count(out, "@@") < 2*len(recipe.Patches()) {
		t.Errorf("patches --diff output has no hunks:\n%s", out)
	}
}

func TestPatchesApply(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{}
	for _, p := range recipe.Patches() {
		files[p.Path] += p.Match + "\n"
	}
	for name, content := range files {
		path := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := execute(t, "patches", "--apply", src); err != nil {
		t.Fatalf("patches --apply: %v", err)
	}
	_, err := execute(t, "patches", "--apply", src)
	if err == nil || !strings.Contains(err.Error(), "already applied") {
		t.Errorf("second apply err = %v, want already applied", err)
	}
}

func TestPlanLinux(t *testing.T) {
	root := t.TempDir()
	t.Setenv("LIBPQ_ROOT", root)

	out, err := execute(t, linuxArgs(t, "plan")...)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for _, want := range []string{
		"build system: autotools",
		"cppstd:       17",
		"--enable-static=yes --enable-shared=no --with-pic CXXFLAGS=-std=c++17",
		"--with-postgres-include=" + filepath.Join(root, "include"),
		"env:          PG_CONFIG=" + filepath.Join(root, "bin", "pg_config"),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}
}

func TestPlanWindowsJSON(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "bin", "libpq.dll"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIBPQ_ROOT", root)

	out, err := execute(t, "plan", "--json",
		"--os", "Windows", "--arch", "x86_64",
		"--compiler", "Visual Studio", "--compiler-version", "16",
		"--cppstd", "20", "-o", "shared=True", "--workdir", t.TempDir())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	var got struct {
		Key      string `json:"key"`
		BuildSys string `json:"build_system"`
		Standard string `json:"cppstd"`
		Plan     struct {
			Defines     map[string]string `json:"defines"`
			BoolDefines map[string]bool   `json:"bool_defines"`
		} `json:"plan"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.BuildSys != "cmake" || got.Standard != "20" {
		t.Errorf("build system, cppstd = %q, %q, want cmake, 20", got.BuildSys, got.Standard)
	}
	if got.Key != "x86_64-Visual_Studio-16-20-Windows+shared=True" {
		t.Errorf("key = %q", got.Key)
	}
	wantBools := map[string]bool{"BUILD_DOC": false, "BUILD_TEST": false, "BUILD_SHARED_LIBS": true}
	if diff := cmp.Diff(wantBools, got.Plan.BoolDefines); diff != "" {
		t.Errorf("bool defines mismatch (-want +got):\n%s", diff)
	}
	if got.Plan.Defines["CMAKE_CXX_STANDARD"] != "20" {
		t.Errorf("defines = %v", got.Plan.Defines)
	}
}

func TestPlanBuildType(t *testing.T) {
	t.Setenv("LIBPQ_ROOT", t.TempDir())
	out, err := execute(t, linuxArgs(t, "plan", "--build-type", "Debug")...)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if want := "settings:     x86_64-Debug-gcc-9-17-Linux+fPIC=True-shared=False"; !strings.Contains(out, want) {
		t.Errorf("plan output missing %q:\n%s", want, out)
	}
}

func TestPlanRequiresSharedLibpq(t *testing.T) {
	t.Setenv("LIBPQ_ROOT", t.TempDir())
	_, err := execute(t, "plan", "--os", "Windows", "--arch", "x86_64",
		"--compiler", "Visual Studio", "--compiler-version", "16",
		"-o", "shared=True", "--workdir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no shared library") {
		t.Errorf("plan err = %v, want missing shared libpq", err)
	}
}

func TestPlanRejectsOldCompiler(t *testing.T) {
	t.Setenv("LIBPQ_ROOT", t.TempDir())
	_, err := execute(t, "plan", "--os", "Linux", "--compiler", "gcc", "--compiler-version", "6", "--workdir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "gcc 6 is not supported") {
		t.Errorf("plan err = %v, want unsupported gcc 6", err)
	}
}

func TestPlanRejectsUnknownOption(t *testing.T) {
	_, err := execute(t, linuxArgs(t, "plan", "-o", "docs=True")...)
	if err == nil || !strings.Contains(err.Error(), "docs") {
		t.Errorf("plan err = %v, want unknown option", err)
	}
}

func TestPlanFromProfile(t *testing.T) {
	root := t.TempDir()
	t.Setenv("LIBPQ_ROOT", "")
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	content := `settings:
  os: Macos
  arch: armv8
  compiler:
    name: apple-clang
    version: "12.0"
options:
  shared: true
dependencies:
  libpq:
    root: ` + filepath.ToSlash(root) + `
`
	if err := os.WriteFile(profile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "plan", "--profile", profile, "--workdir", t.TempDir())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(out, "--enable-static=no --enable-shared=yes CXXFLAGS") {
		t.Errorf("plan output is not a shared build:\n%s", out)
	}
	if strings.Contains(out, "--with-pic") {
		t.Errorf("shared build passes --with-pic:\n%s", out)
	}
}

func TestInfoJSON(t *testing.T) {
	out, err := execute(t, "info", "--json",
		"--os", "Windows", "--compiler", "Visual Studio", "--compiler-version", "16",
		"-o", "shared=True", "--workdir", t.TempDir())
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	var got recipe.PackageInfo
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := recipe.PackageInfo{
		Libs:        []string{"pqxx"},
		SystemLibs:  []string{"wsock32", "Ws2_32"},
		IncludeDirs: []string{"include"},
		LibDirs:     []string{"lib"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("info mismatch (-want +got):\n%s", diff)
	}
}

func TestInfoText(t *testing.T) {
	workDir := t.TempDir()
	out, err := execute(t, "info", "--os", "Linux", "--arch", "x86_64",
		"--compiler", "gcc", "--compiler-version", "9", "-o", "shared=True", "--workdir", workDir)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"libs:        pqxx-7.0", "system libs: pthread", "-lpqxx-7.0 -lpthread"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}
}

func TestZipDir(t *testing.T) {
	src := t.TempDir()
	for _, name := range []string{"include/pqxx/pqxx", "lib/libpqxx.a", "licenses/COPYING"} {
		path := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	dest := filepath.Join(t.TempDir(), "pkg.zip")
	if err := outputResult(src, dest); err != nil {
		t.Fatalf("outputResult: %v", err)
	}
	r, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	slices.Sort(names)
	want := []string{"include/pqxx/pqxx", "lib/libpqxx.a", "licenses/COPYING"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("zip entries mismatch (-want +got):\n%s", diff)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteZipReportsCloseError(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "COPYING"), []byte("BSD"), 0o644); err != nil {
		t.Fatal(err)
	}
	// The archive fits in the writer's buffer, so the failure only surfaces
	// when the central directory is flushed.
	err := writeZip(failingWriter{}, src)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("writeZip err = %v, want disk full", err)
	}
}

func TestOutputResultCopiesDir(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "COPYING"), []byte("BSD"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "out")
	if err := outputResult(src, dest); err != nil {
		t.Fatalf("outputResult: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "COPYING")); err != nil {
		t.Errorf("file not copied: %v", err)
	}
}
