package deps

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/qiniu/x/log"

	"github.com/llar-formulas/libpqxx/recipe"
)

func newTestResolver(t *testing.T, opts ...Option) (*Resolver, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts = append([]Option{WithLogger(log.New(&buf, "", log.Llevel))}, opts...)
	r := NewResolver(opts...)
	r.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	return r, &buf
}

func TestResolveFromProfile(t *testing.T) {
	root := t.TempDir()
	t.Setenv("LIBPQ_ROOT", "")
	r, buf := newTestResolver(t, WithRoots(map[string]string{"libpq": root}))

	dep, err := r.Resolve(context.Background(), recipe.LibpqRequirement)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dep.Root != root {
		t.Errorf("Root = %q, want %q", dep.Root, root)
	}
	if !strings.Contains(buf.String(), "profile") {
		t.Errorf("log = %q, want source named", buf.String())
	}
}

func TestResolveFromEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("LIBPQ_ROOT", root)
	r, _ := newTestResolver(t)

	dep, err := r.Resolve(context.Background(), recipe.LibpqRequirement)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dep.Root != root {
		t.Errorf("Root = %q, want %q", dep.Root, root)
	}
}

func TestResolveForceShared(t *testing.T) {
	req := recipe.LibpqRequirement
	req.ForceShared = true

	tests := []struct {
		name  string
		files []string
		ok    bool
	}{
		{"static only", []string{"lib/libpq.a", "lib/libpq.lib"}, false},
		{"linux", []string{"lib/libpq.a", "lib/libpq.so.5"}, true},
		{"macos", []string{"lib/libpq.5.dylib"}, true},
		{"windows", []string{"lib/libpq.lib", "bin/libpq.dll"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, name := range tt.files {
				path := filepath.Join(root, filepath.FromSlash(name))
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(path, nil, 0o644); err != nil {
					t.Fatal(err)
				}
			}
			t.Setenv("LIBPQ_ROOT", root)
			r, _ := newTestResolver(t)

			_, err := r.Resolve(context.Background(), req)
			if tt.ok && err != nil {
				t.Errorf("Resolve: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrNoSharedLibrary) {
				t.Errorf("Resolve err = %v, want ErrNoSharedLibrary", err)
			}
		})
	}
}

func TestResolveFromProbe(t *testing.T) {
	root := t.TempDir()
	t.Setenv("LIBPQ_ROOT", "")
	r, _ := newTestResolver(t)

	var gotArgs []string
	r.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	r.output = func(_ context.Context, name string, args ...string) (string, error) {
		gotArgs = append([]string{name}, args...)
		return filepath.Join(root, "bin") + "\n", nil
	}

	dep, err := r.Resolve(context.Background(), recipe.LibpqRequirement)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dep.Root != root {
		t.Errorf("Root = %q, want %q", dep.Root, root)
	}
	if len(gotArgs) != 2 || gotArgs[1] != "--bindir" {
		t.Errorf("probe args = %v, want [pg_config --bindir]", gotArgs)
	}
}

func TestResolveNotFound(t *testing.T) {
	t.Setenv("LIBPQ_ROOT", "")
	r, _ := newTestResolver(t)
	_, err := r.Resolve(context.Background(), recipe.LibpqRequirement)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve err = %v, want ErrNotFound", err)
	}
}

func TestResolveMissingRoot(t *testing.T) {
	t.Setenv("LIBPQ_ROOT", filepath.Join(t.TempDir(), "gone"))
	r, _ := newTestResolver(t)
	if _, err := r.Resolve(context.Background(), recipe.LibpqRequirement); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestDependencyPaths(t *testing.T) {
	d := &Dependency{Name: "libpq", Root: "/opt/pq"}
	probe := "pg_config"
	if runtime.GOOS == "windows" {
		probe += ".exe"
	}
	want := recipe.DependencyPaths{
		Root:        "/opt/pq",
		IncludeDir:  filepath.Join("/opt/pq", "include"),
		LibDir:      filepath.Join("/opt/pq", "lib"),
		ConfigProbe: filepath.Join("/opt/pq", "bin", probe),
	}
	if diff := cmp.Diff(want, d.Paths()); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvKey(t *testing.T) {
	for name, want := range map[string]string{
		"libpq":    "LIBPQ_ROOT",
		"open-ssl": "OPEN_SSL_ROOT",
	} {
		if got := envKey(name); got != want {
			t.Errorf("envKey(%q) = %q, want %q", name, got, want)
		}
	}
}
