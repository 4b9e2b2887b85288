package recipe

import "testing"

func TestParseOS(t *testing.T) {
	tests := map[string]OS{
		"Windows": Windows,
		"windows": Windows,
		"Linux":   Linux,
		"linux":   Linux,
		"Macos":   Macos,
		"darwin":  Macos,
		"FreeBSD": Other,
		"":        Other,
	}
	for in, want := range tests {
		if got := ParseOS(in); got != want {
			t.Errorf("ParseOS(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPlatformKey(t *testing.T) {
	tests := []struct {
		p    Platform
		want string
	}{
		{
			Platform{OS: Linux, Arch: "x86_64", Compiler: "gcc", CompilerVersion: "9", CppStd: "17", FPIC: true},
			"x86_64-gcc-9-17-Linux+fPIC=True-shared=False",
		},
		{
			Platform{OS: Windows, Arch: "x86_64", Compiler: "Visual Studio", CompilerVersion: "16", Shared: true, FPIC: true},
			"x86_64-Visual_Studio-16-Windows+shared=True",
		},
		{
			Platform{OS: Linux, Arch: "armv8", BuildType: "Debug", Compiler: "clang", CompilerVersion: "12", CppStd: "20"},
			"armv8-Debug-clang-12-20-Linux+fPIC=False-shared=False",
		},
		{
			Platform{OS: Macos},
			"Macos+fPIC=False-shared=False",
		},
	}
	for _, tt := range tests {
		if got := tt.p.Key(); got != tt.want {
			t.Errorf("Key() = %q, want %q", got, tt.want)
		}
	}
}

func TestPlatformValueSemantics(t *testing.T) {
	p := Platform{OS: Windows, FPIC: true}
	n := p.Normalize().WithCppStd("20")
	if !p.FPIC || p.CppStd != "" {
		t.Errorf("original modified: %+v", p)
	}
	if n.FPIC || n.CppStd != "20" {
		t.Errorf("Normalize().WithCppStd = %+v", n)
	}
	if l := (Platform{OS: Linux, FPIC: true}).Normalize(); !l.FPIC {
		t.Error("Normalize dropped fPIC on Linux")
	}
}

func TestParseBoolOption(t *testing.T) {
	for in, want := range map[string]bool{"True": true, "false": false, "1": true, "FALSE": false} {
		got, err := ParseBoolOption(in)
		if err != nil || got != want {
			t.Errorf("ParseBoolOption(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseBoolOption("maybe"); err == nil {
		t.Error("ParseBoolOption(maybe) want error")
	}
}
