package app

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/drhuang0922/ngic/internal/checksum"
	"github.com/drhuang0922/ngic/internal/formula"
	"github.com/drhuang0922/ngic/internal/version"
)

// sha256("test")
const testSum = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func TestFormulaCommand(t *testing.T) {
	names := map[string]bool{}
	for _, c := range formulaCmd.Commands() {
		names[c.Name()] = true
	}
	if !names["render"] || !names["verify"] {
		t.Errorf("formula should have render and verify subcommands, got %v", names)
	}

	flag := formulaCmd.PersistentFlags().Lookup("version")
	if flag == nil || flag.DefValue != version.Version {
		t.Errorf("--version should default to %s", version.Version)
	}
}

func TestFormulaRender(t *testing.T) {
	isolate(t)

	stdout, _, err := runNGIC(t, "formula", "render", "--version", "2.0.0", "--sha256", testSum)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{
		"class Ngic < Formula",
		`desc "Next Generation Image Converter - Convert JPG/PNG to WebP/AVIF"`,
		`url "https://github.com/drhuang0922/ngic/archive/v2.0.0.tar.gz"`,
		`sha256 "` + testSum + `"`,
		`license "MIT"`,
		`head "https://github.com/drhuang0922/ngic.git", branch: "main"`,
		`depends_on "go" => :build`,
		`system "go", "build", *std_go_args(ldflags: "-s -w"), "./cmd/ngic"`,
		`shell_output("#{bin}/ngic -version")`,
		`assert_match "Usage:", help_output`,
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("formula should contain %q, got:\n%s", want, stdout)
		}
	}
}

func TestFormulaRender_UppercaseChecksum(t *testing.T) {
	isolate(t)

	stdout, _, err := runNGIC(t, "formula", "render", "--sha256", strings.ToUpper(testSum))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(stdout, `sha256 "`+testSum+`"`) {
		t.Errorf("formula should carry the lowercased checksum, got:\n%s", stdout)
	}
}

func TestFormulaRender_FromArchive(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	archive := filepath.Join(dir, "v1.0.0.tar.gz")
	if err := os.WriteFile(archive, []byte("release archive bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	want, err := checksum.File(archive)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "Formula", "ngic.rb")
	stdout, _, err := runNGIC(t, "formula", "render", "--archive", archive, "-o", out)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if stdout != "" {
		t.Errorf("render -o should not print the formula, got %q", stdout)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("expected formula file: %v", err)
	}
	if !strings.Contains(string(data), `sha256 "`+want+`"`) {
		t.Errorf("formula should carry the archive checksum, got:\n%s", data)
	}
}

func TestFormulaRender_RequiresChecksum(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "missing", args: nil, want: formula.ErrMissingChecksum},
		{name: "malformed", args: []string{"--sha256", "abc123"}, want: formula.ErrInvalidChecksum},
		{name: "non-hex", args: []string{"--sha256", strings.Repeat("z", 64)}, want: formula.ErrInvalidChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"formula", "render"}, tt.args...)
			stdout, _, err := runNGIC(t, args...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if stdout != "" {
				t.Errorf("nothing should be rendered, got %q", stdout)
			}
		})
	}

	if _, _, err := runNGIC(t, "formula", "render", "--archive", "x.tar.gz", "--sha256", testSum); err == nil {
		t.Error("--archive and --sha256 together should fail")
	}
}

func TestFormulaVerify(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}
	isolate(t)

	write := func(script string) string {
		path := filepath.Join(t.TempDir(), "ngic")
		if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
			t.Fatal(err)
		}
		return path
	}

	good := write(`case "$1" in
  -version) echo "ngic version 3.1.4" ;;
  -h) printf 'ngic - Next Generation Image Converter v3.1.4\n\nUsage:\n  ngic [flags]\n' ;;
  *) exit 2 ;;
esac
`)
	stdout, _, err := runNGIC(t, "formula", "verify", "--bin", good, "--version", "3.1.4")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.Contains(stdout, "Formula test passed") {
		t.Errorf("unexpected output: %q", stdout)
	}

	_, _, err = runNGIC(t, "formula", "verify", "--bin", good, "--version", "9.9.9")
	if err == nil || !strings.Contains(err.Error(), "formula test failed") {
		t.Errorf("verify with wrong version should fail, got %v", err)
	}

	noUsage := write(`case "$1" in
  -version) echo "ngic version 3.1.4" ;;
  -h) echo "ngic - Next Generation Image Converter" ;;
esac
`)
	_, _, err = runNGIC(t, "formula", "verify", "--bin", noUsage, "--version", "3.1.4")
	if err == nil || !strings.Contains(err.Error(), `"Usage:"`) {
		t.Errorf("verify without usage section should fail, got %v", err)
	}
}
