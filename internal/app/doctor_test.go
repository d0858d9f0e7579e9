package app

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/drhuang0922/ngic/internal/converter"
)

func TestCodecRoundTrip(t *testing.T) {
	for _, format := range converter.SupportedFormats {
		t.Run(string(format), func(t *testing.T) {
			if err := codecRoundTrip(format); err != nil {
				t.Errorf("codecRoundTrip(%s) error = %v", format, err)
			}
		})
	}
}

func TestCodecRoundTrip_UnknownFormat(t *testing.T) {
	if err := codecRoundTrip(converter.Format("bmp")); err == nil {
		t.Error("expected error for unknown format")
	}
}

// TestRunDoctor_WarningOnlyExitsCode0 verifies that a fresh install with no
// history database yet only warns.
func TestRunDoctor_WarningOnlyExitsCode0(t *testing.T) {
	isolate(t)

	stdout, _, err := runNGIC(t, "doctor")
	if err != nil {
		t.Fatalf("expected doctor to return nil for warnings-only, got: %v", err)
	}
	for _, want := range []string{
		"Running ngic diagnostics",
		"No config file, using defaults",
		"No history database yet",
		"Watch daemon not running",
		"webp codec: pass",
		"avif codec: pass",
		"Found 1 warning(s)",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("doctor output should contain %q, got:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "Fix:") {
		t.Error("doctor hints should not use 'Fix:'")
	}
}

func TestRunDoctor_AllChecksPass(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	input := writePNG(t, dir, "a.png", 4, 4)
	if _, _, err := runNGIC(t, input, filepath.Join(dir, "a.jpg"), "jpeg"); err != nil {
		t.Fatalf("conversion failed: %v", err)
	}

	stdout, _, err := runNGIC(t, "doctor")
	if err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
	if !strings.Contains(stdout, "(1 conversions)") {
		t.Errorf("doctor should report history size, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "All checks passed!") {
		t.Errorf("expected all checks to pass, got:\n%s", stdout)
	}
}

// TestRunDoctor_CriticalIssueReturnsError verifies that an unusable database
// path fails so main prints "Error: diagnostics failed" and exits 1.
func TestRunDoctor_CriticalIssueReturnsError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	// A directory where the database file should be
	_, _, err := runNGIC(t, "--db", dir, "doctor")
	if err == nil {
		t.Fatal("expected doctor to fail for critical issues")
	}
	if !strings.Contains(err.Error(), "diagnostics failed") {
		t.Errorf("expected error to contain 'diagnostics failed', got: %v", err)
	}
}
