package formula

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBinary writes a shell script that mimics an ngic build.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ngic")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

const goodNgic = `case "$1" in
  -version) echo "ngic version 1.2.3" ;;
  -h) printf 'ngic - Next Generation Image Converter v1.2.3\n\nUsage:\n  ngic [flags]\n' ;;
  *) exit 2 ;;
esac
`

func TestChecks(t *testing.T) {
	checks := Checks("1.2.3")
	require.Len(t, checks, 2)
	assert.Equal(t, []string{"-version"}, checks[0].Args)
	assert.Equal(t, []string{"1.2.3"}, checks[0].Want)
	assert.Equal(t, []string{"-h"}, checks[1].Args)
	assert.Equal(t, []string{HelpBanner, UsageMarker}, checks[1].Want)
}

func TestVerifyPasses(t *testing.T) {
	bin := fakeBinary(t, goodNgic)
	assert.NoError(t, Verify(context.Background(), bin, "1.2.3"))
}

func TestVerifyWrongVersion(t *testing.T) {
	bin := fakeBinary(t, goodNgic)
	err := Verify(context.Background(), bin, "9.9.9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"9.9.9"`)
}

func TestVerifyMissingUsage(t *testing.T) {
	bin := fakeBinary(t, `case "$1" in
  -version) echo "ngic version 1.2.3" ;;
  -h) echo "Next Generation Image Converter" ;;
esac
`)
	err := Verify(context.Background(), bin, "1.2.3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Usage:")
}

func TestVerifyIgnoresStderr(t *testing.T) {
	bin := fakeBinary(t, `case "$1" in
  -version) echo "ngic version 1.2.3" >&2 ;;
  -h) printf 'ngic - Next Generation Image Converter v1.2.3\n\nUsage:\n  ngic [flags]\n' >&2 ;;
esac
`)
	err := Verify(context.Background(), bin, "1.2.3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-version: stdout does not contain")
	assert.Contains(t, err.Error(), "stderr: ngic version 1.2.3")
}

func TestVerifyNonZeroExit(t *testing.T) {
	bin := fakeBinary(t, "echo 'ngic version 1.2.3'\nexit 1\n")
	err := Verify(context.Background(), bin, "1.2.3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-version failed")
}

func TestVerifyMissingBinary(t *testing.T) {
	err := Verify(context.Background(), filepath.Join(t.TempDir(), "nope"), "1.2.3")
	assert.Error(t, err)
}
