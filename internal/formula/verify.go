package formula

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/drhuang0922/ngic/internal/logging"
)

// DefaultVerifyTimeout bounds each command run by Verify.
const DefaultVerifyTimeout = 30 * time.Second

// Check is one post-install assertion: run the binary with Args and expect
// every string in Want to appear on its stdout. Homebrew's shell_output
// captures stdout only.
type Check struct {
	Args []string
	Want []string
}

// Checks returns the formula's test block as data: `-version` must print the
// version, `-h` must print the banner and a usage section.
func Checks(version string) []Check {
	return []Check{
		{Args: []string{"-version"}, Want: []string{version}},
		{Args: []string{"-h"}, Want: []string{HelpBanner, UsageMarker}},
	}
}

// Verify runs the formula's post-install assertions against binary. Any
// command failure or missing substring fails the whole verification.
func Verify(ctx context.Context, binary, version string) error {
	for _, c := range Checks(version) {
		if err := runCheck(ctx, binary, c); err != nil {
			return err
		}
	}
	return nil
}

func runCheck(ctx context.Context, binary string, c Check) error {
	log := logging.Logger()

	ctx, cancel := context.WithTimeout(ctx, DefaultVerifyTimeout)
	defer cancel()

	cmdline := strings.Join(append([]string{binary}, c.Args...), " ")
	log.Debugf("verify: running %s", cmdline)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, c.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w (stderr: %s)", cmdline, err, strings.TrimSpace(stderr.String()))
	}

	for _, want := range c.Want {
		if !strings.Contains(stdout.String(), want) {
			return fmt.Errorf("%s: stdout does not contain %q (stdout: %s, stderr: %s)", cmdline, want,
				strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()))
		}
	}

	log.Debugf("verify: %s ok", cmdline)
	return nil
}
