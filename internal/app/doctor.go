package app

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/drhuang0922/ngic/internal/config"
	"github.com/drhuang0922/ngic/internal/converter"
	"github.com/drhuang0922/ngic/internal/output"
	"github.com/drhuang0922/ngic/internal/store"
	"github.com/drhuang0922/ngic/internal/watcher"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues and check codec health",
	Long: `Runs diagnostic checks on your ngic installation.

Checks:
  • Config file parses
  • History database is accessible
  • Watch daemon state
  • Every codec can encode and decode a test image`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Running ngic diagnostics...")
	fmt.Fprintln(out)

	// Critical issues fail the command; warnings only get reported.
	criticalIssues := 0
	warningIssues := 0

	// Check 1: Config
	switch {
	case configPath != "":
		fmt.Fprintln(out, "✓ Config loaded:", configPath)
	default:
		if dir, err := config.Dir(); err == nil {
			path := filepath.Join(dir, config.FileName)
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "✓ Config loaded:", path)
			} else {
				fmt.Fprintln(out, "✓ No config file, using defaults")
			}
		}
	}

	// Check 2: History database
	if !historyEnabled() {
		fmt.Fprintln(out, "⚠ History disabled (--skip-unchanged will not work)")
		warningIssues++
	} else if resolvedDBPath, err := getDBPath(); err != nil {
		fmt.Fprintln(out, "✗ Database path error:", err)
		criticalIssues++
	} else if _, err := os.Stat(resolvedDBPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "⚠ No history database yet at:", resolvedDBPath)
		fmt.Fprintln(out, "  It is created by the first conversion")
		warningIssues++
	} else {
		st, err := store.New(resolvedDBPath)
		if err != nil {
			fmt.Fprintln(out, "✗ Cannot open database:", err)
			criticalIssues++
		} else {
			n, err := st.CountConversions()
			st.Close()
			if err != nil {
				fmt.Fprintln(out, "✗ Cannot read history:", err)
				criticalIssues++
			} else {
				fmt.Fprintf(out, "✓ History database: %s (%d conversions)\n", resolvedDBPath, n)
			}
		}
	}

	// Check 3: Watch daemon, informational only
	if pidFile, err := getDefaultPIDFile(); err != nil {
		fmt.Fprintln(out, "⚠ Failed to get PID file path:", err)
		warningIssues++
	} else if running, err := watcher.IsDaemonRunning(pidFile); err != nil {
		fmt.Fprintln(out, "⚠ Failed to check daemon status:", err)
		warningIssues++
	} else if running {
		fmt.Fprintln(out, "✓ Watch daemon running")
	} else {
		fmt.Fprintln(out, "✓ Watch daemon not running")
	}

	// Check 4: Codec round trip
	for _, format := range converter.SupportedFormats {
		start := time.Now()
		spinner := output.NewSpinner(out, fmt.Sprintf("Testing %s codec", format))
		spinner.Start()
		err := codecRoundTrip(format)
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			spinner.StopWithMessage(fmt.Sprintf("✗ %s codec: fail (%v)", format, elapsed))
			fmt.Fprintf(out, "  %v\n", err)
			criticalIssues++
		} else {
			spinner.StopWithMessage(fmt.Sprintf("✓ %s codec: pass (%v)", format, elapsed))
		}
	}

	fmt.Fprintln(out)
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Fprintln(out, "✓ All checks passed!")
		return nil
	}

	if criticalIssues > 0 {
		fmt.Fprintf(out, "Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return fmt.Errorf("diagnostics failed")
	}

	fmt.Fprintf(out, "Found %d warning(s). ngic will work, but see above.\n", warningIssues)
	return nil
}

// codecRoundTrip encodes a small test image in format and decodes it back.
func codecRoundTrip(format converter.Format) error {
	const w, h = 16, 16
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := converter.NewImageConverter().Encode(&buf, img, format); err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	decoded, name, err := image.Decode(&buf)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if name != string(format) {
		return fmt.Errorf("decoded as %s, want %s", name, format)
	}
	if b := decoded.Bounds(); b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("decoded size %dx%d, want %dx%d", b.Dx(), b.Dy(), w, h)
	}
	return nil
}
