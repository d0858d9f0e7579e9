// Package output provides terminal output utilities for ngic.
//
// This package includes:
//   - Table rendering for conversion history and per-format statistics
//   - Spinners for long single-image encodes
//   - Human-readable formatting for sizes, durations and times
//
// Tables use plain characters plus ANSI color codes when stdout is a
// terminal and NO_COLOR is unset.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/drhuang0922/ngic/internal/store"
)

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorGray  = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderConversionTable renders recent conversions in the order given.
func RenderConversionTable(conversions []*store.Conversion) string {
	if len(conversions) == 0 {
		return "No conversions recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-24s %-6s %-4s %-10s %-10s %-8s %-16s %s\n",
		"Input", "Format", "Q", "In", "Out", "Saved", "When", "Status"))
	sb.WriteString(strings.Repeat("─", 92))
	sb.WriteString("\n")

	for _, c := range conversions {
		status := colorize(colorGreen, "✓ ok")
		saved := FormatSavings(c.InputBytes, c.OutputBytes)
		out := FormatSize(c.OutputBytes)
		if c.Status != store.StatusOK {
			status = colorize(colorRed, "✗ "+truncate(c.Error, 30))
			saved = "—"
			out = "—"
		}

		sb.WriteString(fmt.Sprintf("%-24s %-6s %-4d %-10s %-10s %-8s %-16s %s\n",
			truncate(filepath.Base(c.InputPath), 24),
			c.TargetFormat,
			c.Quality,
			FormatSize(c.InputBytes),
			out,
			saved,
			FormatRelativeTime(c.ConvertedAt),
			status))
	}

	return sb.String()
}

// RenderFormatStats renders per-format totals with a grand-total footer.
func RenderFormatStats(stats []store.FormatStats) string {
	if len(stats) == 0 {
		return "No conversions recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-8s %-8s %-8s %-12s %-12s %s\n",
		"Format", "Count", "Failed", "Input", "Output", "Saved"))
	sb.WriteString(strings.Repeat("─", 64))
	sb.WriteString("\n")

	var total store.FormatStats
	for _, fs := range stats {
		sb.WriteString(fmt.Sprintf("%-8s %-8d %-8d %-12s %-12s %s\n",
			fs.TargetFormat,
			fs.Count,
			fs.Failed,
			FormatSize(fs.InputBytes),
			FormatSize(fs.OutputBytes),
			FormatSavings(fs.InputBytes, fs.OutputBytes)))

		total.Count += fs.Count
		total.Failed += fs.Failed
		total.InputBytes += fs.InputBytes
		total.OutputBytes += fs.OutputBytes
	}

	sb.WriteString(strings.Repeat("─", 64))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%-8s %-8d %-8d %-12s %-12s %s\n",
		"total",
		total.Count,
		total.Failed,
		FormatSize(total.InputBytes),
		FormatSize(total.OutputBytes),
		FormatSavings(total.InputBytes, total.OutputBytes)))

	return sb.String()
}

// FormatSize converts bytes to a human-readable IEC size (e.g. "1.5 MiB").
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatSavings returns the size change as a percentage of the input, e.g.
// "-62%" for a smaller output and "+5%" for a larger one.
func FormatSavings(inputBytes, outputBytes int64) string {
	if inputBytes <= 0 {
		return "—"
	}
	pct := float64(outputBytes-inputBytes) * 100 / float64(inputBytes)
	text := fmt.Sprintf("%+.0f%%", pct)
	switch {
	case outputBytes < inputBytes:
		return colorize(colorGreen, text)
	case outputBytes > inputBytes:
		return colorize(colorRed, text)
	default:
		return colorize(colorGray, text)
	}
}

// FormatRelativeTime converts a timestamp to relative time (e.g. "2 days ago").
func FormatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
