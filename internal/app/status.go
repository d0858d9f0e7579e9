package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drhuang0922/ngic/internal/output"
	"github.com/drhuang0922/ngic/internal/store"
	"github.com/drhuang0922/ngic/internal/watcher"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check watch daemon status and history summary",
	Long: `Display the current status of the watch daemon and the conversion history.

Shows:
  • Daemon running status and PID
  • History database location and size
  • Number of recorded conversions
  • Most recent conversion`,
	Example: `  # Check status
  ngic status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	// Register with root command
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return fmt.Errorf("failed to get PID file path: %w", err)
	}

	dbPath, err := getDBPath()
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}

	daemonRunning, err := watcher.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	const label = "%-14s"

	fmt.Fprintln(out)
	if daemonRunning {
		fmt.Fprintf(out, label+"running (since %s, PID %d)\n", "Watch:", daemonSince(pidFile), readPIDFile(pidFile))
	} else {
		fmt.Fprintf(out, label+"stopped  (run 'ngic watch --daemon <dir> <format>')\n", "Watch:")
	}

	fi, err := os.Stat(dbPath)
	if err != nil {
		fmt.Fprintf(out, label+"none yet (%s)\n", "History:", dbPath)
		fmt.Fprintln(out)
		return nil
	}
	fmt.Fprintf(out, label+"%s · %s\n", "History:", dbPath, output.FormatSize(fi.Size()))

	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	count, err := st.CountConversions()
	if errors.Is(err, store.ErrNotInitialized) {
		count, err = 0, nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, label+"%d recorded\n", "Conversions:", count)

	if count > 0 {
		latest, err := st.ListConversions(1)
		if err != nil {
			return err
		}
		c := latest[0]
		fmt.Fprintf(out, label+"%s -> %s (%s)\n", "Last:",
			c.InputPath, c.TargetFormat, output.FormatRelativeTime(c.ConvertedAt))
	}

	fmt.Fprintln(out)
	return nil
}

// readPIDFile returns the PID recorded in pidFile, or 0.
func readPIDFile(pidFile string) int {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return pid
}

// daemonSince returns a human-readable age of the PID file (proxy for daemon start time).
func daemonSince(pidFile string) string {
	fi, err := os.Stat(pidFile)
	if err != nil {
		return "unknown"
	}
	return output.FormatRelativeTime(fi.ModTime())
}

