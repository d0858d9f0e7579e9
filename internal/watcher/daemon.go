package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/drhuang0922/ngic/internal/logging"
)

// StartDaemon launches `ngic <childArgs...>` in its own session with stdout
// and stderr appended to logFile, and records the child's PID in pidFile.
// It refuses to start a second daemon for the same PID file.
func StartDaemon(pidFile, logFile string, childArgs []string) error {
	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("checking %s: %w", pidFile, err)
	}
	if running {
		return fmt.Errorf("daemon already running (PID file: %s)", pidFile)
	}

	logF, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logF.Close()

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate ngic binary: %w", err)
	}

	child := exec.Command(self, childArgs...)
	child.Stdout = logF
	child.Stderr = logF
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to launch watch daemon: %w", err)
	}

	if err := writePID(pidFile, child.Process.Pid); err != nil {
		_ = child.Process.Kill()
		return err
	}
	logging.Logger().Debugf("daemon: started PID %d, logging to %s", child.Process.Pid, logFile)

	return child.Process.Release()
}

// RunDaemon is the body of the daemon child: it runs w until SIGTERM, SIGINT
// or ctx cancellation and then deletes pidFile.
func RunDaemon(ctx context.Context, w *Watcher, pidFile string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runErr := w.Run(ctx)
	logging.Logger().Infof("daemon: shutting down")

	if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("watcher failed: %w", runErr)
	}
	return nil
}

// StopDaemon asks the daemon recorded in pidFile to shut down. The child
// removes its own PID file on exit.
func StopDaemon(pidFile string) error {
	pid, err := readPID(pidFile)
	if os.IsNotExist(err) {
		return errors.New("daemon not running (PID file not found)")
	}
	if err != nil {
		return err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("no process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal daemon (PID %d): %w", pid, err)
	}
	return nil
}

// IsDaemonRunning reports whether pidFile names a live process. A garbled
// PID file counts as not running; one naming a dead process is deleted.
func IsDaemonRunning(pidFile string) (bool, error) {
	pid, err := readPID(pidFile)
	switch {
	case os.IsNotExist(err):
		return false, nil
	case errors.Is(err, errBadPID):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to read PID file: %w", err)
	}

	if !alive(pid) {
		_ = os.Remove(pidFile)
		return false, nil
	}
	return true, nil
}

var errBadPID = errors.New("invalid PID in file")

// alive sends signal 0, which checks for the process without touching it.
func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %q", errBadPID, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// writePID replaces pidFile in one rename so readers never see a partial PID.
func writePID(pidFile string, pid int) error {
	tmp, err := os.CreateTemp(filepath.Dir(pidFile), ".watch-pid-*")
	if err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := fmt.Fprintf(tmp, "%d\n", pid); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	if err := os.Rename(tmp.Name(), pidFile); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}
