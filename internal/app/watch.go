package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/drhuang0922/ngic/internal/converter"
	"github.com/drhuang0922/ngic/internal/logging"
	"github.com/drhuang0922/ngic/internal/output"
	"github.com/drhuang0922/ngic/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchQuality     int
	watchOutputDir   string
	watchLossless    bool
	watchSpeed       int
	watchInitial     bool
	watchDebounce    time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch <dir> [format]",
		Short: "Convert images as they appear in a directory",
		Long: `Watch a directory and convert every JPEG or PNG image created or modified in
it. Sub-directories are not watched. Each file is converted once it has been
quiet for the debounce interval, so images still being copied are not read
half-written.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process, logging to a file
  • Stop: Stop a running daemon

Converted files go to <dir>/converted unless --output-dir is given, and every
conversion is recorded in the history database. <format> may be omitted when
the config file sets format.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  ngic watch ~/Pictures/inbox webp

  # Convert what is already there too
  ngic watch --initial -q 70 ~/Pictures/inbox avif

  # Run as background daemon
  ngic watch --daemon ~/Pictures/inbox webp

  # Stop running daemon
  ngic watch --stop`,
		Args: cobra.MaximumNArgs(2),
		RunE: runWatch,
	}
)

func init() {
	f := watchCmd.Flags()
	f.BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	f.BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	f.StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: ~/.ngic/watch.pid)")
	f.StringVar(&watchLogFile, "log-file", "", "log file path (default: ~/.ngic/watch.log)")
	f.BoolVar(&watchStop, "stop", false, "stop running daemon")
	f.IntVarP(&watchQuality, "quality", "q", converter.DefaultQuality, "quality for lossy formats (1-100)")
	f.StringVarP(&watchOutputDir, "output-dir", "o", "", "output directory (default: <dir>/converted)")
	f.BoolVar(&watchLossless, "lossless", false, "encode WebP losslessly")
	f.IntVar(&watchSpeed, "speed", converter.DefaultSpeed, "AVIF encoder speed (0 slowest - 10 fastest)")
	f.BoolVar(&watchInitial, "initial", false, "also convert images already in the directory")
	f.DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before a changed file is converted")

	// Hide the internal daemon-child flag from help
	f.MarkHidden("daemon-child")
}

// watchSettings is the resolved configuration of a watch session.
type watchSettings struct {
	dir       string
	outDir    string
	format    string
	quality   int
	speed     int
	lossless  bool
	initial   bool
	debounce  time.Duration
	pidFile   string
	logFile   string
	dbPath    string
	noHistory bool
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Get default paths if not specified
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}

	if watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	// Handle stop command
	if watchStop {
		return stopWatchDaemon(cmd)
	}

	s, err := resolveWatchSettings(cmd, args)
	if err != nil {
		return err
	}

	// Handle daemon mode
	if watchDaemon {
		return startWatchDaemon(cmd, s)
	}

	// Handle daemon child process
	if watchDaemonChild {
		// Conversions are only visible in the log file, so log them.
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		} else if level == "" {
			level = "info"
		}
		if err := initLogging(cmd, level); err != nil {
			return err
		}
		return runWatchDaemonChild(cmd, s)
	}

	// Run in foreground
	return runWatchForeground(cmd, s)
}

func resolveWatchSettings(cmd *cobra.Command, args []string) (*watchSettings, error) {
	format := formatArg(args, 1)
	if len(args) < 1 || format == "" {
		return nil, errors.New("watch requires a directory and a format")
	}

	flags := cmd.Flags()
	s := &watchSettings{
		format:    format,
		quality:   watchQuality,
		speed:     watchSpeed,
		lossless:  watchLossless || (!flags.Changed("lossless") && cfg.Lossless),
		initial:   watchInitial,
		debounce:  watchDebounce,
		pidFile:   watchPIDFile,
		logFile:   watchLogFile,
		noHistory: !historyEnabled(),
	}
	if !flags.Changed("quality") {
		s.quality = cfg.Quality
	}
	if !flags.Changed("speed") && cfg.Speed != nil {
		s.speed = *cfg.Speed
	}

	if s.quality < 1 || s.quality > 100 {
		return nil, errors.New("Quality must be between 1 and 100")
	}
	if s.speed < 0 || s.speed > 10 {
		return nil, fmt.Errorf("speed must be between 0 and 10, got %d", s.speed)
	}
	if !converter.IsValidFormat(s.format) {
		return nil, fmt.Errorf("Unsupported format '%s'. %s", s.format, supportedFormatsHint)
	}

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("Input path '%s' is not a directory or doesn't exist", args[0])
	}
	s.dir = dir

	outDir := watchOutputDir
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	if outDir == "" {
		outDir = filepath.Join(dir, "converted")
	}
	if s.outDir, err = filepath.Abs(outDir); err != nil {
		return nil, err
	}
	if s.outDir == s.dir {
		return nil, errors.New("output directory must differ from the watched directory")
	}

	if s.dbPath, err = getDBPath(); err != nil {
		return nil, err
	}
	return s, nil
}

// childArgs rebuilds the command line for the daemon child.
func (s *watchSettings) childArgs() []string {
	args := []string{
		"watch", s.dir, s.format,
		"--daemon-child",
		"--pid-file", s.pidFile,
		"--log-file", s.logFile,
		"--quality", strconv.Itoa(s.quality),
		"--speed", strconv.Itoa(s.speed),
		"--output-dir", s.outDir,
		"--debounce", s.debounce.String(),
		"--db", s.dbPath,
	}
	if s.lossless {
		args = append(args, "--lossless")
	}
	if s.initial {
		args = append(args, "--initial")
	}
	if s.noHistory {
		args = append(args, "--no-history")
	}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if verbose {
		args = append(args, "--verbose")
	}
	return args
}

// newWatcher builds a watcher that converts settled images into s.outDir.
func newWatcher(cmd *cobra.Command, s *watchSettings) (*watcher.Watcher, func(), error) {
	if err := os.MkdirAll(s.outDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	conv := converter.NewImageConverter()
	conv.SetQuality(s.quality)
	conv.SetSpeed(s.speed)
	conv.Lossless = s.lossless

	rec := openRecorder("watch", s.format, s.quality)
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	handle := func(path string) {
		target := filepath.Join(s.outDir, converter.OutputName(filepath.Base(path), s.format))
		res, err := conv.ConvertImage(path, target, s.format)
		rec.Record(res, err, "")
		if err != nil {
			fmt.Fprintf(errOut, "Error converting %s: %v\n", filepath.Base(path), err)
			return
		}
		fmt.Fprintf(out, "Converted %s -> %s (%s)\n",
			filepath.Base(path), target, output.FormatSavings(res.InputBytes, res.OutputBytes))
	}

	w, err := watcher.New(watcher.Options{
		Dir:             s.dir,
		Accept:          converter.IsSupportedInput,
		Handle:          handle,
		Debounce:        s.debounce,
		ProcessExisting: s.initial,
	})
	if err != nil {
		rec.Close()
		return nil, nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return w, rec.Close, nil
}

func stopWatchDaemon(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	// Check if daemon is running
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner(out, "Stopping daemon")
	spinner.Start()
	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func startWatchDaemon(cmd *cobra.Command, s *watchSettings) error {
	out := cmd.OutOrStdout()

	spinner := output.NewSpinner(out, "Starting daemon")
	spinner.Start()
	if err := watcher.StartDaemon(s.pidFile, s.logFile, s.childArgs()); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Fprintf(out, "\nWatching %s (format: %s, quality: %d)\n", s.dir, s.format, s.quality)
	fmt.Fprintf(out, "  Output:   %s\n", s.outDir)
	fmt.Fprintf(out, "  PID file: %s\n", s.pidFile)
	fmt.Fprintf(out, "  Log file: %s\n", s.logFile)
	fmt.Fprintf(out, "\nTo stop: ngic watch --stop\n")

	return nil
}

func runWatchDaemonChild(cmd *cobra.Command, s *watchSettings) error {
	// stdout/stderr are redirected to the log file
	w, closeHistory, err := newWatcher(cmd, s)
	if err != nil {
		return err
	}
	defer closeHistory()

	logging.Logger().Infof("daemon: watching %s -> %s (%s, q=%d)", s.dir, s.outDir, s.format, s.quality)
	return watcher.RunDaemon(cmd.Context(), w, s.pidFile)
}

func runWatchForeground(cmd *cobra.Command, s *watchSettings) error {
	out := cmd.OutOrStdout()

	w, closeHistory, err := newWatcher(cmd, s)
	if err != nil {
		return err
	}
	defer closeHistory()

	fmt.Fprintf(out, "Watching %s for new images (format: %s, quality: %d)\n", s.dir, s.format, s.quality)
	fmt.Fprintf(out, "Converted images go to %s\n", s.outDir)
	fmt.Fprintln(out, "Press Ctrl+C to stop.")
	fmt.Fprintln(out)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("watcher failed: %w", err)
	}

	fmt.Fprintln(out, "\nStopped watching")
	return nil
}
