package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/drhuang0922/ngic/internal/config"
	"github.com/drhuang0922/ngic/internal/converter"
	"github.com/drhuang0922/ngic/internal/logging"
	"github.com/drhuang0922/ngic/internal/version"
)

var (
	// Persistent flags
	dbPath     string
	configPath string
	verbose    bool
	noHistory  bool

	// Conversion flags
	quality       int
	batchMode     bool
	outputDir     string
	workers       int
	skipUnchanged bool
	lossless      bool
	speed         int

	// cfg is loaded before every command runs.
	cfg = config.Default()

	// RootCmd is the root command for ngic
	RootCmd = &cobra.Command{
		Use:   "ngic [flags] <input> <output> <format>",
		Short: "Next Generation Image Converter - Convert JPG/PNG to WebP/AVIF",
		Long: `ngic - Next Generation Image Converter v` + version.Version + `

Converts JPEG and PNG images to WebP, AVIF, JPEG or PNG, one file at a time
or a whole directory at once.

  ngic [flags] <input> <output> <format>
  ngic --batch [flags] <input_dir> <format>

Arguments:
  input      Input image file or directory (for batch mode)
  output     Output image file (ignored in batch mode)
  format     Target format: webp, avif, jpeg, png. In batch mode it may be
             omitted when the config file sets format.

Single-dash long flags (-version, -batch, -help) are accepted as well.`,
		Example: `  ngic input.jpg output.webp webp
  ngic -q 75 input.png output.jpg jpeg
  ngic --batch images/ webp
  ngic --batch -o converted/ images/ webp
  ngic watch ~/Pictures/inbox avif`,
		Version:           version.Version,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		RunE:              runConvert,
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "history database path (default: ~/.ngic/ngic.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/ngic/config.yaml)")
	RootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	RootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "do not record conversions in the history database")

	f := RootCmd.Flags()
	f.IntVarP(&quality, "quality", "q", converter.DefaultQuality, "quality for lossy formats (1-100)")
	f.BoolVar(&batchMode, "batch", false, "batch convert all images in a directory")
	f.StringVarP(&outputDir, "output-dir", "o", "", "output directory for batch conversion (default: <input_dir>/converted)")
	f.IntVar(&workers, "workers", runtime.NumCPU(), "number of concurrent batch conversions")
	f.BoolVar(&skipUnchanged, "skip-unchanged", false, "skip batch inputs already converted with the same content, format and quality")
	f.BoolVar(&lossless, "lossless", false, "encode WebP losslessly")
	f.IntVar(&speed, "speed", converter.DefaultSpeed, "AVIF encoder speed (0 slowest - 10 fastest)")

	RootCmd.SetVersionTemplate("{{.Name}} version {{.Version}}\n")
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(statsCmd)
	RootCmd.AddCommand(formulaCmd)
}

// Execute runs the root command
func Execute() error {
	return execute(os.Args[1:])
}

func execute(args []string) error {
	RootCmd.SetArgs(normalizeArgs(RootCmd, args))
	return RootCmd.Execute()
}

// normalizeArgs rewrites single-dash long flags such as "-version" or
// "-batch" to their double-dash form. Short flags, negative numbers and
// everything after "--" are left alone.
func normalizeArgs(root *cobra.Command, args []string) []string {
	long := longFlagNames(root)

	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' {
			name := arg[1:]
			if eq := strings.IndexByte(name, '='); eq >= 0 {
				name = name[:eq]
			}
			if long[name] {
				arg = "-" + arg
			}
		}
		out = append(out, arg)
	}
	return out
}

func longFlagNames(root *cobra.Command) map[string]bool {
	// cobra adds these lazily during Execute
	names := map[string]bool{"help": true, "version": true}
	add := func(f *pflag.Flag) {
		if len(f.Name) > 1 {
			names[f.Name] = true
		}
	}

	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(add)
		c.PersistentFlags().VisitAll(add)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(root)
	return names
}

// setup loads the config file and initializes logging.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return initLogging(cmd, level)
}

func initLogging(cmd *cobra.Command, level string) error {
	z, err := logging.New(logging.Options{Level: level, Output: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	logging.Init(z)
	return nil
}

// historyEnabled reports whether this invocation records conversions.
func historyEnabled() bool {
	return !noHistory && cfg.HistoryEnabled()
}

// ngicDir returns ~/.ngic, creating it if needed.
func ngicDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".ngic")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create ngic directory: %w", err)
	}
	return dir, nil
}

// getDBPath returns the database path: --db, then the config file, then
// ~/.ngic/ngic.db.
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}

	dir, err := ngicDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ngic.db"), nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := ngicDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.pid"), nil
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	dir, err := ngicDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.log"), nil
}
