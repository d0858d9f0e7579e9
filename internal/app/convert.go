package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/drhuang0922/ngic/internal/checksum"
	"github.com/drhuang0922/ngic/internal/converter"
	"github.com/drhuang0922/ngic/internal/logging"
	"github.com/drhuang0922/ngic/internal/output"
	"github.com/drhuang0922/ngic/internal/store"
)

const supportedFormatsHint = "Supported: webp, avif, jpeg, png"

// runConvert is the root command: single-file or --batch conversion.
func runConvert(cmd *cobra.Command, args []string) error {
	q := quality
	if !cmd.Flags().Changed("quality") {
		q = cfg.Quality
	}
	if q < 1 || q > 100 {
		return errors.New("Quality must be between 1 and 100")
	}

	s := speed
	if !cmd.Flags().Changed("speed") && cfg.Speed != nil {
		s = *cfg.Speed
	}
	if s < 0 || s > 10 {
		return fmt.Errorf("speed must be between 0 and 10, got %d", s)
	}

	conv := converter.NewImageConverter()
	conv.SetQuality(q)
	conv.SetSpeed(s)
	conv.Lossless = lossless || (!cmd.Flags().Changed("lossless") && cfg.Lossless)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if batchMode {
		return runBatch(ctx, cmd, conv, args)
	}
	return runSingle(cmd, conv, args)
}

func runSingle(cmd *cobra.Command, conv *converter.ImageConverter, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) < 3 {
		_ = cmd.Usage()
		return errors.New("Single file mode requires input file, output file, and format")
	}
	inputPath, outputPath, format := args[0], args[1], args[2]

	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("Input file '%s' doesn't exist", inputPath)
	}
	if !converter.IsSupportedInput(inputPath) {
		return fmt.Errorf("Input file '%s' is not a supported image format (jpg, jpeg, png)", inputPath)
	}
	if !converter.IsValidFormat(format) {
		return fmt.Errorf("Unsupported format '%s'. %s", format, supportedFormatsHint)
	}

	if width, height, inputFormat, err := converter.GetImageInfo(inputPath); err == nil {
		fmt.Fprintf(out, "Input: %s (%dx%d, %s)\n", inputPath, width, height, inputFormat)
	}
	fmt.Fprintf(out, "Converting %s to %s (format: %s, quality: %d)\n", inputPath, outputPath, format, conv.Quality)

	rec := openRecorder("single", format, conv.Quality)
	defer rec.Close()

	var spinner *output.Spinner
	if w := output.ProgressWriter(cmd.ErrOrStderr()); w != nil {
		spinner = output.NewSpinner(w, "Encoding "+format).ShowElapsed()
		spinner.Start()
	}

	res, err := conv.ConvertImage(inputPath, outputPath, format)
	if spinner != nil {
		spinner.Stop()
	}
	rec.Record(res, err, "")
	if err != nil {
		return fmt.Errorf("Conversion failed: %w", err)
	}

	fmt.Fprintf(out, "Successfully converted to %s\n", outputPath)
	return nil
}

func runBatch(ctx context.Context, cmd *cobra.Command, conv *converter.ImageConverter, args []string) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	format := formatArg(args, 1)
	if len(args) < 1 || format == "" {
		_ = cmd.Usage()
		return errors.New("Batch mode requires input directory and format")
	}
	inputDir := args[0]

	if info, err := os.Stat(inputDir); err != nil || !info.IsDir() {
		return fmt.Errorf("Input path '%s' is not a directory or doesn't exist", inputDir)
	}
	if !converter.IsValidFormat(format) {
		return fmt.Errorf("Unsupported format '%s'. %s", format, supportedFormatsHint)
	}

	if skipUnchanged && !historyEnabled() {
		return errors.New("--skip-unchanged needs conversion history; drop --no-history")
	}

	outDir := outputDir
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	if outDir == "" {
		outDir = filepath.Join(inputDir, "converted")
	}

	n := workers
	if !cmd.Flags().Changed("workers") && cfg.Workers > 0 {
		n = cfg.Workers
	}
	if n < 1 {
		n = runtime.NumCPU()
	}

	fmt.Fprintf(out, "Batch converting images from %s to %s (format: %s, quality: %d)\n",
		inputDir, outDir, format, conv.Quality)

	rec := openRecorder("batch", format, conv.Quality)
	defer rec.Close()

	opts := converter.BatchOptions{
		Workers:  n,
		Progress: output.ProgressWriter(errOut),
	}

	// Input hashes computed by the skip check, reused when recording.
	var (
		hashMu sync.Mutex
		hashes = map[string]string{}
	)
	if skipUnchanged && rec != nil {
		opts.Skip = func(inputPath, outputPath string) bool {
			sum, err := checksum.File(inputPath)
			if err != nil {
				return false
			}
			hashMu.Lock()
			hashes[inputPath] = sum
			hashMu.Unlock()
			return rec.Unchanged(sum, format, conv.Quality, outputPath)
		}
	}

	opts.OnResult = func(res *converter.Result) {
		if res.Err != nil {
			fmt.Fprintf(errOut, "Error converting %s: %v\n", filepath.Base(res.InputPath), res.Err)
		}
		hashMu.Lock()
		sum := hashes[res.InputPath]
		hashMu.Unlock()
		rec.Record(res, res.Err, sum)
	}

	summary, err := conv.BatchConvert(ctx, inputDir, outDir, format, opts)
	if summary != nil {
		printBatchSummary(cmd, summary)
	}
	if err != nil {
		return fmt.Errorf("Batch conversion failed: %w", err)
	}
	return nil
}

func printBatchSummary(cmd *cobra.Command, summary *converter.BatchSummary) {
	out := cmd.OutOrStdout()

	for _, name := range summary.Unsupported {
		fmt.Fprintf(out, "Skipping unsupported file: %s\n", name)
	}
	for _, name := range summary.Skipped {
		fmt.Fprintf(out, "Skipping unchanged file: %s\n", name)
	}

	fmt.Fprintf(out, "Successfully converted %d images\n", summary.Converted)
	if summary.Failed > 0 {
		fmt.Fprintf(out, "Failed to convert %d images\n", summary.Failed)
	}

	var in, saved int64
	for _, res := range summary.Results {
		if res.Err == nil {
			in += res.InputBytes
			saved += res.Saved()
		}
	}
	if in > 0 {
		fmt.Fprintf(out, "Total: %s -> %s (%s)\n",
			output.FormatSize(in), output.FormatSize(in-saved), output.FormatSavings(in, in-saved))
	}
}

// recorder writes conversions of one run to the history database. A nil
// recorder records nothing.
type recorder struct {
	st  *store.Store
	run *store.Run
}

// openRecorder starts a history run. Failures are logged and disable
// recording rather than the conversion.
func openRecorder(mode, format string, q int) *recorder {
	if !historyEnabled() {
		return nil
	}
	log := logging.Logger()

	path, err := getDBPath()
	if err != nil {
		log.Warnf("history disabled: %v", err)
		return nil
	}
	st, err := store.New(path)
	if err != nil {
		log.Warnf("history disabled: %v", err)
		return nil
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		log.Warnf("history disabled: %v", err)
		return nil
	}

	run := &store.Run{
		ID:           newRunID(),
		StartedAt:    time.Now(),
		Mode:         mode,
		TargetFormat: normalizeFormat(format),
		Quality:      q,
	}
	if err := st.InsertRun(run); err != nil {
		st.Close()
		log.Warnf("history disabled: %v", err)
		return nil
	}
	log.Debugf("history: run %s (%s)", run.ID, mode)
	return &recorder{st: st, run: run}
}

// Record stores one attempted conversion. sum is the input SHA-256 when the
// caller already has it. A failed result without a target format is recorded
// under the run's format.
func (r *recorder) Record(res *converter.Result, convErr error, sum string) {
	if r == nil || res == nil {
		return
	}
	log := logging.Logger()

	if sum == "" {
		var err error
		if sum, err = checksum.File(res.InputPath); err != nil {
			log.Debugf("history: hashing %s: %v", res.InputPath, err)
		}
	}

	c := &store.Conversion{
		RunID:        r.run.ID,
		InputPath:    absPath(res.InputPath),
		OutputPath:   absPath(res.OutputPath),
		InputSHA256:  sum,
		SourceFormat: res.SourceFormat,
		TargetFormat: string(res.TargetFormat),
		Quality:      res.Quality,
		InputBytes:   res.InputBytes,
		OutputBytes:  res.OutputBytes,
		Duration:     res.Duration,
		Status:       store.StatusOK,
	}
	if c.TargetFormat == "" {
		c.TargetFormat = r.run.TargetFormat
	}
	if convErr != nil {
		c.Status = store.StatusFailed
		c.Error = convErr.Error()
	}

	if _, err := r.st.InsertConversion(c); err != nil {
		log.Warnf("history: failed to record %s: %v", res.InputPath, err)
	}
}

// Unchanged reports whether an input with this hash was already converted to
// format at quality q and the output still exists.
func (r *recorder) Unchanged(sum, format string, q int, outputPath string) bool {
	if r == nil {
		return false
	}
	prev, err := r.st.FindConversion(sum, normalizeFormat(format), q)
	if err != nil {
		logging.Logger().Warnf("history: lookup failed: %v", err)
		return false
	}
	if prev == nil {
		return false
	}
	if _, err := os.Stat(outputPath); err != nil {
		return false
	}
	return true
}

// Close closes the history database.
func (r *recorder) Close() {
	if r == nil {
		return
	}
	if err := r.st.Close(); err != nil {
		logging.Logger().Warnf("history: close: %v", err)
	}
}

// formatArg returns args[i], or the config file's default format when the
// argument is omitted.
func formatArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return cfg.Format
}

func normalizeFormat(name string) string {
	if f, err := converter.ParseFormat(name); err == nil {
		return string(f)
	}
	return name
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
