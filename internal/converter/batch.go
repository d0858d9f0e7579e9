package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/drhuang0922/ngic/internal/logging"
)

type batchJob struct {
	inputPath  string
	outputPath string
}

// OutputName returns the batch output file name for an input file: the base
// name with its extension replaced by targetFormat as given (so "jpg" stays
// "jpg").
func OutputName(inputName, targetFormat string) string {
	ext := filepath.Ext(inputName)
	base := strings.TrimSuffix(inputName, ext)
	return fmt.Sprintf("%s.%s", base, strings.ToLower(targetFormat))
}

// BatchConvert converts every supported image directly inside inputDir into
// outputDir. Sub-directories are not descended into. Unsupported files are
// reported in the summary and left alone; a failure on one file does not stop
// the others. The returned error is non-nil only when the batch could not
// run at all or ctx was cancelled.
func (ic *ImageConverter) BatchConvert(ctx context.Context, inputDir, outputDir, targetFormat string, opts BatchOptions) (*BatchSummary, error) {
	log := logging.Logger()

	if _, err := ParseFormat(targetFormat); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	files, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	summary := &BatchSummary{}
	var jobs []batchJob
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		name := file.Name()
		if !IsSupportedInput(name) {
			summary.Unsupported = append(summary.Unsupported, name)
			continue
		}

		job := batchJob{
			inputPath:  filepath.Join(inputDir, name),
			outputPath: filepath.Join(outputDir, OutputName(name, targetFormat)),
		}
		if opts.Skip != nil && opts.Skip(job.inputPath, job.outputPath) {
			summary.Skipped = append(summary.Skipped, name)
			continue
		}
		jobs = append(jobs, job)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) && len(jobs) > 0 {
		workers = len(jobs)
	}
	log.Debugf("batch: %d queued, %d skipped, %d unsupported, %d workers",
		len(jobs), len(summary.Skipped), len(summary.Unsupported), workers)

	var bar *progressbar.ProgressBar
	if opts.Progress != nil && len(jobs) > 0 {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("converting"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}

	jobCh := make(chan batchJob)
	resultCh := make(chan *Result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if bar != nil {
					bar.Describe(fmt.Sprintf("converting %s", filepath.Base(job.inputPath)))
				}
				res, err := ic.ConvertImage(job.inputPath, job.outputPath, targetFormat)
				res.Err = err
				resultCh <- res
			}
		}()
	}

	// Collector owns summary and OnResult.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range resultCh {
			if res.Err != nil {
				summary.Failed++
				log.Debugf("batch: %s failed: %v", res.InputPath, res.Err)
			} else {
				summary.Converted++
			}
			summary.Results = append(summary.Results, res)
			if opts.OnResult != nil {
				opts.OnResult(res)
			}
			if bar != nil {
				bar.Add(1)
			}
		}
	}()

feed:
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case jobCh <- job:
		}
	}
	close(jobCh)
	wg.Wait()
	close(resultCh)
	<-done

	if bar != nil {
		bar.Finish()
		fmt.Fprintln(opts.Progress)
	}

	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].InputPath < summary.Results[j].InputPath
	})

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("batch conversion interrupted: %w", err)
	}
	return summary, nil
}
