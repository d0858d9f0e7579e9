package converter

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Format is a target image encoding.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
	AVIF Format = "avif"
)

// ErrUnsupportedFormat is returned for target formats ngic cannot encode.
var ErrUnsupportedFormat = errors.New("unsupported format")

// SupportedFormats lists the target formats in help-text order.
var SupportedFormats = []Format{WebP, AVIF, JPEG, PNG}

// ParseFormat resolves a user-supplied format name. "jpg" is an alias of jpeg.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "webp":
		return WebP, nil
	case "avif":
		return AVIF, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// IsValidFormat reports whether name is an accepted target format.
func IsValidFormat(name string) bool {
	_, err := ParseFormat(name)
	return err == nil
}

// IsSupportedInput reports whether path has an input extension ngic converts
// from (jpg, jpeg, png).
func IsSupportedInput(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// Result describes a single conversion.
type Result struct {
	InputPath    string
	OutputPath   string
	SourceFormat string
	TargetFormat Format
	Quality      int
	InputBytes   int64
	OutputBytes  int64
	Duration     time.Duration
	Err          error
}

// Saved returns the bytes saved by the conversion. Negative means the output
// grew.
func (r *Result) Saved() int64 {
	return r.InputBytes - r.OutputBytes
}

// BatchOptions tunes BatchConvert.
type BatchOptions struct {
	// Workers is the number of concurrent conversions. Values < 1 mean 1.
	Workers int

	// Skip, when set, is consulted for each supported input before it is
	// queued. Returning true leaves the file untouched and counts it as skipped.
	Skip func(inputPath, outputPath string) bool

	// OnResult is called once per attempted conversion from a single
	// goroutine, so it may touch non-thread-safe state.
	OnResult func(*Result)

	// Progress receives a progress bar. Nil disables it.
	Progress io.Writer
}

// BatchSummary aggregates a BatchConvert run.
type BatchSummary struct {
	Converted   int
	Failed      int
	Skipped     []string
	Unsupported []string
	Results     []*Result
}
