package store

import "time"

// Conversion statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run groups the conversions made by one ngic invocation.
type Run struct {
	ID           string
	StartedAt    time.Time
	Mode         string // "single", "batch" or "watch"
	TargetFormat string
	Quality      int
}

// Conversion records a single attempted image conversion.
type Conversion struct {
	ID           int64
	RunID        string
	InputPath    string
	OutputPath   string
	InputSHA256  string
	SourceFormat string
	TargetFormat string
	Quality      int
	InputBytes   int64
	OutputBytes  int64
	Duration     time.Duration
	Status       string
	Error        string
	ConvertedAt  time.Time
}

// FormatStats aggregates conversions per target format.
type FormatStats struct {
	TargetFormat string
	Count        int
	Failed       int
	InputBytes   int64
	OutputBytes  int64
}

// Saved returns bytes saved across successful conversions.
func (f FormatStats) Saved() int64 {
	return f.InputBytes - f.OutputBytes
}
