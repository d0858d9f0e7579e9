package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// spinnerType is progressbar's braille-dots spinner.
const spinnerType = 14

// spinInterval is how often a running spinner redraws.
const spinInterval = 100 * time.Millisecond

// writerIsTTY reports whether w is a terminal file.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// ProgressWriter returns w when it is a terminal and nil otherwise, so
// progress bars are drawn interactively but never pollute piped output.
func ProgressWriter(w io.Writer) io.Writer {
	if writerIsTTY(w) {
		return w
	}
	return nil
}

// Spinner marks one step of unknown length: an encode, a codec check, a
// formula test, a daemon start. On a terminal it animates an indeterminate
// progressbar; anywhere else it prints "<message>..." once.
type Spinner struct {
	w       io.Writer
	message string
	elapsed bool

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	quit    chan struct{}
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewSpinner returns a stopped spinner that draws message on w.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{w: w, message: message}
}

// ShowElapsed adds the running time to the animated line. Call before Start.
func (s *Spinner) ShowElapsed() *Spinner {
	s.elapsed = true
	return s
}

// Start draws the spinner. Calling it again is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	if !writerIsTTY(s.w) {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}

	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.w),
		progressbar.OptionSetDescription(s.message),
		progressbar.OptionSpinnerType(spinnerType),
		progressbar.OptionSetElapsedTime(s.elapsed),
		progressbar.OptionSetRenderBlankState(true),
	)
	s.quit = make(chan struct{})
	s.wg.Add(1)
	go s.spin(s.bar, s.quit)
}

func (s *Spinner) spin(bar *progressbar.ProgressBar, quit <-chan struct{}) {
	defer s.wg.Done()
	t := time.NewTicker(spinInterval)
	defer t.Stop()
	for {
		select {
		case <-quit:
			return
		case <-t.C:
			_ = bar.Add(1)
		}
	}
}

// Stop halts the animation and clears its line. It is safe to call more
// than once, or without Start.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return
	}
	s.stopped = true

	if s.bar == nil {
		return
	}
	close(s.quit)
	s.wg.Wait()
	_ = s.bar.Clear()
}

// StopWithMessage stops the spinner and prints message on its own line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	fmt.Fprintln(s.w, message)
}
