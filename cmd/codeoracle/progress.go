package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/heefoo/codeoracle/internal/indexer"
)

// progressReporter drives a progress bar from indexer status updates, which
// arrive concurrently from the worker pool. A nil reporter ignores updates.
type progressReporter struct {
	w     io.Writer
	label string

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer, label string) *progressReporter {
	return &progressReporter{w: w, label: label}
}

func (p *progressReporter) Update(s indexer.Status) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		if s.FilesTotal == 0 {
			return
		}
		w := p.w
		p.bar = progressbar.NewOptions64(s.FilesTotal,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Analyzing "+p.label),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files/s"),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(w)
			}),
		)
	}
	p.bar.Set64(s.FilesAnalyzed + s.FilesFailed)
}

func (p *progressReporter) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil && !p.bar.IsFinished() {
		p.bar.Finish()
	}
}
