package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// StageProgress is one stage's state as the progress display sees it.
type StageProgress struct {
	Name    string
	Running bool
	Done    bool
}

// ProgressSource reports the current stage states of a run.
type ProgressSource func() []StageProgress

// ProgressDisplay polls a ProgressSource and renders a progress bar of
// finished stages.
type ProgressDisplay struct {
	writer   io.Writer
	source   ProgressSource
	bar      *progressbar.ProgressBar
	done     chan struct{}
	stopped  chan struct{}
	interval time.Duration
	once     sync.Once
}

// NewProgressDisplay creates a display for a run with total stages.
func NewProgressDisplay(writer io.Writer, total int, source ProgressSource) *ProgressDisplay {
	if writer == nil {
		writer = os.Stderr
	}
	d := &ProgressDisplay{
		writer:   writer,
		source:   source,
		interval: 100 * time.Millisecond,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	d.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("[cyan][bold]Analyzing transactions...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return d
}

// Start polls the source until Stop is called or ctx ends.
func (d *ProgressDisplay) Start(ctx context.Context) {
	go func() {
		defer close(d.stopped)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			d.refresh()
			select {
			case <-ctx.Done():
				return
			case <-d.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop renders the final state and completes the bar.
func (d *ProgressDisplay) Stop() {
	d.once.Do(func() {
		close(d.done)
		<-d.stopped
		d.refresh()
		if err := d.bar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
	})
}

func (d *ProgressDisplay) refresh() {
	done, running := Summarize(d.source())
	if err := d.bar.Set(done); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
	if len(running) > 0 {
		d.bar.Describe(fmt.Sprintf("[cyan][bold]Running %s...[reset]", strings.Join(running, ", ")))
	}
}

// Summarize counts finished stages and lists the running ones in order.
func Summarize(stages []StageProgress) (int, []string) {
	done := 0
	var running []string
	for _, s := range stages {
		switch {
		case s.Done:
			done++
		case s.Running:
			running = append(running, s.Name)
		}
	}
	return done, running
}
