// Package output renders per-job progress bars for concurrent
// downloads.
package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Manager owns the shared mpb renderer. On a non-TTY stderr the bars
// are discarded and jobs fall back to plain log lines.
type Manager struct {
	progress   *mpb.Progress
	isTerminal bool
}

// JobBar tracks one download's bar.
type JobBar struct {
	bar  *mpb.Bar
	name string
	mgr  *Manager
}

func NewManager() *Manager {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(150*time.Millisecond),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}
	return &Manager{progress: p, isTerminal: isTerminal}
}

// AddJob registers a bar for one download. Total may be zero while the
// size is still unknown; SetTotal fixes it up later.
func (m *Manager) AddJob(name string, total int64) *JobBar {
	if !m.isTerminal {
		fmt.Fprintf(os.Stderr, "Downloading %s\n", name)
	}
	bar := m.progress.AddBar(total,
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(name, decor.WCSyncSpaceR),
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.AverageSpeed(decor.SizeB1024(0), "% .1f", decor.WCSyncSpace),
		),
	)
	return &JobBar{bar: bar, name: name, mgr: m}
}

// Update moves the bar to the given absolute position.
func (b *JobBar) Update(current, total int64) {
	if total > 0 {
		b.bar.SetTotal(total, false)
	}
	b.bar.SetCurrent(current)
}

// Done completes the bar regardless of position.
func (b *JobBar) Done() {
	b.bar.SetTotal(-1, true)
}

// Abort drops the bar without completing it.
func (b *JobBar) Abort() {
	b.bar.Abort(true)
}

// Wait blocks until all bars have finished rendering.
func (m *Manager) Wait() {
	m.progress.Wait()
}
