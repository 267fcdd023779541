package addonsync

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// ProgressReporter receives per-file progress during a run
type ProgressReporter interface {
	Start(total int)
	Advance(path string, hashedBytes int64)
	Finish()
}

// NopProgress discards all progress
type NopProgress struct{}

func (NopProgress) Start(int)             {}
func (NopProgress) Advance(string, int64) {}
func (NopProgress) Finish()               {}

// NewProgressReporter returns a terminal bar when enabled and out is a
// terminal, otherwise a no-op reporter
func NewProgressReporter(out *os.File, enabled bool) ProgressReporter {
	if !enabled || out == nil || !term.IsTerminal(int(out.Fd())) {
		return NopProgress{}
	}
	width := 40
	if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 60 {
		width = w - 40
		if width > 80 {
			width = 80
		}
	}
	return newTerminalProgress(out, width)
}

var (
	progressLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	progressCountStyle = lipgloss.NewStyle().Bold(true)
)

// terminalProgress redraws a single line progress bar in place
type terminalProgress struct {
	out      io.Writer
	bar      progress.Model
	total    int
	done     int
	hashed   int64
	lastDraw time.Time
}

func newTerminalProgress(out io.Writer, width int) *terminalProgress {
	return &terminalProgress{
		out: out,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(width)),
	}
}

func (p *terminalProgress) Start(total int) {
	p.total = total
	p.done = 0
	p.hashed = 0
	p.draw(true)
}

func (p *terminalProgress) Advance(path string, hashedBytes int64) {
	p.done++
	p.hashed += hashedBytes
	p.draw(p.done == p.total)
}

func (p *terminalProgress) Finish() {
	p.draw(true)
	fmt.Fprintln(p.out)
}

// draw renders at most ten frames a second unless forced
func (p *terminalProgress) draw(force bool) {
	now := time.Now()
	if !force && now.Sub(p.lastDraw) < 100*time.Millisecond {
		return
	}
	p.lastDraw = now

	percent := 1.0
	if p.total > 0 {
		percent = float64(p.done) / float64(p.total)
	}
	count := progressCountStyle.Render(fmt.Sprintf("%d/%d", p.done, p.total))
	label := progressLabelStyle.Render(humanize.IBytes(uint64(p.hashed)) + " hashed")
	fmt.Fprintf(p.out, "\r%s %s %s", p.bar.ViewAs(percent), count, label)
}
