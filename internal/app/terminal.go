package app

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"ngltool/pkg/clock"
	logx "ngltool/pkg/logx"
)

const progressWidth = 20

// Terminal renders timestamped log lines ("[15:04:05] > text") and a
// progress bar. It implements ngl.Observer and mirrors every line to the
// structured logger at debug level.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	clock clock.Clock
	log   logx.Logger

	showProgress bool
	cur, total   int
}

type TerminalOption func(*Terminal)

// WithProgressBar prints a bar line after each progress update.
func WithProgressBar(on bool) TerminalOption { return func(t *Terminal) { t.showProgress = on } }

// WithClock overrides the clock used for line timestamps.
func WithClock(c clock.Clock) TerminalOption { return func(t *Terminal) { t.clock = c } }

func NewTerminal(out io.Writer, log logx.Logger, opts ...TerminalOption) *Terminal {
	if log.IsZero() {
		log = logx.Nop()
	}
	t := &Terminal{out: out, clock: clock.Real{}, log: log}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Terminal) OnLogLine(channel, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "[%s] > %s\n", t.clock.Now().Format("15:04:05"), text)
	t.log.Debug(text, logx.String("channel", channel))
}

func (t *Terminal) OnProgress(current, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur, t.total = current, total
	if t.showProgress {
		fmt.Fprintf(t.out, "           %s\n", progressBar(current, total, progressWidth))
	}
}

// Progress returns the last reported position.
func (t *Terminal) Progress() (current, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur, t.total
}

// ResetProgress clears the bar after a run.
func (t *Terminal) ResetProgress() {
	t.mu.Lock()
	t.cur, t.total = 0, 0
	t.mu.Unlock()
}

func progressBar(current, total, width int) string {
	if total <= 0 {
		return "[" + strings.Repeat("░", width) + "]   0%"
	}
	if current > total {
		current = total
	}
	filled := current * width / total
	pct := current * 100 / total
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("█", filled), strings.Repeat("░", width-filled), pct)
}
