package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives extraction events from ExtractParallel. Calls
// are made from the collecting goroutine only.
type ProgressCallback interface {
	OnStart(total int)
	// OnImage reports one finished image. err is set for OutcomeFailed only.
	OnImage(done, total int, path string, outcome Outcome, err error)
	OnComplete()
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)                              {}
func (NoOpProgressCallback) OnImage(int, int, string, Outcome, error) {}
func (NoOpProgressCallback) OnComplete()                              {}

// tally counts outcomes seen so far.
type tally struct {
	kept, noHand, failed int
}

func (t *tally) add(o Outcome) {
	switch o {
	case OutcomeRetained:
		t.kept++
	case OutcomeNoHand:
		t.noHand++
	case OutcomeFailed:
		t.failed++
	}
}

func (t tally) String() string {
	return fmt.Sprintf("%d kept, %d no hand, %d failed", t.kept, t.noHand, t.failed)
}

// ConsoleProgressCallback draws a bar with the running kept count,
// typically on stderr. Dropped images are only counted.
type ConsoleProgressCallback struct {
	writer   io.Writer
	prefix   string
	width    int
	interval time.Duration
	showETA  bool

	mu        sync.Mutex
	started   time.Time
	lastDrawn time.Time
	counts    tally
}

// NewConsoleProgressCallback creates a console progress reporter writing to
// w, or stderr when w is nil.
func NewConsoleProgressCallback(w io.Writer, prefix string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:   w,
		prefix:   prefix,
		width:    30,
		interval: 100 * time.Millisecond,
		showETA:  true,
	}
}

// WithWidth sets the bar width in cells.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = max(width, 1)
	return c
}

// WithUpdateInterval sets the minimum time between redraws.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.interval = interval
	return c
}

// WithETA toggles the remaining-time estimate.
func (c *ConsoleProgressCallback) WithETA(show bool) *ConsoleProgressCallback {
	c.showETA = show
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.started = time.Now()
	c.lastDrawn = time.Time{}
	c.counts = tally{}
	_, _ = fmt.Fprintf(c.writer, "%s%d images\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnImage(done, total int, _ string, outcome Outcome, _ error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts.add(outcome)
	now := time.Now()
	if done < total && now.Sub(c.lastDrawn) < c.interval {
		return
	}
	c.lastDrawn = now
	c.draw(done, total, now)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sdone in %v: %s\n",
		c.prefix, time.Since(c.started).Round(time.Millisecond), c.counts)
}

func (c *ConsoleProgressCallback) draw(done, total int, now time.Time) {
	if total <= 0 {
		return
	}

	filled := min(c.width, c.width*done/total)
	var b strings.Builder
	b.WriteString("\r")
	b.WriteString(c.prefix)
	b.WriteString("[")
	b.WriteString(strings.Repeat("#", filled))
	b.WriteString(strings.Repeat("-", c.width-filled))
	_, _ = fmt.Fprintf(&b, "] %d/%d kept %d", done, total, c.counts.kept)

	if elapsed := now.Sub(c.started); elapsed > 0 && done > 0 {
		_, _ = fmt.Fprintf(&b, " %.1f img/s", float64(done)/elapsed.Seconds())
		if c.showETA && done < total {
			eta := elapsed * time.Duration(total-done) / time.Duration(done)
			_, _ = fmt.Fprintf(&b, " eta %v", eta.Round(time.Second))
		}
	}
	_, _ = io.WriteString(c.writer, b.String())
}

// LogProgressCallback reports progress through slog every N images.
type LogProgressCallback struct {
	logger  *slog.Logger
	every   int
	lastLog int
	started time.Time
	counts  tally
}

// NewLogProgressCallback creates a log-based progress reporter. A nil
// logger uses slog.Default.
func NewLogProgressCallback(logger *slog.Logger) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, every: 100}
}

// WithInterval logs every n images.
func (l *LogProgressCallback) WithInterval(n int) *LogProgressCallback {
	l.every = max(1, n)
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.started = time.Now()
	l.lastLog = 0
	l.counts = tally{}
	l.logger.Info("Feature extraction started", "images", total)
}

func (l *LogProgressCallback) OnImage(done, total int, path string, outcome Outcome, err error) {
	l.counts.add(outcome)
	if outcome != OutcomeRetained {
		l.logger.Debug("Image dropped", "path", path, "outcome", outcome.String(), "error", err)
	}

	if done-l.lastLog < l.every && done != total {
		return
	}
	l.lastLog = done
	l.logger.Info("Feature extraction progress",
		"done", done,
		"total", total,
		"kept", l.counts.kept,
		"elapsed", time.Since(l.started).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Info("Feature extraction finished",
		"kept", l.counts.kept,
		"no_hand", l.counts.noHand,
		"failed", l.counts.failed,
		"elapsed", time.Since(l.started).Round(time.Millisecond))
}

// MultiProgressCallback fans events out to several callbacks.
type MultiProgressCallback []ProgressCallback

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnImage(done, total int, path string, outcome Outcome, err error) {
	for _, cb := range m {
		cb.OnImage(done, total, path, outcome, err)
	}
}

func (m MultiProgressCallback) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}
