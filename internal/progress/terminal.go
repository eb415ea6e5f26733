package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/thoreinstein/bax/internal/logging"
)

// redrawInterval caps how often the progress line is repainted.
const redrawInterval = 100 * time.Millisecond

// Terminal renders a single self-updating progress line using carriage
// returns. It is meant for interactive stdout; pair it with a non-TTY
// fallback such as Log.
type Terminal struct {
	mu       sync.Mutex
	w        io.Writer
	width    int
	count    *color.Color
	dim      *color.Color
	files    int
	bytes    int64
	excluded int
	warnings int
	current  string
	lastDraw time.Time
	active   bool
}

// NewTerminal creates a terminal sink writing to w. Color and width are
// detected from w.
func NewTerminal(w io.Writer) *Terminal {
	t := &Terminal{
		w:     w,
		width: logging.Width(w, 80),
	}
	if logging.SupportsColor(w) {
		t.count = color.New(color.FgGreen, color.Bold)
		t.dim = color.New(color.FgHiBlack)
	}
	return t
}

// FileDiscovered updates the current path and repaints.
func (t *Terminal) FileDiscovered(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = path
	t.draw(false)
}

// FileExcluded counts an exclusion.
func (t *Terminal) FileExcluded(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.excluded++
	t.draw(false)
}

// FileWritten counts a completed file and repaints.
func (t *Terminal) FileWritten(path string, size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files++
	t.bytes += size
	t.current = path
	t.draw(false)
}

// Warning counts a per-entry problem. The engine logs the details.
func (t *Terminal) Warning(path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings++
	t.draw(false)
}

// Done clears the progress line so the caller's summary starts on a clean
// row.
func (t *Terminal) Done(s Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		fmt.Fprintf(t.w, "\r%s\r", strings.Repeat(" ", t.width-1))
		t.active = false
	}
}

// draw repaints the progress line, throttled to redrawInterval unless
// force is set.
func (t *Terminal) draw(force bool) {
	now := time.Now()
	if !force && now.Sub(t.lastDraw) < redrawInterval {
		return
	}
	t.lastDraw = now

	counts := fmt.Sprintf("%d files  %s", t.files, humanize.IBytes(uint64(t.bytes)))
	if t.count != nil {
		counts = t.count.Sprint(counts)
	}

	extra := ""
	if t.excluded > 0 {
		extra += fmt.Sprintf("  %d excluded", t.excluded)
	}
	if t.warnings > 0 {
		extra += fmt.Sprintf("  %d warnings", t.warnings)
	}
	if extra != "" && t.dim != nil {
		extra = t.dim.Sprint(extra)
	}

	path := truncatePath(t.current, t.width/3)

	line := fmt.Sprintf("\r%s%s  %s", counts, extra, path)
	if pad := t.width - 1 - visibleLen(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	fmt.Fprint(t.w, line)
	t.active = true
}

// truncatePath shortens long paths from the left, keeping the filename end
// visible.
func truncatePath(path string, max int) string {
	if max < 4 || len(path) <= max {
		return path
	}
	return "…" + path[len(path)-max+1:]
}

// visibleLen approximates printed width by ignoring ANSI escape sequences
// and the leading carriage return.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		case r == '\r':
		default:
			n++
		}
	}
	return n
}
