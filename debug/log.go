package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
	verbose bool
	logger  = newLogger(io.Discard)
)

func newLogger(w io.Writer) *charmlog.Logger {
	l := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Prefix:          "phrase",
	})
	l.SetLevel(charmlog.DebugLevel)
	return l
}

// Logger returns the shared structured logger.
func Logger() *charmlog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Enable starts debug logging to ~/.config/go-phrase/debug.log
func Enable() error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	homeDir, _ := os.UserHomeDir()
	dir := filepath.Join(homeDir, ".config", "go-phrase")
	os.MkdirAll(dir, 0755)

	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true
	logger = newLogger(sink())
	logger.Info("=== Debug logging started ===", "cat", "debug")
	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
	logger = newLogger(sink())
}

// SetVerbose mirrors log output to stderr.
func SetVerbose(on bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = on
	logger = newLogger(sink())
}

// SetOutput replaces every sink with w. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	enabled = w != nil
	if w == nil {
		w = io.Discard
	}
	logger = newLogger(w)
}

// sink must be called with mu held.
func sink() io.Writer {
	var ws []io.Writer
	if file != nil {
		ws = append(ws, file)
	}
	if verbose {
		ws = append(ws, os.Stderr)
	}
	switch len(ws) {
	case 0:
		return io.Discard
	case 1:
		return ws[0]
	}
	return io.MultiWriter(ws...)
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	mu.Lock()
	l := logger
	on := enabled || verbose
	mu.Unlock()

	if !on {
		return
	}
	l.Debug(fmt.Sprintf(format, args...), "cat", category)
}

// Warn logs at warn level regardless of the debug file.
func Warn(category, format string, args ...any) {
	mu.Lock()
	l := logger
	mu.Unlock()
	l.Warn(fmt.Sprintf(format, args...), "cat", category)
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

// ThrottledLogger drops messages beyond its rate.
type ThrottledLogger struct {
	category string
	limiter  *rate.Limiter
	dropped  int
	mu       sync.Mutex
}

// Throttled returns a warn logger allowing one message per interval, with a
// small burst.
func Throttled(category string, interval time.Duration) *ThrottledLogger {
	return &ThrottledLogger{
		category: category,
		limiter:  rate.NewLimiter(rate.Every(interval), 3),
	}
}

// Warn logs unless the limiter is exhausted.
func (t *ThrottledLogger) Warn(format string, args ...any) {
	t.mu.Lock()
	if !t.limiter.Allow() {
		t.dropped++
		t.mu.Unlock()
		return
	}
	dropped := t.dropped
	t.dropped = 0
	t.mu.Unlock()

	if dropped > 0 {
		format += " (%d suppressed)"
		args = append(args, dropped)
	}
	Warn(t.category, format, args...)
}
