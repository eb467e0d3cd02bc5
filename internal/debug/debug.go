// Package debug writes component-tagged trace lines. Nothing is written unless tracing
// is enabled and an output is set; serving MCP over stdio silences it entirely.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// EnableDebug turns tracing on for a release build:
// go build -ldflags "-X github.com/standardbeagle/scriptref/internal/debug.EnableDebug=true"
var EnableDebug = "false"

type tracer struct {
	mu   sync.Mutex
	out  io.Writer
	file *os.File

	enabled atomic.Bool
	stdio   atomic.Bool // stdout carries a protocol
}

var std = newTracer()

func newTracer() *tracer {
	t := &tracer{}
	v := os.Getenv("DEBUG")
	t.enabled.Store(EnableDebug == "true" || v == "1" || v == "true")
	return t
}

// SetMCPMode marks stdout as owned by the MCP transport
func SetMCPMode(on bool) { std.stdio.Store(on) }

// Enable switches tracing on or off at runtime
func Enable(on bool) { std.enabled.Store(on) }

// Enabled reports whether trace lines are currently written
func Enabled() bool {
	return !std.stdio.Load() && (std.enabled.Load() || EnableDebug == "true")
}

// SetOutput sets where trace lines go; nil drops them
func SetOutput(w io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.out = w
}

// OpenLogFile sends trace lines to a new timestamped file in dir (the temp dir when
// empty) and returns its path
func OpenLogFile(dir string) (string, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "scriptref-debug-logs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("debug log dir: %w", err)
	}
	path := filepath.Join(dir, "trace-"+time.Now().Format("20060102-150405")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("debug log file: %w", err)
	}

	std.mu.Lock()
	defer std.mu.Unlock()
	if std.file != nil {
		_ = std.file.Close()
	}
	std.file, std.out = f, f
	return path, nil
}

// Close closes the log file opened by OpenLogFile, if any
func Close() error {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.file == nil {
		return nil
	}
	err := std.file.Close()
	std.file, std.out = nil, nil
	return err
}

// Log writes one line tagged with component
func Log(component, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.out == nil {
		return
	}
	fmt.Fprintf(std.out, "%s %-5s "+format, append([]interface{}{time.Now().Format("15:04:05.000"), component}, args...)...)
}

func LogIndexing(format string, args ...interface{}) { Log("index", format, args...) }
func LogWatch(format string, args ...interface{})    { Log("watch", format, args...) }
func LogQuery(format string, args ...interface{})    { Log("query", format, args...) }
func LogMCP(format string, args ...interface{})      { Log("mcp", format, args...) }
