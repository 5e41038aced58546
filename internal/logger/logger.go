package logger

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	mu     sync.Mutex
	out    io.Writer = color.Output
	debug  bool
	gray   = color.New(color.FgHiBlack)
	blue   = color.New(color.FgBlue)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
	purple = color.New(color.FgMagenta)
)

// SetOutput redirects every log line to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetDebug enables Debug lines.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debug = enabled
}

func write(c *color.Color, prefix, message string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	timestamp := gray.Sprintf("[%s]", time.Now().Format("15:04:05"))
	fmt.Fprintf(out, "%s %s\n", timestamp, c.Sprint(prefix+fmt.Sprintf(message, args...)))
}

func Info(message string, args ...any) {
	write(blue, "", message, args...)
}

func Success(message string, args ...any) {
	write(green, "✓ ", message, args...)
}

func Warning(message string, args ...any) {
	write(yellow, "⚠ ", message, args...)
}

func Error(message string, args ...any) {
	write(red, "✗ ", message, args...)
}

// Debug is silent unless SetDebug(true) was called.
func Debug(message string, args ...any) {
	mu.Lock()
	enabled := debug
	mu.Unlock()
	if !enabled {
		return
	}
	write(gray, "DEBUG: ", message, args...)
}

// Request logs one HTTP exchange, colored by status class.
func Request(method, path string, statusCode int, duration time.Duration) {
	var c *color.Color
	switch {
	case statusCode >= 500:
		c = red
	case statusCode >= 400:
		c = yellow
	case statusCode >= 300:
		c = cyan
	default:
		c = green
	}

	var durationStr string
	switch {
	case duration < time.Millisecond:
		durationStr = fmt.Sprintf("%dµs", duration.Microseconds())
	case duration < time.Second:
		durationStr = fmt.Sprintf("%dms", duration.Milliseconds())
	default:
		durationStr = fmt.Sprintf("%.2fs", duration.Seconds())
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "%s %s %-50s %s %s\n",
		gray.Sprintf("[%s]", time.Now().Format("15:04:05")),
		purple.Sprintf("%-6s", method),
		path,
		c.Sprintf("[%d]", statusCode),
		gray.Sprintf("(%s)", durationStr))
}
