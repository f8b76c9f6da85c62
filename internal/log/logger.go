// Package log is a small levelled key/value logger writing text or JSON
// lines to stderr.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Logger interface defines structured logging methods. Args are alternating
// keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// With returns a logger that adds args to every message.
	With(args ...any) Logger
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer // Defaults to os.Stderr
}

// DefaultLogger is the default implementation of Logger
type DefaultLogger struct {
	core   *core
	fields []any
}

// core is the state shared by a logger and the loggers derived with With.
type core struct {
	mu         sync.Mutex
	level      Level
	jsonOutput bool
	out        io.Writer
	colors     bool
	now        func() time.Time
}

var (
	defaultLogger *DefaultLogger
	once          sync.Once
)

// New creates a new logger with the given configuration
func New(cfg LoggerConfig) *DefaultLogger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return &DefaultLogger{core: &core{
		level:      cfg.Level,
		jsonOutput: cfg.JSONOutput,
		out:        out,
		colors:     IsTerminal(out),
		now:        time.Now,
	}}
}

// Default returns the default logger instance
func Default() *DefaultLogger {
	once.Do(func() {
		defaultLogger = New(LoggerConfig{Level: InfoLevel})
	})
	return defaultLogger
}

// Discard returns a logger that drops every message.
func Discard() *DefaultLogger {
	return New(LoggerConfig{Level: ErrorLevel + 1, Output: io.Discard})
}

// IsTerminal reports whether w is a character device and NO_COLOR is unset.
func IsTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// pairs turns args into key/value pairs. A leading odd argument is kept
// under the key "arg"; non-string keys are skipped.
func pairs(args []any) [][2]any {
	var out [][2]any
	if len(args)%2 != 0 {
		out = append(out, [2]any{"arg", args[0]})
		args = args[1:]
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			continue
		}
		out = append(out, [2]any{args[i], args[i+1]})
	}
	return out
}

// formatMessage formats the message with key-value args
func formatMessage(msg string, kv [][2]any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for _, p := range kv {
		fmt.Fprintf(&sb, " %s=%v", p[0], p[1])
	}
	return sb.String()
}

// getColor returns the ANSI color code for the given level
func getColor(level Level) string {
	switch level {
	case DebugLevel:
		return "\033[36m" // Cyan
	case InfoLevel:
		return "\033[32m" // Green
	case WarnLevel:
		return "\033[33m" // Yellow
	case ErrorLevel:
		return "\033[31m" // Red
	default:
		return ""
	}
}

func (l *DefaultLogger) log(level Level, msg string, args []any) {
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()

	if level < c.level {
		return
	}

	kv := pairs(append(append([]any{}, l.fields...), args...))
	timestamp := c.now().Format("2006-01-02 15:04:05")

	if c.jsonOutput {
		entry := map[string]any{
			"timestamp": timestamp,
			"level":     level.String(),
			"message":   msg,
		}
		for _, p := range kv {
			v := p[1]
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			entry[p[0].(string)] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			data, _ = json.Marshal(map[string]string{"level": level.String(), "message": msg})
		}
		fmt.Fprintln(c.out, string(data))
		return
	}

	text := formatMessage(msg, kv)
	if c.colors {
		text = getColor(level) + text + "\033[0m"
	}
	fmt.Fprintf(c.out, "[%s] %s: %s\n", timestamp, level, text)
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...any) { l.log(DebugLevel, msg, args) }

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...any) { l.log(InfoLevel, msg, args) }

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, args ...any) { l.log(WarnLevel, msg, args) }

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...any) { l.log(ErrorLevel, msg, args) }

// With returns a logger sharing l's output that prefixes args to every
// message.
func (l *DefaultLogger) With(args ...any) Logger {
	fields := make([]any, 0, len(l.fields)+len(args))
	fields = append(fields, l.fields...)
	fields = append(fields, args...)
	return &DefaultLogger{core: l.core, fields: fields}
}

// SetLevel sets the minimum log level
func (l *DefaultLogger) SetLevel(level Level) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.level = level
}

// SetJSONOutput enables or disables JSON output
func (l *DefaultLogger) SetJSONOutput(enabled bool) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.jsonOutput = enabled
}

// ProgressSpinner shows a spinner with a message on a terminal while a long
// operation runs. On other writers it prints nothing.
type ProgressSpinner struct {
	mu      sync.Mutex
	message string
	frames  []string
	current int
	writer  io.Writer
	enabled bool
	stop    chan struct{}
	done    chan struct{}
}

// NewProgressSpinner creates a spinner drawing on w.
func NewProgressSpinner(w io.Writer, message string) *ProgressSpinner {
	return &ProgressSpinner{
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		writer:  w,
		enabled: IsTerminal(w),
	}
}

// Start begins the spinner animation
func (p *ProgressSpinner) Start() {
	if !p.enabled {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.animate()
}

// Stop stops the spinner and clears its line.
func (p *ProgressSpinner) Stop() {
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	p.stop = nil
	fmt.Fprint(p.writer, "\r\033[K")
}

// Message updates the spinner message
func (p *ProgressSpinner) Message(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

func (p *ProgressSpinner) animate() {
	defer close(p.done)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			frame := p.frames[p.current%len(p.frames)]
			p.current++
			fmt.Fprintf(p.writer, "\r\033[36m%s\033[0m %s", frame, p.message)
			p.mu.Unlock()
		case <-p.stop:
			return
		}
	}
}

var _ Logger = (*DefaultLogger)(nil)
