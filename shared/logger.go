package shared

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents different log levels
type LogLevel int

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelSuccess
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelTrace:   "TRACE",
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO ",
	LevelWarn:    "WARN ",
	LevelError:   "ERROR",
	LevelFatal:   "FATAL",
	LevelSuccess: "GOOD ",
}

var levelColors = map[LogLevel]string{
	LevelTrace:   "\033[38;5;245m", // Gray
	LevelDebug:   "\033[38;5;14m",  // Bright Cyan
	LevelInfo:    "\033[38;5;12m",  // Bright Blue
	LevelWarn:    "\033[38;5;11m",  // Bright Yellow
	LevelError:   "\033[38;5;9m",   // Bright Red
	LevelFatal:   "\033[48;5;9m",   // Red background
	LevelSuccess: "\033[38;5;10m",  // Bright Green
}

var levelEmojis = map[LogLevel]string{
	LevelTrace:   "🔍",
	LevelDebug:   "🐞",
	LevelInfo:    "ℹ️ ",
	LevelWarn:    "⚠️ ",
	LevelError:   "💥",
	LevelFatal:   "☠️ ",
	LevelSuccess: "✨",
}

var (
	quietMu sync.RWMutex
	quiet   bool
)

// Quiet suppresses everything below Error on every logger. Used by --json
// mode so machine-readable output stays parseable.
func Quiet(enable bool) {
	quietMu.Lock()
	defer quietMu.Unlock()
	quiet = enable
}

func isQuiet() bool {
	quietMu.RLock()
	defer quietMu.RUnlock()
	return quiet
}

// Logger is the main logger struct
type Logger struct {
	mu            sync.Mutex
	minLevel      LogLevel
	logger        *log.Logger
	display       string
	showTimestamp bool
	colorEnabled  bool
	timeFormat    string
}

// New creates a new Logger instance
func New(out io.Writer, display string, minLevel LogLevel) *Logger {
	return &Logger{
		minLevel:      minLevel,
		logger:        log.New(out, "", 0), // We handle formatting ourselves
		display:       display,
		showTimestamp: true,
		colorEnabled:  true,
		timeFormat:    "2006-01-02 15:04:05.000",
	}
}

// PackageLogger creates a logger with a package-specific display name.
// EPIDEPLOY_DEBUG="api,deploy" (or "all") drops the named packages down to
// trace level.
func PackageLogger(pkgName string, displayName string) *Logger {
	level := LevelInfo
	if debug := os.Getenv("EPIDEPLOY_DEBUG"); debug != "" {
		for _, name := range strings.Split(debug, ",") {
			if name = strings.TrimSpace(name); name == "all" || strings.EqualFold(name, pkgName) {
				level = LevelTrace
				break
			}
		}
	}
	return New(os.Stderr, displayName, level)
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// SetOutput sets the output destination
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.SetOutput(w)
}

// EnableTimestamp enables/disables timestamp
func (l *Logger) EnableTimestamp(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.showTimestamp = enable
}

// EnableColor enables/disables color output
func (l *Logger) EnableColor(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.colorEnabled = enable
}

// Log logs a message at a specific level
func (l *Logger) Log(level LogLevel, msg string, args ...interface{}) {
	if level < l.minLevel {
		return
	}
	if isQuiet() && level < LevelError {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	levelName := levelNames[level]
	levelColor := levelColors[level]
	levelEmoji := levelEmojis[level]
	resetColor := "\033[0m"

	if !l.colorEnabled {
		levelColor = ""
		resetColor = ""
	}

	formattedMsg := fmt.Sprintf(msg, args...)

	var logLine strings.Builder

	if l.showTimestamp {
		logLine.WriteString(fmt.Sprintf("\033[90m%s\033[0m ", time.Now().Format(l.timeFormat)))
	}

	logLine.WriteString(fmt.Sprintf("%s%s%s %s ", levelColor, levelName, resetColor, levelEmoji))

	if l.display != "" {
		logLine.WriteString(l.display + " ")
	}

	logLine.WriteString(formattedMsg)

	l.logger.Println(logLine.String())
}

// Trace logs a trace message (most verbose)
func (l *Logger) Trace(msg string, args ...interface{}) {
	l.Log(LevelTrace, msg, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.Log(LevelDebug, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.Log(LevelInfo, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.Log(LevelWarn, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.Log(LevelError, msg, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.Log(LevelFatal, msg, args...)
	os.Exit(1)
}

// Success logs a success message
func (l *Logger) Success(msg string, args ...interface{}) {
	l.Log(LevelSuccess, msg, args...)
}

// JSON logs data in pretty-printed JSON format
func (l *Logger) JSON(level LogLevel, data interface{}) {
	if level < l.minLevel {
		return
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		l.Error("Failed to marshal JSON: %v", err)
		return
	}

	fmt.Println(string(jsonData))
}

// Progress renders a single-line progress bar for long running operations
// like deployment polling. Redraws in place until current >= total.
func (l *Logger) Progress(level LogLevel, current, total int, label string) {
	if level < l.minLevel {
		return
	}
	if isQuiet() && level < LevelError {
		return
	}

	const barWidth = 30
	if total <= 0 {
		total = 100
	}
	progress := float64(current) / float64(total)
	if progress > 1 {
		progress = 1
	}
	filled := int(barWidth * progress)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	levelColor := levelColors[level]
	resetColor := "\033[0m"
	if !l.colorEnabled {
		levelColor = ""
		resetColor = ""
	}

	msg := fmt.Sprintf("%s [%s] %3.0f%%", label, bar, progress*100)

	l.mu.Lock()
	defer l.mu.Unlock()

	var logLine strings.Builder

	if l.showTimestamp {
		logLine.WriteString(fmt.Sprintf("\033[90m%s\033[0m ", time.Now().Format(l.timeFormat)))
	}

	logLine.WriteString(fmt.Sprintf("%s%s%s %s %s",
		levelColor, levelNames[level], resetColor,
		levelEmojis[level], msg))

	l.logger.Print("\r" + logLine.String())
	if current >= total {
		l.logger.Println()
	}
}
