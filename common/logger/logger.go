// Package logger is the leveled key/value logger used by every epsonconf
// package. Entries go to the console, to an optional log file with
// size-based rotation, and to an in-memory ring kept for diagnostics.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	ERROR LogLevel = iota
	WARN
	INFO
	DEBUG
	TRACE
)

func (lv LogLevel) String() string {
	switch lv {
	case ERROR:
		return "ERROR"
	case WARN:
		return "WARN"
	case INFO:
		return "INFO"
	case DEBUG:
		return "DEBUG"
	case TRACE:
		return "TRACE"
	}
	return fmt.Sprintf("LEVEL(%d)", int(lv))
}

// LevelFromString converts a string to a LogLevel, case-insensitively.
// Unknown names map to INFO.
func LevelFromString(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return ERROR
	case "WARN", "WARNING":
		return WARN
	case "DEBUG":
		return DEBUG
	case "TRACE":
		return TRACE
	}
	return INFO
}

// LogFileName is the active log file inside the log directory. Rotated
// files get a numeric suffix, .1 being the newest.
const LogFileName = "epsonconf.log"

// LogEntry is one recorded message.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Context   map[string]interface{}
}

// RotationPolicy bounds the log file size and the number of rotated files.
type RotationPolicy struct {
	MaxSizeMB int
	MaxFiles  int
}

// Logger is safe for concurrent use.
type Logger struct {
	mu        sync.RWMutex
	level     LogLevel
	console   io.Writer
	dir       string
	file      *os.File
	rotation  RotationPolicy
	ring      []LogEntry
	ringSize  int
	traceTags map[string]bool
}

// New creates a logger writing to stderr (stdout carries command output).
// An empty logDir disables file output; ringSize bounds the in-memory ring.
func New(level LogLevel, logDir string, ringSize int) *Logger {
	if ringSize <= 0 {
		ringSize = 1
	}
	return &Logger{
		level:     level,
		console:   os.Stderr,
		dir:       logDir,
		rotation:  RotationPolicy{MaxSizeMB: 10, MaxFiles: 5},
		ring:      make([]LogEntry, 0, ringSize),
		ringSize:  ringSize,
		traceTags: make(map[string]bool),
	}
}

// SetConsoleWriter redirects console output; nil disables it.
func (l *Logger) SetConsoleWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = w
}

// SetLevel changes the current log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// SetRotationPolicy configures log rotation. A non-positive MaxSizeMB
// disables rotation.
func (l *Logger) SetRotationPolicy(policy RotationPolicy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rotation = policy
}

func (l *Logger) Error(msg string, context ...interface{}) { l.log(ERROR, msg, context) }
func (l *Logger) Warn(msg string, context ...interface{})  { l.log(WARN, msg, context) }
func (l *Logger) Info(msg string, context ...interface{})  { l.log(INFO, msg, context) }
func (l *Logger) Debug(msg string, context ...interface{}) { l.log(DEBUG, msg, context) }
func (l *Logger) Trace(msg string, context ...interface{}) { l.log(TRACE, msg, context) }

// TraceTag logs at trace level when tag is enabled. With no tags enabled
// every trace message is logged.
// Usage: logger.Global.TraceTag("eeprom", "EEPROM read", "cell", 24, "oid", oid)
func (l *Logger) TraceTag(tag string, msg string, context ...interface{}) {
	l.mu.RLock()
	pass := len(l.traceTags) == 0 || l.traceTags[tag]
	l.mu.RUnlock()
	if pass {
		l.log(TRACE, msg, context)
	}
}

// EnableTraceTag restricts trace output to the enabled tags.
func (l *Logger) EnableTraceTag(tag string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.traceTags[strings.ToLower(strings.TrimSpace(tag))] = true
}

// DisableTraceTag disables trace logging for a specific tag
func (l *Logger) DisableTraceTag(tag string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.traceTags, strings.ToLower(strings.TrimSpace(tag)))
}

// TraceTags returns the enabled tags, sorted.
func (l *Logger) TraceTags() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tags := make([]string, 0, len(l.traceTags))
	for tag := range l.traceTags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func (l *Logger) log(level LogLevel, msg string, context []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.level {
		return
	}

	entry := LogEntry{Timestamp: time.Now(), Level: level, Message: msg, Context: make(map[string]interface{}, len(context)/2)}
	for i := 0; i+1 < len(context); i += 2 {
		if key, ok := context[i].(string); ok {
			entry.Context[key] = context[i+1]
		}
	}

	if len(l.ring) == l.ringSize {
		copy(l.ring, l.ring[1:])
		l.ring = l.ring[:len(l.ring)-1]
	}
	l.ring = append(l.ring, entry)

	line := formatLogEntry(entry)
	if l.console != nil {
		fmt.Fprintln(l.console, line)
	}
	l.writeFile(line)
}

func (l *Logger) writeFile(line string) {
	if l.dir == "" {
		return
	}
	if l.file == nil {
		if err := os.MkdirAll(l.dir, 0755); err != nil {
			return
		}
		f, err := os.OpenFile(filepath.Join(l.dir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return
		}
		l.file = f
	}
	fmt.Fprintln(l.file, line)

	if l.rotation.MaxSizeMB <= 0 {
		return
	}
	if stat, err := l.file.Stat(); err == nil && stat.Size() >= int64(l.rotation.MaxSizeMB)<<20 {
		l.rotate()
	}
}

// rotate shifts epsonconf.log to .1, .1 to .2 and so on, dropping files
// beyond MaxFiles.
func (l *Logger) rotate() {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	base := filepath.Join(l.dir, LogFileName)
	keep := l.rotation.MaxFiles
	if keep <= 0 {
		os.Remove(base)
		return
	}
	os.Remove(fmt.Sprintf("%s.%d", base, keep))
	for i := keep - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", base, i), fmt.Sprintf("%s.%d", base, i+1))
	}
	os.Rename(base, base+".1")
}

// Rotate rotates the log file now.
func (l *Logger) Rotate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dir != "" {
		l.rotate()
	}
}

// formatLogEntry renders "timestamp LEVEL message key=value ...", keys
// sorted. Values containing spaces or control characters are quoted.
func formatLogEntry(entry LogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message)

	keys := make([]string, 0, len(entry.Context))
	for k := range entry.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(entry.Context[k])
		if strings.ContainsAny(v, " \t\r\n\"=") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", k, v)
	}
	return b.String()
}

// Entries returns the buffered entries at minLevel or more severe, oldest
// first.
func (l *Logger) Entries(minLevel LogLevel) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LogEntry, 0, len(l.ring))
	for _, entry := range l.ring {
		if entry.Level <= minLevel {
			out = append(out, entry)
		}
	}
	return out
}

// Close closes the log file. Logging afterwards reopens it.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
