// Package logx provides leveled printf-style logging with per-session identity
// and domain-filtered debug output controlled by environment variables.
package logx

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

type contextKey string

// SessionIDKey is the context key holding the session identifier used by Debug.
const SessionIDKey contextKey = "session_id"

// RoleKey is the context key holding the workflow role issuing a request.
const RoleKey contextKey = "role"

// Logger writes lines tagged with a component id (usually a session id or role).
type Logger struct {
	id     string
	logger *log.Logger
}

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // nil = all domains
}

// LogEntry is a captured log line.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	ID        string `json:"id"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Domain    string `json:"domain,omitempty"`
}

// Buffer keeps the most recent log entries in memory.
type Buffer struct {
	entries []LogEntry
	mutex   sync.RWMutex
	maxSize int
}

var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex

	outputMutex sync.RWMutex
	output      io.Writer = os.Stderr

	logBuffer = &Buffer{maxSize: 1000}
)

func init() { //nolint:gochecknoinits // env driven configuration
	initDebugFromEnv()
}

func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}

	// DEBUG_DOMAINS=workflow,retry,dispatch
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = parseDomains(strings.Split(domains, ","))
	}
}

func parseDomains(domains []string) map[string]bool {
	if len(domains) == 0 {
		return nil
	}
	m := make(map[string]bool, len(domains))
	for _, d := range domains {
		if d = strings.TrimSpace(d); d != "" {
			m[d] = true
		}
	}
	return m
}

// NewLogger creates a logger tagged with id.
func NewLogger(id string) *Logger {
	return &Logger{id: id, logger: log.New(writer{}, "", 0)}
}

// writer forwards to the current global output so SetOutput affects existing loggers.
type writer struct{}

func (writer) Write(p []byte) (int, error) {
	outputMutex.RLock()
	defer outputMutex.RUnlock()
	return output.Write(p) //nolint:wrapcheck // passthrough
}

// SetOutput redirects all loggers. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	outputMutex.Lock()
	defer outputMutex.Unlock()
	if w == nil {
		w = os.Stderr
	}
	output = w
}

// SetDebug enables or disables debug output for the given domains (empty = all).
func SetDebug(enabled bool, domains ...string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugConfig.Enabled = enabled
	debugConfig.Domains = parseDomains(domains)
}

// IsDebugEnabled returns whether debug logging is enabled.
func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugConfig.Enabled
}

// IsDebugEnabledForDomain returns whether debug logging is enabled for a specific domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

// Add appends an entry, evicting the oldest past capacity.
func (b *Buffer) Add(entry *LogEntry) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.entries = append(b.entries, *entry)
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// Entries returns a copy of entries matching id (empty = any) at or after since.
func (b *Buffer) Entries(id string, since time.Time) []LogEntry {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	filtered := make([]LogEntry, 0, len(b.entries))
	for i := range b.entries {
		entry := &b.entries[i]
		if id != "" && entry.ID != id {
			continue
		}
		if !since.IsZero() {
			ts, err := time.Parse(timestampFormat, entry.Timestamp)
			if err != nil || ts.Before(since) {
				continue
			}
		}
		filtered = append(filtered, *entry)
	}
	return filtered
}

// RecentEntries returns captured entries for id since the given time.
func RecentEntries(id string, since time.Time) []LogEntry {
	return logBuffer.Entries(id, since)
}

func (l *Logger) emit(level Level, domain, message string) {
	timestamp := time.Now().UTC().Format(timestampFormat)
	if domain != "" {
		l.logger.Printf("[%s] [%s] %s: [%s] %s", timestamp, l.id, level, domain, message)
	} else {
		l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.id, level, message)
	}
	logBuffer.Add(&LogEntry{
		Timestamp: timestamp,
		ID:        l.id,
		Level:     string(level),
		Message:   message,
		Domain:    domain,
	})
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabled() {
		return
	}
	l.emit(LevelDebug, "", fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.emit(LevelInfo, "", fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.emit(LevelWarn, "", fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.emit(LevelError, "", fmt.Sprintf(format, args...))
}

// ID returns the logger's tag.
func (l *Logger) ID() string {
	return l.id
}

// With returns a logger tagged "<id>/<suffix>" sharing the same output.
func (l *Logger) With(suffix string) *Logger {
	return &Logger{id: l.id + "/" + suffix, logger: l.logger}
}

// WithSession stores the session id on ctx for Debug.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// SessionFrom returns the session id stored on ctx, or "unknown".
func SessionFrom(ctx context.Context) string {
	if ctx != nil {
		if id, ok := ctx.Value(SessionIDKey).(string); ok && id != "" {
			return id
		}
	}
	return "unknown"
}

// WithRole stores the requesting role on ctx.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

// RoleFrom returns the role stored on ctx, or "unknown".
func RoleFrom(ctx context.Context) string {
	if ctx != nil {
		if role, ok := ctx.Value(RoleKey).(string); ok && role != "" {
			return role
		}
	}
	return "unknown"
}

// Debug logs a domain-filtered debug message tagged with the session on ctx.
//
//	DEBUG=1                              # all domains
//	DEBUG=1 DEBUG_DOMAINS=workflow,retry # selected domains
func Debug(ctx context.Context, domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}
	NewLogger(SessionFrom(ctx)).emit(LevelDebug, domain, fmt.Sprintf(format, args...))
}

// DebugState logs a state action for the session on ctx.
func DebugState(ctx context.Context, domain, action, state string) {
	Debug(ctx, domain, "State %s: %s", action, state)
}

var defaultLogger = NewLogger("system")

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
