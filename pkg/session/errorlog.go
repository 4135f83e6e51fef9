package session

import "strings"

const defaultErrorLogSize = 100

// ErrorLog keeps recent diagnostic errors for one session.
type ErrorLog struct {
	entries []string
	max     int
}

// NewErrorLog creates a log holding at most max entries (0 = default).
func NewErrorLog(maxEntries int) *ErrorLog {
	if maxEntries <= 0 {
		maxEntries = defaultErrorLogSize
	}
	return &ErrorLog{max: maxEntries}
}

// Append records an error message.
func (l *ErrorLog) Append(msg string) {
	l.entries = append(l.entries, msg)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// Clear drops all recorded errors.
func (l *ErrorLog) Clear() {
	l.entries = nil
}

// Len returns the number of recorded errors.
func (l *ErrorLog) Len() int {
	return len(l.entries)
}

// Last joins the n most recent errors with newlines.
func (l *ErrorLog) Last(n int) string {
	if n <= 0 || len(l.entries) == 0 {
		return ""
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	return strings.Join(l.entries[len(l.entries)-n:], "\n")
}
