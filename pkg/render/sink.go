// Package render defines the boundary to the rendering surface that compiles
// and displays generated code.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Verdict is the rendering surface's answer to a push or click.
type Verdict struct {
	Message string
	OK      bool
}

// Accepted is the successful verdict.
func Accepted() Verdict { return Verdict{OK: true} }

// Rejected is a failed verdict carrying the surface's message.
func Rejected(msg string) Verdict { return Verdict{Message: msg} }

// Sink is the duplex channel to the rendering surface. Calls block until the
// surface acknowledges. There is no timeout at this layer; a surface that
// never answers blocks the session until ctx is cancelled.
type Sink interface {
	PushCode(ctx context.Context, source string) (Verdict, error)
	Click(ctx context.Context, selector string) (Verdict, error)
}

// FileSink writes every accepted push to a file. It has no live surface so
// clicks are always rejected.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink creates a sink that writes generated code to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// PushCode writes source to the configured file.
func (s *FileSink) PushCode(ctx context.Context, source string) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, fmt.Errorf("push cancelled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Verdict{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(source), 0o644); err != nil { //nolint:gosec // generated source is not secret
		return Verdict{}, fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return Accepted(), nil
}

// Click always fails because there is nothing to click.
func (s *FileSink) Click(_ context.Context, selector string) (Verdict, error) {
	return Rejected(fmt.Sprintf("no live surface to click %q", selector)), nil
}
