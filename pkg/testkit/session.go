package testkit

import (
	"context"
	"sync"
	"time"

	"pagegen/pkg/pages"
	"pagegen/pkg/render"
	"pagegen/pkg/session"
)

// Pages builds session inputs with a small fake PNG per name.
func Pages(names ...string) []session.PageInput {
	out := make([]session.PageInput, len(names))
	for i, name := range names {
		out[i] = session.PageInput{
			Name:      name,
			Reference: pages.NewImage([]byte("sketch:"+name), "image/png"),
		}
	}
	return out
}

// RecordingSink accepts every push and click and records them. Set Reject
// to turn every push into a rejection with that message.
type RecordingSink struct {
	mu     sync.Mutex
	Reject string
	pushes []string
	clicks []string
}

// PushCode implements render.Sink.
func (s *RecordingSink) PushCode(ctx context.Context, source string) (render.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return render.Verdict{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes = append(s.pushes, source)
	if s.Reject != "" {
		return render.Rejected(s.Reject), nil
	}
	return render.Accepted(), nil
}

// Click implements render.Sink.
func (s *RecordingSink) Click(ctx context.Context, selector string) (render.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return render.Verdict{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, selector)
	return render.Accepted(), nil
}

// Pushes returns the sources pushed so far.
func (s *RecordingSink) Pushes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pushes...)
}

// Clicks returns the selectors clicked so far.
func (s *RecordingSink) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

// Sleeper records requested delays without waiting.
type Sleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

// Sleep matches retry.Sleeper.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

// Delays returns the recorded delays.
func (s *Sleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// Total returns the sum of the recorded delays.
func (s *Sleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Delays() {
		total += d
	}
	return total
}
