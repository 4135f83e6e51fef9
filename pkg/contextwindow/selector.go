// Package contextwindow chooses which conversation turns are presented to the
// reasoning service. Selection is a pure function of the history and options.
package contextwindow

import (
	"encoding/json"

	"pagegen/pkg/conversation"
)

// TokenCounter counts tokens in a text.
type TokenCounter interface {
	CountTokens(text string) int
}

// Options bound the window.
type Options struct {
	// Counter measures turns when MaxTokens is set.
	Counter TokenCounter
	// MaxTurns is the window size on the first attempt. Zero keeps everything.
	MaxTurns int
	// MinTurns floors the window when it shrinks under retries.
	MinTurns int
	// RetryShrink is subtracted from MaxTurns per failed attempt.
	RetryShrink int
	// Attempt is the zero-based retry attempt the window is built for.
	Attempt int
	// MaxTokens caps the window's token count. Zero disables the cap.
	MaxTokens int
}

// Size returns the candidate number of turns for the options.
func (o *Options) Size(historyLen int) int {
	if o.MaxTurns <= 0 {
		return historyLen
	}
	size := o.MaxTurns - o.Attempt*o.RetryShrink
	if size < o.MinTurns {
		size = o.MinTurns
	}
	if size < 1 {
		size = 1
	}
	return size
}

// Select returns the window of turns to present. Every request in the result
// is immediately followed by its result and every result is immediately
// preceded by its request; unpaired turns are dropped.
func Select(turns []conversation.Turn, opts Options) []conversation.Turn {
	if len(turns) == 0 {
		return []conversation.Turn{}
	}

	start := len(turns) - opts.Size(len(turns))
	if start < 0 {
		start = 0
	}
	// Widen rather than split a request/result pair at the boundary.
	if start > 0 && turns[start].Answers(&turns[start-1]) {
		start--
	}

	view := paired(turns[start:])
	if opts.MaxTokens > 0 && opts.Counter != nil {
		view = fitTokens(view, opts.MaxTokens, opts.Counter)
	}
	return view
}

// paired drops orphan requests (including a trailing one) and orphan results.
func paired(turns []conversation.Turn) []conversation.Turn {
	out := make([]conversation.Turn, 0, len(turns))
	for i := 0; i < len(turns); i++ {
		t := turns[i]
		switch {
		case t.IsRequest():
			if i+1 < len(turns) && turns[i+1].Answers(&t) {
				out = append(out, t, turns[i+1])
				i++
			}
		case t.IsResult():
			// A result reached here has no request immediately before it.
		default:
			out = append(out, t)
		}
	}
	return out
}

// fitTokens drops the oldest turns until the window fits, removing a
// request together with its result. The newest unit is always kept.
func fitTokens(view []conversation.Turn, maxTokens int, counter TokenCounter) []conversation.Turn {
	costs := make([]int, len(view))
	total := 0
	for i := range view {
		costs[i] = Cost(&view[i], counter)
		total += costs[i]
	}
	start := 0
	for total > maxTokens && start < len(view) {
		step := 1
		if view[start].IsRequest() && start+1 < len(view) {
			step = 2
		}
		if start+step >= len(view) {
			break
		}
		for j := 0; j < step; j++ {
			total -= costs[start+j]
		}
		start += step
	}
	return view[start:]
}

// Cost is the token count of one turn as presented to the service.
func Cost(t *conversation.Turn, counter TokenCounter) int {
	n := counter.CountTokens(t.Content)
	if t.Call != nil {
		n += counter.CountTokens(t.Call.Name)
		if args, err := json.Marshal(t.Call.Arguments); err == nil {
			n += counter.CountTokens(string(args))
		}
	}
	return n
}
