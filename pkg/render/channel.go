package render

import (
	"context"
	"errors"
	"fmt"
)

// ErrSinkClosed is returned after the channel sink has been closed.
var ErrSinkClosed = errors.New("render sink closed")

// RequestKind distinguishes the two surface operations.
type RequestKind string

const (
	RequestPushCode RequestKind = "push_code"
	RequestClick    RequestKind = "click"
)

// Request is one pending surface operation. The surface answers exactly once on Reply.
type Request struct {
	Reply   chan<- Verdict
	Kind    RequestKind
	Payload string
}

// ChannelSink adapts a front door (socket, test harness) that consumes
// requests from a channel and replies per request.
type ChannelSink struct {
	requests chan Request
	done     chan struct{}
}

// NewChannelSink creates a channel sink with the given request buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{
		requests: make(chan Request, buffer),
		done:     make(chan struct{}),
	}
}

// Requests is the stream the surface reads from.
func (s *ChannelSink) Requests() <-chan Request {
	return s.requests
}

// Close stops accepting requests. Pending callers return ErrSinkClosed.
func (s *ChannelSink) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// PushCode sends source to the surface and waits for its verdict.
func (s *ChannelSink) PushCode(ctx context.Context, source string) (Verdict, error) {
	return s.roundTrip(ctx, RequestPushCode, source)
}

// Click asks the surface to click selector and waits for its verdict.
func (s *ChannelSink) Click(ctx context.Context, selector string) (Verdict, error) {
	return s.roundTrip(ctx, RequestClick, selector)
}

func (s *ChannelSink) roundTrip(ctx context.Context, kind RequestKind, payload string) (Verdict, error) {
	reply := make(chan Verdict, 1)
	req := Request{Kind: kind, Payload: payload, Reply: reply}

	select {
	case s.requests <- req:
	case <-s.done:
		return Verdict{}, ErrSinkClosed
	case <-ctx.Done():
		return Verdict{}, fmt.Errorf("%s not delivered: %w", kind, ctx.Err())
	}

	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return Verdict{}, ErrSinkClosed
	case <-ctx.Done():
		return Verdict{}, fmt.Errorf("%s not acknowledged: %w", kind, ctx.Err())
	}
}
