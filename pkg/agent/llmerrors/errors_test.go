package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{context.Canceled, ErrorTypeCancelled},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ErrorTypeTransient},
		{errors.New("POST: 401 Unauthorized"), ErrorTypeAuth},
		{errors.New("429 Too Many Requests"), ErrorTypeRateLimit},
		{errors.New("unexpected EOF"), ErrorTypeTransient},
		{errors.New("prompt is too long"), ErrorTypeBadPrompt},
		{errors.New("something odd"), ErrorTypeUnknown},
		{NewError(ErrorTypeEmptyResponse, "empty"), ErrorTypeEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := Classify(tt.err).Type; got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestRetryable(t *testing.T) {
	for _, et := range []ErrorType{ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeEmptyResponse, ErrorTypeMalformedResponse, ErrorTypeUnknown} {
		if !NewError(et, "").IsRetryable() {
			t.Errorf("%s should be retryable", et)
		}
	}
	for _, et := range []ErrorType{ErrorTypeAuth, ErrorTypeBadPrompt, ErrorTypeCancelled, ErrorTypeServiceUnavailable} {
		if NewError(et, "").IsRetryable() {
			t.Errorf("%s should not be retryable", et)
		}
	}
}

func TestServiceUnavailable(t *testing.T) {
	cause := NewError(ErrorTypeTransient, "503")
	err := fmt.Errorf("planner: %w", NewServiceUnavailableError(cause, 5))

	if !IsServiceUnavailable(err) {
		t.Fatal("expected service unavailable")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable")
	}
	if !strings.Contains(err.Error(), "after 5 attempts") {
		t.Errorf("message = %q", err.Error())
	}
	if TypeOf(errors.New("plain")) != ErrorTypeUnknown {
		t.Error("unclassified should be unknown")
	}
}

func TestStatusType(t *testing.T) {
	if StatusType(403) != ErrorTypeAuth || StatusType(429) != ErrorTypeRateLimit ||
		StatusType(503) != ErrorTypeTransient || StatusType(400) != ErrorTypeBadPrompt || StatusType(302) != ErrorTypeUnknown {
		t.Error("unexpected status mapping")
	}
}

func TestSanitizePrompt(t *testing.T) {
	if got := SanitizePrompt("short", 100); got != "short" {
		t.Errorf("short prompt changed: %q", got)
	}
	long := strings.Repeat("a", 500) + strings.Repeat("b", 500)
	got := SanitizePrompt(long, 200)
	if !strings.HasPrefix(got, strings.Repeat("a", 100)) || !strings.HasSuffix(got, strings.Repeat("b", 100)) {
		t.Errorf("unexpected sanitize output: %q", got)
	}
	if !strings.Contains(got, "[1000 chars") {
		t.Errorf("missing length marker: %q", got)
	}
}
