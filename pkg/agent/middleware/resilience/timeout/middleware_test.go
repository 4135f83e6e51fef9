package timeout

import (
	"context"
	"errors"
	"testing"
	"time"

	"pagegen/pkg/agent/llm"
)

type blockingClient struct{}

func (blockingClient) Complete(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	<-ctx.Done()
	return llm.CompletionResponse{}, ctx.Err()
}

func (blockingClient) GetModelName() string { return "blocking" }

func TestMiddlewareCancelsSlowRequests(t *testing.T) {
	client := llm.Chain(blockingClient{}, Middleware(20*time.Millisecond))
	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if client.GetModelName() != "blocking" {
		t.Errorf("model name not delegated: %s", client.GetModelName())
	}
}

func TestZeroDurationDisables(t *testing.T) {
	base := blockingClient{}
	if got := Middleware(0)(base); got != llm.LLMClient(base) {
		t.Errorf("expected the client to be returned unchanged")
	}
}
