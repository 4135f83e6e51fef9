// Package testkit provides fakes for the reasoning service and the rendering
// surface, plus helpers for building sessions in tests.
package testkit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pagegen/pkg/agent/llm"
)

// ErrScriptExhausted is returned once a ScriptedClient runs out of steps and
// has no responder.
var ErrScriptExhausted = errors.New("testkit: script exhausted")

// Step is one scripted reply.
type Step struct {
	Response llm.CompletionResponse
	Err      error
}

// Responder computes a reply from the request. It is used once the script
// is exhausted.
type Responder func(req llm.CompletionRequest) (llm.CompletionResponse, error)

// ScriptedClient is an llm.LLMClient that replays steps in order and records
// every request it receives.
type ScriptedClient struct {
	mu        sync.Mutex
	model     string
	steps     []Step
	responder Responder
	requests  []llm.CompletionRequest
}

// NewScriptedClient creates a client replaying steps.
func NewScriptedClient(steps ...Step) *ScriptedClient {
	return &ScriptedClient{model: "scripted", steps: steps}
}

// WithResponder sets the fallback used after the script.
func (c *ScriptedClient) WithResponder(r Responder) *ScriptedClient {
	c.responder = r
	return c
}

// Complete implements llm.LLMClient.
func (c *ScriptedClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return llm.CompletionResponse{}, err
	}

	c.mu.Lock()
	c.requests = append(c.requests, req)
	var step *Step
	if len(c.steps) > 0 {
		step = &c.steps[0]
		c.steps = c.steps[1:]
	}
	responder := c.responder
	c.mu.Unlock()

	if step != nil {
		return step.Response, step.Err
	}
	if responder != nil {
		return responder(req)
	}
	return llm.CompletionResponse{}, fmt.Errorf("%w after %d calls", ErrScriptExhausted, c.Calls())
}

// GetModelName implements llm.LLMClient.
func (c *ScriptedClient) GetModelName() string {
	return c.model
}

// Requests returns a copy of the recorded requests.
func (c *ScriptedClient) Requests() []llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.CompletionRequest(nil), c.requests...)
}

// Calls returns how many requests were made.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Text is a plain-text reply.
func Text(content string) Step {
	return Step{Response: llm.CompletionResponse{Content: content, StopReason: "end_turn"}}
}

// Call is a reply requesting one operation.
func Call(id, name string, args map[string]any) Step {
	return Step{Response: CallResponse(id, name, args)}
}

// CallResponse builds the response carried by Call.
func CallResponse(id, name string, args map[string]any) llm.CompletionResponse {
	return llm.CompletionResponse{
		ToolCalls:  []llm.ToolCall{{ID: id, Name: name, Parameters: args}},
		StopReason: "tool_use",
	}
}

// Fail is a failed call.
func Fail(err error) Step {
	return Step{Err: err}
}
