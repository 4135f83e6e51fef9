// Package llm defines the provider-neutral request and response types used to
// talk to the reasoning service, plus the middleware chain around clients.
package llm

import (
	"context"
	"fmt"

	"pagegen/pkg/tools"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem carries the role preamble.
	RoleSystem CompletionRole = "system"
	// RoleUser carries context and operation results.
	RoleUser CompletionRole = "user"
	// RoleAssistant carries the model's own earlier turns.
	RoleAssistant CompletionRole = "assistant"
)

const (
	// DefaultMaxTokens bounds a single response.
	DefaultMaxTokens = 4096

	// TemperatureDefault is used for planning and review.
	TemperatureDefault = 0.3

	// TemperatureDeterministic is used for code edits.
	TemperatureDeterministic = 0.2
)

// Image is an inline image attached to a message.
type Image struct {
	MediaType string
	Data      []byte
}

// ToolCall is one operation the model asked for.
type ToolCall struct {
	Parameters map[string]any `json:"parameters"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
}

// ToolResult answers an earlier ToolCall.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// CompletionMessage is one message in a completion request. Assistant
// messages may carry ToolCalls; user messages may carry ToolResults and Images.
//
//nolint:govet // fieldalignment: logical grouping preferred
type CompletionMessage struct {
	Role        CompletionRole
	Content     string
	Images      []Image
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// CompletionRequest represents a request to generate a completion.
//
//nolint:govet // fieldalignment: value semantics preferred over pointer indirection
type CompletionRequest struct {
	Messages    []CompletionMessage
	Tools       []tools.ToolDefinition
	MaxTokens   int
	Temperature float32
}

// CompletionResponse represents a response from a completion request.
//
//nolint:govet // fieldalignment: value semantics preferred over pointer indirection
type CompletionResponse struct {
	ToolCalls  []ToolCall
	Content    string
	StopReason string
}

// LLMClient defines the interface for language model interactions.
type LLMClient interface { //nolint:revive // name kept for symmetry with the providers
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name for this client.
	GetModelName() string
}

// NewCompletionRequest creates a request with default limits.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// NewImageMessage creates a user message carrying an image and a caption.
func NewImageMessage(img Image, caption string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: caption, Images: []Image{img}}
}

// SystemPrompt returns the concatenated system messages and the remaining
// messages in order. Providers that take the preamble out of band use this.
func SystemPrompt(messages []CompletionMessage) (string, []CompletionMessage) {
	var system string
	rest := make([]CompletionMessage, 0, len(messages))
	for i := range messages {
		if messages[i].Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += messages[i].Content
			continue
		}
		rest = append(rest, messages[i])
	}
	return system, rest
}

// LLMConfig represents configuration for an LLM client.
type LLMConfig struct { //nolint:revive // name kept for symmetry with the providers
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}
