// Package anthropic provides the Anthropic Claude client implementation of llm.LLMClient.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/llmerrors"
)

// conversationStart opens a transcript whose oldest kept turn is the model's own.
const conversationStart = "(continuing the session)"

// ClaudeClient wraps the Anthropic API client to implement llm.LLMClient interface.
//
//nolint:govet // Simple client struct, logical grouping preferred
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClientWithModel creates a raw Claude client; middleware is applied by the factory.
func NewClaudeClientWithModel(apiKey, model string, opts ...option.RequestOption) llm.LLMClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &ClaudeClient{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

// groupMessages merges consecutive messages of the same role, since the API
// requires strict user/assistant alternation, and makes sure the first
// message is from the user.
func groupMessages(messages []llm.CompletionMessage) []llm.CompletionMessage {
	var merged []llm.CompletionMessage
	for i := range messages {
		msg := messages[i]
		if msg.Role == llm.RoleSystem {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Role == msg.Role {
			last := &merged[n-1]
			last.Content = joinText(last.Content, msg.Content)
			last.Images = append(last.Images, msg.Images...)
			last.ToolCalls = append(last.ToolCalls, msg.ToolCalls...)
			last.ToolResults = append(last.ToolResults, msg.ToolResults...)
			continue
		}
		msg.Images = slices.Clone(msg.Images)
		msg.ToolCalls = slices.Clone(msg.ToolCalls)
		msg.ToolResults = slices.Clone(msg.ToolResults)
		merged = append(merged, msg)
	}
	if len(merged) > 0 && merged[0].Role != llm.RoleUser {
		merged = append([]llm.CompletionMessage{llm.NewUserMessage(conversationStart)}, merged...)
	}
	return merged
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n\n" + b
	}
}

// toParam converts one grouped message. Tool results go first in a user
// message, ahead of images and text.
func toParam(msg *llm.CompletionMessage) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	if msg.Role == llm.RoleAssistant {
		if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
		for i := range msg.ToolCalls {
			call := &msg.ToolCalls[i]
			input := call.Parameters
			if input == nil {
				input = map[string]any{}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
		}
		return anthropic.NewAssistantMessage(blocks...)
	}

	for i := range msg.ToolResults {
		res := &msg.ToolResults[i]
		blocks = append(blocks, anthropic.NewToolResultBlock(res.ToolCallID, res.Content, res.IsError))
	}
	for i := range msg.Images {
		img := &msg.Images[i]
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MediaType, base64.StdEncoding.EncodeToString(img.Data)))
	}
	if msg.Content != "" || len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
	}
	return anthropic.NewUserMessage(blocks...)
}

// Complete implements the llm.LLMClient interface.
//
//nolint:gocritic // CompletionRequest passed by value to match interface
func (c *ClaudeClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, rest := llm.SystemPrompt(in.Messages)
	grouped := groupMessages(rest)
	if len(grouped) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "request has no messages")
	}

	messages := make([]anthropic.MessageParam, 0, len(grouped))
	for i := range grouped {
		messages = append(messages, toParam(&grouped[i]))
	}

	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	if len(in.Tools) > 0 {
		toolParams := make([]anthropic.ToolUnionParam, 0, len(in.Tools))
		for i := range in.Tools {
			def := &in.Tools[i]
			toolParams = append(toolParams, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: def.InputSchema.PropertySchemas(),
					Required:   def.InputSchema.Required,
				},
			}})
		}
		params.Tools = toolParams
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty or nil response from Claude API")
	}

	var text strings.Builder
	var toolCalls []llm.ToolCall
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			var args map[string]any
			if err := json.Unmarshal(toolUse.Input, &args); err != nil {
				return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeMalformedResponse, err,
					fmt.Sprintf("failed to parse input of %s", toolUse.Name))
			}
			toolCalls = append(toolCalls, llm.ToolCall{ID: toolUse.ID, Name: toolUse.Name, Parameters: args})
		}
	}

	return llm.CompletionResponse{
		Content:    text.String(),
		ToolCalls:  toolCalls,
		StopReason: string(resp.StopReason),
	}, nil
}

// GetModelName returns the model name for this client.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

// classifyError maps Anthropic SDK errors to our structured error types.
func classifyError(err error) *llmerrors.Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.Classify(err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llmerrors.NewErrorWithStatus(llmerrors.StatusType(apiErr.StatusCode), apiErr.StatusCode, apiErr.Error())
	}
	return llmerrors.Classify(err)
}
