// Package google provides the Google Gemini client implementation of llm.LLMClient.
package google

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/llmerrors"
	"pagegen/pkg/tools"
)

// GeminiClient wraps the Google GenAI client to implement llm.LLMClient interface.
//
//nolint:govet // fieldalignment: logical grouping preferred
type GeminiClient struct {
	mu     sync.Mutex
	client *genai.Client
	apiKey string
	model  string
}

// NewGeminiClientWithModel creates a raw Gemini client. The SDK client needs
// a context, so it is created on first use.
func NewGeminiClientWithModel(apiKey, model string) llm.LLMClient {
	return &GeminiClient{apiKey: apiKey, model: model}
}

func (g *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "failed to create Gemini client")
	}
	g.client = client
	return client, nil
}

// Complete implements the llm.LLMClient interface.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (g *GeminiClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return llm.CompletionResponse{}, err
	}

	systemInstruction, rest := llm.SystemPrompt(in.Messages)
	contents := convertMessagesToGemini(rest)
	if len(contents) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "request has no messages")
	}

	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	temperature := in.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(maxTokens), //nolint:gosec // bounded by config validation
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}
	if len(in.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: convertToolsToGemini(in.Tools)}}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
		}
	}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	response := llm.CompletionResponse{
		Content:    result.Text(),
		StopReason: string(result.Candidates[0].FinishReason),
	}
	if functionCalls := result.FunctionCalls(); len(functionCalls) > 0 {
		response.ToolCalls = convertFunctionCallsFromGemini(functionCalls)
	}
	return response, nil
}

// GetModelName returns the model name for this client.
func (g *GeminiClient) GetModelName() string {
	return g.model
}

// convertMessagesToGemini converts the transcript to Gemini contents. Function
// responses must carry the function name, recovered from the call they answer.
func convertMessagesToGemini(messages []llm.CompletionMessage) []*genai.Content {
	callNames := make(map[string]string)
	for i := range messages {
		for _, tc := range messages[i].ToolCalls {
			callNames[tc.ID] = tc.Name
		}
	}

	contents := make([]*genai.Content, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		role := genai.RoleUser
		if msg.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		for j := range msg.ToolResults {
			tr := &msg.ToolResults[j]
			name := callNames[tr.ToolCallID]
			if name == "" {
				name = tr.ToolCallID
			}
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:   tr.ToolCallID,
				Name: name,
				Response: map[string]any{
					"content":  tr.Content,
					"is_error": tr.IsError,
				},
			}})
		}
		for j := range msg.Images {
			img := &msg.Images[j]
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: img.MediaType, Data: img.Data}})
		}
		if msg.Content != "" {
			parts = append(parts, &genai.Part{Text: msg.Content})
		}
		for j := range msg.ToolCalls {
			tc := &msg.ToolCalls[j]
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Parameters}})
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{Role: role, Parts: parts})
		}
	}
	return contents
}

// convertToolsToGemini converts tool definitions to function declarations.
func convertToolsToGemini(toolDefs []tools.ToolDefinition) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, len(toolDefs))
	for i := range toolDefs {
		tool := &toolDefs[i]
		properties := make(map[string]*genai.Schema)
		for propName := range tool.InputSchema.Properties {
			prop := tool.InputSchema.Properties[propName]
			properties[propName] = convertPropertyToGeminiSchema(&prop)
		}
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   tool.InputSchema.Required,
			},
		}
	}
	return declarations
}

// convertPropertyToGeminiSchema recursively converts a Property to Gemini schema format.
func convertPropertyToGeminiSchema(prop *tools.Property) *genai.Schema {
	schema := &genai.Schema{Description: prop.Description}
	switch prop.Type {
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
		if prop.Items != nil {
			schema.Items = convertPropertyToGeminiSchema(prop.Items)
		}
	case "object":
		schema.Type = genai.TypeObject
		if prop.Properties != nil {
			schema.Properties = make(map[string]*genai.Schema, len(prop.Properties))
			for name, child := range prop.Properties {
				if child != nil {
					schema.Properties[name] = convertPropertyToGeminiSchema(child)
				}
			}
		}
	default:
		schema.Type = genai.TypeString
	}
	if len(prop.Enum) > 0 {
		schema.Enum = prop.Enum
	}
	return schema
}

// convertFunctionCallsFromGemini converts Gemini function calls. Calls
// without an id get a positional one so results can be matched back.
func convertFunctionCallsFromGemini(calls []*genai.FunctionCall) []llm.ToolCall {
	toolCalls := make([]llm.ToolCall, len(calls))
	for i, call := range calls {
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", call.Name, i)
		}
		toolCalls[i] = llm.ToolCall{ID: id, Name: call.Name, Parameters: call.Args}
	}
	return toolCalls
}

func classifyError(err error) *llmerrors.Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.Classify(err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llmerrors.NewErrorWithStatus(llmerrors.StatusType(apiErr.Code), apiErr.Code, apiErr.Error())
	}
	return llmerrors.Classify(err)
}
