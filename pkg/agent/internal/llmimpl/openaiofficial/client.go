// Package openaiofficial provides the OpenAI client implementation of
// llm.LLMClient on the Responses API of the official Go package.
package openaiofficial

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/llmerrors"
)

// OfficialClient wraps the official OpenAI Go client to implement llm.LLMClient interface.
//
//nolint:govet // Simple struct, field alignment not critical
type OfficialClient struct {
	client openai.Client
	model  string
}

// NewOfficialClientWithModel creates a raw OpenAI client; middleware is applied by the factory.
func NewOfficialClientWithModel(apiKey, model string, opts ...option.RequestOption) llm.LLMClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OfficialClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// buildInput converts the neutral transcript into Responses API input items.
// Operation calls and their results become function_call and
// function_call_output items linked by call id.
func buildInput(messages []llm.CompletionMessage) responses.ResponseInputParam {
	items := make(responses.ResponseInputParam, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case llm.RoleAssistant:
			if msg.Content != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleAssistant))
			}
			for j := range msg.ToolCalls {
				call := &msg.ToolCalls[j]
				args, err := json.Marshal(call.Parameters)
				if err != nil || call.Parameters == nil {
					args = []byte("{}")
				}
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(string(args), call.ID, call.Name))
			}
		default:
			for j := range msg.ToolResults {
				res := &msg.ToolResults[j]
				items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(res.ToolCallID, res.Content))
			}
			if len(msg.Images) > 0 {
				content := make(responses.ResponseInputMessageContentListParam, 0, len(msg.Images)+1)
				for j := range msg.Images {
					img := &msg.Images[j]
					content = append(content, responses.ResponseInputContentUnionParam{
						OfInputImage: &responses.ResponseInputImageParam{
							ImageURL: openai.String(dataURL(img)),
							Detail:   responses.ResponseInputImageDetailAuto,
						},
					})
				}
				if msg.Content != "" {
					content = append(content, responses.ResponseInputContentParamOfInputText(msg.Content))
				}
				items = append(items, responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser))
			} else if msg.Content != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleUser))
			}
		}
	}
	return items
}

func dataURL(img *llm.Image) string {
	return fmt.Sprintf("data:%s;base64,%s", img.MediaType, base64.StdEncoding.EncodeToString(img.Data))
}

// Complete implements the llm.LLMClient interface.
//
//nolint:gocritic // CompletionRequest passed by value to match interface
func (o *OfficialClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, rest := llm.SystemPrompt(in.Messages)

	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfInputItemList: buildInput(rest)},
		Temperature:     openai.Float(float64(in.Temperature)),
	}
	if systemPrompt != "" {
		params.Instructions = openai.String(systemPrompt)
	}

	if len(in.Tools) > 0 {
		toolParams := make([]responses.ToolUnionParam, len(in.Tools))
		for i := range in.Tools {
			def := &in.Tools[i]
			toolParams[i] = responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        def.Name,
					Description: openai.String(def.Description),
					Parameters:  openai.FunctionParameters(def.InputSchema.Schema()),
					Strict:      openai.Bool(false),
				},
			}
		}
		params.Tools = toolParams
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	var toolCalls []llm.ToolCall
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "function_call" {
			continue
		}
		funcItem := item.AsFunctionCall()
		var args map[string]any
		if funcItem.Arguments != "" {
			if err := json.Unmarshal([]byte(funcItem.Arguments), &args); err != nil {
				return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeMalformedResponse, err,
					fmt.Sprintf("failed to parse arguments of %s", funcItem.Name))
			}
		}
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:         funcItem.CallID,
			Name:       funcItem.Name,
			Parameters: args,
		})
	}

	return llm.CompletionResponse{
		Content:    resp.OutputText(),
		ToolCalls:  toolCalls,
		StopReason: string(resp.Status),
	}, nil
}

// GetModelName returns the model name for this client.
func (o *OfficialClient) GetModelName() string {
	return o.model
}

func classifyError(err error) *llmerrors.Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.Classify(err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llmerrors.NewErrorWithStatus(llmerrors.StatusType(apiErr.StatusCode), apiErr.StatusCode, apiErr.Error())
	}
	return llmerrors.Classify(err)
}
