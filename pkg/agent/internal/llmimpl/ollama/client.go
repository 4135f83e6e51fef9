// Package ollama adapts a local Ollama server to llm.LLMClient. Vision models
// receive page sketches as raw image bytes.
package ollama

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/ollama/ollama/api"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/llmerrors"
	"pagegen/pkg/tools"
)

// DefaultHost is used when no host URL is configured.
const DefaultHost = "http://localhost:11434"

const roleTool = "tool"

// Client sends non-streaming chat requests to one model.
type Client struct {
	api   *api.Client
	model string
}

// NewOllamaClientWithModel creates a client for model on host. An empty or
// unparsable host falls back to DefaultHost.
func NewOllamaClientWithModel(host, model string) llm.LLMClient {
	base, err := url.Parse(host)
	if host == "" || err != nil {
		base, _ = url.Parse(DefaultHost)
	}
	return &Client{api: api.NewClient(base, http.DefaultClient), model: model}
}

// Complete implements llm.LLMClient.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	msgs, err := toMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "ollama request")
	}

	numPredict := in.MaxTokens
	if numPredict <= 0 {
		numPredict = llm.DefaultMaxTokens
	}
	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   &stream,
		Tools:    toTools(in.Tools),
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": numPredict,
		},
	}

	var final api.ChatResponse
	if err := c.api.Chat(ctx, req, func(r api.ChatResponse) error {
		final = r
		return nil
	}); err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	return fromResponse(&final), nil
}

// GetModelName implements llm.LLMClient.
func (c *Client) GetModelName() string {
	return c.model
}

// toMessages flattens tool results into "tool" messages placed before any
// text or images that shared their message.
func toMessages(in []llm.CompletionMessage) ([]api.Message, error) {
	if len(in) == 0 {
		return nil, errors.New("no messages")
	}
	out := make([]api.Message, 0, len(in))
	for i := range in {
		m := &in[i]
		for _, tr := range m.ToolResults {
			out = append(out, api.Message{Role: roleTool, Content: tr.Content, ToolCallID: tr.ToolCallID})
		}

		msg := api.Message{Role: string(m.Role), Content: m.Content}
		for _, img := range m.Images {
			msg.Images = append(msg.Images, api.ImageData(img.Data))
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
				ID:       tc.ID,
				Function: api.ToolCallFunction{Name: tc.Name, Arguments: toArguments(tc.Parameters)},
			})
		}

		if len(m.ToolResults) > 0 && msg.Content == "" && len(msg.Images) == 0 {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// toArguments sets parameters in key order so requests are reproducible.
func toArguments(params map[string]any) api.ToolCallFunctionArguments {
	args := api.NewToolCallFunctionArguments()
	for _, k := range slices.Sorted(maps.Keys(params)) {
		args.Set(k, params[k])
	}
	return args
}

func toTools(defs []tools.ToolDefinition) api.Tools {
	if len(defs) == 0 {
		return nil
	}
	out := make(api.Tools, 0, len(defs))
	for i := range defs {
		def := &defs[i]
		props := api.NewToolPropertiesMap()
		for _, name := range slices.Sorted(maps.Keys(def.InputSchema.Properties)) {
			p := def.InputSchema.Properties[name]
			props.Set(name, toProperty(&p))
		}
		typ := def.InputSchema.Type
		if typ == "" {
			typ = "object"
		}
		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       typ,
					Required:   def.InputSchema.Required,
					Properties: props,
				},
			},
		})
	}
	return out
}

func toProperty(p *tools.Property) api.ToolProperty {
	prop := api.ToolProperty{
		Type:        api.PropertyType{p.Type},
		Description: p.Description,
	}
	for _, v := range p.Enum {
		prop.Enum = append(prop.Enum, v)
	}
	if p.Items != nil {
		prop.Items = toProperty(p.Items)
	}
	if len(p.Properties) > 0 {
		nested := api.NewToolPropertiesMap()
		for _, name := range slices.Sorted(maps.Keys(p.Properties)) {
			nested.Set(name, toProperty(p.Properties[name]))
		}
		prop.Properties = nested
	}
	return prop
}

// fromResponse converts the final chunk. Calls without an ID keep it empty;
// the role node assigns one.
func fromResponse(r *api.ChatResponse) llm.CompletionResponse {
	resp := llm.CompletionResponse{
		Content:    r.Message.Content,
		StopReason: stopReason(r),
	}
	for i := range r.Message.ToolCalls {
		call := &r.Message.ToolCalls[i]
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
			ID:         call.ID,
			Name:       call.Function.Name,
			Parameters: call.Function.Arguments.ToMap(),
		})
	}
	return resp
}

func stopReason(r *api.ChatResponse) string {
	switch {
	case !r.Done:
		return "incomplete"
	case r.DoneReason == "length":
		return "max_tokens"
	case r.DoneReason == "" || r.DoneReason == "stop":
		return "end_turn"
	default:
		return r.DoneReason
	}
}

func classifyError(err error) error {
	var status api.StatusError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return llmerrors.Classify(err)
	case errors.As(err, &status):
		return llmerrors.NewErrorWithStatus(llmerrors.StatusType(status.StatusCode), status.StatusCode, status.Error())
	case strings.Contains(err.Error(), "connection refused"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "Ollama server not reachable")
	case strings.Contains(err.Error(), "model") && strings.Contains(err.Error(), "not found"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "Ollama model not found")
	default:
		return llmerrors.Classify(err)
	}
}
