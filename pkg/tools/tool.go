// Package tools implements the capabilities a reasoning role may request and
// the dispatcher that executes them against session state.
package tools

import (
	"context"

	"pagegen/pkg/render"
	"pagegen/pkg/session"
)

// Property describes one argument in a tool's input schema.
type Property struct {
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
}

// InputSchema is the JSON-schema-like shape of a tool's arguments.
type InputSchema struct {
	Properties map[string]Property `json:"properties"`
	Type       string              `json:"type"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition is what the reasoning service sees for one capability.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// ExecResult is the text reported back to the requesting role.
type ExecResult struct {
	Content string
	IsError bool
}

// Tool is one executable capability.
type Tool interface {
	Name() string
	Definition() ToolDefinition
	Exec(ctx context.Context, args map[string]any) (*ExecResult, error)
}

// SessionContext is what tools operate on: one session's state and its
// rendering surface.
type SessionContext struct {
	State *session.State
	Sink  render.Sink
}
