// Package conversation holds the append-only turn log exchanged with the reasoning service.
package conversation

import (
	"fmt"
	"maps"
)

// Kind tags the variant carried by a Turn.
type Kind int

const (
	// KindText is a plain natural-language turn.
	KindText Kind = iota
	// KindOperationRequest asks for exactly one capability to be executed.
	KindOperationRequest
	// KindOperationResult reports the outcome of an earlier request.
	KindOperationResult
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindOperationRequest:
		return "operation-request"
	case KindOperationResult:
		return "operation-result"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Author identifies who produced a turn.
type Author string

const (
	AuthorPlanner  Author = "planner"
	AuthorEditor   Author = "editor"
	AuthorReviewer Author = "reviewer"
	AuthorSystem   Author = "system"
)

// Role is the protocol role a turn is presented under.
type Role string

const (
	RoleUser            Role = "user"
	RoleAssistant       Role = "assistant"
	RoleOperationResult Role = "operation-result"
)

// OperationCall names one capability and its arguments.
type OperationCall struct {
	Arguments map[string]any `json:"arguments"`
	ID        string         `json:"id"`
	Name      string         `json:"name"`
}

// Turn is one immutable conversation entry. Use the constructors; a Turn
// is a value and the History hands out copies.
//
//nolint:govet // fieldalignment: logical grouping preferred
type Turn struct {
	Kind    Kind
	Author  Author
	Content string

	// Call is set for KindOperationRequest.
	Call *OperationCall

	// CallID and Operation are set for KindOperationResult.
	CallID    string
	Operation string
	IsError   bool
}

// NewText creates a plain-text turn.
func NewText(author Author, content string) Turn {
	return Turn{Kind: KindText, Author: author, Content: content}
}

// NewRequest creates an operation-request turn. content may carry the
// reasoning text that accompanied the request.
func NewRequest(author Author, content string, call OperationCall) Turn {
	c := call
	c.Arguments = maps.Clone(call.Arguments)
	return Turn{Kind: KindOperationRequest, Author: author, Content: content, Call: &c}
}

// NewResult creates an operation-result turn answering the request with callID.
func NewResult(callID, operation, content string, isError bool) Turn {
	return Turn{
		Kind:      KindOperationResult,
		Author:    AuthorSystem,
		Content:   content,
		CallID:    callID,
		Operation: operation,
		IsError:   isError,
	}
}

// Role maps the turn onto the reasoning-service protocol role.
func (t *Turn) Role() Role {
	switch t.Kind {
	case KindOperationRequest:
		return RoleAssistant
	case KindOperationResult:
		return RoleOperationResult
	default:
		if t.Author == AuthorSystem {
			return RoleUser
		}
		return RoleAssistant
	}
}

// IsRequest reports whether the turn requests an operation.
func (t *Turn) IsRequest() bool {
	return t.Kind == KindOperationRequest && t.Call != nil
}

// IsResult reports whether the turn is an operation result.
func (t *Turn) IsResult() bool {
	return t.Kind == KindOperationResult
}

// Answers reports whether t is the result for request r.
func (t *Turn) Answers(r *Turn) bool {
	return t.IsResult() && r.IsRequest() && t.CallID == r.Call.ID
}

func (t *Turn) clone() Turn {
	c := *t
	if t.Call != nil {
		call := *t.Call
		call.Arguments = maps.Clone(t.Call.Arguments)
		c.Call = &call
	}
	return c
}
