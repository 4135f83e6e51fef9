// Package roles implements the planner, editor and reviewer nodes. A node
// builds one request from session state, calls the reasoning service through
// the retrying caller, appends the answer to the conversation and updates the
// session counters. Nodes never execute the operations they receive.
package roles

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/agent/middleware/resilience/retry"
	"pagegen/pkg/contextwindow"
	"pagegen/pkg/conversation"
	"pagegen/pkg/logx"
	"pagegen/pkg/pages"
	"pagegen/pkg/session"
	"pagegen/pkg/tools"
)

// errorContextEntries bounds how much of the error log the planner sees.
const errorContextEntries = 10

// Role identifies a node.
type Role string

const (
	RolePlanner  Role = "planner"
	RoleEditor   Role = "editor"
	RoleReviewer Role = "reviewer"
)

// Author returns the conversation author for the role.
func (r Role) Author() conversation.Author {
	return conversation.Author(r)
}

// Options tune how a node builds its request.
//
//nolint:govet // fieldalignment: logical grouping preferred
type Options struct {
	// Window bounds the conversation view. Attempt is set per retry.
	Window contextwindow.Options
	// NudgeThreshold is the sequential operation count above which the editor is warned.
	NudgeThreshold int
	// EditorCanDelete offers deleteFunction to the editor.
	EditorCanDelete bool
	MaxTokens       int
	Temperature     float32
}

// Node is one role bound to its caller.
type Node struct {
	role     Role
	caller   *retry.Caller
	renderer *Renderer
	opts     Options
	logger   *logx.Logger
}

// NewNode creates a node for role. The caller should be built over a client
// configured for that role.
func NewNode(role Role, caller *retry.Caller, renderer *Renderer, opts Options) (*Node, error) {
	switch role {
	case RolePlanner, RoleEditor, RoleReviewer:
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if caller == nil {
		return nil, fmt.Errorf("role %s: caller is required", role)
	}
	if renderer == nil {
		var err error
		if renderer, err = NewRenderer(); err != nil {
			return nil, err
		}
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = llm.DefaultMaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = llm.TemperatureDefault
		if role == RoleEditor {
			opts.Temperature = llm.TemperatureDeterministic
		}
	}
	return &Node{
		role:     role,
		caller:   caller,
		renderer: renderer,
		opts:     opts,
		logger:   logx.NewLogger(string(role)),
	}, nil
}

// Role returns the node's role.
func (n *Node) Role() Role {
	return n.role
}

// Tools returns the capability names the role may request.
func (n *Node) Tools() []string {
	switch n.role {
	case RoleEditor:
		return tools.EditingToolsWithDelete(n.opts.EditorCanDelete)
	case RoleReviewer:
		return tools.ReviewTools
	default:
		return tools.PlanningTools
	}
}

// Run performs one reasoning step for st and returns the appended turn. A
// missing reference for the active path and an exhausted retry budget are
// returned as errors; the caller treats both as fatal.
func (n *Node) Run(ctx context.Context, st *session.State) (conversation.Turn, error) {
	ctx = logx.WithRole(logx.WithSession(ctx, st.ID), string(n.role))

	img, err := st.ActiveReference()
	if err != nil {
		return conversation.Turn{}, fmt.Errorf("%s: %w", n.role, err)
	}

	preamble, err := n.renderer.Render(n.promptTemplate(), &PromptData{
		Pages:      st.Pages.Pages(),
		ActivePath: st.ActivePagePath,
		CanDelete:  n.opts.EditorCanDelete,
	})
	if err != nil {
		return conversation.Turn{}, fmt.Errorf("%s: %w", n.role, err)
	}

	defs := tools.NewProvider(tools.SessionContext{State: st}, n.Tools()).List()
	history := st.Conversation.Turns()

	build := func(attempt int) llm.CompletionRequest {
		wopts := n.opts.Window
		wopts.Attempt = attempt
		window := contextwindow.Select(history, wopts)

		return llm.CompletionRequest{
			Messages:    n.messages(st, preamble, img, window),
			Tools:       defs,
			MaxTokens:   n.opts.MaxTokens,
			Temperature: n.opts.Temperature,
		}
	}

	logx.Debug(ctx, string(n.role), "Calling reasoning service with %d turns of history", len(history))
	resp, err := n.caller.Call(ctx, st.Errors, build)
	if err != nil {
		return conversation.Turn{}, fmt.Errorf("%s: %w", n.role, err)
	}

	turn := n.turnFrom(&resp)
	st.Conversation.Append(turn)
	n.update(st, &turn)

	if turn.IsRequest() {
		n.logger.Info("🔧 %s requested %s", n.role, turn.Call.Name)
	} else {
		n.logger.Info("💬 %s replied (%d chars)", n.role, len(turn.Content))
	}
	return turn, nil
}

func (n *Node) promptTemplate() PromptTemplate {
	switch n.role {
	case RoleEditor:
		return EditorPrompt
	case RoleReviewer:
		return ReviewerPrompt
	default:
		return PlannerPrompt
	}
}

// messages composes the request body in the order each role expects.
func (n *Node) messages(st *session.State, preamble string, img pages.Image, window []conversation.Turn) []llm.CompletionMessage {
	msgs := []llm.CompletionMessage{llm.NewSystemMessage(preamble)}
	history := windowMessages(n.role.Author(), window)

	switch n.role {
	case RolePlanner:
		msgs = append(msgs, history...)
		msgs = append(msgs, codeMessage(st.Code.Render()))
		if errs := st.Errors.Last(errorContextEntries); errs != "" {
			msgs = append(msgs, llm.NewUserMessage("Recent errors:\n"+errs))
		}
		msgs = append(msgs, pagesMessage(st.Pages.JSON()), referenceMessage(img, st.ActivePagePath))

	case RoleEditor:
		msgs = append(msgs,
			referenceMessage(img, st.ActivePagePath),
			codeMessage(st.Code.Render()),
			pagesMessage(st.Pages.JSON()),
		)
		msgs = append(msgs, history...)
		if st.CurrentPlan != "" {
			msgs = append(msgs, llm.NewUserMessage("Current plan:\n"+st.CurrentPlan))
		}
		msgs = append(msgs, llm.NewUserMessage(opCountNote(st.SequentialOpCount, n.opts.NudgeThreshold)))

	case RoleReviewer:
		msgs = append(msgs, history...)
		msgs = append(msgs,
			pagesMessage(st.Pages.JSON()),
			referenceMessage(img, st.ActivePagePath),
			codeMessage(st.Code.Render()),
		)
	}
	return msgs
}

// opCountNote tells the editor how many operations it has requested in a row.
func opCountNote(count, threshold int) string {
	note := fmt.Sprintf("You have requested %d operation(s) in a row.", count)
	if threshold > 0 && count > threshold {
		note += " That is a lot for one step: finish the current change and reply with a summary."
	}
	return note
}

// turnFrom converts a validated response into a turn. The validation
// middleware guarantees at most one tool call.
func (n *Node) turnFrom(resp *llm.CompletionResponse) conversation.Turn {
	if len(resp.ToolCalls) == 0 {
		return conversation.NewText(n.role.Author(), resp.Content)
	}
	tc := resp.ToolCalls[0]
	id := tc.ID
	if id == "" {
		id = uuid.NewString()
	}
	return conversation.NewRequest(n.role.Author(), resp.Content, conversation.OperationCall{
		ID:        id,
		Name:      tc.Name,
		Arguments: tc.Parameters,
	})
}

func (n *Node) update(st *session.State, turn *conversation.Turn) {
	switch n.role {
	case RoleEditor:
		if turn.IsRequest() {
			st.SequentialOpCount++
			return
		}
		st.SequentialOpCount = 0
		st.CyclesSinceProgress++
	case RolePlanner:
		if !turn.IsRequest() {
			st.CurrentPlan = turn.Content
		}
	}
}
