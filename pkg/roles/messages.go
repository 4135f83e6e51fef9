package roles

import (
	"fmt"
	"maps"

	"pagegen/pkg/agent/llm"
	"pagegen/pkg/conversation"
	"pagegen/pkg/pages"
)

// windowMessages presents a window of turns to the role self. Requests
// become assistant tool calls and results become user tool results. Text from
// self is the assistant's own; text from other roles is presented as user
// input labelled with its author so the provider sees alternating speakers.
func windowMessages(self conversation.Author, window []conversation.Turn) []llm.CompletionMessage {
	out := make([]llm.CompletionMessage, 0, len(window))
	for i := range window {
		t := &window[i]
		switch t.Kind {
		case conversation.KindOperationRequest:
			out = append(out, llm.CompletionMessage{
				Role:    llm.RoleAssistant,
				Content: t.Content,
				ToolCalls: []llm.ToolCall{{
					ID:         t.Call.ID,
					Name:       t.Call.Name,
					Parameters: maps.Clone(t.Call.Arguments),
				}},
			})
		case conversation.KindOperationResult:
			out = append(out, llm.CompletionMessage{
				Role: llm.RoleUser,
				ToolResults: []llm.ToolResult{{
					ToolCallID: t.CallID,
					Content:    t.Content,
					IsError:    t.IsError,
				}},
			})
		default:
			switch t.Author {
			case self:
				out = append(out, llm.CompletionMessage{Role: llm.RoleAssistant, Content: t.Content})
			case conversation.AuthorSystem:
				out = append(out, llm.NewUserMessage(t.Content))
			default:
				out = append(out, llm.NewUserMessage(fmt.Sprintf("[%s] %s", t.Author, t.Content)))
			}
		}
	}
	return out
}

func referenceMessage(img pages.Image, path string) llm.CompletionMessage {
	return llm.NewImageMessage(
		llm.Image{MediaType: img.MediaType, Data: img.Data},
		fmt.Sprintf("Reference sketch for the page at %s:", path),
	)
}

func codeMessage(code string) llm.CompletionMessage {
	return llm.NewUserMessage("Current code:\n```jsx\n" + code + "\n```")
}

func pagesMessage(structure string) llm.CompletionMessage {
	return llm.NewUserMessage("Page structure:\n" + structure)
}
