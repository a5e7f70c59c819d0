// Package model provides domain types shared across packages.
package model

// Conversation roles. The upstream model provider only distinguishes these two;
// tool results travel inside a synthetic user turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one plain-text item in a conversation history as callers supply and
// persist it. Structured content blocks never cross this boundary; each agent
// run rebuilds the structured part of the conversation from plain text.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserTurn creates a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn creates an assistant turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// ToolCallRecord describes one tool invocation made during an agent run.
// Result holds either the tool's text output or a human-readable error string;
// invocations are never retried, so exactly one record exists per call.
type ToolCallRecord struct {
	Name   string         `json:"name"`
	Input  map[string]any `json:"input"`
	Result string         `json:"result"`
}
