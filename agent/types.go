// Package agent implements the agentic tool-use conversation loop.
//
// The loop interleaves model requests with remote tool execution until the
// model produces a conclusive answer, a bounded number of rounds is exhausted,
// or the model stops for an unrecognized reason. It comes in a batch variant
// returning a single result and a streaming variant emitting events for
// incremental UI rendering.
package agent

import (
	"context"

	"github.com/mkondo/datalyst/llm"
)

// ToolCaller executes one remote tool invocation and returns its text output.
// *mcp.Client implements this.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, input map[string]any) (string, error)
}

// ToolSource supplies the tool definitions offered to the model.
// *mcp.Catalog implements this.
type ToolSource interface {
	Tools(ctx context.Context, token string) ([]llm.ToolDefinition, error)
}

// EventType identifies a streaming event.
type EventType string

const (
	// EventTextDelta carries one incremental text fragment.
	EventTextDelta EventType = "text_delta"
	// EventToolStart is emitted immediately before a tool is invoked.
	EventToolStart EventType = "tool_start"
	// EventToolResult is emitted immediately after a tool invocation.
	EventToolResult EventType = "tool_result"
	// EventDone terminates every non-erroring run, carrying the full answer.
	EventDone EventType = "done"
	// EventError terminates a failed run; no done event follows.
	EventError EventType = "error"
)

// Event is one streaming update. Only the fields relevant to Type are set;
// the JSON encoding matches the wire payload for that event kind.
type Event struct {
	Type EventType `json:"-"`

	// Text for EventTextDelta.
	Text string `json:"text,omitempty"`

	// ToolName for EventToolStart and EventToolResult, ToolInput for
	// EventToolStart, Result for EventToolResult.
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`
	Result    string         `json:"result,omitempty"`

	// Message and Answer for EventDone. Answer is the concatenation of every
	// text delta emitted across the entire run and may legitimately be empty.
	Message string `json:"message,omitempty"`
	Answer  string `json:"answer,omitempty"`

	// Err for EventError.
	Err string `json:"error,omitempty"`
}

func textDeltaEvent(text string) Event {
	return Event{Type: EventTextDelta, Text: text}
}

func toolStartEvent(name string, input map[string]any) Event {
	return Event{Type: EventToolStart, ToolName: name, ToolInput: input}
}

func toolResultEvent(name, result string) Event {
	return Event{Type: EventToolResult, ToolName: name, Result: result}
}

func doneEvent(answer string) Event {
	return Event{Type: EventDone, Message: "complete", Answer: answer}
}

func errorEvent(err error) Event {
	return Event{Type: EventError, Err: err.Error()}
}
