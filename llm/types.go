// Provider-neutral request and response types.
//
// The agent loop speaks these shapes exclusively; each client implementation
// converts them to and from its provider's wire format.

package llm

import (
	"encoding/json"
	"strings"
)

// Content block types.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// StopReason says why the model stopped generating. Values outside the two
// recognized constants pass through from the provider verbatim and make the
// loop end without a conclusion.
type StopReason string

const (
	StopEndTurn StopReason = "end_turn"
	StopToolUse StopReason = "tool_use"
)

// ContentBlock is one item of a message's content: plain text, a tool
// invocation requested by the model, or a tool result supplied back to it.
// Only the fields relevant to Type are set.
type ContentBlock struct {
	Type string `json:"type"`

	// Text for BlockText.
	Text string `json:"text,omitempty"`

	// ID, Name and Input for BlockToolUse. ID correlates the invocation with
	// its eventual tool_result block.
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// ToolUseID and Content for BlockToolResult.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock creates a tool invocation block.
func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock creates a tool result block answering the tool_use block
// with the given id.
func ToolResultBlock(toolUseID, content string) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content}
}

// CopyInput returns a shallow copy of a tool input map. The result is never
// nil; a missing input becomes an empty map.
func CopyInput(input map[string]any) map[string]any {
	copied := make(map[string]any, len(input))
	for k, v := range input {
		copied[k] = v
	}
	return copied
}

// MarshalInput renders a tool input map as compact JSON, for provider formats
// and logs that want the arguments as a string. A nil map renders as "{}".
func MarshalInput(input map[string]any) string {
	if input == nil {
		return "{}"
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// Message is one conversation turn in block-structured form.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserMessage creates a user message with a single text block.
func UserMessage(text string) Message {
	return Message{Role: "user", Content: []ContentBlock{TextBlock(text)}}
}

// AssistantMessage creates an assistant message with a single text block.
func AssistantMessage(text string) Message {
	return Message{Role: "assistant", Content: []ContentBlock{TextBlock(text)}}
}

// ToolDefinition describes one callable tool in the shape the model provider
// expects.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Request is one model turn: the full conversation so far plus the tools the
// model may invoke.
type Request struct {
	Model     string
	MaxTokens int64
	System    string
	Messages  []Message
	Tools     []ToolDefinition
}

// Response is the model's reply to one Request.
type Response struct {
	StopReason StopReason
	Content    []ContentBlock
}

// Text returns the response's text blocks joined with newlines.
func (r *Response) Text() string {
	var texts []string
	for _, block := range r.Content {
		if block.Type == BlockText {
			texts = append(texts, block.Text)
		}
	}
	return strings.Join(texts, "\n")
}
