// Anthropic client implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Streaming via official SDK

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// AnthropicClient implements the Client interface for Anthropic Claude.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client for the given API key.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// CreateMessage sends a non-streaming message request.
func (c *AnthropicClient) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	message, err := c.client.Messages.New(ctx, anthropicParams(req))
	if err != nil {
		return nil, fmt.Errorf("message request failed: %w", err)
	}

	return &Response{
		StopReason: stopReasonFromAnthropic(message.StopReason),
		Content:    blocksFromAnthropic(message.Content),
	}, nil
}

// StreamMessage sends a streaming message request.
func (c *AnthropicClient) StreamMessage(ctx context.Context, req Request) (Stream, error) {
	stream := c.client.Messages.NewStreaming(ctx, anthropicParams(req))
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("stream creation failed: %w", err)
	}
	return &anthropicStream{stream: stream}, nil
}

// anthropicStream adapts the SDK event stream to the Stream interface,
// accumulating events into the final message as they arrive.
type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	acc    anthropic.Message
	text   string
	err    error
}

func (s *anthropicStream) Next() bool {
	for s.stream.Next() {
		event := s.stream.Current()
		if err := s.acc.Accumulate(event); err != nil {
			s.err = fmt.Errorf("failed to accumulate stream event: %w", err)
			return false
		}

		if deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if delta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				s.text = delta.Text
				return true
			}
		}
	}
	return false
}

func (s *anthropicStream) Text() string {
	return s.text
}

func (s *anthropicStream) Final() (*Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := s.stream.Err(); err != nil {
		return nil, fmt.Errorf("stream error: %w", err)
	}

	return &Response{
		StopReason: stopReasonFromAnthropic(s.acc.StopReason),
		Content:    blocksFromAnthropic(s.acc.Content),
	}, nil
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}

// anthropicParams builds SDK request parameters from a Request.
func anthropicParams(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toAnthropicMessages(req.Messages),
		Tools:     toAnthropicTools(req.Tools),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	return params
}

// toAnthropicMessages converts plain messages, including tool_use and
// tool_result blocks, to the SDK parameter format.
func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		role := anthropic.MessageParamRoleUser
		if msg.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}

		content := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case BlockText:
				content = append(content, anthropic.NewTextBlock(block.Text))
			case BlockToolUse:
				content = append(content, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    block.ID,
						Name:  block.Name,
						Input: block.Input,
					},
				})
			case BlockToolResult:
				content = append(content, anthropic.NewToolResultBlock(block.ToolUseID, block.Content, false))
			}
		}

		result = append(result, anthropic.MessageParam{Role: role, Content: content})
	}

	return result
}

// toAnthropicTools converts tool definitions to the SDK tool format.
func toAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		properties, _ := t.InputSchema["properties"].(map[string]any)

		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   requiredNames(t.InputSchema),
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// requiredNames extracts the "required" list from a JSON schema map,
// tolerating both []string and the []any produced by json.Unmarshal.
func requiredNames(schema map[string]any) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []any:
		names := make([]string, 0, len(required))
		for _, entry := range required {
			if name, ok := entry.(string); ok {
				names = append(names, name)
			}
		}
		return names
	default:
		return nil
	}
}

// blocksFromAnthropic converts SDK response blocks into plain content blocks.
// Tool inputs are round-tripped through JSON so the resulting map is a
// defensive copy detached from the SDK object.
func blocksFromAnthropic(content []anthropic.ContentBlockUnion) []ContentBlock {
	blocks := make([]ContentBlock, 0, len(content))
	for _, block := range content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, TextBlock(variant.Text))
		case anthropic.ToolUseBlock:
			blocks = append(blocks, ToolUseBlock(variant.ID, variant.Name, inputMap(variant.Input)))
		}
	}
	return blocks
}

// inputMap captures a provider tool input as a plain key-value map.
func inputMap(input any) map[string]any {
	raw, err := json.Marshal(input)
	if err != nil {
		return map[string]any{}
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// stopReasonFromAnthropic maps SDK stop reasons onto the loop's value space.
// Unrecognized reasons (max_tokens, refusal, ...) pass through verbatim.
func stopReasonFromAnthropic(reason anthropic.StopReason) StopReason {
	switch reason {
	case anthropic.StopReasonEndTurn:
		return StopEndTurn
	case anthropic.StopReasonToolUse:
		return StopToolUse
	default:
		return StopReason(reason)
	}
}

// Verify AnthropicClient implements Client
var _ Client = (*AnthropicClient)(nil)
