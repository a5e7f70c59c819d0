// OpenAI client implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Tool-call delta accumulation during streaming

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements the Client interface for OpenAI chat models.
// Tool-use requests arrive as function tool calls and are converted into the
// same tool_use blocks the Anthropic client produces, so the agent loop is
// provider-agnostic.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client for the given API key.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{client: openai.NewClient(apiKey)}
}

// CreateMessage sends a non-streaming chat completion request.
func (c *OpenAIClient) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openaiRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return &Response{StopReason: StopEndTurn}, nil
	}

	choice := resp.Choices[0]
	return responseFromOpenAI(choice.FinishReason, choice.Message.Content, choice.Message.ToolCalls), nil
}

// StreamMessage sends a streaming chat completion request.
func (c *OpenAIClient) StreamMessage(ctx context.Context, req Request) (Stream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openaiRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("stream creation failed: %w", err)
	}
	return &openaiStream{stream: stream}, nil
}

// openaiStream adapts the chat completion stream to the Stream interface,
// accumulating content and tool-call argument fragments as they arrive.
type openaiStream struct {
	stream    *openai.ChatCompletionStream
	text      string
	content   strings.Builder
	toolCalls []openai.ToolCall
	finish    openai.FinishReason
	err       error
	done      bool
}

func (s *openaiStream) Next() bool {
	if s.done {
		return false
	}

	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return false
		}
		if err != nil {
			s.err = fmt.Errorf("stream recv failed: %w", err)
			s.done = true
			return false
		}

		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]

		if choice.FinishReason != "" {
			s.finish = choice.FinishReason
		}
		for _, tc := range choice.Delta.ToolCalls {
			s.accumulateToolCall(tc)
		}

		if choice.Delta.Content != "" {
			s.text = choice.Delta.Content
			s.content.WriteString(s.text)
			return true
		}
	}
}

// accumulateToolCall merges one streamed tool-call fragment. Fragments carry
// an index plus a partial id, name, or arguments chunk.
func (s *openaiStream) accumulateToolCall(tc openai.ToolCall) {
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}
	for len(s.toolCalls) <= idx {
		s.toolCalls = append(s.toolCalls, openai.ToolCall{})
	}

	current := &s.toolCalls[idx]
	if tc.ID != "" {
		current.ID = tc.ID
	}
	if tc.Function.Name != "" {
		current.Function.Name = tc.Function.Name
	}
	current.Function.Arguments += tc.Function.Arguments
}

func (s *openaiStream) Text() string {
	return s.text
}

func (s *openaiStream) Final() (*Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return responseFromOpenAI(s.finish, s.content.String(), s.toolCalls), nil
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}

// openaiRequest builds a chat completion request from a Request.
func openaiRequest(req Request, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:     req.Model,
		MaxTokens: int(req.MaxTokens),
		Messages:  toOpenAIMessages(req.System, req.Messages),
		Tools:     toOpenAITools(req.Tools),
		Stream:    stream,
	}
}

// toOpenAIMessages flattens block-structured messages into the chat
// completion format: tool_use blocks become assistant tool calls and each
// tool_result block becomes its own tool-role message.
func toOpenAIMessages(system string, messages []Message) []openai.ChatCompletionMessage {
	var result []openai.ChatCompletionMessage

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		var text strings.Builder
		var toolCalls []openai.ToolCall
		var toolResults []openai.ChatCompletionMessage

		for _, block := range msg.Content {
			switch block.Type {
			case BlockText:
				text.WriteString(block.Text)
			case BlockToolUse:
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   block.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      block.Name,
						Arguments: MarshalInput(block.Input),
					},
				})
			case BlockToolResult:
				toolResults = append(toolResults, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    block.Content,
					ToolCallID: block.ToolUseID,
				})
			}
		}

		if text.Len() > 0 || len(toolCalls) > 0 {
			result = append(result, openai.ChatCompletionMessage{
				Role:      msg.Role,
				Content:   text.String(),
				ToolCalls: toolCalls,
			})
		}
		result = append(result, toolResults...)
	}

	return result
}

// toOpenAITools converts tool definitions to the function-tool format.
func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return result
}

// responseFromOpenAI converts a finished choice into the plain response shape.
func responseFromOpenAI(finish openai.FinishReason, content string, toolCalls []openai.ToolCall) *Response {
	var blocks []ContentBlock
	if content != "" {
		blocks = append(blocks, TextBlock(content))
	}

	if finish == openai.FinishReasonToolCalls || len(toolCalls) > 0 {
		for _, tc := range toolCalls {
			var input map[string]any
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil || input == nil {
				input = map[string]any{}
			}
			blocks = append(blocks, ToolUseBlock(tc.ID, tc.Function.Name, input))
		}
		return &Response{StopReason: StopToolUse, Content: blocks}
	}

	switch finish {
	case openai.FinishReasonStop, "":
		return &Response{StopReason: StopEndTurn, Content: blocks}
	default:
		return &Response{StopReason: StopReason(finish), Content: blocks}
	}
}

// Verify OpenAIClient implements Client
var _ Client = (*OpenAIClient)(nil)
