package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mkondo/datalyst/llm"
	"github.com/mkondo/datalyst/mcp"
	"github.com/mkondo/datalyst/model"
)

// scriptedClient replays a fixed sequence of responses, recording every
// request it receives. When the script runs out it keeps returning the last
// response, which lets cap-exhaustion tests script a single tool_use turn.
type scriptedClient struct {
	responses []*llm.Response
	err       error
	requests  []llm.Request
}

func (c *scriptedClient) next() (*llm.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	resp := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return resp, nil
}

func (c *scriptedClient) CreateMessage(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)
	return c.next()
}

func (c *scriptedClient) StreamMessage(_ context.Context, req llm.Request) (llm.Stream, error) {
	c.requests = append(c.requests, req)
	resp, err := c.next()
	if err != nil {
		return nil, err
	}

	var deltas []string
	for _, block := range resp.Content {
		if block.Type == llm.BlockText && block.Text != "" {
			deltas = append(deltas, block.Text)
		}
	}
	return &scriptedStream{deltas: deltas, resp: resp}, nil
}

// scriptedStream emits each text block of the scripted response as one delta.
type scriptedStream struct {
	deltas []string
	resp   *llm.Response
	text   string
	closed bool
}

func (s *scriptedStream) Next() bool {
	if len(s.deltas) == 0 {
		return false
	}
	s.text = s.deltas[0]
	s.deltas = s.deltas[1:]
	return true
}

func (s *scriptedStream) Text() string { return s.text }

func (s *scriptedStream) Final() (*llm.Response, error) { return s.resp, nil }

func (s *scriptedStream) Close() error { s.closed = true; return nil }

// fakeCaller resolves tool calls from a name-keyed map and records the order
// of invocations.
type fakeCaller struct {
	results map[string]string
	errs    map[string]error
	calls   []string
	inputs  []map[string]any
}

func (f *fakeCaller) CallTool(_ context.Context, name string, input map[string]any) (string, error) {
	f.calls = append(f.calls, name)
	f.inputs = append(f.inputs, input)
	if err := f.errs[name]; err != nil {
		return "", err
	}
	return f.results[name], nil
}

// staticTools is a ToolSource with a fixed catalog.
type staticTools struct {
	tools []llm.ToolDefinition
	err   error
}

func (s *staticTools) Tools(_ context.Context, _ string) ([]llm.ToolDefinition, error) {
	return s.tools, s.err
}

func newTestService(client *scriptedClient, caller *fakeCaller, source ToolSource) *Service {
	if source == nil {
		source = &staticTools{tools: []llm.ToolDefinition{{Name: "queryData"}}}
	}
	return New(Config{Model: "test-model", MaxTokens: 256}).
		WithModelFactory(func(string) llm.Client { return client }).
		WithCallerFactory(func(string) ToolCaller { return caller }).
		WithCatalog(source)
}

func endTurn(text string) *llm.Response {
	return &llm.Response{StopReason: llm.StopEndTurn, Content: []llm.ContentBlock{llm.TextBlock(text)}}
}

func toolUse(blocks ...llm.ContentBlock) *llm.Response {
	return &llm.Response{StopReason: llm.StopToolUse, Content: blocks}
}

func TestRunDirectAnswer(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{endTurn("42 albums")}}
	caller := &fakeCaller{}
	service := newTestService(client, caller, nil)

	answer, toolCalls, err := service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("how many albums?")}, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if answer != "42 albums" {
		t.Errorf("expected '42 albums', got %q", answer)
	}
	if len(toolCalls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(toolCalls))
	}
	if len(caller.calls) != 0 {
		t.Errorf("expected no tool invocations, got %v", caller.calls)
	}
}

func TestRunOneToolRound(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		toolUse(
			llm.TextBlock("let me check"),
			llm.ToolUseBlock("tu_1", "queryData", map[string]any{"query": "SELECT COUNT(*) FROM Album"}),
		),
		endTurn("There are 347 albums."),
	}}
	caller := &fakeCaller{results: map[string]string{"queryData": "347"}}
	service := newTestService(client, caller, nil)

	answer, toolCalls, err := service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("how many albums?")}, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if answer != "There are 347 albums." {
		t.Errorf("unexpected answer: %q", answer)
	}

	if len(toolCalls) != 1 {
		t.Fatalf("expected 1 tool call record, got %d", len(toolCalls))
	}
	record := toolCalls[0]
	if record.Name != "queryData" || record.Result != "347" {
		t.Errorf("unexpected record: %+v", record)
	}
	if record.Input["query"] != "SELECT COUNT(*) FROM Album" {
		t.Errorf("unexpected recorded input: %v", record.Input)
	}

	// Second request must carry the assistant turn and the matching
	// tool_result, in that order, after the original user turn.
	if len(client.requests) != 2 {
		t.Fatalf("expected 2 model requests, got %d", len(client.requests))
	}
	messages := client.requests[1].Messages
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages in second request, got %d", len(messages))
	}
	if messages[1].Role != model.RoleAssistant {
		t.Errorf("expected assistant echo, got role %q", messages[1].Role)
	}
	resultMsg := messages[2]
	if resultMsg.Role != model.RoleUser {
		t.Errorf("expected tool results in a user message, got %q", resultMsg.Role)
	}
	if len(resultMsg.Content) != 1 || resultMsg.Content[0].ToolUseID != "tu_1" {
		t.Errorf("expected tool_result answering tu_1, got %+v", resultMsg.Content)
	}
	if resultMsg.Content[0].Content != "347" {
		t.Errorf("expected result '347', got %q", resultMsg.Content[0].Content)
	}
}

func TestRunMultipleToolsInOneRound(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		toolUse(
			llm.ToolUseBlock("tu_1", "getCatalogs", map[string]any{}),
			llm.ToolUseBlock("tu_2", "getSchemas", map[string]any{"catalogName": "Chinook"}),
		),
		endTurn("done"),
	}}
	caller := &fakeCaller{results: map[string]string{"getCatalogs": "Chinook", "getSchemas": "main"}}
	service := newTestService(client, caller, nil)

	_, toolCalls, err := service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("explore")}, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(caller.calls) != 2 || caller.calls[0] != "getCatalogs" || caller.calls[1] != "getSchemas" {
		t.Errorf("expected tools invoked in emission order, got %v", caller.calls)
	}
	if len(toolCalls) != 2 {
		t.Fatalf("expected 2 records, got %d", len(toolCalls))
	}

	results := client.requests[1].Messages[2].Content
	if len(results) != 2 || results[0].ToolUseID != "tu_1" || results[1].ToolUseID != "tu_2" {
		t.Errorf("expected results matching both tool_use ids, got %+v", results)
	}
}

func TestRunProtocolErrorBecomesToolResult(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		toolUse(llm.ToolUseBlock("tu_1", "queryData", map[string]any{"query": "SELECT * FROM Nope"})),
		endTurn("that table does not exist"),
	}}
	caller := &fakeCaller{errs: map[string]error{
		"queryData": &mcp.Error{Message: "JSON-RPC error -32000: table not found"},
	}}
	service := newTestService(client, caller, nil)

	answer, toolCalls, err := service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("query it")}, "")
	if err != nil {
		t.Fatalf("expected protocol error to be absorbed, got %v", err)
	}
	if answer != "that table does not exist" {
		t.Errorf("expected the loop to continue to an answer, got %q", answer)
	}

	if len(toolCalls) != 1 {
		t.Fatalf("expected 1 record, got %d", len(toolCalls))
	}
	want := "Error: JSON-RPC error -32000: table not found"
	if toolCalls[0].Result != want {
		t.Errorf("expected %q, got %q", want, toolCalls[0].Result)
	}

	// The model sees the error string as the tool result.
	result := client.requests[1].Messages[2].Content[0]
	if result.Content != want {
		t.Errorf("expected error string in tool_result, got %q", result.Content)
	}
}

func TestRunNonProtocolErrorAborts(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		toolUse(llm.ToolUseBlock("tu_1", "queryData", map[string]any{})),
	}}
	caller := &fakeCaller{errs: map[string]error{"queryData": fmt.Errorf("disk full")}}
	service := newTestService(client, caller, nil)

	_, _, err := service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("query it")}, "")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected the non-protocol error to abort, got %v", err)
	}
}

func TestRunIterationCap(t *testing.T) {
	// The script never ends a turn; the last response repeats forever.
	client := &scriptedClient{responses: []*llm.Response{
		toolUse(llm.ToolUseBlock("tu_1", "getCatalogs", map[string]any{})),
	}}
	caller := &fakeCaller{results: map[string]string{"getCatalogs": "Chinook"}}
	service := newTestService(client, caller, nil)

	answer, toolCalls, err := service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("loop forever")}, "")
	if err != nil {
		t.Fatalf("expected degraded completion, got error %v", err)
	}
	if answer != "" {
		t.Errorf("expected empty answer at the cap, got %q", answer)
	}
	if len(client.requests) != DefaultMaxIterations {
		t.Errorf("expected exactly %d model rounds, got %d", DefaultMaxIterations, len(client.requests))
	}
	if len(toolCalls) != DefaultMaxIterations {
		t.Errorf("expected one record per round, got %d", len(toolCalls))
	}
}

func TestRunUnrecognizedStopReason(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{StopReason: llm.StopReason("max_tokens"), Content: []llm.ContentBlock{llm.TextBlock("truncated")}},
	}}
	service := newTestService(client, &fakeCaller{}, nil)

	answer, toolCalls, err := service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("hi")}, "")
	if err != nil {
		t.Fatalf("expected degraded completion, got error %v", err)
	}
	if answer != "" {
		t.Errorf("expected empty answer, got %q", answer)
	}
	if toolCalls == nil {
		t.Error("expected non-nil tool call log")
	}
}

func TestRunModelErrorPropagates(t *testing.T) {
	client := &scriptedClient{err: fmt.Errorf("overloaded")}
	service := newTestService(client, &fakeCaller{}, nil)

	_, _, err := service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("hi")}, "")
	if err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestRunCatalogErrorPropagates(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{endTurn("unreached")}}
	source := &staticTools{err: fmt.Errorf("catalog unavailable")}
	service := newTestService(client, &fakeCaller{}, source)

	_, _, err := service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("hi")}, "")
	if err == nil || !strings.Contains(err.Error(), "catalog unavailable") {
		t.Fatalf("expected catalog error, got %v", err)
	}
	if len(client.requests) != 0 {
		t.Errorf("expected no model request after catalog failure, got %d", len(client.requests))
	}
}

func TestRunCatalogHintInSystemPrompt(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{endTurn("ok")}}
	service := newTestService(client, &fakeCaller{}, nil)

	service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("hi")}, "Chinook")

	system := client.requests[0].System
	if !strings.Contains(system, `"Chinook"`) {
		t.Errorf("expected catalog hint in system prompt, got %q", system)
	}

	client.requests = nil
	client.responses = []*llm.Response{endTurn("ok")}
	service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("hi")}, "")
	if strings.Contains(client.requests[0].System, "Prefer the catalog") {
		t.Error("expected no hint line without a catalog")
	}
}

func TestRunHistoryNormalization(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{endTurn("ok")}}
	service := newTestService(client, &fakeCaller{}, nil)

	history := []model.Turn{
		model.UserTurn("first"),
		model.AssistantTurn("reply"),
		model.UserTurn("second"),
	}
	service.Run(context.Background(), "key", "token", history, "")

	messages := client.requests[0].Messages
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, msg := range messages {
		if len(msg.Content) != 1 || msg.Content[0].Type != llm.BlockText {
			t.Errorf("message %d: expected a single text block, got %+v", i, msg.Content)
		}
		if msg.Role != history[i].Role || msg.Content[0].Text != history[i].Content {
			t.Errorf("message %d: expected %+v, got %+v", i, history[i], msg)
		}
	}
}

func TestRunToolsPassedToModel(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{endTurn("ok")}}
	source := &staticTools{tools: []llm.ToolDefinition{
		{Name: "getCatalogs"}, {Name: "queryData"},
	}}
	service := newTestService(client, &fakeCaller{}, source)

	service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("hi")}, "")

	tools := client.requests[0].Tools
	if len(tools) != 2 || tools[0].Name != "getCatalogs" || tools[1].Name != "queryData" {
		t.Errorf("expected the catalog to reach the model, got %v", tools)
	}
}

func TestRunToolInputDefensiveCopy(t *testing.T) {
	input := map[string]any{"query": "SELECT 1"}
	client := &scriptedClient{responses: []*llm.Response{
		toolUse(llm.ToolUseBlock("tu_1", "queryData", input)),
		endTurn("ok"),
	}}
	caller := &fakeCaller{results: map[string]string{"queryData": "1"}}
	service := newTestService(client, caller, nil)

	_, toolCalls, err := service.Run(context.Background(), "key", "token",
		[]model.Turn{model.UserTurn("hi")}, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	toolCalls[0].Input["query"] = "mutated"
	if input["query"] != "SELECT 1" {
		t.Errorf("mutating the record changed the model's block: %v", input)
	}
}
