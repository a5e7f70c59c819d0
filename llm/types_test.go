package llm

import "testing"

func TestCopyInputNilBecomesEmpty(t *testing.T) {
	copied := CopyInput(nil)
	if copied == nil {
		t.Fatal("expected non-nil map")
	}
	if len(copied) != 0 {
		t.Errorf("expected empty map, got %d entries", len(copied))
	}
}

func TestCopyInputIsIndependent(t *testing.T) {
	original := map[string]any{"query": "SELECT 1", "limit": 10}

	copied := CopyInput(original)
	copied["query"] = "SELECT 2"

	if original["query"] != "SELECT 1" {
		t.Errorf("mutating the copy changed the original: %v", original["query"])
	}
	if copied["limit"] != 10 {
		t.Errorf("expected limit 10, got %v", copied["limit"])
	}
}

func TestMarshalInput(t *testing.T) {
	if got := MarshalInput(nil); got != "{}" {
		t.Errorf("expected {} for nil input, got %q", got)
	}
	if got := MarshalInput(map[string]any{"a": 1}); got != `{"a":1}` {
		t.Errorf("expected compact JSON, got %q", got)
	}
}

func TestResponseTextJoinsTextBlocks(t *testing.T) {
	resp := &Response{Content: []ContentBlock{
		TextBlock("first"),
		ToolUseBlock("tu_1", "queryData", map[string]any{"query": "SELECT 1"}),
		TextBlock("second"),
	}}

	if got := resp.Text(); got != "first\nsecond" {
		t.Errorf("expected 'first\\nsecond', got %q", got)
	}
}

func TestResponseTextEmpty(t *testing.T) {
	resp := &Response{Content: []ContentBlock{
		ToolUseBlock("tu_1", "getCatalogs", map[string]any{}),
	}}

	if got := resp.Text(); got != "" {
		t.Errorf("expected empty text, got %q", got)
	}
}

func TestToolResultBlockCorrelation(t *testing.T) {
	block := ToolResultBlock("tu_42", "output")
	if block.Type != BlockToolResult {
		t.Errorf("expected tool_result type, got %q", block.Type)
	}
	if block.ToolUseID != "tu_42" {
		t.Errorf("expected tool_use_id 'tu_42', got %q", block.ToolUseID)
	}
	if block.Content != "output" {
		t.Errorf("expected content 'output', got %q", block.Content)
	}
}
