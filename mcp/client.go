// Package mcp provides a Model Context Protocol (MCP) client.
//
// The client speaks JSON-RPC 2.0 over HTTP POST to a remote tool-invocation
// service. Authentication is a bearer token whose subject claim carries tenant
// isolation end-to-end; the client never re-validates it locally.
//
// Information Hiding:
// - HTTP transport and timeout handling hidden
// - JSON-RPC envelope and request id generation hidden
// - Tool schema translation hidden

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkondo/datalyst/internal/textutil"
	"github.com/mkondo/datalyst/llm"
)

// DefaultBaseURL is the production endpoint of the tool-invocation service.
const DefaultBaseURL = "https://mcp.cloud.cdata.com/mcp"

// Tool execution may itself call out to slow backends, so the request timeout
// is generous.
const requestTimeout = 60 * time.Second

// maxBodyPreview bounds how much of a response body ends up in error messages.
const maxBodyPreview = 500

// Error is the single failure kind for protocol communication: transport
// failures, HTTP errors, malformed bodies and JSON-RPC errors all surface as
// an *Error with a human-readable message.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Client communicates with an MCP server via JSON-RPC 2.0 over HTTP.
// The auth token given at construction is sent with every request.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the given endpoint and bearer token.
// An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// rpcError is a JSON-RPC error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call sends one JSON-RPC request and returns the raw result.
// Every request carries a fresh unique id.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errorf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorf("request failed: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorf("HTTP %d: %s", resp.StatusCode, textutil.Truncate(string(raw), maxBodyPreview))
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, errorf("invalid JSON response: %q", textutil.Truncate(string(raw), maxBodyPreview))
	}

	if decoded.Error != nil {
		return nil, errorf("JSON-RPC error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}

	return decoded.Result, nil
}

// toolInfo is a tool definition in the protocol-native shape.
type toolInfo struct {
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ListTools fetches the tool catalog and translates each entry to the model
// provider's shape (inputSchema becomes input_schema, missing descriptions
// become empty strings). An empty catalog is valid.
func (c *Client) ListTools(ctx context.Context) ([]llm.ToolDefinition, error) {
	result, err := c.call(ctx, "tools/list", struct{}{})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Tools []toolInfo `json:"tools"`
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &parsed); err != nil {
			return nil, errorf("invalid tools list: %q", textutil.Truncate(string(result), maxBodyPreview))
		}
	}

	tools := make([]llm.ToolDefinition, 0, len(parsed.Tools))
	for _, t := range parsed.Tools {
		tools = append(tools, llm.ToolDefinition{
			Name:        t.Name,
			Description: stringValue(t.Description),
			InputSchema: t.InputSchema,
		})
	}
	return tools, nil
}

// CallTool invokes a tool and returns its text output: every "text" block in
// the result's content array, newline-joined, ignoring other block types.
func (c *Client) CallTool(ctx context.Context, name string, input map[string]any) (string, error) {
	result, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": input,
	})
	if err != nil {
		return "", err
	}

	if len(result) == 0 {
		return "", nil
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return "", errorf("invalid tool result: %q", textutil.Truncate(string(result), maxBodyPreview))
	}

	var texts []string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			texts = append(texts, block.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}

// stringValue returns empty string for nil pointers.
func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
