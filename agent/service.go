// Batch agent loop.
//
// Information Hiding:
// - Loop internals and iteration bounds hidden
// - Conversation assembly hidden
// - Tool execution coordination hidden

package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkondo/datalyst/llm"
	"github.com/mkondo/datalyst/mcp"
	"github.com/mkondo/datalyst/model"
)

// systemPrompt frames the assistant for every run.
const systemPrompt = "You are a data analyst assistant with access to federated data sources " +
	"through the provided tools. Use the tools to retrieve and analyze the data needed to " +
	"answer the user's questions. Always answer in the language the user writes in."

// DefaultMaxIterations bounds the request/tool-execute cycle per run.
const DefaultMaxIterations = 10

const defaultModel = "claude-sonnet-4-20250514"
const defaultMaxTokens = 4096

// Config holds agent loop configuration.
type Config struct {
	// Model is the model identifier sent with every request.
	Model string

	// MaxTokens caps the model's output per turn.
	MaxTokens int64

	// MaxIterations caps the number of model rounds per run.
	MaxIterations int

	// MCPBaseURL is the tool-invocation service endpoint. Empty selects the
	// production endpoint.
	MCPBaseURL string
}

// Service drives agent runs. One Service is shared across requests; the tool
// catalog it owns is the only cross-run state.
type Service struct {
	cfg       Config
	catalog   ToolSource
	newModel  func(apiKey string) llm.Client
	newCaller func(token string) ToolCaller
}

// New creates a service wired to the real model provider and protocol client.
func New(cfg Config) *Service {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	return &Service{
		cfg:     cfg,
		catalog: mcp.DefaultCatalog(cfg.MCPBaseURL),
		newModel: func(apiKey string) llm.Client {
			return llm.NewAnthropicClient(apiKey)
		},
		newCaller: func(token string) ToolCaller {
			return mcp.NewClient(cfg.MCPBaseURL, token)
		},
	}
}

// WithModelFactory overrides how model clients are constructed from API keys.
func (s *Service) WithModelFactory(f func(apiKey string) llm.Client) *Service {
	s.newModel = f
	return s
}

// WithCallerFactory overrides how tool callers are constructed from auth tokens.
func (s *Service) WithCallerFactory(f func(token string) ToolCaller) *Service {
	s.newCaller = f
	return s
}

// WithCatalog overrides the tool catalog source.
func (s *Service) WithCatalog(catalog ToolSource) *Service {
	s.catalog = catalog
	return s
}

// InvalidateTools clears the tool catalog cache when the service owns one.
func (s *Service) InvalidateTools() {
	if catalog, ok := s.catalog.(*mcp.Catalog); ok {
		catalog.Invalidate()
	}
}

// Run executes the batch agent loop and returns the final answer text plus
// the ordered log of tool invocations.
//
// An empty answer with a nil error is a degraded completion: the iteration
// cap was reached or the model stopped for an unrecognized reason. Callers
// should surface it as "no conclusive answer" rather than as an empty reply.
// Model provider and catalog fetch failures return a non-nil error.
func (s *Service) Run(ctx context.Context, apiKey, authToken string, history []model.Turn, catalogHint string) (string, []model.ToolCallRecord, error) {
	client := s.newModel(apiKey)
	caller := s.newCaller(authToken)

	tools, err := s.catalog.Tools(ctx, authToken)
	if err != nil {
		return "", nil, err
	}

	messages := fromHistory(history)
	system := s.buildSystem(catalogHint)
	log := []model.ToolCallRecord{}

	for i := 0; i < s.cfg.MaxIterations; i++ {
		resp, err := client.CreateMessage(ctx, llm.Request{
			Model:     s.cfg.Model,
			MaxTokens: s.cfg.MaxTokens,
			System:    system,
			Messages:  messages,
			Tools:     tools,
		})
		if err != nil {
			return "", nil, err
		}

		switch resp.StopReason {
		case llm.StopEndTurn:
			return resp.Text(), log, nil

		case llm.StopToolUse:
			messages = append(messages, llm.Message{Role: model.RoleAssistant, Content: resp.Content})

			results, err := runToolRound(ctx, caller, resp.Content, &log, nil)
			if err != nil {
				return "", nil, err
			}
			messages = append(messages, llm.Message{Role: model.RoleUser, Content: results})

		default:
			// Unrecognized stop reason (length or safety truncation):
			// stop without a conclusion.
			return "", log, nil
		}
	}

	return "", log, nil
}

// buildSystem returns the system prompt, naming the preferred catalog when a
// hint is given.
func (s *Service) buildSystem(catalogHint string) string {
	if catalogHint == "" {
		return systemPrompt
	}
	return fmt.Sprintf("%s\nPrefer the catalog named %q when exploring data.", systemPrompt, catalogHint)
}

// fromHistory normalizes caller-supplied history into the message shape,
// keeping only role and plain text content.
func fromHistory(history []model.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, turn := range history {
		messages = append(messages, llm.Message{
			Role:    turn.Role,
			Content: []llm.ContentBlock{llm.TextBlock(turn.Content)},
		})
	}
	return messages
}

// runToolRound invokes every tool_use block in emission order and returns the
// matching tool_result blocks. Protocol errors do not abort the round: the
// error string becomes the tool's result so the model can react to it. Each
// invocation is appended to the log exactly once.
//
// emit, when non-nil, receives tool_start/tool_result events; if it reports
// the consumer is gone the round stops early with ctx.Err().
func runToolRound(ctx context.Context, caller ToolCaller, blocks []llm.ContentBlock, log *[]model.ToolCallRecord, emit func(Event) bool) ([]llm.ContentBlock, error) {
	var results []llm.ContentBlock

	for _, block := range blocks {
		if block.Type != llm.BlockToolUse {
			continue
		}

		input := llm.CopyInput(block.Input)
		if emit != nil && !emit(toolStartEvent(block.Name, input)) {
			return nil, ctx.Err()
		}

		result, err := caller.CallTool(ctx, block.Name, input)
		if err != nil {
			var perr *mcp.Error
			if !errors.As(err, &perr) {
				// Not a protocol failure; let it abort the run.
				return nil, err
			}
			result = fmt.Sprintf("Error: %v", err)
		}

		*log = append(*log, model.ToolCallRecord{Name: block.Name, Input: input, Result: result})
		if emit != nil && !emit(toolResultEvent(block.Name, result)) {
			return nil, ctx.Err()
		}

		results = append(results, llm.ToolResultBlock(block.ID, result))
	}

	return results, nil
}
