// Command execution for CLI commands.
//
// Information Hiding:
// - Service and storage setup hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkondo/datalyst/agent"
	"github.com/mkondo/datalyst/config"
	"github.com/mkondo/datalyst/internal/textutil"
	"github.com/mkondo/datalyst/llm"
	"github.com/mkondo/datalyst/mcp"
	"github.com/mkondo/datalyst/model"
	"github.com/mkondo/datalyst/storage"
)

const bodyPreviewLimit = 500

// Options holds CLI execution options.
type Options struct {
	Provider string
	Catalog  string
	Session  string
	DBPath   string
}

// setup resolves settings and credentials and builds the agent service.
func setup(opts Options) (*agent.Service, config.Settings, string, string, error) {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return nil, config.Settings{}, "", "", err
	}

	apiKey, err := config.APIKeyFor(settings.Provider)
	if err != nil {
		return nil, config.Settings{}, "", "", err
	}

	authToken, err := config.AuthToken()
	if err != nil {
		return nil, config.Settings{}, "", "", err
	}

	service := agent.New(agent.Config{
		Model:         settings.Model,
		MaxTokens:     settings.MaxTokens,
		MaxIterations: settings.MaxIterations,
		MCPBaseURL:    settings.MCPBaseURL,
	})
	if settings.Provider != llm.ProviderAnthropic {
		provider := settings.Provider
		service = service.WithModelFactory(func(key string) llm.Client {
			client, _ := llm.NewClient(provider, key)
			return client
		})
	}

	return service, settings, apiKey, authToken, nil
}

// Ask executes a single question through the batch loop.
func Ask(ctx context.Context, question string, opts Options) error {
	service, _, apiKey, authToken, err := setup(opts)
	if err != nil {
		return err
	}

	history := []model.Turn{model.UserTurn(question)}
	answer, toolCalls, err := service.Run(ctx, apiKey, authToken, history, opts.Catalog)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printToolCalls(toolCalls)
	if answer == "" {
		fmt.Println("No conclusive answer.")
		return nil
	}
	fmt.Println(answer)
	return nil
}

// Chat starts an interactive streaming chat session with persistent history.
func Chat(ctx context.Context, opts Options) error {
	service, settings, apiKey, authToken, err := setup(opts)
	if err != nil {
		return err
	}

	store, err := storage.OpenSqlite(dbPath(opts, settings))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	session := opts.Session
	if session == "" {
		session = uuid.NewString()
		fmt.Printf("Session: %s\n", session)
	}

	history, err := store.Load(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) > 0 {
		fmt.Printf("Resuming session '%s' (%d messages)\n\n", session, len(history))
	}

	fmt.Println("Chat with the data assistant. Type 'exit' to quit, 'reset' to clear history.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		if input == "reset" {
			if err := store.Delete(ctx, session); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			history = nil
			fmt.Println("Conversation reset.")
			continue
		}

		history = append(history, model.UserTurn(input))

		answer, err := streamExchange(ctx, service, store, session, apiKey, authToken, history, opts.Catalog, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			history = history[:len(history)-1]
			continue
		}

		history = append(history, model.AssistantTurn(answer))
		if err := store.Save(ctx, session, history); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save history: %v\n", err)
		}
	}

	return scanner.Err()
}

// streamExchange runs one streamed exchange, rendering events as they arrive,
// and records the call in the audit log.
func streamExchange(ctx context.Context, service *agent.Service, sink storage.AuditSink, session, apiKey, authToken string, history []model.Turn, catalog, question string) (string, error) {
	start := time.Now()

	events, err := service.RunStream(ctx, apiKey, authToken, history, catalog)
	if err != nil {
		return "", err
	}

	answer := ""
	status := 200
	var runErr error

	for event := range events {
		switch event.Type {
		case agent.EventTextDelta:
			fmt.Print(event.Text)
		case agent.EventToolStart:
			fmt.Printf("\n[tool] %s %s\n", event.ToolName, llm.MarshalInput(event.ToolInput))
		case agent.EventToolResult:
			fmt.Printf("[tool] %s -> %s\n", event.ToolName, textutil.Truncate(event.Result, 200))
		case agent.EventDone:
			answer = event.Answer
		case agent.EventError:
			runErr = fmt.Errorf("%s", event.Err)
			status = 500
		}
	}
	fmt.Println()

	// Best-effort audit record; a sink failure never fails the exchange.
	entry := storage.APILogEntry{
		Subject:      session,
		Method:       "POST",
		Endpoint:     "ai-assistant/chat",
		StatusCode:   status,
		ElapsedMs:    time.Since(start).Milliseconds(),
		RequestBody:  textutil.Truncate(question, bodyPreviewLimit),
		ResponseBody: textutil.Truncate(answer, bodyPreviewLimit),
	}
	if err := sink.AppendAPILog(ctx, entry); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record audit log: %v\n", err)
	}

	return answer, runErr
}

// Tools prints the tool catalog offered to the model.
func Tools(ctx context.Context, opts Options) error {
	settings, authToken, err := protocolSetup(opts)
	if err != nil {
		return err
	}

	tools, err := mcp.NewClient(settings.MCPBaseURL, authToken).ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}

	for _, tool := range tools {
		fmt.Printf("%s\t%s\n", tool.Name, tool.Description)
	}
	return nil
}

// Catalogs prints the available catalogs.
func Catalogs(ctx context.Context, opts Options) error {
	return metadataCommand(ctx, opts, func(client *mcp.Client) (string, error) {
		return client.GetCatalogs(ctx)
	})
}

// Schemas prints the schemas in a catalog.
func Schemas(ctx context.Context, catalogName string, opts Options) error {
	return metadataCommand(ctx, opts, func(client *mcp.Client) (string, error) {
		return client.GetSchemas(ctx, catalogName)
	})
}

// Tables prints the tables in a schema.
func Tables(ctx context.Context, catalogName, schemaName string, opts Options) error {
	return metadataCommand(ctx, opts, func(client *mcp.Client) (string, error) {
		return client.GetTables(ctx, catalogName, schemaName)
	})
}

// Columns prints the columns of a table.
func Columns(ctx context.Context, catalogName, schemaName, tableName string, opts Options) error {
	return metadataCommand(ctx, opts, func(client *mcp.Client) (string, error) {
		return client.GetColumns(ctx, catalogName, schemaName, tableName)
	})
}

// Query executes a SQL query against the federated data service.
func Query(ctx context.Context, query string, opts Options) error {
	return metadataCommand(ctx, opts, func(client *mcp.Client) (string, error) {
		return client.QueryData(ctx, query, nil)
	})
}

// Logs prints the audit log for a session.
func Logs(ctx context.Context, limit int, opts Options) error {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}
	if opts.Session == "" {
		return fmt.Errorf("--session is required for logs")
	}

	store, err := storage.OpenSqlite(dbPath(opts, settings))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	entries, total, err := store.ListAPILogs(ctx, opts.Session, limit, 0)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		fmt.Printf("%s  %s %s  %d  %dms\n",
			entry.Timestamp.Format(time.RFC3339),
			entry.Method, entry.Endpoint, entry.StatusCode, entry.ElapsedMs)
	}
	fmt.Printf("(%d of %d entries)\n", len(entries), total)
	return nil
}

func dbPath(opts Options, settings config.Settings) string {
	if opts.DBPath != "" {
		return opts.DBPath
	}
	return settings.DBPath
}

func protocolSetup(opts Options) (config.Settings, string, error) {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return config.Settings{}, "", err
	}
	authToken, err := config.AuthToken()
	if err != nil {
		return config.Settings{}, "", err
	}
	return settings, authToken, nil
}

func metadataCommand(ctx context.Context, opts Options, run func(*mcp.Client) (string, error)) error {
	settings, authToken, err := protocolSetup(opts)
	if err != nil {
		return err
	}

	result, err := run(mcp.NewClient(settings.MCPBaseURL, authToken))
	if err != nil {
		return err
	}

	fmt.Println(result)
	return nil
}

func printToolCalls(toolCalls []model.ToolCallRecord) {
	for _, call := range toolCalls {
		fmt.Printf("[tool] %s %s -> %s\n",
			call.Name, llm.MarshalInput(call.Input), textutil.Truncate(call.Result, 200))
	}
}
