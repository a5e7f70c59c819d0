// Package main provides the datalyst CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mkondo/datalyst/cli"
)

var (
	// Global flags
	provider string
	catalog  string
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "datalyst",
		Short: "AI assistant over federated data sources",
		Long: `A CLI for querying federated data sources through an AI assistant.

The assistant explores catalogs, schemas, tables and columns on its own,
runs SQL queries through the data service, and answers in plain language.
Metadata commands (catalogs, schemas, tables, columns, query) hit the
data service directly without involving the model.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "Model provider (anthropic, openai)")
	rootCmd.PersistentFlags().StringVarP(&catalog, "catalog", "c", "", "Catalog to prefer when exploring data")

	// Add commands
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(catalogsCmd())
	rootCmd.AddCommand(schemasCmd())
	rootCmd.AddCommand(tablesCmd())
	rootCmd.AddCommand(columnsCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(logsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{Provider: provider, Catalog: catalog}
			return cli.Ask(context.Background(), args[0], opts)
		},
	}
}

func chatCmd() *cobra.Command {
	var sessionID string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session with streamed responses",
		Long: `Start an interactive chat session with the data assistant.

Responses stream as they are generated, including tool invocations the
assistant makes along the way. Conversation history persists per session
in a local SQLite database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider: provider,
				Catalog:  catalog,
				Session:  sessionID,
				DBPath:   dbPath,
			}
			return cli.Chat(context.Background(), opts)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path for storage (default from DATALYST_DB)")

	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the data service offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Tools(context.Background(), cli.Options{Provider: provider})
		},
	}
}

func catalogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalogs",
		Short: "List available catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Catalogs(context.Background(), cli.Options{Provider: provider})
		},
	}
}

func schemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas [catalog]",
		Short: "List schemas in a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Schemas(context.Background(), args[0], cli.Options{Provider: provider})
		},
	}
}

func tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables [catalog] [schema]",
		Short: "List tables in a schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Tables(context.Background(), args[0], args[1], cli.Options{Provider: provider})
		},
	}
}

func columnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns [catalog] [schema] [table]",
		Short: "List columns of a table",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Columns(context.Background(), args[0], args[1], args[2], cli.Options{Provider: provider})
		},
	}
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query [sql]",
		Short: "Run a SQL query against the data service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Query(context.Background(), args[0], cli.Options{Provider: provider})
		},
	}
}

func logsCmd() *cobra.Command {
	var sessionID string
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the audit log for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{Provider: provider, Session: sessionID, DBPath: dbPath}
			return cli.Logs(context.Background(), limit, opts)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to show logs for")
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path for storage (default from DATALYST_DB)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries to show")

	return cmd
}
