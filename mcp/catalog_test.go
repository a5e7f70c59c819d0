package mcp

import (
	"context"
	"fmt"
	"testing"

	"github.com/mkondo/datalyst/llm"
)

// fakeLister counts fetches and returns scripted results.
type fakeLister struct {
	tools   []llm.ToolDefinition
	err     error
	fetches int
	tokens  []string
}

func (f *fakeLister) ListTools(_ context.Context) ([]llm.ToolDefinition, error) {
	f.fetches++
	return f.tools, f.err
}

func newFakeCatalog(f *fakeLister) *Catalog {
	return NewCatalog(func(token string) Lister {
		f.tokens = append(f.tokens, token)
		return f
	})
}

func TestCatalogFetchesOnce(t *testing.T) {
	lister := &fakeLister{tools: []llm.ToolDefinition{{Name: "getCatalogs"}}}
	catalog := newFakeCatalog(lister)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tools, err := catalog.Tools(ctx, "token-a")
		if err != nil {
			t.Fatalf("Tools failed: %v", err)
		}
		if len(tools) != 1 || tools[0].Name != "getCatalogs" {
			t.Errorf("unexpected tools: %v", tools)
		}
	}

	if lister.fetches != 1 {
		t.Errorf("expected 1 fetch, got %d", lister.fetches)
	}
}

func TestCatalogCachedAcrossTokens(t *testing.T) {
	lister := &fakeLister{tools: []llm.ToolDefinition{{Name: "getCatalogs"}}}
	catalog := newFakeCatalog(lister)
	ctx := context.Background()

	catalog.Tools(ctx, "token-a")
	catalog.Tools(ctx, "token-b")

	if lister.fetches != 1 {
		t.Errorf("expected the cache to serve the second token, got %d fetches", lister.fetches)
	}
	if len(lister.tokens) != 1 || lister.tokens[0] != "token-a" {
		t.Errorf("expected only the first token to build a client, got %v", lister.tokens)
	}
}

func TestCatalogErrorDoesNotPopulate(t *testing.T) {
	lister := &fakeLister{err: fmt.Errorf("boom")}
	catalog := newFakeCatalog(lister)
	ctx := context.Background()

	if _, err := catalog.Tools(ctx, "token"); err == nil {
		t.Fatal("expected error")
	}

	// Recovery: the next call retries instead of serving a poisoned cache.
	lister.err = nil
	lister.tools = []llm.ToolDefinition{{Name: "queryData"}}

	tools, err := catalog.Tools(ctx, "token")
	if err != nil {
		t.Fatalf("Tools failed after recovery: %v", err)
	}
	if len(tools) != 1 {
		t.Errorf("expected 1 tool, got %d", len(tools))
	}
	if lister.fetches != 2 {
		t.Errorf("expected 2 fetches, got %d", lister.fetches)
	}
}

func TestCatalogInvalidateRefetches(t *testing.T) {
	lister := &fakeLister{tools: []llm.ToolDefinition{{Name: "getCatalogs"}}}
	catalog := newFakeCatalog(lister)
	ctx := context.Background()

	catalog.Tools(ctx, "token")
	catalog.Invalidate()
	catalog.Tools(ctx, "token")

	if lister.fetches != 2 {
		t.Errorf("expected refetch after invalidation, got %d fetches", lister.fetches)
	}
}

func TestCatalogNilToolsCachedAsEmpty(t *testing.T) {
	lister := &fakeLister{tools: nil}
	catalog := newFakeCatalog(lister)
	ctx := context.Background()

	tools, err := catalog.Tools(ctx, "token")
	if err != nil {
		t.Fatalf("Tools failed: %v", err)
	}
	if tools == nil {
		t.Error("expected non-nil empty slice")
	}

	catalog.Tools(ctx, "token")
	if lister.fetches != 1 {
		t.Errorf("expected the empty catalog to be cached, got %d fetches", lister.fetches)
	}
}
