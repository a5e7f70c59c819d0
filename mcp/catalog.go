// Tool catalog cache.
//
// The catalog of callable tools changes only when the protocol service's
// deployment changes, not per request and not per tenant, so it is fetched
// once and shared process-wide. The cache is an explicit object rather than
// package state so tests can use isolated instances.

package mcp

import (
	"context"
	"sync"

	"github.com/mkondo/datalyst/llm"
)

// Lister fetches tool definitions from the protocol service.
type Lister interface {
	ListTools(ctx context.Context) ([]llm.ToolDefinition, error)
}

// Catalog caches the translated tool catalog. Safe for concurrent use: the
// mutex is held across the fetch, so simultaneous first callers wait for a
// single fetch instead of racing.
type Catalog struct {
	mu        sync.Mutex
	tools     []llm.ToolDefinition
	newLister func(token string) Lister
}

// NewCatalog creates a catalog that fetches through clients built by
// newLister. The token of whichever call triggers the fetch is used; the
// cached result is returned to all callers regardless of token.
func NewCatalog(newLister func(token string) Lister) *Catalog {
	return &Catalog{newLister: newLister}
}

// DefaultCatalog creates a catalog backed by real protocol clients for the
// given endpoint.
func DefaultCatalog(baseURL string) *Catalog {
	return NewCatalog(func(token string) Lister {
		return NewClient(baseURL, token)
	})
}

// Tools returns the cached tool definitions, fetching them on first use.
// A fetch failure propagates without populating the cache, so a later call
// retries.
func (c *Catalog) Tools(ctx context.Context, token string) ([]llm.ToolDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tools != nil {
		return c.tools, nil
	}

	tools, err := c.newLister(token).ListTools(ctx)
	if err != nil {
		return nil, err
	}
	if tools == nil {
		tools = []llm.ToolDefinition{}
	}

	c.tools = tools
	return c.tools, nil
}

// Invalidate clears the cache unconditionally; the next Tools call re-fetches.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = nil
}
