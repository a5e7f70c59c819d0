// Model client interface - the abstract boundary for conversational model
// providers.
//
// Each implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific streaming protocol

package llm

import "context"

// Client is the request primitive the agent loop consumes. One call covers one
// model turn; the loop re-invokes it after executing requested tools.
type Client interface {
	// CreateMessage sends the request and blocks until the full response is
	// available.
	CreateMessage(ctx context.Context, req Request) (*Response, error)

	// StreamMessage sends the request and returns an incrementally readable
	// stream of text deltas. The final structured response is available from
	// the stream once it is exhausted.
	StreamMessage(ctx context.Context, req Request) (Stream, error)
}

// Stream delivers a model turn incrementally.
//
// Usage mirrors bufio.Scanner: call Next until it returns false, reading the
// current delta with Text, then retrieve the accumulated response with Final.
type Stream interface {
	// Next advances to the next text delta. It returns false at end of stream
	// or on error.
	Next() bool

	// Text returns the delta made current by Next.
	Text() string

	// Final returns the complete structured response after Next has returned
	// false. It fails if the stream ended with an error.
	Final() (*Response, error)

	// Close releases the underlying connection. Safe to call at any point;
	// closing early abandons the rest of the turn.
	Close() error
}
