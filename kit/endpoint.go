// Package kit carries transport-neutral plumbing: request-scoped context
// values and the Endpoint shape shared by the HTTP and MCP surfaces.
package kit

import "context"

// Endpoint is a transport-agnostic operation.
type Endpoint func(ctx context.Context, req any) (any, error)
