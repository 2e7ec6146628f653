// Package suggest holds the suggestion model shared by the fetcher, the search session and the servers.
package suggest

import (
	"context"

	"github.com/bastiangx/ordsok/pkg/query"
)

// Fetcher defines the interface for suggestion lookups
type Fetcher interface {
	// Fetch returns the merged suggestion list for q.
	// Blank queries return an empty list without any network call.
	Fetch(ctx context.Context, q query.Query) (List, error)
}

// FetcherFunc adapts a plain function to Fetcher
type FetcherFunc func(ctx context.Context, q query.Query) (List, error)

// Fetch calls f(ctx, q)
func (f FetcherFunc) Fetch(ctx context.Context, q query.Query) (List, error) {
	return f(ctx, q)
}
