// Package datasource defines the external data endpoint contract consumed
// by the engine's data binding cache: listing available endpoints,
// resolving them by slug or id, and fetching their tabular records.
//
// The engine only depends on the [Resolver] interface. [HTTPResolver]
// talks to a JSON data API; [MemResolver] is the in-memory fake used by
// tests and offline demos.
package datasource

import (
	"context"
	"strings"
)

// Endpoint identifies one external data endpoint.
type Endpoint struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Record is one row of external tabular data. Values may be nested maps;
// binding keys address into them with dotted paths (see [Lookup]).
type Record map[string]any

// Resolver provides access to external data endpoints.
type Resolver interface {
	// FetchRecords returns the rows of the endpoint with the given slug.
	FetchRecords(ctx context.Context, slug string) ([]Record, error)

	// ResolveBySlug returns endpoint metadata for a slug, or nil if the
	// slug is unknown.
	ResolveBySlug(ctx context.Context, slug string) (*Endpoint, error)

	// ResolveByID returns endpoint metadata for an id, or nil if unknown.
	ResolveByID(ctx context.Context, id string) (*Endpoint, error)

	// ListEndpoints enumerates all available endpoints.
	ListEndpoints(ctx context.Context) ([]Endpoint, error)
}

// Lookup resolves a dotted path (e.g. "team.home.score") inside a record.
// The second return is false when any path segment is missing or a
// non-map value is indexed into.
func Lookup(rec Record, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = map[string]any(rec)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ResolutionRatio reports the fraction of binding keys that resolve against
// a set of records. Used by the engine's fallback matching to score
// candidate endpoints for templates with bindings but no configured source.
func ResolutionRatio(records []Record, keys []string) float64 {
	if len(keys) == 0 || len(records) == 0 {
		return 0
	}
	probe := records[0]
	resolved := 0
	for _, k := range keys {
		if _, ok := Lookup(probe, k); ok {
			resolved++
		}
	}
	return float64(resolved) / float64(len(keys))
}
