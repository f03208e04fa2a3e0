package datasource

import (
	"context"

	"github.com/keylinehq/keyline/pkg/errors"
)

// MemResolver is an in-memory Resolver for tests and offline demos. It
// records fetch calls so tests can assert hydration precedence (cached
// templates must not refetch).
type MemResolver struct {
	Endpoints []Endpoint
	Records   map[string][]Record // keyed by slug

	// FetchCalls counts FetchRecords invocations per slug.
	FetchCalls map[string]int

	// FailFetch makes FetchRecords fail for the given slugs.
	FailFetch map[string]error
}

// NewMemResolver creates an empty in-memory resolver.
func NewMemResolver() *MemResolver {
	return &MemResolver{
		Records:    make(map[string][]Record),
		FetchCalls: make(map[string]int),
		FailFetch:  make(map[string]error),
	}
}

// AddEndpoint registers an endpoint with its records.
func (m *MemResolver) AddEndpoint(id, name, slug string, records []Record) {
	m.Endpoints = append(m.Endpoints, Endpoint{ID: id, Name: name, Slug: slug})
	m.Records[slug] = records
}

// FetchRecords implements [Resolver].
func (m *MemResolver) FetchRecords(ctx context.Context, slug string) ([]Record, error) {
	m.FetchCalls[slug]++
	if err := m.FailFetch[slug]; err != nil {
		return nil, err
	}
	records, ok := m.Records[slug]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "no endpoint with slug %q", slug)
	}
	return records, nil
}

// ResolveBySlug implements [Resolver].
func (m *MemResolver) ResolveBySlug(ctx context.Context, slug string) (*Endpoint, error) {
	for i := range m.Endpoints {
		if m.Endpoints[i].Slug == slug {
			return &m.Endpoints[i], nil
		}
	}
	return nil, nil
}

// ResolveByID implements [Resolver].
func (m *MemResolver) ResolveByID(ctx context.Context, id string) (*Endpoint, error) {
	for i := range m.Endpoints {
		if m.Endpoints[i].ID == id {
			return &m.Endpoints[i], nil
		}
	}
	return nil, nil
}

// ListEndpoints implements [Resolver].
func (m *MemResolver) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	return append([]Endpoint(nil), m.Endpoints...), nil
}

// Ensure MemResolver implements Resolver.
var _ Resolver = (*MemResolver)(nil)
