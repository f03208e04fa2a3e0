package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/keylinehq/keyline/pkg/errors"
	"github.com/keylinehq/keyline/pkg/httputil"
	"github.com/keylinehq/keyline/pkg/observability"
)

// DefaultTimeout bounds a single data API call.
const DefaultTimeout = 10 * time.Second

// Retry policy for data API GETs. Fetches are idempotent, so transient
// failures (5xx, rate limits, connection resets) are retried with
// exponential backoff before surfacing.
const (
	retryAttempts  = 3
	retryBaseDelay = 500 * time.Millisecond
)

// HTTPResolver resolves endpoints against a JSON data API:
//
//	GET {base}/endpoints                 -> [{id,name,slug}, ...]
//	GET {base}/endpoints/{slug}/records  -> [{...}, ...]
//
// All calls carry a per-call timeout and an optional bearer credential.
// Safe for concurrent use.
type HTTPResolver struct {
	base    string
	token   string
	timeout time.Duration
	client  *http.Client
}

// HTTPOption configures an HTTPResolver.
type HTTPOption func(*HTTPResolver)

// WithToken sets the bearer credential sent on every request.
func WithToken(token string) HTTPOption {
	return func(r *HTTPResolver) { r.token = token }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(r *HTTPResolver) { r.timeout = d }
}

// WithHTTPClient substitutes the underlying HTTP client (tests).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPResolver) { r.client = c }
}

// NewHTTPResolver creates a resolver for the data API at base.
func NewHTTPResolver(base string, opts ...HTTPOption) *HTTPResolver {
	r := &HTTPResolver{
		base:    base,
		timeout: DefaultTimeout,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchRecords implements [Resolver].
func (r *HTTPResolver) FetchRecords(ctx context.Context, slug string) ([]Record, error) {
	var records []Record
	path := fmt.Sprintf("/endpoints/%s/records", url.PathEscape(slug))
	if err := r.getJSON(ctx, path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ResolveBySlug implements [Resolver].
func (r *HTTPResolver) ResolveBySlug(ctx context.Context, slug string) (*Endpoint, error) {
	eps, err := r.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	for i := range eps {
		if eps[i].Slug == slug {
			return &eps[i], nil
		}
	}
	return nil, nil
}

// ResolveByID implements [Resolver].
func (r *HTTPResolver) ResolveByID(ctx context.Context, id string) (*Endpoint, error) {
	eps, err := r.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	for i := range eps {
		if eps[i].ID == id {
			return &eps[i], nil
		}
	}
	return nil, nil
}

// ListEndpoints implements [Resolver].
func (r *HTTPResolver) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	var eps []Endpoint
	if err := r.getJSON(ctx, "/endpoints", &eps); err != nil {
		return nil, err
	}
	return eps, nil
}

// getJSON performs a GET with timeout and decodes the JSON response into
// v, retrying transient failures.
func (r *HTTPResolver) getJSON(ctx context.Context, path string, v any) error {
	err := httputil.Retry(ctx, retryAttempts, retryBaseDelay, func() error {
		return r.getJSONOnce(ctx, path, v)
	})
	var rerr *httputil.RetryableError
	if errors.As(err, &rerr) {
		return rerr.Err
	}
	return err
}

// getJSONOnce performs one attempt under the per-call timeout. Transient
// failures come back wrapped in httputil.RetryableError.
func (r *HTTPResolver) getJSONOnce(ctx context.Context, path string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+path, nil)
	if err != nil {
		return err
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	observability.HTTP().OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	resp, err := r.client.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrap(errors.ErrCodeTimeout, err, "data API call to %s exceeded %s", path, r.timeout)
		}
		return &httputil.RetryableError{
			Err: errors.Wrap(errors.ErrCodeNetwork, err, "data API call to %s failed", path),
		}
	}
	defer resp.Body.Close()
	observability.HTTP().OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "data endpoint %s not found", path)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &httputil.RetryableError{
			Err: errors.New(errors.ErrCodeNetwork, "data API call to %s returned %d", path, resp.StatusCode),
		}
	case resp.StatusCode >= 400:
		return errors.New(errors.ErrCodeNetwork, "data API call to %s returned %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// Ensure HTTPResolver implements Resolver.
var _ Resolver = (*HTTPResolver)(nil)
