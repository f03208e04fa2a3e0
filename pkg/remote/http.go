package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
	"github.com/keylinehq/keyline/pkg/observability"
)

// DefaultTimeout bounds a single remote store call. Saves drain several
// batches sequentially, each under its own budget.
const DefaultTimeout = 15 * time.Second

// HTTPStore talks to the Keyline entity API:
//
//	GET  {base}/projects/{id}
//	GET  {base}/projects/{id}/layers
//	GET  {base}/projects/{id}/templates
//	GET  {base}/templates/{id}/{elements|animations|keyframes|bindings}
//	POST {base}/{kind}/batch          {"records": [...]}
//	POST {base}/{kind}/batch-delete   {"ids": [...]}
//
// Every call runs under a timeout that aborts the request when exceeded.
// Safe for concurrent use.
type HTTPStore struct {
	base    string
	token   string
	timeout time.Duration
	client  *http.Client
}

// HTTPOption configures an HTTPStore.
type HTTPOption func(*HTTPStore)

// WithToken sets the bearer credential sent on every request.
func WithToken(token string) HTTPOption {
	return func(s *HTTPStore) { s.token = token }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPStore) { s.timeout = d }
}

// WithHTTPClient substitutes the underlying HTTP client (tests).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) { s.client = c }
}

// NewHTTPStore creates a store client for the entity API at base.
func NewHTTPStore(base string, opts ...HTTPOption) *HTTPStore {
	s := &HTTPStore{
		base:    base,
		timeout: DefaultTimeout,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchProject implements [Store].
func (s *HTTPStore) FetchProject(ctx context.Context, projectID string) (*document.Project, error) {
	var p document.Project
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%s", url.PathEscape(projectID)), nil, &p)
	if err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			return nil, errors.New(errors.ErrCodeProjectNotFound, "project %s not found", projectID)
		}
		return nil, err
	}
	return &p, nil
}

// FetchLayers implements [Store].
func (s *HTTPStore) FetchLayers(ctx context.Context, projectID string) ([]*document.Layer, error) {
	var out []*document.Layer
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%s/layers", url.PathEscape(projectID)), nil, &out)
	return out, err
}

// FetchTemplates implements [Store].
func (s *HTTPStore) FetchTemplates(ctx context.Context, projectID string) ([]*document.Template, error) {
	var out []*document.Template
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%s/templates", url.PathEscape(projectID)), nil, &out)
	return out, err
}

// FetchElements implements [Store].
func (s *HTTPStore) FetchElements(ctx context.Context, templateID string) ([]*document.Element, error) {
	var out []*document.Element
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/templates/%s/elements", url.PathEscape(templateID)), nil, &out)
	return out, err
}

// FetchAnimations implements [Store].
func (s *HTTPStore) FetchAnimations(ctx context.Context, templateID string) ([]*document.Animation, error) {
	var out []*document.Animation
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/templates/%s/animations", url.PathEscape(templateID)), nil, &out)
	return out, err
}

// FetchKeyframes implements [Store].
func (s *HTTPStore) FetchKeyframes(ctx context.Context, templateID string) ([]*document.Keyframe, error) {
	var out []*document.Keyframe
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/templates/%s/keyframes", url.PathEscape(templateID)), nil, &out)
	return out, err
}

// FetchBindings implements [Store].
func (s *HTTPStore) FetchBindings(ctx context.Context, templateID string) ([]*document.Binding, error) {
	var out []*document.Binding
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/templates/%s/bindings", url.PathEscape(templateID)), nil, &out)
	return out, err
}

// BatchUpsert implements [Store].
func (s *HTTPStore) BatchUpsert(ctx context.Context, kind Kind, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	body := map[string]any{"records": records}
	return s.do(ctx, http.MethodPost, fmt.Sprintf("/%s/batch", kind), body, nil)
}

// BatchDelete implements [Store].
func (s *HTTPStore) BatchDelete(ctx context.Context, kind Kind, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"ids": ids}
	return s.do(ctx, http.MethodPost, fmt.Sprintf("/%s/batch-delete", kind), body, nil)
}

// do performs one API call under the per-call timeout, encoding body as
// JSON when non-nil and decoding the response into out when non-nil.
func (s *HTTPStore) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	start := time.Now()
	observability.HTTP().OnRequest(ctx, method, req.URL.Host, req.URL.Path)
	resp, err := s.client.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, method, req.URL.Host, req.URL.Path, err)
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrap(errors.ErrCodeTimeout, err, "%s %s exceeded %s", method, path, s.timeout)
		}
		return errors.Wrap(errors.ErrCodeNetwork, err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()
	observability.HTTP().OnResponse(ctx, method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "%s %s returned 404", method, path)
	case resp.StatusCode >= 400:
		return errors.New(errors.ErrCodeNetwork, "%s %s returned %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Ensure HTTPStore implements Store.
var _ Store = (*HTTPStore)(nil)
