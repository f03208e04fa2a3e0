package datasource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/keylinehq/keyline/pkg/errors"
)

func TestLookup(t *testing.T) {
	rec := Record{
		"title": "Match Day",
		"team": map[string]any{
			"home": map[string]any{"name": "Rovers", "score": 2.0},
		},
	}

	cases := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"title", "Match Day", true},
		{"team.home.name", "Rovers", true},
		{"team.home.score", 2.0, true},
		{"team.away.name", nil, false},
		{"title.deeper", nil, false},
		{"", nil, false},
	}
	for _, tc := range cases {
		got, ok := Lookup(rec, tc.path)
		if ok != tc.wantOK {
			t.Errorf("Lookup(%q) ok = %v, want %v", tc.path, ok, tc.wantOK)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("Lookup(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestResolutionRatio(t *testing.T) {
	records := []Record{
		{"name": "a", "score": 1.0, "meta": map[string]any{"rank": 3.0}},
	}
	keys := []string{"name", "score", "meta.rank", "missing"}
	if got := ResolutionRatio(records, keys); got != 0.75 {
		t.Errorf("ratio = %v, want 0.75", got)
	}
	if got := ResolutionRatio(nil, keys); got != 0 {
		t.Errorf("ratio with no records = %v, want 0", got)
	}
	if got := ResolutionRatio(records, nil); got != 0 {
		t.Errorf("ratio with no keys = %v, want 0", got)
	}
}

func TestMemResolver(t *testing.T) {
	ctx := context.Background()
	m := NewMemResolver()
	m.AddEndpoint("ds-1", "Scores", "scores", []Record{{"home": 1.0}})

	ep, err := m.ResolveBySlug(ctx, "scores")
	if err != nil || ep == nil || ep.ID != "ds-1" {
		t.Fatalf("ResolveBySlug = %+v, %v", ep, err)
	}
	if ep, _ := m.ResolveBySlug(ctx, "absent"); ep != nil {
		t.Error("unknown slug should resolve to nil")
	}

	recs, err := m.FetchRecords(ctx, "scores")
	if err != nil || len(recs) != 1 {
		t.Fatalf("FetchRecords = %v, %v", recs, err)
	}
	if m.FetchCalls["scores"] != 1 {
		t.Errorf("FetchCalls = %d, want 1", m.FetchCalls["scores"])
	}

	if _, err := m.FetchRecords(ctx, "absent"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown slug fetch error = %v, want NOT_FOUND", err)
	}
}

func TestHTTPResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		switch r.URL.Path {
		case "/endpoints":
			json.NewEncoder(w).Encode([]Endpoint{{ID: "ds-1", Name: "Scores", Slug: "scores"}})
		case "/endpoints/scores/records":
			json.NewEncoder(w).Encode([]Record{{"home": 1.0}, {"home": 2.0}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL, WithToken("tok-1"))
	ctx := context.Background()

	ep, err := r.ResolveBySlug(ctx, "scores")
	if err != nil || ep == nil || ep.ID != "ds-1" {
		t.Fatalf("ResolveBySlug = %+v, %v", ep, err)
	}
	recs, err := r.FetchRecords(ctx, "scores")
	if err != nil || len(recs) != 2 {
		t.Fatalf("FetchRecords = %v, %v", recs, err)
	}
	if _, err := r.FetchRecords(ctx, "absent"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing endpoint error = %v, want NOT_FOUND", err)
	}
}

func TestHTTPResolverTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	r := NewHTTPResolver(srv.URL, WithTimeout(20*time.Millisecond))
	_, err := r.FetchRecords(context.Background(), "slow")
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("err = %v, want TIMEOUT", err)
	}
}

func TestHTTPResolverRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode([]Record{{"home": 1.0}})
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL)
	recs, err := r.FetchRecords(context.Background(), "scores")
	if err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}
	if len(recs) != 1 || calls != 3 {
		t.Errorf("records = %d, calls = %d, want 1 record after 3 calls", len(recs), calls)
	}
}

func TestHTTPResolverDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL)
	if _, err := r.FetchRecords(context.Background(), "scores"); err == nil {
		t.Fatal("expected error for 403")
	}
	if calls != 1 {
		t.Errorf("calls = %d, client errors must not retry", calls)
	}
}
