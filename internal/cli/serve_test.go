package cli

import (
	"net/http/httptest"
	"testing"

	"github.com/keylinehq/keyline/pkg/cache"
	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/remote"
)

func newTestDevStore(t *testing.T, dir string) *devStore {
	t.Helper()
	backend, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	store, err := newDevStore(t.Context(), backend)
	if err != nil {
		t.Fatalf("newDevStore: %v", err)
	}
	return store
}

// The dev store must satisfy the same contract the hosted API does, so it
// is exercised through the real HTTP store client.
func TestDevStoreRoundTrip(t *testing.T) {
	srv := httptest.NewServer(newTestDevStore(t, t.TempDir()).router())
	defer srv.Close()
	client := remote.NewHTTPStore(srv.URL)
	ctx := t.Context()

	project, err := remote.Encode(remote.KindProject, &document.Project{ID: "p-1", Name: "News"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tpl, err := remote.Encode(remote.KindTemplate, &document.Template{ID: "tpl-1", ProjectID: "p-1", Name: "Strap"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	el, err := remote.Encode(remote.KindElement, &document.Element{ID: "el-1", TemplateID: "tpl-1", Type: document.ElementText})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if err := client.BatchUpsert(ctx, remote.KindProject, []remote.Record{project}); err != nil {
		t.Fatalf("upsert project: %v", err)
	}
	if err := client.BatchUpsert(ctx, remote.KindTemplate, []remote.Record{tpl}); err != nil {
		t.Fatalf("upsert template: %v", err)
	}
	if err := client.BatchUpsert(ctx, remote.KindElement, []remote.Record{el}); err != nil {
		t.Fatalf("upsert element: %v", err)
	}

	got, err := client.FetchProject(ctx, "p-1")
	if err != nil {
		t.Fatalf("FetchProject: %v", err)
	}
	if got.Name != "News" {
		t.Errorf("project = %+v", got)
	}

	templates, err := client.FetchTemplates(ctx, "p-1")
	if err != nil || len(templates) != 1 {
		t.Fatalf("FetchTemplates = %v, %v", templates, err)
	}
	elements, err := client.FetchElements(ctx, "tpl-1")
	if err != nil || len(elements) != 1 {
		t.Fatalf("FetchElements = %v, %v", elements, err)
	}

	// Children are filtered by parent, not returned wholesale.
	elements, err = client.FetchElements(ctx, "tpl-other")
	if err != nil {
		t.Fatalf("FetchElements: %v", err)
	}
	if len(elements) != 0 {
		t.Errorf("foreign template returned %d elements", len(elements))
	}

	if err := client.BatchDelete(ctx, remote.KindElement, []string{"el-1"}); err != nil {
		t.Fatalf("BatchDelete: %v", err)
	}
	elements, err = client.FetchElements(ctx, "tpl-1")
	if err != nil {
		t.Fatalf("FetchElements: %v", err)
	}
	if len(elements) != 0 {
		t.Errorf("element survived delete: %v", elements)
	}
}

func TestDevStoreMissingProject(t *testing.T) {
	srv := httptest.NewServer(newTestDevStore(t, t.TempDir()).router())
	defer srv.Close()
	client := remote.NewHTTPStore(srv.URL)

	if _, err := client.FetchProject(t.Context(), "nope"); err == nil {
		t.Fatal("expected error for missing project")
	}
}

func TestDevStorePersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	ctx := t.Context()

	store := newTestDevStore(t, dir)
	srv := httptest.NewServer(store.router())
	client := remote.NewHTTPStore(srv.URL)

	project, err := remote.Encode(remote.KindProject, &document.Project{ID: "p-1", Name: "Durable"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := client.BatchUpsert(ctx, remote.KindProject, []remote.Record{project}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	srv.Close()

	// A fresh store over the same directory sees the data.
	srv2 := httptest.NewServer(newTestDevStore(t, dir).router())
	defer srv2.Close()
	client2 := remote.NewHTTPStore(srv2.URL)

	got, err := client2.FetchProject(ctx, "p-1")
	if err != nil {
		t.Fatalf("FetchProject after restart: %v", err)
	}
	if got.Name != "Durable" {
		t.Errorf("project = %+v", got)
	}
}

func TestDevStoreUnknownKind(t *testing.T) {
	if _, ok := parseKind("widgets"); ok {
		t.Error("parseKind should reject unknown kinds")
	}
	if kind, ok := parseKind("elements"); !ok || kind != remote.KindElement {
		t.Errorf("parseKind(elements) = %v, %v", kind, ok)
	}
}
