package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
)

func TestEncodeFillsOptionalKeys(t *testing.T) {
	el := &document.Element{ID: "el-1", TemplateID: "tpl-1", Type: document.ElementShape}
	rec, err := Encode(KindElement, el)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Root elements serialize with omitempty parents; the batch shape
	// must still carry the key.
	if _, ok := rec["parent_element_id"]; !ok {
		t.Error("parent_element_id missing from encoded element")
	}
	if _, ok := rec["content"]; !ok {
		t.Error("content missing from encoded element")
	}

	tpl := &document.Template{ID: "tpl-1", LayerID: "lay-1"}
	rec, err = Encode(KindTemplate, tpl)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, ok := rec["data_source_id"]; !ok {
		t.Error("data_source_id missing from encoded template")
	}
}

func TestEncodeShapeUniform(t *testing.T) {
	a := &document.Binding{ID: "b-1", ElementID: "el-1", Formatter: "upper"}
	b := &document.Binding{ID: "b-2", ElementID: "el-1"} // no formatter

	ra, _ := Encode(KindBinding, a)
	rb, _ := Encode(KindBinding, b)
	if len(ra) != len(rb) {
		t.Errorf("batch records have ragged shapes: %d vs %d keys", len(ra), len(rb))
	}
}

func TestMemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()

	el := &document.Element{
		ID: "el-1", TemplateID: "tpl-1", Type: document.ElementText,
		Content: document.TextContent{Text: "headline"},
	}
	rec, err := Encode(KindElement, el)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := m.BatchUpsert(ctx, KindElement, []Record{rec}); err != nil {
		t.Fatalf("BatchUpsert: %v", err)
	}

	els, err := m.FetchElements(ctx, "tpl-1")
	if err != nil {
		t.Fatalf("FetchElements: %v", err)
	}
	if len(els) != 1 || els[0].ID != "el-1" {
		t.Fatalf("fetched %+v", els)
	}
	if tc, ok := els[0].Content.(document.TextContent); !ok || tc.Text != "headline" {
		t.Errorf("content union lost: %#v", els[0].Content)
	}

	if err := m.BatchDelete(ctx, KindElement, []string{"el-1", "never-existed"}); err != nil {
		t.Fatalf("BatchDelete: %v", err)
	}
	if m.Count(KindElement) != 0 {
		t.Error("delete should remove the record; absent ids are ignored")
	}

	wantCalls := []string{"upsert:elements", "delete:elements"}
	if len(m.Calls) != 2 || m.Calls[0] != wantCalls[0] || m.Calls[1] != wantCalls[1] {
		t.Errorf("Calls = %v, want %v", m.Calls, wantCalls)
	}
}

func TestMemStoreFailureInjection(t *testing.T) {
	m := NewMemStore()
	m.Fail["upsert:keyframes"] = errors.New(errors.ErrCodeNetwork, "injected")

	err := m.BatchUpsert(context.Background(), KindKeyframe, []Record{{"id": "kf-1"}})
	if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("err = %v, want injected network error", err)
	}
	if m.Has(KindKeyframe, "kf-1") {
		t.Error("failed upsert must not store records")
	}
}

func TestSaveAndDeleteOrders(t *testing.T) {
	if SaveOrder[0] != KindProject || SaveOrder[len(SaveOrder)-1] != KindBinding {
		t.Errorf("save order = %v", SaveOrder)
	}
	if DeleteOrder[0] != KindKeyframe || DeleteOrder[len(DeleteOrder)-1] != KindLayer {
		t.Errorf("delete order = %v", DeleteOrder)
	}
	// The deletion drain must never delete a parent kind before its
	// dependents.
	pos := map[Kind]int{}
	for i, k := range DeleteOrder {
		pos[k] = i
	}
	if pos[KindKeyframe] > pos[KindAnimation] || pos[KindAnimation] > pos[KindElement] {
		t.Error("timeline kinds must drain leaves-first")
	}
	if pos[KindElement] > pos[KindTemplate] || pos[KindTemplate] > pos[KindLayer] {
		t.Error("scene kinds must drain leaves-first")
	}
}

func TestHTTPStoreFetchAndBatch(t *testing.T) {
	var gotUpsert map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/projects/p-1":
			json.NewEncoder(w).Encode(document.Project{ID: "p-1", Name: "Show"})
		case "/templates/tpl-1/elements":
			json.NewEncoder(w).Encode([]*document.Element{{ID: "el-1", TemplateID: "tpl-1"}})
		case "/elements/batch":
			json.NewDecoder(r.Body).Decode(&gotUpsert)
			w.WriteHeader(http.StatusOK)
		case "/elements/batch-delete":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL)
	ctx := context.Background()

	p, err := s.FetchProject(ctx, "p-1")
	if err != nil || p.Name != "Show" {
		t.Fatalf("FetchProject = %+v, %v", p, err)
	}
	if _, err := s.FetchProject(ctx, "missing"); !errors.Is(err, errors.ErrCodeProjectNotFound) {
		t.Errorf("missing project err = %v, want PROJECT_NOT_FOUND", err)
	}

	els, err := s.FetchElements(ctx, "tpl-1")
	if err != nil || len(els) != 1 {
		t.Fatalf("FetchElements = %v, %v", els, err)
	}

	if err := s.BatchUpsert(ctx, KindElement, []Record{{"id": "el-1"}}); err != nil {
		t.Fatalf("BatchUpsert: %v", err)
	}
	if gotUpsert == nil || gotUpsert["records"] == nil {
		t.Error("upsert payload not delivered")
	}

	// Empty batches are elided client-side.
	if err := s.BatchUpsert(ctx, KindElement, nil); err != nil {
		t.Errorf("empty BatchUpsert: %v", err)
	}
	if err := s.BatchDelete(ctx, KindElement, nil); err != nil {
		t.Errorf("empty BatchDelete: %v", err)
	}
}

func TestHTTPStoreTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	s := NewHTTPStore(srv.URL, WithTimeout(20*time.Millisecond))
	_, err := s.FetchLayers(context.Background(), "p-1")
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("err = %v, want TIMEOUT", err)
	}
}
