package engine

import (
	"testing"

	"github.com/keylinehq/keyline/pkg/datasource"
	"github.com/keylinehq/keyline/pkg/document"
)

func (f *fixture) withDataSource(t *testing.T, slug string, records []datasource.Record) {
	t.Helper()
	f.resolver.AddEndpoint("ds-1", "Fixtures", slug, records)
	f.template.DataSourceID = "ds-1"
	f.template.DataSourceConfig = &document.DataSourceConfig{Slug: slug, DisplayField: "name"}
}

func TestHydrationPrecedenceCacheFirst(t *testing.T) {
	f := newFixture(t)
	f.withDataSource(t, "fixtures", []datasource.Record{
		{"name": "Alpha"}, {"name": "Beta"}, {"name": "Gamma"},
		{"name": "Delta"}, {"name": "Epsilon"},
	})
	ctx := t.Context()

	// First switch fetches.
	if err := f.eng.SetCurrentTemplate(ctx, f.template.ID); err != nil {
		t.Fatalf("SetCurrentTemplate: %v", err)
	}
	data := f.eng.TemplateData(f.template.ID)
	if data == nil || len(data.Records) != 5 {
		t.Fatalf("data = %+v", data)
	}
	if data.DataSourceID != "ds-1" || data.DisplayField != "name" {
		t.Errorf("data source metadata = %+v", data)
	}
	if f.resolver.FetchCalls["fixtures"] != 1 {
		t.Fatalf("fetch calls = %d, want 1", f.resolver.FetchCalls["fixtures"])
	}

	// Switching away and back serves the cache entry, no new fetch.
	f.eng.setCurrentTemplateLocal("")
	if err := f.eng.SetCurrentTemplate(ctx, f.template.ID); err != nil {
		t.Fatalf("SetCurrentTemplate: %v", err)
	}
	if f.resolver.FetchCalls["fixtures"] != 1 {
		t.Errorf("fetch calls = %d, cached templates must not refetch", f.resolver.FetchCalls["fixtures"])
	}

	// Invalidation triggers exactly one more fetch.
	f.eng.ClearTemplateData(f.template.ID)
	f.eng.setCurrentTemplateLocal("")
	if err := f.eng.SetCurrentTemplate(ctx, f.template.ID); err != nil {
		t.Fatalf("SetCurrentTemplate: %v", err)
	}
	if f.resolver.FetchCalls["fixtures"] != 2 {
		t.Errorf("fetch calls = %d, want 2 after invalidation", f.resolver.FetchCalls["fixtures"])
	}
}

func TestHydrationWithoutSourceOrResolver(t *testing.T) {
	f := newFixture(t)
	// No data source declared: switching succeeds with no data.
	if err := f.eng.SetCurrentTemplate(t.Context(), f.template.ID); err != nil {
		t.Fatalf("SetCurrentTemplate: %v", err)
	}
	if f.eng.TemplateData(f.template.ID) != nil {
		t.Error("template without a source should have no data")
	}
}

func TestStaleHydrationDiscarded(t *testing.T) {
	f := newFixture(t)
	f.withDataSource(t, "fixtures", []datasource.Record{{"name": "Alpha"}})

	h1, ok := f.eng.StartHydration(f.template.ID)
	if !ok {
		t.Fatal("StartHydration should start")
	}
	h2, ok := f.eng.StartHydration(f.template.ID)
	if !ok {
		t.Fatal("second StartHydration should start")
	}

	// The superseded fetch must not commit.
	if f.eng.CommitHydration(h1, nil, []datasource.Record{{"name": "stale"}}) {
		t.Error("stale hydration committed")
	}
	if f.eng.TemplateData(f.template.ID) != nil {
		t.Fatal("stale hydration installed data")
	}

	if !f.eng.CommitHydration(h2, nil, []datasource.Record{{"name": "fresh"}}) {
		t.Error("current hydration rejected")
	}
	data := f.eng.TemplateData(f.template.ID)
	if data == nil || data.Records[0]["name"] != "fresh" {
		t.Errorf("data = %+v", data)
	}
}

func TestMatchFallbackSource(t *testing.T) {
	f := newFixture(t)
	el := f.addElement(t, document.ElementText, "")
	for _, key := range []string{"team.home.name", "team.home.score", "kickoff", "venue"} {
		if _, err := f.eng.AddBinding(el.ID, key, "content.text", "text"); err != nil {
			t.Fatalf("AddBinding: %v", err)
		}
	}

	// weather resolves 1/4 keys, matches resolves 3/4.
	f.resolver.AddEndpoint("ds-w", "Weather", "weather", []datasource.Record{
		{"kickoff": "20:45"},
	})
	f.resolver.AddEndpoint("ds-m", "Matches", "matches", []datasource.Record{
		{"team": map[string]any{"home": map[string]any{"name": "KCB", "score": 2}}, "kickoff": "20:45"},
	})

	ep, err := f.eng.MatchFallbackSource(t.Context(), f.template.ID)
	if err != nil {
		t.Fatalf("MatchFallbackSource: %v", err)
	}
	if ep == nil || ep.Slug != "matches" {
		t.Fatalf("matched = %+v, want the matches endpoint", ep)
	}

	// The association is persisted on the template and the records cached.
	if f.template.DataSourceID != "ds-m" || f.template.DataSourceConfig == nil || f.template.DataSourceConfig.Slug != "matches" {
		t.Errorf("template association = %q %+v", f.template.DataSourceID, f.template.DataSourceConfig)
	}
	if data := f.eng.TemplateData(f.template.ID); data == nil || len(data.Records) != 1 {
		t.Errorf("data = %+v", data)
	}
	if !f.eng.IsDirty() {
		t.Error("persisting the association must mark dirty")
	}
}

func TestMatchFallbackSourceNoQualifier(t *testing.T) {
	f := newFixture(t)
	el := f.addElement(t, document.ElementText, "")
	_, _ = f.eng.AddBinding(el.ID, "missing.key", "content.text", "text")
	f.resolver.AddEndpoint("ds-1", "Weather", "weather", []datasource.Record{{"temp": 21}})

	ep, err := f.eng.MatchFallbackSource(t.Context(), f.template.ID)
	if err != nil {
		t.Fatalf("MatchFallbackSource: %v", err)
	}
	if ep != nil {
		t.Errorf("matched %+v, want none below the threshold", ep)
	}
}

func TestRecordNavigationClamps(t *testing.T) {
	f := newFixture(t)
	f.withDataSource(t, "fixtures", []datasource.Record{
		{"name": "Alpha"}, {"name": "Beta"}, {"name": "Gamma"},
	})
	if err := f.eng.SetCurrentTemplate(t.Context(), f.template.ID); err != nil {
		t.Fatalf("SetCurrentTemplate: %v", err)
	}

	if err := f.eng.SetCurrentRecordIndex(f.template.ID, 99); err != nil {
		t.Fatalf("SetCurrentRecordIndex: %v", err)
	}
	if got := f.eng.TemplateData(f.template.ID).ActiveRecordIndex; got != 2 {
		t.Errorf("index = %d, want clamp to 2", got)
	}

	_ = f.eng.NextRecord(f.template.ID)
	if got := f.eng.TemplateData(f.template.ID).ActiveRecordIndex; got != 2 {
		t.Errorf("next past end = %d, want 2", got)
	}

	_ = f.eng.PrevRecord(f.template.ID)
	_ = f.eng.PrevRecord(f.template.ID)
	_ = f.eng.PrevRecord(f.template.ID)
	if got := f.eng.TemplateData(f.template.ID).ActiveRecordIndex; got != 0 {
		t.Errorf("prev past start = %d, want 0", got)
	}

	if err := f.eng.NextRecord("unknown"); err == nil {
		t.Error("navigation without cached data should fail")
	}
}

func TestResolveBinding(t *testing.T) {
	f := newFixture(t)
	f.withDataSource(t, "fixtures", []datasource.Record{
		{"team": map[string]any{"name": "KCB"}},
	})
	el := f.addElement(t, document.ElementText, "")
	b, _ := f.eng.AddBinding(el.ID, "team.name", "content.text", "text")

	if err := f.eng.SetCurrentTemplate(t.Context(), f.template.ID); err != nil {
		t.Fatalf("SetCurrentTemplate: %v", err)
	}
	v, ok := f.eng.ResolveBinding(b)
	if !ok || v != "KCB" {
		t.Errorf("ResolveBinding = %v, %v", v, ok)
	}
}

func TestDeleteBinding(t *testing.T) {
	f := newFixture(t)
	el := f.addElement(t, document.ElementText, "")
	b, _ := f.eng.AddBinding(el.ID, "team.name", "content.text", "text")

	if err := f.eng.DeleteBinding(b.ID); err != nil {
		t.Fatalf("DeleteBinding: %v", err)
	}
	if len(f.eng.State().Bindings) != 0 {
		t.Error("binding not removed")
	}
	if len(f.eng.pending.Bindings) != 1 {
		t.Error("binding deletion not queued")
	}
	if err := f.eng.DeleteBinding(b.ID); err == nil {
		t.Error("double delete should fail")
	}
}
