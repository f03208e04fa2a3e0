package engine

import (
	"testing"

	"github.com/keylinehq/keyline/pkg/datasource"
	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/remote"
)

// fixture is a ready-to-edit engine: fresh project, one layer, one
// template.
type fixture struct {
	eng      *Engine
	store    *remote.MemStore
	resolver *datasource.MemResolver
	template *document.Template
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := remote.NewMemStore()
	resolver := datasource.NewMemResolver()
	eng, err := New(Options{Store: store, Resolver: resolver})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng.NewProject("Test Project", 1920, 1080)
	layer, err := eng.AddLayer("Main")
	if err != nil {
		t.Fatalf("AddLayer: %v", err)
	}
	tpl, err := eng.AddTemplate(layer.ID, "Lower Third")
	if err != nil {
		t.Fatalf("AddTemplate: %v", err)
	}
	return &fixture{eng: eng, store: store, resolver: resolver, template: tpl}
}

// addElement is a test shortcut that fails fast.
func (f *fixture) addElement(t *testing.T, typ document.ElementType, parentID string) *document.Element {
	t.Helper()
	el, err := f.eng.AddElement(f.template.ID, typ, parentID)
	if err != nil {
		t.Fatalf("AddElement(%s): %v", typ, err)
	}
	return el
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for missing store")
	}
}

func TestNewProjectStartsDirty(t *testing.T) {
	f := newFixture(t)
	if !f.eng.IsDirty() {
		t.Error("a fresh unsaved project should be dirty")
	}
}

func TestSelectElements(t *testing.T) {
	f := newFixture(t)
	a := f.addElement(t, document.ElementText, "")
	b := f.addElement(t, document.ElementShape, "")

	if err := f.eng.SelectElements([]string{a.ID}, SelectReplace, SelectOptions{}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := f.eng.SelectElements([]string{b.ID}, SelectAdd, SelectOptions{}); err != nil {
		t.Fatalf("select add: %v", err)
	}
	if got := f.eng.Selection(); len(got) != 2 {
		t.Fatalf("selection = %v", got)
	}

	// Toggle removes a present id.
	if err := f.eng.SelectElements([]string{a.ID}, SelectToggle, SelectOptions{}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got := f.eng.Selection(); len(got) != 1 || got[0] != b.ID {
		t.Fatalf("selection after toggle = %v", got)
	}

	if err := f.eng.SelectElements([]string{"nope"}, SelectReplace, SelectOptions{}); err == nil {
		t.Error("selecting a missing element should fail")
	}
}

func TestSelectionSwitchesTemplate(t *testing.T) {
	f := newFixture(t)
	el := f.addElement(t, document.ElementText, "")

	if err := f.eng.SelectElements([]string{el.ID}, SelectReplace, SelectOptions{}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if f.eng.CurrentTemplateID() != f.template.ID {
		t.Errorf("current template = %q, want %q", f.eng.CurrentTemplateID(), f.template.ID)
	}

	f.eng.ClearSelection()
	f.eng.setCurrentTemplateLocal("")
	if err := f.eng.SelectElements([]string{el.ID}, SelectReplace, SelectOptions{SkipTemplateSwitch: true}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if f.eng.CurrentTemplateID() != "" {
		t.Error("SkipTemplateSwitch must not switch the current template")
	}
}

func TestSelectExpandInOutline(t *testing.T) {
	f := newFixture(t)
	group := f.addElement(t, document.ElementGroup, "")
	inner := f.addElement(t, document.ElementGroup, group.ID)
	leaf := f.addElement(t, document.ElementText, inner.ID)

	if err := f.eng.SelectElements([]string{leaf.ID}, SelectReplace, SelectOptions{ExpandInOutline: true}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if !f.eng.OutlineExpanded(group.ID) || !f.eng.OutlineExpanded(inner.ID) {
		t.Error("ancestors of the selection should be expanded in the outline")
	}
}

func TestSelectionNeverPushesHistory(t *testing.T) {
	f := newFixture(t)
	el := f.addElement(t, document.ElementText, "")
	depth := f.eng.UndoDepth()

	_ = f.eng.SelectElements([]string{el.ID}, SelectReplace, SelectOptions{})
	f.eng.SetPlayhead(1000)
	if f.eng.UndoDepth() != depth {
		t.Error("selection and playhead changes must not push history")
	}
}
