package engine

import (
	"math"
	"testing"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/geometry"
)

// addAutoFitGroup creates a group with auto-fit on and zero padding so
// expected sizes are easy to state.
func (f *fixture) addAutoFitGroup(t *testing.T) *document.Element {
	t.Helper()
	group := f.addElement(t, document.ElementGroup, "")
	if err := f.eng.UpdateElement(group.ID, func(e *document.Element) {
		e.Content = document.GroupContent{AutoFit: true, Padding: geometry.Padding{}}
	}); err != nil {
		t.Fatalf("UpdateElement: %v", err)
	}
	return group
}

func TestFitToContentResizesGroup(t *testing.T) {
	f := newFixture(t)
	group := f.addAutoFitGroup(t)
	a := f.addElement(t, document.ElementShape, group.ID) // 200x200
	b := f.addElement(t, document.ElementShape, group.ID)

	_ = f.eng.UpdateElement(a.ID, func(e *document.Element) {
		e.Position = geometry.Point{X: 50, Y: 50}
	})
	_ = f.eng.UpdateElement(b.ID, func(e *document.Element) {
		e.Position = geometry.Point{X: 300, Y: 100}
	})

	if f.eng.PendingFitCount() == 0 {
		t.Fatal("edits under an auto-fit group should schedule a fit")
	}
	if err := f.eng.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Union of (50,50,250,250) and (300,100,500,300) is 450x250 at (50,50).
	if group.Size.Width != 450 || group.Size.Height != 250 {
		t.Errorf("group size = %+v, want 450x250", group.Size)
	}
	if group.Position.X != 50 || group.Position.Y != 50 {
		t.Errorf("group origin = %+v, want (50,50)", group.Position)
	}
	if a.Position.X != 0 || a.Position.Y != 0 {
		t.Errorf("child a = %+v, want relative (0,0)", a.Position)
	}
	if b.Position.X != 250 || b.Position.Y != 50 {
		t.Errorf("child b = %+v, want relative (250,50)", b.Position)
	}
}

func TestFitCoalescesPerParent(t *testing.T) {
	f := newFixture(t)
	group := f.addAutoFitGroup(t)
	a := f.addElement(t, document.ElementShape, group.ID)
	b := f.addElement(t, document.ElementShape, group.ID)

	// A burst of edits schedules the parent once.
	for i := 0; i < 5; i++ {
		x := float64(i * 10)
		_ = f.eng.UpdateElement(a.ID, func(e *document.Element) { e.Position.X = x })
		_ = f.eng.UpdateElement(b.ID, func(e *document.Element) { e.Position.X = x + 100 })
	}
	if got := f.eng.PendingFitCount(); got != 1 {
		t.Errorf("pending fits = %d, want 1 (coalesced)", got)
	}
	if err := f.eng.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if f.eng.PendingFitCount() != 0 {
		t.Error("flush should drain the queue")
	}
}

func TestFitSkipsNonAutoFitParents(t *testing.T) {
	f := newFixture(t)
	group := f.addElement(t, document.ElementGroup, "") // auto-fit off
	a := f.addElement(t, document.ElementShape, group.ID)

	_ = f.eng.UpdateElement(a.ID, func(e *document.Element) { e.Position.X = 100 })
	if got := f.eng.PendingFitCount(); got != 0 {
		t.Errorf("pending fits = %d, want 0 for a plain group", got)
	}
}

func TestFitMeasuresText(t *testing.T) {
	f := newFixture(t)
	group := f.addAutoFitGroup(t)
	text := f.addElement(t, document.ElementText, group.ID)
	_ = f.eng.UpdateElement(text.ID, func(e *document.Element) {
		e.Position = geometry.Point{}
		e.Content = document.TextContent{Text: "HELLO", FontSize: 100, FontWeight: "400"}
	})

	if err := f.eng.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// Heuristic: 5 glyphs * 100 * 0.55 wide, 1 line * 100 * 1.3 tall. The
	// glyph-width products are not exactly representable, so compare with
	// a tolerance rather than ==.
	if math.Abs(group.Size.Width-275) > 1e-9 || math.Abs(group.Size.Height-130) > 1e-9 {
		t.Errorf("group size = %+v, want measured 275x130", group.Size)
	}
}

func TestFitCascadesToOuterGroups(t *testing.T) {
	f := newFixture(t)
	outer := f.addAutoFitGroup(t)
	inner := f.addElement(t, document.ElementGroup, outer.ID)
	_ = f.eng.UpdateElement(inner.ID, func(e *document.Element) {
		e.Content = document.GroupContent{AutoFit: true, Padding: geometry.Padding{}}
	})
	leaf := f.addElement(t, document.ElementShape, inner.ID) // 200x200

	_ = f.eng.UpdateElement(leaf.ID, func(e *document.Element) {
		e.Position = geometry.Point{X: 30, Y: 30}
	})
	if err := f.eng.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// The inner fit reschedules the outer group within the same flush.
	if inner.Size.Width != 200 || inner.Size.Height != 200 {
		t.Errorf("inner size = %+v, want 200x200", inner.Size)
	}
	if outer.Size.Width != 200 || outer.Size.Height != 200 {
		t.Errorf("outer size = %+v, want cascaded 200x200", outer.Size)
	}
	if f.eng.PendingFitCount() != 0 {
		t.Error("flush must drain cascaded work too")
	}
}
