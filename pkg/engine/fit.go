package engine

import (
	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/geometry"
	"github.com/keylinehq/keyline/pkg/measure"
)

// Deferred fit-to-content.
//
// Edits to children of an auto-fit group do not resize the group
// immediately: each edit schedules the parent and Flush recomputes every
// scheduled parent exactly once. Hosts call Flush once per frame or after
// a burst of edits, so a multi-element drag triggers one recomputation
// per container instead of one per moved element.

// scheduleFitFor queues a fit-to-content recomputation for parentID when
// it names an auto-fit group. Scheduling is idempotent per flush.
func (e *Engine) scheduleFitFor(parentID string) {
	if parentID == "" {
		return
	}
	parent := e.state.ElementByID(parentID)
	if parent == nil || parent.Type != document.ElementGroup {
		return
	}
	gc, ok := parent.Content.(document.GroupContent)
	if !ok || !gc.AutoFit {
		return
	}
	e.fitPending[parentID] = true
}

// PendingFitCount returns the number of containers awaiting a fit pass.
func (e *Engine) PendingFitCount() int { return len(e.fitPending) }

// Flush drains the deferred fit queue, resizing each scheduled auto-fit
// group around its children. Containers scheduled during the flush (a
// fitted group may itself sit inside another auto-fit group) are processed
// in the same call. Fit results mark the session dirty but are not
// separate history steps: they are derived from the edit that scheduled
// them.
func (e *Engine) Flush() error {
	for len(e.fitPending) > 0 {
		pending := e.fitPending
		e.fitPending = make(map[string]bool)
		for id := range pending {
			if err := e.fitGroup(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// fitGroup recomputes one auto-fit group's origin and size from its
// children, re-expressing child positions relative to the new origin.
func (e *Engine) fitGroup(groupID string) error {
	group := e.state.ElementByID(groupID)
	if group == nil {
		// Deleted since it was scheduled.
		return nil
	}
	gc, ok := group.Content.(document.GroupContent)
	if !ok || !gc.AutoFit {
		return nil
	}
	children := e.state.Children(group.TemplateID, groupID)
	if len(children) == 0 {
		return nil
	}

	bounds := make([]geometry.ChildBounds, len(children))
	for i, child := range children {
		bounds[i] = geometry.ChildBounds{
			ID:   child.ID,
			Pos:  child.Position,
			Size: e.measuredSize(child),
		}
	}

	result, err := geometry.FitToContent(bounds, gc.Padding)
	if err != nil {
		return err
	}

	group.Position = geometry.ToAbsolute(result.OriginDelta, group.Position)
	group.Size = result.Size
	for _, child := range children {
		if pos, ok := result.Children[child.ID]; ok {
			child.Position = pos
		}
	}
	e.markDirty()
	e.scheduleFitFor(group.ParentElementID)
	return nil
}

// measuredSize returns a child's footprint for fitting: text elements are
// measured through the measurer, everything else uses the stored size.
func (e *Engine) measuredSize(el *document.Element) geometry.Size {
	tc, ok := el.Content.(document.TextContent)
	if !ok {
		return el.Size
	}
	size, err := e.opts.Measurer.Measure(tc.Text, measure.Font{
		Family: tc.FontFamily,
		Size:   tc.FontSize,
		Weight: tc.FontWeight,
		Style:  tc.FontStyle,
	}, tc.WrapWidth)
	if err != nil {
		e.log.Debug("text measurement failed, using stored size", "element", el.ID, "err", err)
		return el.Size
	}
	return size
}
