package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
	"github.com/keylinehq/keyline/pkg/geometry"
)

// =============================================================================
// Element lifecycle
// =============================================================================

// AddElement creates a new element of the given type under parentID
// (empty for a template root) with the per-type defaults applied.
//
// The z-index is pinned per type: video elements sit at 0 (background),
// tickers at 500 (overlay), and everything else lands above its siblings
// at max sibling z + 10. Ties between pinned elements keep insertion
// order via sort order; they are not renumbered.
func (e *Engine) AddElement(templateID string, typ document.ElementType, parentID string) (*document.Element, error) {
	if e.state.TemplateByID(templateID) == nil {
		return nil, errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", templateID)
	}
	if parentID != "" {
		parent := e.state.ElementByID(parentID)
		if parent == nil {
			return nil, errors.New(errors.ErrCodeElementNotFound, "parent element %s not found", parentID)
		}
		if parent.TemplateID != templateID {
			return nil, errors.New(errors.ErrCodeValidation, "parent %s belongs to another template", parentID)
		}
	}

	defaults, err := document.DefaultsFor(typ)
	if err != nil {
		return nil, err
	}

	siblings := e.state.Children(templateID, parentID)
	el := &document.Element{
		ID:              uuid.NewString(),
		TemplateID:      templateID,
		Name:            e.nextElementName(templateID, defaults.Name),
		Type:            typ,
		ParentElementID: parentID,
		ZIndex:          pinnedZIndex(typ, siblings),
		SortOrder:       nextSortOrder(siblings),
		Size:            defaults.Size,
		Scale:           geometry.Point{X: 1, Y: 1},
		Content:         defaults.Content,
		Styles:          defaults.Styles,
	}

	e.pushHistory("Add " + el.Name)
	e.state.Elements = append(e.state.Elements, el)
	e.markDirty()
	e.scheduleFitFor(parentID)
	return el, nil
}

// UpdateElement applies an arbitrary mutation to one element through fn.
// Structural bookkeeping (history, dirty flag, deferred fit) is handled
// here so hosts never mutate elements directly.
func (e *Engine) UpdateElement(id string, fn func(*document.Element)) error {
	el := e.state.ElementByID(id)
	if el == nil {
		return errors.New(errors.ErrCodeElementNotFound, "element %s not found", id)
	}
	e.pushHistory("Edit " + el.Name)
	fn(el)
	e.markDirty()
	e.scheduleFitFor(el.ParentElementID)
	return nil
}

// DuplicateElements deep-copies the subtrees rooted at ids, including
// their animations, keyframes, and bindings, all with fresh ids. Copied
// roots are offset so they do not land on the originals. Ids nested under
// another requested id are skipped: the subtree copy already includes
// them.
func (e *Engine) DuplicateElements(ids []string) ([]*document.Element, error) {
	roots, err := e.subtreeRoots(ids)
	if err != nil {
		return nil, err
	}

	e.pushHistory("Duplicate elements")
	var created []*document.Element
	for _, root := range roots {
		cp := e.copySubtree(root, root.ParentElementID, root.TemplateID)
		cp.Position.X += duplicateOffset
		cp.Position.Y += duplicateOffset
		cp.Name = root.Name + " copy"
		created = append(created, cp)
	}
	e.markDirty()
	for _, cp := range created {
		e.scheduleFitFor(cp.ParentElementID)
	}
	return created, nil
}

// copySubtree clones one element and its descendants under newParentID in
// templateID, remapping every id and carrying animations, keyframes, and
// bindings along. Returns the copied root.
func (e *Engine) copySubtree(src *document.Element, newParentID, templateID string) *document.Element {
	cp := src.Clone()
	cp.ID = uuid.NewString()
	cp.ParentElementID = newParentID
	cp.TemplateID = templateID
	e.state.Elements = append(e.state.Elements, cp)

	for _, a := range e.state.AnimationsForElement(src.ID) {
		ac := a.Clone()
		ac.ID = uuid.NewString()
		ac.TemplateID = templateID
		ac.ElementID = cp.ID
		e.state.Animations = append(e.state.Animations, ac)
		for _, k := range e.state.KeyframesForAnimation(a.ID) {
			kc := k.Clone()
			kc.ID = uuid.NewString()
			kc.TemplateID = templateID
			kc.AnimationID = ac.ID
			e.state.Keyframes = append(e.state.Keyframes, kc)
		}
	}
	for _, b := range e.state.BindingsForElement(src.ID) {
		bc := b.Clone()
		bc.ID = uuid.NewString()
		bc.TemplateID = templateID
		bc.ElementID = cp.ID
		e.state.Bindings = append(e.state.Bindings, bc)
	}

	for _, child := range e.state.Children(src.TemplateID, src.ID) {
		e.copySubtree(child, cp.ID, templateID)
	}
	return cp
}

// DeleteElements removes the subtrees rooted at ids together with every
// animation, keyframe, and binding referencing them. Every removed id is
// enqueued for remote deletion exactly once.
func (e *Engine) DeleteElements(ids []string) error {
	roots, err := e.subtreeRoots(ids)
	if err != nil {
		return err
	}

	removed := make(map[string]bool)
	for _, root := range roots {
		removed[root.ID] = true
		for _, d := range e.state.Descendants(root.ID) {
			removed[d.ID] = true
		}
	}

	e.pushHistory("Delete elements")
	e.removeElements(removed, true)
	e.dropFromSelection(removed)
	e.markDirty()
	for _, root := range roots {
		if !removed[root.ParentElementID] {
			e.scheduleFitFor(root.ParentElementID)
		}
	}
	return nil
}

// removeElements drops the given element ids and all entities referencing
// them from local state. When track is true, every removed id is enqueued
// for remote deletion.
func (e *Engine) removeElements(removed map[string]bool, track bool) {
	removedAnims := make(map[string]bool)
	for _, a := range e.state.Animations {
		if removed[a.ElementID] {
			removedAnims[a.ID] = true
		}
	}
	// Keyframe ids must be captured before the filter below drops them.
	var removedKeyframes []string
	for _, k := range e.state.Keyframes {
		if removedAnims[k.AnimationID] {
			removedKeyframes = append(removedKeyframes, k.ID)
		}
	}

	e.state.Elements = filterOut(e.state.Elements, func(el *document.Element) bool { return removed[el.ID] })
	e.state.Animations = filterOut(e.state.Animations, func(a *document.Animation) bool { return removedAnims[a.ID] })
	e.state.Keyframes = filterOut(e.state.Keyframes, func(k *document.Keyframe) bool { return removedAnims[k.AnimationID] })

	var removedBindings []string
	e.state.Bindings = filterOut(e.state.Bindings, func(b *document.Binding) bool {
		if removed[b.ElementID] {
			removedBindings = append(removedBindings, b.ID)
			return true
		}
		return false
	})

	if !track {
		return
	}
	for id := range removed {
		e.pending.Elements = enqueue(e.pending.Elements, id)
	}
	for id := range removedAnims {
		e.pending.Animations = enqueue(e.pending.Animations, id)
	}
	for _, id := range removedKeyframes {
		e.pending.Keyframes = enqueue(e.pending.Keyframes, id)
	}
	for _, id := range removedBindings {
		e.pending.Bindings = enqueue(e.pending.Bindings, id)
	}
}

// subtreeRoots resolves ids to elements and drops any id nested under
// another requested id, so subtree operations touch each node once.
func (e *Engine) subtreeRoots(ids []string) ([]*document.Element, error) {
	if len(ids) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "no elements given")
	}
	requested := make(map[string]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}

	var roots []*document.Element
	for _, id := range ids {
		el := e.state.ElementByID(id)
		if el == nil {
			return nil, errors.New(errors.ErrCodeElementNotFound, "element %s not found", id)
		}
		nested := false
		for p := el.ParentElementID; p != ""; {
			if requested[p] {
				nested = true
				break
			}
			parent := e.state.ElementByID(p)
			if parent == nil {
				break
			}
			p = parent.ParentElementID
		}
		if !nested {
			roots = append(roots, el)
		}
	}
	return roots, nil
}

// =============================================================================
// Grouping
// =============================================================================

// GroupElements wraps two or more sibling elements in a new group element
// sized to their union bounds. Member positions are converted into the
// group's space and their position keyframes are rewritten into the same
// relative frame, so grouping never moves anything visually.
func (e *Engine) GroupElements(ids []string) (*document.Element, error) {
	if len(ids) < 2 {
		return nil, errors.New(errors.ErrCodeValidation, "grouping needs at least two elements")
	}
	members := make([]*document.Element, 0, len(ids))
	for _, id := range ids {
		el := e.state.ElementByID(id)
		if el == nil {
			return nil, errors.New(errors.ErrCodeElementNotFound, "element %s not found", id)
		}
		members = append(members, el)
	}
	first := members[0]
	for _, el := range members[1:] {
		if el.TemplateID != first.TemplateID || el.ParentElementID != first.ParentElementID {
			return nil, errors.New(errors.ErrCodeValidation, "cannot group elements with different parents")
		}
	}

	rects := make([]geometry.Rect, len(members))
	for i, el := range members {
		rects[i] = el.Bounds()
	}
	union, err := geometry.UnionBounds(rects)
	if err != nil {
		return nil, err
	}

	e.pushHistory("Group elements")

	origin := geometry.Point{X: union.MinX, Y: union.MinY}
	maxZ := members[0].ZIndex
	minSort := members[0].SortOrder
	for _, el := range members[1:] {
		if el.ZIndex > maxZ {
			maxZ = el.ZIndex
		}
		if el.SortOrder < minSort {
			minSort = el.SortOrder
		}
	}

	group := &document.Element{
		ID:              uuid.NewString(),
		TemplateID:      first.TemplateID,
		Name:            e.nextElementName(first.TemplateID, "Group"),
		Type:            document.ElementGroup,
		ParentElementID: first.ParentElementID,
		ZIndex:          maxZ,
		SortOrder:       minSort,
		Position:        origin,
		Size:            geometry.Size{Width: union.Width(), Height: union.Height()},
		Scale:           geometry.Point{X: 1, Y: 1},
		Content:         document.GroupContent{Padding: geometry.DefaultPadding},
		Styles:          map[string]string{},
	}
	e.state.Elements = append(e.state.Elements, group)

	for _, el := range members {
		el.ParentElementID = group.ID
		el.Position = geometry.ToRelative(el.Position, origin)
		e.shiftPositionKeyframes(el.ID, -origin.X, -origin.Y)
	}
	e.markDirty()
	return group, nil
}

// UngroupElement dissolves a group, re-parenting its children to the
// group's parent and converting their positions and position keyframes
// back to that space. Exact inverse of GroupElements.
func (e *Engine) UngroupElement(groupID string) error {
	group := e.state.ElementByID(groupID)
	if group == nil {
		return errors.New(errors.ErrCodeElementNotFound, "element %s not found", groupID)
	}
	if group.Type != document.ElementGroup {
		return errors.New(errors.ErrCodeValidation, "element %s is a %s, not a group", groupID, group.Type)
	}

	e.pushHistory("Ungroup " + group.Name)

	origin := group.Position
	for _, child := range e.state.Children(group.TemplateID, group.ID) {
		child.ParentElementID = group.ParentElementID
		child.Position = geometry.ToAbsolute(child.Position, origin)
		e.shiftPositionKeyframes(child.ID, origin.X, origin.Y)
	}

	e.removeElements(map[string]bool{group.ID: true}, true)
	e.dropFromSelection(map[string]bool{group.ID: true})
	e.markDirty()
	return nil
}

// shiftPositionKeyframes offsets the position properties of every keyframe
// animating an element, keeping keyframed motion aligned after a
// coordinate space change.
func (e *Engine) shiftPositionKeyframes(elementID string, dx, dy float64) {
	for _, a := range e.state.AnimationsForElement(elementID) {
		for _, k := range e.state.KeyframesForAnimation(a.ID) {
			if v, ok := k.Properties[document.PropPositionX]; ok {
				k.Properties[document.PropPositionX] = v + dx
			}
			if v, ok := k.Properties[document.PropPositionY]; ok {
				k.Properties[document.PropPositionY] = v + dy
			}
		}
	}
}

// =============================================================================
// Moving and reordering
// =============================================================================

// MoveElementsToTemplate moves the subtrees rooted at ids into another
// template. Roots whose parent did not move become template roots with
// their position converted to absolute canvas space, so no element ever
// points at a parent in a different template.
func (e *Engine) MoveElementsToTemplate(ids []string, templateID string) error {
	if e.state.TemplateByID(templateID) == nil {
		return errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", templateID)
	}
	roots, err := e.subtreeRoots(ids)
	if err != nil {
		return err
	}

	e.pushHistory("Move elements")
	moved := make(map[string]bool)
	for _, root := range roots {
		if root.ParentElementID != "" {
			root.Position = e.absolutePosition(root)
			root.ParentElementID = ""
		}
		root.TemplateID = templateID
		moved[root.ID] = true
		for _, d := range e.state.Descendants(root.ID) {
			d.TemplateID = templateID
			moved[d.ID] = true
		}
	}
	e.retargetTimelineEntities(moved, templateID)
	e.markDirty()
	return nil
}

// retargetTimelineEntities updates the denormalized template id on the
// animations, keyframes, and bindings of moved elements.
func (e *Engine) retargetTimelineEntities(elements map[string]bool, templateID string) {
	movedAnims := make(map[string]bool)
	for _, a := range e.state.Animations {
		if elements[a.ElementID] {
			a.TemplateID = templateID
			movedAnims[a.ID] = true
		}
	}
	for _, k := range e.state.Keyframes {
		if movedAnims[k.AnimationID] {
			k.TemplateID = templateID
		}
	}
	for _, b := range e.state.Bindings {
		if elements[b.ElementID] {
			b.TemplateID = templateID
		}
	}
}

// ReorderElement moves an element to index within newParentID's children
// (empty for template roots), re-parenting with coordinate conversion when
// the parent changes, and densely re-indexes the destination siblings'
// sort order and z-index in steps of 10. Pinned video/ticker z-indexes are
// left untouched.
func (e *Engine) ReorderElement(id, newParentID string, index int) error {
	el := e.state.ElementByID(id)
	if el == nil {
		return errors.New(errors.ErrCodeElementNotFound, "element %s not found", id)
	}
	if newParentID != "" {
		parent := e.state.ElementByID(newParentID)
		if parent == nil {
			return errors.New(errors.ErrCodeElementNotFound, "parent element %s not found", newParentID)
		}
		if parent.TemplateID != el.TemplateID {
			return errors.New(errors.ErrCodeValidation, "parent %s belongs to another template", newParentID)
		}
		if newParentID == id {
			return errors.New(errors.ErrCodeValidation, "element cannot be its own parent")
		}
		for _, d := range e.state.Descendants(id) {
			if d.ID == newParentID {
				return errors.New(errors.ErrCodeValidation, "cannot re-parent an element under its own descendant")
			}
		}
	}

	e.pushHistory("Reorder " + el.Name)

	oldParentID := el.ParentElementID
	if newParentID != oldParentID {
		abs := e.absolutePosition(el)
		el.Position = geometry.ToRelative(abs, e.absoluteOrigin(newParentID))
		el.ParentElementID = newParentID
	}

	siblings := e.state.Children(el.TemplateID, newParentID)
	siblings = filterOut(siblings, func(s *document.Element) bool { return s.ID == id })
	if index < 0 {
		index = 0
	}
	if index > len(siblings) {
		index = len(siblings)
	}
	siblings = slices.Insert(siblings, index, el)
	for i, s := range siblings {
		s.SortOrder = i * zIndexStep
		if s.Type != document.ElementVideo && s.Type != document.ElementTicker {
			s.ZIndex = i * zIndexStep
		}
	}

	e.markDirty()
	e.scheduleFitFor(oldParentID)
	e.scheduleFitFor(newParentID)
	return nil
}

// absolutePosition resolves an element's position to absolute canvas
// coordinates by walking its parent chain.
func (e *Engine) absolutePosition(el *document.Element) geometry.Point {
	return geometry.ToAbsolute(el.Position, e.absoluteOrigin(el.ParentElementID))
}

// absoluteOrigin returns the absolute canvas origin of a parent element's
// coordinate space (the canvas origin itself for empty parentID).
func (e *Engine) absoluteOrigin(parentID string) geometry.Point {
	var origin geometry.Point
	for parentID != "" {
		parent := e.state.ElementByID(parentID)
		if parent == nil {
			break
		}
		origin.X += parent.Position.X
		origin.Y += parent.Position.Y
		parentID = parent.ParentElementID
	}
	return origin
}

// =============================================================================
// Z-order shortcuts
// =============================================================================

// BringToFront raises an element above all its siblings.
func (e *Engine) BringToFront(id string) error {
	return e.adjustZ(id, "Bring to front", func(el *document.Element, siblings []*document.Element) {
		max := el.ZIndex
		for _, s := range siblings {
			if s.ZIndex > max {
				max = s.ZIndex
			}
		}
		el.ZIndex = max + zIndexStep
	})
}

// SendToBack lowers an element below all its siblings, floored at 0.
func (e *Engine) SendToBack(id string) error {
	return e.adjustZ(id, "Send to back", func(el *document.Element, siblings []*document.Element) {
		min := el.ZIndex
		for _, s := range siblings {
			if s.ZIndex < min {
				min = s.ZIndex
			}
		}
		el.ZIndex = min - zIndexStep
		if el.ZIndex < 0 {
			el.ZIndex = 0
		}
	})
}

// BringForward swaps an element's z-index with the next-higher sibling, or
// raises it by one step when it is already frontmost.
func (e *Engine) BringForward(id string) error {
	return e.adjustZ(id, "Bring forward", func(el *document.Element, siblings []*document.Element) {
		var above *document.Element
		for _, s := range siblings {
			if s.ZIndex > el.ZIndex && (above == nil || s.ZIndex < above.ZIndex) {
				above = s
			}
		}
		if above == nil {
			el.ZIndex += zIndexStep
			return
		}
		el.ZIndex, above.ZIndex = above.ZIndex, el.ZIndex
	})
}

// SendBackward swaps an element's z-index with the next-lower sibling, or
// lowers it by one step (floored at 0) when it is already backmost.
func (e *Engine) SendBackward(id string) error {
	return e.adjustZ(id, "Send backward", func(el *document.Element, siblings []*document.Element) {
		var below *document.Element
		for _, s := range siblings {
			if s.ZIndex < el.ZIndex && (below == nil || s.ZIndex > below.ZIndex) {
				below = s
			}
		}
		if below == nil {
			el.ZIndex -= zIndexStep
			if el.ZIndex < 0 {
				el.ZIndex = 0
			}
			return
		}
		el.ZIndex, below.ZIndex = below.ZIndex, el.ZIndex
	})
}

func (e *Engine) adjustZ(id, description string, fn func(*document.Element, []*document.Element)) error {
	el := e.state.ElementByID(id)
	if el == nil {
		return errors.New(errors.ErrCodeElementNotFound, "element %s not found", id)
	}
	siblings := e.state.Children(el.TemplateID, el.ParentElementID)
	siblings = filterOut(siblings, func(s *document.Element) bool { return s.ID == id })

	e.pushHistory(description)
	fn(el, siblings)
	e.markDirty()
	return nil
}

// =============================================================================
// Layer and template management
// =============================================================================

// AddLayer creates a new compositing layer above the existing ones.
// Layers are outside the structural history: the change is dirty-tracked
// but not undoable.
func (e *Engine) AddLayer(name string) (*document.Layer, error) {
	if e.state.Project == nil {
		return nil, errors.New(errors.ErrCodeValidation, "no project loaded")
	}
	maxZ := -zIndexStep
	for _, l := range e.state.Layers {
		if l.ZIndex > maxZ {
			maxZ = l.ZIndex
		}
	}
	layer := &document.Layer{
		ID:        uuid.NewString(),
		ProjectID: e.state.Project.ID,
		Name:      name,
		ZIndex:    maxZ + zIndexStep,
		Anchor:    "bottom-left",
	}
	e.state.Layers = append(e.state.Layers, layer)
	e.markDirty()
	return layer, nil
}

// DeleteLayer removes a layer. Blocked while the layer still owns
// templates.
func (e *Engine) DeleteLayer(id string) error {
	if e.state.LayerByID(id) == nil {
		return errors.New(errors.ErrCodeNotFound, "layer %s not found", id)
	}
	if n := len(e.state.TemplatesForLayer(id)); n > 0 {
		return errors.New(errors.ErrCodeValidation, "layer %s still owns %d template(s)", id, n)
	}
	e.state.Layers = filterOut(e.state.Layers, func(l *document.Layer) bool { return l.ID == id })
	e.pending.Layers = enqueue(e.pending.Layers, id)
	e.markDirty()
	return nil
}

// AddTemplate creates an empty template on a layer with the project's
// default phase durations.
func (e *Engine) AddTemplate(layerID, name string) (*document.Template, error) {
	if e.state.LayerByID(layerID) == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "layer %s not found", layerID)
	}
	tpl := &document.Template{
		ID:        uuid.NewString(),
		ProjectID: e.state.Project.ID,
		LayerID:   layerID,
		Name:      name,
		Durations: map[document.Phase]int{
			document.PhaseIn:   e.state.Project.Settings.PhaseDuration(document.PhaseIn),
			document.PhaseLoop: e.state.Project.Settings.PhaseDuration(document.PhaseLoop),
			document.PhaseOut:  e.state.Project.Settings.PhaseDuration(document.PhaseOut),
		},
	}
	e.state.Templates = append(e.state.Templates, tpl)
	e.markDirty()
	return tpl, nil
}

// DuplicateTemplate deep-copies a template and everything under it with
// fresh ids.
func (e *Engine) DuplicateTemplate(id string) (*document.Template, error) {
	src := e.state.TemplateByID(id)
	if src == nil {
		return nil, errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", id)
	}

	e.pushHistory("Duplicate template " + src.Name)
	cp := src.Clone()
	cp.ID = uuid.NewString()
	cp.Name = src.Name + " copy"
	e.state.Templates = append(e.state.Templates, cp)

	for _, root := range e.state.Children(id, "") {
		e.copySubtree(root, "", cp.ID)
	}
	e.markDirty()
	return cp, nil
}

// ArchiveTemplate soft-deletes a template: the archived record is upserted
// remotely on the next save while the template and everything under it are
// removed from local state. The remote children stay attached to the
// archived template, so nothing is enqueued for remote deletion.
//
// Template removal is not undoable. History snapshots carry elements,
// animations, keyframes, and bindings but not template rows, so the undo
// and redo stacks are cleared rather than left pointing at entities of a
// template that no longer exists.
func (e *Engine) ArchiveTemplate(id string) error {
	tpl := e.state.TemplateByID(id)
	if tpl == nil {
		return errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", id)
	}

	archived := tpl.Clone()
	archived.Archived = true
	e.archives = append(e.archives, archived)

	e.detachTemplateLocally(id, false)
	e.markDirty()
	return nil
}

// DeleteTemplate hard-deletes a template and everything under it, locally
// and (via the pending-deletion queues) remotely. Like ArchiveTemplate it
// is not undoable and clears the history stacks.
func (e *Engine) DeleteTemplate(id string) error {
	if e.state.TemplateByID(id) == nil {
		return errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", id)
	}
	e.detachTemplateLocally(id, true)
	e.pending.Templates = enqueue(e.pending.Templates, id)
	e.markDirty()
	return nil
}

// detachTemplateLocally removes a template and its entities from local
// state. When track is true the removed entities are enqueued for remote
// deletion.
func (e *Engine) detachTemplateLocally(id string, track bool) {
	removed := make(map[string]bool)
	for _, el := range e.state.Elements {
		if el.TemplateID == id {
			removed[el.ID] = true
		}
	}
	e.removeElements(removed, track)
	e.dropFromSelection(removed)

	e.state.Templates = filterOut(e.state.Templates, func(t *document.Template) bool { return t.ID == id })
	delete(e.bindingData, id)
	delete(e.hydrationGen, id)
	if e.currentTemplateID == id {
		e.currentTemplateID = ""
	}
	e.clearHistory()
}

// =============================================================================
// Helpers
// =============================================================================

// pinnedZIndex returns the z-index for a new element among its siblings.
func pinnedZIndex(typ document.ElementType, siblings []*document.Element) int {
	switch typ {
	case document.ElementVideo:
		return zIndexVideo
	case document.ElementTicker:
		return zIndexTicker
	default:
		max := -zIndexStep
		for _, s := range siblings {
			if s.ZIndex > max {
				max = s.ZIndex
			}
		}
		return max + zIndexStep
	}
}

// nextSortOrder places a new element after its siblings in the outline.
func nextSortOrder(siblings []*document.Element) int {
	max := -zIndexStep
	for _, s := range siblings {
		if s.SortOrder > max {
			max = s.SortOrder
		}
	}
	return max + zIndexStep
}

// nextElementName numbers default display names within a template, so the
// second text element becomes "Text 2".
func (e *Engine) nextElementName(templateID, base string) string {
	n := 1
	for _, el := range e.state.Elements {
		if el.TemplateID == templateID && (el.Name == base || strings.HasPrefix(el.Name, base+" ")) {
			n++
		}
	}
	if n == 1 {
		return base
	}
	return fmt.Sprintf("%s %d", base, n)
}

func filterOut[T any](in []*T, drop func(*T) bool) []*T {
	out := in[:0]
	for _, v := range in {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out
}
