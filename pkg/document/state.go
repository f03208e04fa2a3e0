package document

import "slices"

// State is the full scene state owned by one engine instance: the project,
// its layers and templates, and the five interrelated entity collections
// that structural edits must keep consistent.
//
// Collections are ordered slices: insertion order is stable and meaningful
// (z-index ties between pinned elements are broken by it). Lookup helpers
// do linear scans; collection sizes are bounded by what a human can edit
// in one project.
type State struct {
	Project    *Project     `json:"project"`
	Layers     []*Layer     `json:"layers"`
	Templates  []*Template  `json:"templates"`
	Elements   []*Element   `json:"elements"`
	Animations []*Animation `json:"animations"`
	Keyframes  []*Keyframe  `json:"keyframes"`
	Bindings   []*Binding   `json:"bindings"`
}

// Snapshot is the structural subset of state captured by the history
// manager: elements, animations, keyframes, and bindings. Selection, the
// playhead, and other UI state are deliberately excluded.
type Snapshot struct {
	Elements   []*Element   `json:"elements"`
	Animations []*Animation `json:"animations"`
	Keyframes  []*Keyframe  `json:"keyframes"`
	Bindings   []*Binding   `json:"bindings"`
}

// StructuralSnapshot deep-copies the four structural collections.
func (s *State) StructuralSnapshot() Snapshot {
	return Snapshot{
		Elements:   CloneElements(s.Elements),
		Animations: CloneAnimations(s.Animations),
		Keyframes:  CloneKeyframes(s.Keyframes),
		Bindings:   CloneBindings(s.Bindings),
	}
}

// RestoreSnapshot replaces the four structural collections wholesale from a
// snapshot, deep-copying so later edits never alias history entries.
func (s *State) RestoreSnapshot(snap Snapshot) {
	s.Elements = CloneElements(snap.Elements)
	s.Animations = CloneAnimations(snap.Animations)
	s.Keyframes = CloneKeyframes(snap.Keyframes)
	s.Bindings = CloneBindings(snap.Bindings)
}

// Clone deep-copies a snapshot.
func (sn Snapshot) Clone() Snapshot {
	return Snapshot{
		Elements:   CloneElements(sn.Elements),
		Animations: CloneAnimations(sn.Animations),
		Keyframes:  CloneKeyframes(sn.Keyframes),
		Bindings:   CloneBindings(sn.Bindings),
	}
}

// CloneElements deep-copies an element slice.
func CloneElements(in []*Element) []*Element {
	out := make([]*Element, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

// CloneAnimations deep-copies an animation slice.
func CloneAnimations(in []*Animation) []*Animation {
	out := make([]*Animation, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

// CloneKeyframes deep-copies a keyframe slice.
func CloneKeyframes(in []*Keyframe) []*Keyframe {
	out := make([]*Keyframe, len(in))
	for i, k := range in {
		out[i] = k.Clone()
	}
	return out
}

// CloneBindings deep-copies a binding slice.
func CloneBindings(in []*Binding) []*Binding {
	out := make([]*Binding, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}

// ElementByID returns the element with the given id, or nil.
func (s *State) ElementByID(id string) *Element {
	for _, e := range s.Elements {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// TemplateByID returns the template with the given id, or nil.
func (s *State) TemplateByID(id string) *Template {
	for _, t := range s.Templates {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// LayerByID returns the layer with the given id, or nil.
func (s *State) LayerByID(id string) *Layer {
	for _, l := range s.Layers {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// AnimationByID returns the animation with the given id, or nil.
func (s *State) AnimationByID(id string) *Animation {
	for _, a := range s.Animations {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// KeyframeByID returns the keyframe with the given id, or nil.
func (s *State) KeyframeByID(id string) *Keyframe {
	for _, k := range s.Keyframes {
		if k.ID == id {
			return k
		}
	}
	return nil
}

// Children returns the direct children of a parent element (empty parentID
// means template roots), filtered to the given template and ordered by
// sort order (stable on insertion order for ties).
func (s *State) Children(templateID, parentID string) []*Element {
	var out []*Element
	for _, e := range s.Elements {
		if e.TemplateID == templateID && e.ParentElementID == parentID {
			out = append(out, e)
		}
	}
	sortBySortOrder(out)
	return out
}

// Descendants returns every transitive descendant of the element with the
// given id, in breadth-first order. The element itself is not included.
func (s *State) Descendants(id string) []*Element {
	var out []*Element
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range s.Elements {
			if e.ParentElementID == cur {
				out = append(out, e)
				queue = append(queue, e.ID)
			}
		}
	}
	return out
}

// AnimationsForElement returns all animations of one element.
func (s *State) AnimationsForElement(elementID string) []*Animation {
	var out []*Animation
	for _, a := range s.Animations {
		if a.ElementID == elementID {
			out = append(out, a)
		}
	}
	return out
}

// KeyframesForAnimation returns all keyframes of one animation ordered by
// position.
func (s *State) KeyframesForAnimation(animationID string) []*Keyframe {
	var out []*Keyframe
	for _, k := range s.Keyframes {
		if k.AnimationID == animationID {
			out = append(out, k)
		}
	}
	sortByPosition(out)
	return out
}

// BindingsForElement returns all bindings of one element.
func (s *State) BindingsForElement(elementID string) []*Binding {
	var out []*Binding
	for _, b := range s.Bindings {
		if b.ElementID == elementID {
			out = append(out, b)
		}
	}
	return out
}

// TemplatesForLayer returns the templates owned by a layer.
func (s *State) TemplatesForLayer(layerID string) []*Template {
	var out []*Template
	for _, t := range s.Templates {
		if t.LayerID == layerID {
			out = append(out, t)
		}
	}
	return out
}

func sortBySortOrder(els []*Element) {
	slices.SortStableFunc(els, func(a, b *Element) int {
		return a.SortOrder - b.SortOrder
	})
}

func sortByPosition(kfs []*Keyframe) {
	slices.SortStableFunc(kfs, func(a, b *Keyframe) int {
		return a.Position - b.Position
	})
}
