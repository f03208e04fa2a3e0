package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tanema/gween/ease"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
)

// playRestartThreshold is how close to the end of a phase the playhead may
// sit before Play restarts from 0 instead of resuming.
const playRestartThreshold = 50

// Transport is the playback state of the active template's timeline.
// Playhead positions are absolute milliseconds within the current phase.
// Transport state is never part of history snapshots.
type Transport struct {
	Phase       document.Phase
	Playhead    int
	Playing     bool
	FullPreview bool
}

// Transport returns the current playback state.
func (e *Engine) Transport() Transport { return e.transport }

// SetPhase switches the active phase and resets the playhead.
func (e *Engine) SetPhase(p document.Phase) error {
	if !p.Valid() {
		return errors.New(errors.ErrCodeInvalidPhase, "unknown phase %q", p)
	}
	e.transport.Phase = p
	e.transport.Playhead = 0
	return nil
}

// SetPlayhead moves the playhead, clamped to [0, phase duration].
func (e *Engine) SetPlayhead(ms int) {
	e.transport.Playhead = clamp(ms, 0, e.currentPhaseDuration())
}

// Play starts playback. A playhead within playRestartThreshold of the
// phase end restarts from 0, so pressing play at the end replays instead
// of finishing instantly.
func (e *Engine) Play() {
	if e.currentPhaseDuration()-e.transport.Playhead <= playRestartThreshold {
		e.transport.Playhead = 0
	}
	e.transport.Playing = true
}

// PlayFullPreview starts playback chaining all three phases in order.
func (e *Engine) PlayFullPreview() {
	e.transport.Phase = document.PhaseIn
	e.transport.Playhead = 0
	e.transport.FullPreview = true
	e.transport.Playing = true
}

// Pause stops playback keeping the playhead where it is.
func (e *Engine) Pause() {
	e.transport.Playing = false
}

// Stop stops playback and resets the playhead to 0.
func (e *Engine) Stop() {
	e.transport.Playing = false
	e.transport.FullPreview = false
	e.transport.Playhead = 0
}

// Tick advances the playhead by deltaMs while playing. In full preview the
// playhead rolls over into the next phase; otherwise it stops at the phase
// end.
func (e *Engine) Tick(deltaMs int) {
	if !e.transport.Playing || deltaMs <= 0 {
		return
	}
	remaining := deltaMs
	for remaining > 0 {
		dur := e.currentPhaseDuration()
		room := dur - e.transport.Playhead
		if remaining < room {
			e.transport.Playhead += remaining
			return
		}
		remaining -= room
		if !e.transport.FullPreview {
			e.transport.Playhead = dur
			e.transport.Playing = false
			return
		}
		next, ok := nextPhase(e.transport.Phase)
		if !ok {
			e.transport.Playhead = dur
			e.transport.Playing = false
			e.transport.FullPreview = false
			return
		}
		e.transport.Phase = next
		e.transport.Playhead = 0
	}
}

func nextPhase(p document.Phase) (document.Phase, bool) {
	switch p {
	case document.PhaseIn:
		return document.PhaseLoop, true
	case document.PhaseLoop:
		return document.PhaseOut, true
	default:
		return "", false
	}
}

// currentPhaseDuration resolves the active phase duration from the current
// template, falling back to the project settings.
func (e *Engine) currentPhaseDuration() int {
	if tpl := e.state.TemplateByID(e.currentTemplateID); tpl != nil {
		return tpl.PhaseDuration(e.transport.Phase)
	}
	if e.state.Project != nil {
		return e.state.Project.Settings.PhaseDuration(e.transport.Phase)
	}
	return document.DefaultPhaseDuration
}

// SetPhaseDuration updates a phase duration on the current template,
// clamped to the allowed range. The playhead is re-clamped so it never
// points past the new end. Settings changes are dirty-tracked but not
// undoable.
func (e *Engine) SetPhaseDuration(templateID string, p document.Phase, ms int) error {
	if !p.Valid() {
		return errors.New(errors.ErrCodeInvalidPhase, "unknown phase %q", p)
	}
	tpl := e.state.TemplateByID(templateID)
	if tpl == nil {
		return errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", templateID)
	}
	if tpl.Durations == nil {
		tpl.Durations = make(map[document.Phase]int)
	}
	tpl.Durations[p] = document.ClampPhaseDuration(ms)
	e.markDirty()
	e.transport.Playhead = clamp(e.transport.Playhead, 0, e.currentPhaseDuration())
	return nil
}

// SetProjectPhaseDuration updates the project-wide default duration for a
// phase.
func (e *Engine) SetProjectPhaseDuration(p document.Phase, ms int) error {
	if !p.Valid() {
		return errors.New(errors.ErrCodeInvalidPhase, "unknown phase %q", p)
	}
	if e.state.Project == nil {
		return errors.New(errors.ErrCodeValidation, "no project loaded")
	}
	if e.state.Project.Settings.PhaseDurations == nil {
		e.state.Project.Settings.PhaseDurations = make(map[document.Phase]int)
	}
	e.state.Project.Settings.PhaseDurations[p] = document.ClampPhaseDuration(ms)
	e.markDirty()
	return nil
}

// =============================================================================
// Animations
// =============================================================================

// AddAnimation creates an animation for an element in a phase. The
// duration defaults to the full phase duration of the element's template.
func (e *Engine) AddAnimation(elementID string, phase document.Phase) (*document.Animation, error) {
	el := e.state.ElementByID(elementID)
	if el == nil {
		return nil, errors.New(errors.ErrCodeElementNotFound, "element %s not found", elementID)
	}
	if !phase.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidPhase, "unknown phase %q", phase)
	}
	tpl := e.state.TemplateByID(el.TemplateID)
	duration := document.DefaultPhaseDuration
	if tpl != nil {
		duration = tpl.PhaseDuration(phase)
	}

	e.pushHistory("Add animation")
	anim := &document.Animation{
		ID:         uuid.NewString(),
		TemplateID: el.TemplateID,
		ElementID:  elementID,
		Phase:      phase,
		Duration:   duration,
		Iterations: 1,
		Direction:  "normal",
		Easing:     "linear",
	}
	e.state.Animations = append(e.state.Animations, anim)
	e.markDirty()
	return anim, nil
}

// UpdateAnimation applies a mutation to one animation.
func (e *Engine) UpdateAnimation(id string, fn func(*document.Animation)) error {
	anim := e.state.AnimationByID(id)
	if anim == nil {
		return errors.New(errors.ErrCodeNotFound, "animation %s not found", id)
	}
	e.pushHistory("Edit animation")
	fn(anim)
	if !anim.Phase.Valid() {
		anim.Phase = document.PhaseIn
	}
	e.markDirty()
	return nil
}

// DeleteAnimation removes an animation and cascades to its keyframes.
func (e *Engine) DeleteAnimation(id string) error {
	anim := e.state.AnimationByID(id)
	if anim == nil {
		return errors.New(errors.ErrCodeNotFound, "animation %s not found", id)
	}

	e.pushHistory("Delete animation")
	for _, k := range e.state.KeyframesForAnimation(id) {
		e.pending.Keyframes = enqueue(e.pending.Keyframes, k.ID)
		if e.selectedKeyframe == k.ID {
			e.selectedKeyframe = ""
		}
	}
	e.state.Keyframes = filterOut(e.state.Keyframes, func(k *document.Keyframe) bool { return k.AnimationID == id })
	e.state.Animations = filterOut(e.state.Animations, func(a *document.Animation) bool { return a.ID == id })
	e.pending.Animations = enqueue(e.pending.Animations, id)
	e.markDirty()
	return nil
}

// =============================================================================
// Keyframes
// =============================================================================

// AddKeyframe creates a keyframe on an animation at an absolute
// millisecond position. The name is generated from the animated element's
// name: "<sanitized>_key_<n>" with n = existing keyframe count + 1.
func (e *Engine) AddKeyframe(animationID string, position int, properties map[string]float64) (*document.Keyframe, error) {
	anim := e.state.AnimationByID(animationID)
	if anim == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "animation %s not found", animationID)
	}
	if position < 0 {
		return nil, errors.New(errors.ErrCodeValidation, "keyframe position %d is negative", position)
	}

	e.pushHistory("Add keyframe")
	kf := &document.Keyframe{
		ID:          uuid.NewString(),
		TemplateID:  anim.TemplateID,
		AnimationID: animationID,
		Name:        e.nextKeyframeName(anim),
		Position:    position,
		Properties:  make(map[string]float64, len(properties)),
	}
	for k, v := range properties {
		kf.Properties[k] = v
	}
	e.state.Keyframes = append(e.state.Keyframes, kf)
	e.markDirty()
	return kf, nil
}

// UpdateKeyframe merges properties into a keyframe additively and
// optionally moves it. Properties absent from the update are kept.
func (e *Engine) UpdateKeyframe(id string, position *int, properties map[string]float64) error {
	kf := e.state.KeyframeByID(id)
	if kf == nil {
		return errors.New(errors.ErrCodeNotFound, "keyframe %s not found", id)
	}
	if position != nil && *position < 0 {
		return errors.New(errors.ErrCodeValidation, "keyframe position %d is negative", *position)
	}

	e.pushHistory("Edit keyframe")
	if position != nil {
		kf.Position = *position
	}
	if kf.Properties == nil {
		kf.Properties = make(map[string]float64, len(properties))
	}
	for k, v := range properties {
		kf.Properties[k] = v
	}
	e.markDirty()
	return nil
}

// RemoveKeyframeProperty deletes one property from a keyframe. A keyframe
// whose property map empties is removed entirely, deselected, and
// enqueued for remote deletion.
func (e *Engine) RemoveKeyframeProperty(id, property string) error {
	kf := e.state.KeyframeByID(id)
	if kf == nil {
		return errors.New(errors.ErrCodeNotFound, "keyframe %s not found", id)
	}
	if _, ok := kf.Properties[property]; !ok {
		return errors.New(errors.ErrCodeValidation, "keyframe %s has no property %q", id, property)
	}

	e.pushHistory("Remove keyframe property")
	delete(kf.Properties, property)
	if len(kf.Properties) == 0 {
		e.state.Keyframes = filterOut(e.state.Keyframes, func(k *document.Keyframe) bool { return k.ID == id })
		e.pending.Keyframes = enqueue(e.pending.Keyframes, id)
		if e.selectedKeyframe == id {
			e.selectedKeyframe = ""
		}
	}
	e.markDirty()
	return nil
}

// DeleteKeyframe removes a keyframe outright.
func (e *Engine) DeleteKeyframe(id string) error {
	if e.state.KeyframeByID(id) == nil {
		return errors.New(errors.ErrCodeNotFound, "keyframe %s not found", id)
	}
	e.pushHistory("Delete keyframe")
	e.state.Keyframes = filterOut(e.state.Keyframes, func(k *document.Keyframe) bool { return k.ID == id })
	e.pending.Keyframes = enqueue(e.pending.Keyframes, id)
	if e.selectedKeyframe == id {
		e.selectedKeyframe = ""
	}
	e.markDirty()
	return nil
}

// SelectKeyframe marks one keyframe selected in the timeline UI.
func (e *Engine) SelectKeyframe(id string) error {
	if id != "" && e.state.KeyframeByID(id) == nil {
		return errors.New(errors.ErrCodeNotFound, "keyframe %s not found", id)
	}
	e.selectedKeyframe = id
	return nil
}

// SelectedKeyframe returns the selected keyframe id, or "".
func (e *Engine) SelectedKeyframe() string { return e.selectedKeyframe }

// nextKeyframeName generates "<sanitizedElementName>_key_<n>".
func (e *Engine) nextKeyframeName(anim *document.Animation) string {
	base := "element"
	if el := e.state.ElementByID(anim.ElementID); el != nil {
		base = sanitizeName(el.Name)
	}
	n := len(e.state.KeyframesForAnimation(anim.ID)) + 1
	return fmt.Sprintf("%s_key_%d", base, n)
}

// sanitizeName lowercases a display name and collapses anything that is
// not alphanumeric into single underscores.
func sanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// =============================================================================
// Sampling
// =============================================================================

// SampleValue evaluates an element's animated property at an absolute
// millisecond position within a phase, interpolating between the
// surrounding keyframes with the animation's easing. The second return is
// false when no keyframe in the phase animates the property.
func (e *Engine) SampleValue(elementID, property string, phase document.Phase, at int) (float64, bool) {
	for _, anim := range e.state.AnimationsForElement(elementID) {
		if anim.Phase != phase {
			continue
		}
		if v, ok := sampleAnimation(e.state, anim, property, at); ok {
			return v, true
		}
	}
	return 0, false
}

// sampleAnimation interpolates one animation's keyframes for a property.
func sampleAnimation(state *document.State, anim *document.Animation, property string, at int) (float64, bool) {
	type stop struct {
		pos int
		val float64
	}
	var stops []stop
	for _, k := range state.KeyframesForAnimation(anim.ID) {
		if v, ok := k.Properties[property]; ok {
			stops = append(stops, stop{pos: k.Position, val: v})
		}
	}
	if len(stops) == 0 {
		return 0, false
	}
	if at <= stops[0].pos {
		return stops[0].val, true
	}
	last := stops[len(stops)-1]
	if at >= last.pos {
		return last.val, true
	}
	for i := 1; i < len(stops); i++ {
		if at > stops[i].pos {
			continue
		}
		k0, k1 := stops[i-1], stops[i]
		span := k1.pos - k0.pos
		if span == 0 {
			return k1.val, true
		}
		fn := EasingFunc(anim.Easing)
		v := fn(float32(at-k0.pos), float32(k0.val), float32(k1.val-k0.val), float32(span))
		return float64(v), true
	}
	return last.val, true
}

// EasingFunc maps an easing name stored on an animation to its tween
// function. Unknown names fall back to linear.
func EasingFunc(name string) ease.TweenFunc {
	switch name {
	case "ease-in", "in-quad":
		return ease.InQuad
	case "ease-out", "out-quad":
		return ease.OutQuad
	case "ease-in-out", "in-out-quad":
		return ease.InOutQuad
	case "in-cubic":
		return ease.InCubic
	case "out-cubic":
		return ease.OutCubic
	case "in-out-cubic":
		return ease.InOutCubic
	case "in-out-sine":
		return ease.InOutSine
	case "out-elastic":
		return ease.OutElastic
	case "out-bounce":
		return ease.OutBounce
	default:
		return ease.Linear
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
