// Package document defines the entity model for Keyline projects: the
// project/layer/template hierarchy, per-template element trees, the
// animation timeline entities, and data bindings.
//
// All entities are JSON-tagged in the wire shape expected by the remote
// entity store and the durable local cache. Optional fields are either
// defaulted or tagged omitempty so that bulk-upsert batches stay
// shape-uniform within a kind.
//
// The package is purely data: construction helpers, deep copies, and the
// per-type defaults table live here, while every mutation goes through
// pkg/engine.
package document

import (
	"time"
)

// Phase is one of the three timeline segments a template's animations run
// within. A template plays its "in" phase once, holds or repeats "loop",
// and plays "out" once when dismissed.
type Phase string

// Timeline phases in play order.
const (
	PhaseIn   Phase = "in"
	PhaseLoop Phase = "loop"
	PhaseOut  Phase = "out"
)

// Phases lists all phases in play order.
var Phases = []Phase{PhaseIn, PhaseLoop, PhaseOut}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhaseIn || p == PhaseLoop || p == PhaseOut
}

// Phase duration bounds in milliseconds.
const (
	MinPhaseDuration = 500
	MaxPhaseDuration = 300_000

	// DefaultPhaseDuration is used for phases the project has not
	// configured yet.
	DefaultPhaseDuration = 5_000
)

// ClampPhaseDuration clamps a phase duration to the allowed range.
func ClampPhaseDuration(ms int) int {
	if ms < MinPhaseDuration {
		return MinPhaseDuration
	}
	if ms > MaxPhaseDuration {
		return MaxPhaseDuration
	}
	return ms
}

// Project is the top-level document. It is created on load or new and
// never deleted within a session.
type Project struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	CanvasWidth  int             `json:"canvas_width"`
	CanvasHeight int             `json:"canvas_height"`
	FrameRate    int             `json:"frame_rate"`
	Settings     ProjectSettings `json:"settings"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProjectSettings is the mutable settings blob stored on the project:
// per-phase durations and design-system tokens (named colors, fonts,
// spacing values referenced by element styles).
type ProjectSettings struct {
	PhaseDurations map[Phase]int     `json:"phase_durations"`
	Tokens         map[string]string `json:"tokens"`
}

// PhaseDuration returns the configured duration for a phase, falling back
// to DefaultPhaseDuration when unset. The result is always within bounds.
func (s ProjectSettings) PhaseDuration(p Phase) int {
	if d, ok := s.PhaseDurations[p]; ok {
		return ClampPhaseDuration(d)
	}
	return DefaultPhaseDuration
}

// Layer is a named compositing channel (e.g. "Lower Third", "Ticker").
// Templates bind to exactly one layer; a layer cannot be deleted while it
// still owns templates.
type Layer struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	Name       string `json:"name"`
	ZIndex     int    `json:"z_index"`
	Anchor     string `json:"anchor"`     // e.g. "bottom-left", "top-center"
	Transition string `json:"transition"` // transition spec applied when templates swap on air
	AlwaysOn   bool   `json:"always_on"`
}

// DataSourceConfig links a template to an external tabular data endpoint.
type DataSourceConfig struct {
	Slug         string `json:"slug"`
	DisplayField string `json:"display_field"`
}

// Template is a reusable animated composition bound to one layer.
// Archiving soft-deletes the template remotely and hard-removes it from
// local state.
type Template struct {
	ID               string            `json:"id"`
	ProjectID        string            `json:"project_id"`
	LayerID          string            `json:"layer_id"`
	Name             string            `json:"name"`
	Durations        map[Phase]int     `json:"durations"`
	DataSourceID     string            `json:"data_source_id,omitempty"`
	DataSourceConfig *DataSourceConfig `json:"data_source_config,omitempty"`
	Archived         bool              `json:"archived"`
}

// PhaseDuration returns the template's duration for a phase, falling back
// to the project default when unset.
func (t *Template) PhaseDuration(p Phase) int {
	if d, ok := t.Durations[p]; ok {
		return ClampPhaseDuration(d)
	}
	return DefaultPhaseDuration
}

// Animation is one timed behavior of one element in one phase. Durations
// and delays are absolute milliseconds on the phase's timeline.
// TemplateID is denormalized from the element so stores can fetch a
// template's animations without a join.
type Animation struct {
	ID         string `json:"id"`
	TemplateID string `json:"template_id"`
	ElementID  string `json:"element_id"`
	Phase      Phase  `json:"phase"`
	Delay      int    `json:"delay"`
	Duration   int    `json:"duration"`
	Iterations int    `json:"iterations"` // 0 means infinite (loop phase only)
	Direction  string `json:"direction"`  // "normal", "reverse", "alternate"
	Easing     string `json:"easing"`     // easing function name, see pkg/engine timeline
}

// Keyframe is a point on an animation's timeline. Position is absolute
// milliseconds from the phase start (not a percentage) so keyframes align
// with the timeline ruler without rescaling. Properties is a sparse map of
// animatable property name to scalar value; non-scalar properties (colors)
// animate per channel.
type Keyframe struct {
	ID          string             `json:"id"`
	TemplateID  string             `json:"template_id"`
	AnimationID string             `json:"animation_id"`
	Name        string             `json:"name"`
	Position    int                `json:"position"`
	Properties  map[string]float64 `json:"properties"`
}

// Animatable property names used in keyframe property maps.
const (
	PropPositionX = "position_x"
	PropPositionY = "position_y"
	PropScaleX    = "scale_x"
	PropScaleY    = "scale_y"
	PropRotation  = "rotation"
	PropOpacity   = "opacity"
)

// Binding links an element's property to a named field of the active data
// record. Bindings are created and deleted independently of elements but
// cascade with them.
type Binding struct {
	ID             string `json:"id"`
	TemplateID     string `json:"template_id"`
	ElementID      string `json:"element_id"`
	BindingKey     string `json:"binding_key"`     // field path within the data record, e.g. "team.home.score"
	TargetProperty string `json:"target_property"` // element property receiving the value, e.g. "content.text"
	BindingType    string `json:"binding_type"`    // "text", "image", "number", ...
	Formatter      string `json:"formatter,omitempty"`
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Settings.PhaseDurations = cloneMap(p.Settings.PhaseDurations)
	cp.Settings.Tokens = cloneMap(p.Settings.Tokens)
	return &cp
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Durations = cloneMap(t.Durations)
	if t.DataSourceConfig != nil {
		cfg := *t.DataSourceConfig
		cp.DataSourceConfig = &cfg
	}
	return &cp
}

// Clone returns a copy of the animation.
func (a *Animation) Clone() *Animation {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// Clone returns a deep copy of the keyframe.
func (k *Keyframe) Clone() *Keyframe {
	if k == nil {
		return nil
	}
	cp := *k
	cp.Properties = cloneMap(k.Properties)
	return &cp
}

// Clone returns a copy of the binding.
func (b *Binding) Clone() *Binding {
	if b == nil {
		return nil
	}
	cp := *b
	return &cp
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
