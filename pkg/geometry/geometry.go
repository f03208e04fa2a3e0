// Package geometry provides the pure coordinate math used by the scene
// graph: absolute/relative conversion, bounding-box union, and the
// fit-to-content computation used when a container resizes around its
// children.
//
// All functions are pure and allocation-light. Positions follow screen
// conventions: X grows right, Y grows down. Every function that takes a
// parent origin treats it as the top-left corner of the parent in absolute
// canvas space.
package geometry

import (
	"github.com/keylinehq/keyline/pkg/errors"
)

// Point is a 2D position in canvas units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a 2D extent in canvas units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Width returns the horizontal extent of the rect.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent of the rect.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// RectAt builds a Rect from a top-left position and a size.
func RectAt(pos Point, size Size) Rect {
	return Rect{MinX: pos.X, MinY: pos.Y, MaxX: pos.X + size.Width, MaxY: pos.Y + size.Height}
}

// ToRelative converts an absolute point into the coordinate space of a
// parent whose absolute origin is parentOrigin. Inverse of [ToAbsolute]:
// re-parenting an element must apply exactly one of the two conversions so
// its visual position is preserved.
func ToRelative(p, parentOrigin Point) Point {
	return Point{X: p.X - parentOrigin.X, Y: p.Y - parentOrigin.Y}
}

// ToAbsolute converts a parent-relative point back to absolute canvas
// coordinates. Inverse of [ToRelative].
func ToAbsolute(p, parentOrigin Point) Point {
	return Point{X: p.X + parentOrigin.X, Y: p.Y + parentOrigin.Y}
}

// UnionBounds returns the smallest rect containing every input rect.
// An empty input is a validation error; callers guard on having at least
// one element before grouping or fitting.
func UnionBounds(rects []Rect) (Rect, error) {
	if len(rects) == 0 {
		return Rect{}, errors.New(errors.ErrCodeValidation, "union of zero rects is undefined")
	}
	u := rects[0]
	for _, r := range rects[1:] {
		if r.MinX < u.MinX {
			u.MinX = r.MinX
		}
		if r.MinY < u.MinY {
			u.MinY = r.MinY
		}
		if r.MaxX > u.MaxX {
			u.MaxX = r.MaxX
		}
		if r.MaxY > u.MaxY {
			u.MaxY = r.MaxY
		}
	}
	return u, nil
}

// Padding is asymmetric inner padding applied by [FitToContent].
type Padding struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// DefaultPadding is the fit-to-content padding applied when the container
// does not specify its own.
var DefaultPadding = Padding{Top: 16, Right: 16, Bottom: 16, Left: 16}

// ChildBounds is one child's measured footprint in its parent's local
// space. For text children the size comes from the text measurer; for
// everything else it is the stored width/height.
type ChildBounds struct {
	ID   string
	Pos  Point
	Size Size
}

// FitResult describes how a parent must change to wrap its children.
// OriginDelta is added to the parent's current position (in its own
// parent's space); Children maps child id to its new local position.
type FitResult struct {
	OriginDelta Point
	Size        Size
	Children    map[string]Point
}

// FitToContent recomputes a container's size and origin from the union of
// its children's bounds plus padding, then re-expresses each child's
// position relative to the new origin. Children positions are given in the
// container's current local space.
func FitToContent(children []ChildBounds, pad Padding) (FitResult, error) {
	rects := make([]Rect, len(children))
	for i, c := range children {
		rects[i] = RectAt(c.Pos, c.Size)
	}
	union, err := UnionBounds(rects)
	if err != nil {
		return FitResult{}, err
	}

	// The new origin sits pad.Left/pad.Top above the content union.
	origin := Point{X: union.MinX - pad.Left, Y: union.MinY - pad.Top}

	out := FitResult{
		OriginDelta: origin,
		Size: Size{
			Width:  union.Width() + pad.Left + pad.Right,
			Height: union.Height() + pad.Top + pad.Bottom,
		},
		Children: make(map[string]Point, len(children)),
	}
	for _, c := range children {
		out.Children[c.ID] = ToRelative(c.Pos, origin)
	}
	return out, nil
}
