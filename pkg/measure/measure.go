// Package measure defines the text measurement contract consumed by the
// engine's fit-to-content pass, together with a heuristic implementation
// suitable for headless use.
//
// Hosts with access to a real text stack (canvas, font shaping) should
// inject their own [Measurer]; the engine only depends on the interface.
package measure

import (
	"math"
	"strings"

	"github.com/keylinehq/keyline/pkg/geometry"
)

// Font describes the typeface parameters a measurement depends on.
type Font struct {
	Family string
	Size   float64
	Weight string // CSS-style weight: "400", "700", "bold", ...
	Style  string // "normal" or "italic"
}

// Measurer measures rendered text extents. wrapWidth of 0 means the text
// is laid out on explicit newlines only.
type Measurer interface {
	Measure(text string, font Font, wrapWidth float64) (geometry.Size, error)
}

// Heuristic approximates text extents from average glyph widths. It errs
// slightly wide so auto-fit containers never clip text measured by it.
type Heuristic struct{}

// NewHeuristic returns the default headless measurer.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// lineHeightFactor approximates typical line spacing for UI fonts.
const lineHeightFactor = 1.3

// Measure implements [Measurer].
func (h *Heuristic) Measure(text string, font Font, wrapWidth float64) (geometry.Size, error) {
	size := font.Size
	if size <= 0 {
		size = 16
	}
	glyph := size * glyphWidthFactor(font.Weight)

	lineHeight := size * lineHeightFactor
	var maxWidth float64
	lines := 0
	for _, line := range strings.Split(text, "\n") {
		w := float64(len([]rune(line))) * glyph
		if wrapWidth > 0 && w > wrapWidth {
			// Wrapped: the line fills wrapWidth and spills onto extra rows.
			lines += int(math.Ceil(w / wrapWidth))
			w = wrapWidth
		} else {
			lines++
		}
		if w > maxWidth {
			maxWidth = w
		}
	}
	if lines == 0 {
		lines = 1
	}
	return geometry.Size{Width: maxWidth, Height: float64(lines) * lineHeight}, nil
}

// glyphWidthFactor maps a font weight to an average glyph width as a
// fraction of the font size.
func glyphWidthFactor(weight string) float64 {
	switch weight {
	case "bold", "600", "700", "800", "900":
		return 0.60
	case "100", "200", "300":
		return 0.52
	default:
		return 0.55
	}
}
