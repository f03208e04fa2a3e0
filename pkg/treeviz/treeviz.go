// Package treeviz exports a template's scene tree as Graphviz DOT and
// SVG, used by the CLI's export command for debugging template structure.
package treeviz

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
)

// Options configures scene tree rendering.
type Options struct {
	// Detailed includes type, z-index, and animation counts in node
	// labels. When false, only element names are shown.
	Detailed bool
}

// ToDOT converts one template's element tree to Graphviz DOT format.
// Elements are boxes colored by type; parent-child edges follow the scene
// hierarchy in outline order.
func ToDOT(state *document.State, templateID string, opts Options) (string, error) {
	tpl := state.TemplateByID(templateID)
	if tpl == nil {
		return "", errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", templateID)
	}

	var buf bytes.Buffer
	buf.WriteString("digraph scene {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  %q [label=%q, shape=folder, fillcolor=lightyellow];\n", tpl.ID, tpl.Name)
	buf.WriteString("\n")

	var walk func(parentNode, parentID string)
	walk = func(parentNode, parentID string) {
		for _, el := range state.Children(templateID, parentID) {
			attrs := fmtAttrs(state, el, opts.Detailed)
			fmt.Fprintf(&buf, "  %q [%s];\n", el.ID, strings.Join(attrs, ", "))
			fmt.Fprintf(&buf, "  %q -> %q;\n", parentNode, el.ID)
			walk(el.ID, el.ID)
		}
	}
	walk(tpl.ID, "")

	buf.WriteString("}\n")
	return buf.String(), nil
}

func fmtAttrs(state *document.State, el *document.Element, detailed bool) []string {
	label := el.Name
	if detailed {
		parts := []string{
			fmt.Sprintf("type: %s", el.Type),
			fmt.Sprintf("z: %d", el.ZIndex),
		}
		if n := len(state.AnimationsForElement(el.ID)); n > 0 {
			parts = append(parts, fmt.Sprintf("animations: %d", n))
		}
		if n := len(state.BindingsForElement(el.ID)); n > 0 {
			parts = append(parts, fmt.Sprintf("bindings: %d", n))
		}
		label = el.Name + "\n" + strings.Join(parts, "\n")
	}

	attrs := []string{fmt.Sprintf("label=%q", label)}
	if color := typeFill(el.Type); color != "" {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", color))
	}
	if el.Type == document.ElementGroup {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"")
	}
	return attrs
}

// typeFill colors nodes by element type so trees read at a glance.
func typeFill(t document.ElementType) string {
	switch t {
	case document.ElementText:
		return "lightblue"
	case document.ElementShape:
		return "lightpink"
	case document.ElementImage:
		return "palegreen"
	case document.ElementVideo:
		return "lightgrey"
	case document.ElementTicker:
		return "khaki"
	case document.ElementGroup:
		return "white"
	default:
		return ""
	}
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
