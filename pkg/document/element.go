package document

import (
	"encoding/json"
	"fmt"

	"github.com/keylinehq/keyline/pkg/errors"
	"github.com/keylinehq/keyline/pkg/geometry"
)

// ElementType identifies the kind of a scene element and selects its
// content variant. The set is closed: adding a type means adding a content
// variant, a defaults entry, and updating every exhaustive switch.
type ElementType string

// Known element types.
const (
	ElementText   ElementType = "text"
	ElementShape  ElementType = "shape"
	ElementImage  ElementType = "image"
	ElementVideo  ElementType = "video"
	ElementTicker ElementType = "ticker"
	ElementGroup  ElementType = "group"
)

// ElementTypes lists all known element types.
var ElementTypes = []ElementType{
	ElementText, ElementShape, ElementImage, ElementVideo, ElementTicker, ElementGroup,
}

// Element is a node in a template's scene tree. Position is expressed in
// the parent's coordinate space (absolute canvas coordinates when
// ParentElementID is empty). ZIndex determines paint order among siblings;
// SortOrder determines outline order. The two are maintained together by
// reorder operations but are independently meaningful.
type Element struct {
	ID              string      `json:"id"`
	TemplateID      string      `json:"template_id"`
	Name            string      `json:"name"`
	Type            ElementType `json:"type"`
	ParentElementID string      `json:"parent_element_id,omitempty"`
	ZIndex          int         `json:"z_index"`
	SortOrder       int         `json:"sort_order"`

	Position geometry.Point `json:"position"`
	Size     geometry.Size  `json:"size"`
	Scale    geometry.Point `json:"scale"`
	Rotation float64        `json:"rotation"`
	Anchor   string         `json:"anchor"`

	Content Content           `json:"-"`
	Styles  map[string]string `json:"styles"`
}

// Bounds returns the element's axis-aligned bounds in its parent's space,
// using the stored size. Text elements should be measured externally for
// fit-to-content; this is the stored fallback.
func (e *Element) Bounds() geometry.Rect {
	return geometry.RectAt(e.Position, e.Size)
}

// Clone returns a deep copy of the element, including content and styles.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Content = cloneContent(e.Content)
	cp.Styles = cloneMap(e.Styles)
	return &cp
}

// Content is the closed tagged union of per-type element payloads.
// Exactly one variant exists per element type; every site that reads or
// writes content switches exhaustively on the variant.
type Content interface {
	// Kind returns the element type this content variant belongs to.
	Kind() ElementType

	isContent()
}

// TextContent is the payload of a text element.
type TextContent struct {
	Text       string  `json:"text"`
	FontFamily string  `json:"font_family"`
	FontSize   float64 `json:"font_size"`
	FontWeight string  `json:"font_weight"`
	FontStyle  string  `json:"font_style"`
	Align      string  `json:"align"`
	WrapWidth  float64 `json:"wrap_width,omitempty"` // 0 means no wrapping
}

// ShapeContent is the payload of a shape element.
type ShapeContent struct {
	Shape        string  `json:"shape"` // "rect", "ellipse", "line"
	CornerRadius float64 `json:"corner_radius,omitempty"`
}

// ImageContent is the payload of an image element.
type ImageContent struct {
	URL string `json:"url"`
	Fit string `json:"fit"` // "contain", "cover", "fill"
}

// VideoContent is the payload of a video element.
type VideoContent struct {
	URL   string `json:"url"`
	Loop  bool   `json:"loop"`
	Muted bool   `json:"muted"`
}

// TickerContent is the payload of a ticker element.
type TickerContent struct {
	Items     []string `json:"items"`
	Speed     float64  `json:"speed"` // pixels per second
	Separator string   `json:"separator"`
}

// GroupContent is the payload of a group element. AutoFit groups resize
// around their children via the deferred fit-to-content pass.
type GroupContent struct {
	AutoFit bool             `json:"auto_fit"`
	Padding geometry.Padding `json:"padding"`
}

func (TextContent) Kind() ElementType   { return ElementText }
func (ShapeContent) Kind() ElementType  { return ElementShape }
func (ImageContent) Kind() ElementType  { return ElementImage }
func (VideoContent) Kind() ElementType  { return ElementVideo }
func (TickerContent) Kind() ElementType { return ElementTicker }
func (GroupContent) Kind() ElementType  { return ElementGroup }

func (TextContent) isContent()   {}
func (ShapeContent) isContent()  {}
func (ImageContent) isContent()  {}
func (VideoContent) isContent()  {}
func (TickerContent) isContent() {}
func (GroupContent) isContent()  {}

func cloneContent(c Content) Content {
	switch v := c.(type) {
	case nil:
		return nil
	case TextContent:
		return v
	case ShapeContent:
		return v
	case ImageContent:
		return v
	case VideoContent:
		return v
	case TickerContent:
		cp := v
		cp.Items = append([]string(nil), v.Items...)
		return cp
	case GroupContent:
		return v
	default:
		// Closed union: unreachable unless a variant was added without
		// updating this switch.
		panic(fmt.Sprintf("document: unknown content variant %T", c))
	}
}

// contentEnvelope is the wire shape of a content payload.
type contentEnvelope struct {
	Kind ElementType     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalContent serializes a content variant into its wire envelope.
func MarshalContent(c Content) (json.RawMessage, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(contentEnvelope{Kind: c.Kind(), Data: data})
}

// UnmarshalContent parses a wire envelope back into the matching variant.
func UnmarshalContent(raw json.RawMessage) (Content, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env contentEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	switch env.Kind {
	case ElementText:
		var v TextContent
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ElementShape:
		var v ShapeContent
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ElementImage:
		var v ImageContent
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ElementVideo:
		var v VideoContent
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ElementTicker:
		var v TickerContent
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ElementGroup:
		var v GroupContent
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, errors.New(errors.ErrCodeValidation, "unknown content kind %q", env.Kind)
	}
}

// elementJSON mirrors Element with the content union flattened to its wire
// envelope.
type elementJSON struct {
	ID              string      `json:"id"`
	TemplateID      string      `json:"template_id"`
	Name            string      `json:"name"`
	Type            ElementType `json:"type"`
	ParentElementID string      `json:"parent_element_id,omitempty"`
	ZIndex          int         `json:"z_index"`
	SortOrder       int         `json:"sort_order"`

	Position geometry.Point `json:"position"`
	Size     geometry.Size  `json:"size"`
	Scale    geometry.Point `json:"scale"`
	Rotation float64        `json:"rotation"`
	Anchor   string         `json:"anchor"`

	Content json.RawMessage   `json:"content,omitempty"`
	Styles  map[string]string `json:"styles"`
}

// MarshalJSON implements json.Marshaler, encoding the content union as a
// {kind, data} envelope.
func (e *Element) MarshalJSON() ([]byte, error) {
	content, err := MarshalContent(e.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(elementJSON{
		ID:              e.ID,
		TemplateID:      e.TemplateID,
		Name:            e.Name,
		Type:            e.Type,
		ParentElementID: e.ParentElementID,
		ZIndex:          e.ZIndex,
		SortOrder:       e.SortOrder,
		Position:        e.Position,
		Size:            e.Size,
		Scale:           e.Scale,
		Rotation:        e.Rotation,
		Anchor:          e.Anchor,
		Content:         content,
		Styles:          e.Styles,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Element) UnmarshalJSON(data []byte) error {
	var ej elementJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return err
	}
	content, err := UnmarshalContent(ej.Content)
	if err != nil {
		return err
	}
	*e = Element{
		ID:              ej.ID,
		TemplateID:      ej.TemplateID,
		Name:            ej.Name,
		Type:            ej.Type,
		ParentElementID: ej.ParentElementID,
		ZIndex:          ej.ZIndex,
		SortOrder:       ej.SortOrder,
		Position:        ej.Position,
		Size:            ej.Size,
		Scale:           ej.Scale,
		Rotation:        ej.Rotation,
		Anchor:          ej.Anchor,
		Content:         content,
		Styles:          ej.Styles,
	}
	return nil
}

// Defaults describes how a freshly added element of a given type starts
// out: display name, initial size, content payload, and base styles.
type Defaults struct {
	Name    string
	Size    geometry.Size
	Content Content
	Styles  map[string]string
}

// DefaultsFor returns the defaults table entry for an element type.
// Unknown types are a validation error; the table is closed.
func DefaultsFor(t ElementType) (Defaults, error) {
	switch t {
	case ElementText:
		return Defaults{
			Name: "Text",
			Size: geometry.Size{Width: 320, Height: 48},
			Content: TextContent{
				Text:       "Text",
				FontFamily: "Inter",
				FontSize:   32,
				FontWeight: "400",
				FontStyle:  "normal",
				Align:      "left",
			},
			Styles: map[string]string{"color": "#ffffff"},
		}, nil
	case ElementShape:
		return Defaults{
			Name:    "Shape",
			Size:    geometry.Size{Width: 200, Height: 200},
			Content: ShapeContent{Shape: "rect"},
			Styles:  map[string]string{"fill": "#3366ff"},
		}, nil
	case ElementImage:
		return Defaults{
			Name:    "Image",
			Size:    geometry.Size{Width: 400, Height: 300},
			Content: ImageContent{Fit: "contain"},
			Styles:  map[string]string{},
		}, nil
	case ElementVideo:
		return Defaults{
			Name:    "Video",
			Size:    geometry.Size{Width: 1920, Height: 1080},
			Content: VideoContent{Loop: true, Muted: true},
			Styles:  map[string]string{},
		}, nil
	case ElementTicker:
		return Defaults{
			Name:    "Ticker",
			Size:    geometry.Size{Width: 1920, Height: 64},
			Content: TickerContent{Speed: 120, Separator: " • "},
			Styles:  map[string]string{"background": "#111111", "color": "#ffffff"},
		}, nil
	case ElementGroup:
		return Defaults{
			Name:    "Group",
			Size:    geometry.Size{},
			Content: GroupContent{Padding: geometry.DefaultPadding},
			Styles:  map[string]string{},
		}, nil
	default:
		return Defaults{}, errors.New(errors.ErrCodeValidation, "unknown element type %q", t)
	}
}
