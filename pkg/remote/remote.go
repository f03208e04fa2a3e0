// Package remote defines the remote entity store contract the persistence
// coordinator saves into, plus three implementations:
//
//   - HTTPStore: JSON-over-HTTP against the Keyline API
//   - MongoStore: direct MongoDB bulk writes for self-hosted deployments
//   - MemStore: in-memory fake for tests
//
// The contract is deliberately narrow: per-kind fetches keyed by parent
// id, and idempotent batch upsert/delete. Batches must be shape-uniform
// within a kind; [Encode] produces key-complete records with optional
// fields defaulted so bulk writes never carry ragged shapes.
package remote

import (
	"context"
	"encoding/json"

	"github.com/keylinehq/keyline/pkg/document"
)

// Kind names an entity collection in the remote store.
type Kind string

// Entity kinds, in upstream-before-downstream save order.
const (
	KindProject   Kind = "projects"
	KindLayer     Kind = "layers"
	KindTemplate  Kind = "templates"
	KindElement   Kind = "elements"
	KindAnimation Kind = "animations"
	KindKeyframe  Kind = "keyframes"
	KindBinding   Kind = "bindings"
)

// SaveOrder lists the kinds in the order a save cycle upserts them:
// upstream before downstream so foreign keys are always satisfiable.
var SaveOrder = []Kind{
	KindProject, KindLayer, KindTemplate, KindElement, KindAnimation, KindKeyframe, KindBinding,
}

// DeleteOrder lists the kinds in the order the pending-deletion drain
// processes them: leaves before parents.
var DeleteOrder = []Kind{
	KindKeyframe, KindAnimation, KindBinding, KindElement, KindTemplate, KindLayer,
}

// Record is one serialized entity in wire shape.
type Record map[string]any

// Store is the remote entity store the persistence coordinator talks to.
// All calls respect context cancellation; implementations apply their own
// per-call timeout on top when configured.
type Store interface {
	FetchProject(ctx context.Context, projectID string) (*document.Project, error)
	FetchLayers(ctx context.Context, projectID string) ([]*document.Layer, error)
	FetchTemplates(ctx context.Context, projectID string) ([]*document.Template, error)
	FetchElements(ctx context.Context, templateID string) ([]*document.Element, error)
	FetchAnimations(ctx context.Context, templateID string) ([]*document.Animation, error)
	FetchKeyframes(ctx context.Context, templateID string) ([]*document.Keyframe, error)
	FetchBindings(ctx context.Context, templateID string) ([]*document.Binding, error)

	// BatchUpsert writes records idempotently on primary key. Records in
	// one batch must share a uniform key set.
	BatchUpsert(ctx context.Context, kind Kind, records []Record) error

	// BatchDelete removes entities by id. Deleting an absent id is not an
	// error.
	BatchDelete(ctx context.Context, kind Kind, ids []string) error
}

// Encode serializes an entity to its wire record and fills per-kind
// optional keys with explicit defaults. Optional fields serialized with
// omitempty would otherwise make batches ragged.
func Encode(kind Kind, v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	normalize(kind, rec)
	return rec, nil
}

// normalize fills the optional keys of a kind with their zero defaults.
func normalize(kind Kind, rec Record) {
	ensure := func(key string, def any) {
		if _, ok := rec[key]; !ok {
			rec[key] = def
		}
	}
	switch kind {
	case KindElement:
		ensure("parent_element_id", "")
		ensure("content", nil)
		ensure("styles", map[string]any{})
	case KindTemplate:
		ensure("data_source_id", "")
		ensure("data_source_config", nil)
	case KindBinding:
		ensure("formatter", "")
	}
}

// decodeRecords converts wire records into typed entities through the
// canonical JSON shape. Used by stores that hold raw records internally.
func decodeRecords[T any](records []Record) ([]*T, error) {
	out := make([]*T, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		v := new(T)
		if err := json.Unmarshal(data, v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
