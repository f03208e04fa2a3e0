package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
)

// MemStore is an in-memory Store for tests. It records the order of batch
// calls so tests can assert the save cycle's kind ordering, and supports
// per-operation failure injection.
type MemStore struct {
	mu      sync.Mutex
	records map[Kind]map[string]Record

	// Calls lists batch operations in invocation order, formatted
	// "upsert:elements" / "delete:keyframes".
	Calls []string

	// Fail makes the named operation (same format as Calls) return its
	// error.
	Fail map[string]error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[Kind]map[string]Record),
		Fail:    make(map[string]error),
	}
}

// Seed inserts a record directly, bypassing call recording. Intended for
// test setup.
func (m *MemStore) Seed(kind Kind, rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(kind)[rec["id"].(string)] = rec
}

// Count returns the number of stored records of a kind.
func (m *MemStore) Count(kind Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[kind])
}

// Has reports whether a record of the kind exists.
func (m *MemStore) Has(kind Kind, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[kind][id]
	return ok
}

func (m *MemStore) bucket(kind Kind) map[string]Record {
	if m.records[kind] == nil {
		m.records[kind] = make(map[string]Record)
	}
	return m.records[kind]
}

// FetchProject implements [Store].
func (m *MemStore) FetchProject(ctx context.Context, projectID string) (*document.Project, error) {
	m.mu.Lock()
	rec, ok := m.records[KindProject][projectID]
	m.mu.Unlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeProjectNotFound, "project %s not found", projectID)
	}
	out, err := decodeRecords[document.Project]([]Record{rec})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// FetchLayers implements [Store].
func (m *MemStore) FetchLayers(ctx context.Context, projectID string) ([]*document.Layer, error) {
	return fetchMem[document.Layer](m, KindLayer, "project_id", projectID)
}

// FetchTemplates implements [Store].
func (m *MemStore) FetchTemplates(ctx context.Context, projectID string) ([]*document.Template, error) {
	return fetchMem[document.Template](m, KindTemplate, "project_id", projectID)
}

// FetchElements implements [Store].
func (m *MemStore) FetchElements(ctx context.Context, templateID string) ([]*document.Element, error) {
	if err := m.failure("fetch:elements:" + templateID); err != nil {
		return nil, err
	}
	return fetchMem[document.Element](m, KindElement, "template_id", templateID)
}

// FetchAnimations implements [Store].
func (m *MemStore) FetchAnimations(ctx context.Context, templateID string) ([]*document.Animation, error) {
	return fetchMem[document.Animation](m, KindAnimation, "template_id", templateID)
}

// FetchKeyframes implements [Store].
func (m *MemStore) FetchKeyframes(ctx context.Context, templateID string) ([]*document.Keyframe, error) {
	return fetchMem[document.Keyframe](m, KindKeyframe, "template_id", templateID)
}

// FetchBindings implements [Store].
func (m *MemStore) FetchBindings(ctx context.Context, templateID string) ([]*document.Binding, error) {
	return fetchMem[document.Binding](m, KindBinding, "template_id", templateID)
}

// BatchUpsert implements [Store].
func (m *MemStore) BatchUpsert(ctx context.Context, kind Kind, records []Record) error {
	op := "upsert:" + string(kind)
	m.record(op)
	if err := m.failure(op); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		id, _ := rec["id"].(string)
		if id == "" {
			return errors.New(errors.ErrCodeValidation, "%s record without id", kind)
		}
		m.bucket(kind)[id] = rec
	}
	return nil
}

// BatchDelete implements [Store].
func (m *MemStore) BatchDelete(ctx context.Context, kind Kind, ids []string) error {
	op := "delete:" + string(kind)
	m.record(op)
	if err := m.failure(op); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records[kind], id)
	}
	return nil
}

func (m *MemStore) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, op)
}

func (m *MemStore) failure(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Fail[op]
}

func fetchMem[T any](m *MemStore, kind Kind, parentKey, parentID string) ([]*T, error) {
	m.mu.Lock()
	var matched []Record
	for _, rec := range m.records[kind] {
		if rec[parentKey] == parentID {
			matched = append(matched, rec)
		}
	}
	m.mu.Unlock()
	out, err := decodeRecords[T](matched)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return out, nil
}

// Ensure MemStore implements Store.
var _ Store = (*MemStore)(nil)
