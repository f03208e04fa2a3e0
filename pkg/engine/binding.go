package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/keylinehq/keyline/pkg/datasource"
	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
	"github.com/keylinehq/keyline/pkg/observability"
)

// fallbackMatchThreshold is the minimum fraction of a template's binding
// keys an endpoint must resolve to be adopted as its data source.
const fallbackMatchThreshold = 0.5

// BindingData is the per-template data cache entry: the resolved source
// and its fetched records, plus which record is active.
type BindingData struct {
	DataSourceID      string
	Name              string
	Slug              string
	DisplayField      string
	Records           []datasource.Record
	ActiveRecordIndex int
}

// ActiveRecord returns the currently active record, or nil when no
// records are cached.
func (d *BindingData) ActiveRecord() datasource.Record {
	if d == nil || len(d.Records) == 0 {
		return nil
	}
	return d.Records[d.ActiveRecordIndex]
}

// TemplateData returns the cached binding data for a template, or nil.
func (e *Engine) TemplateData(templateID string) *BindingData {
	return e.bindingData[templateID]
}

// ClearTemplateData invalidates the cached binding data for a template, so
// the next switch to it re-fetches.
func (e *Engine) ClearTemplateData(templateID string) {
	delete(e.bindingData, templateID)
}

// =============================================================================
// Template switching and hydration
// =============================================================================

// SetCurrentTemplate switches the active template and hydrates its
// binding data by precedence: an existing cache entry is used verbatim
// without fetching; otherwise a declared data source triggers a fetch;
// otherwise the template has no data.
//
// The fetch runs synchronously on the calling goroutine. Hosts that want
// background hydration use StartHydration/CommitHydration directly.
func (e *Engine) SetCurrentTemplate(ctx context.Context, templateID string) error {
	tpl := e.state.TemplateByID(templateID)
	if tpl == nil {
		return errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", templateID)
	}
	e.setCurrentTemplateLocal(templateID)

	if _, cached := e.bindingData[templateID]; cached {
		return nil
	}
	h, ok := e.StartHydration(templateID)
	if !ok {
		return nil
	}
	return e.RunHydration(ctx, h)
}

// setCurrentTemplateLocal switches the active template without touching
// binding data. The transport resets: the playhead belongs to the
// template being left.
func (e *Engine) setCurrentTemplateLocal(templateID string) {
	if e.currentTemplateID == templateID {
		return
	}
	e.currentTemplateID = templateID
	e.transport = Transport{Phase: document.PhaseIn}
}

// Hydration is one pending data fetch for a template. The generation
// token guards against stale commits: only the most recently started
// hydration for a template may commit.
type Hydration struct {
	TemplateID string
	Slug       string
	Generation uint64
}

// StartHydration registers a new hydration for a template and returns its
// token. Returns ok=false when the template has no declared data source
// or no resolver is configured.
func (e *Engine) StartHydration(templateID string) (Hydration, bool) {
	tpl := e.state.TemplateByID(templateID)
	if tpl == nil || e.opts.Resolver == nil {
		return Hydration{}, false
	}
	slug := ""
	if tpl.DataSourceConfig != nil {
		slug = tpl.DataSourceConfig.Slug
	}
	if slug == "" {
		return Hydration{}, false
	}
	e.hydrationGen[templateID]++
	return Hydration{
		TemplateID: templateID,
		Slug:       slug,
		Generation: e.hydrationGen[templateID],
	}, true
}

// RunHydration fetches the records for a started hydration and commits
// them. Split from StartHydration so hosts can run the fetch on another
// goroutine and re-enter the engine to commit.
func (e *Engine) RunHydration(ctx context.Context, h Hydration) error {
	start := time.Now()
	observability.Engine().OnHydrateStart(ctx, h.TemplateID, h.Slug)

	endpoint, err := e.opts.Resolver.ResolveBySlug(ctx, h.Slug)
	if err != nil {
		observability.Engine().OnHydrateComplete(ctx, h.TemplateID, 0, time.Since(start), err)
		return err
	}
	records, err := e.opts.Resolver.FetchRecords(ctx, h.Slug)
	if err != nil {
		observability.Engine().OnHydrateComplete(ctx, h.TemplateID, 0, time.Since(start), err)
		return err
	}
	committed := e.CommitHydration(h, endpoint, records)
	observability.Engine().OnHydrateComplete(ctx, h.TemplateID, len(records), time.Since(start), nil)
	if !committed {
		e.log.Debug("discarded stale hydration", "template", h.TemplateID, "slug", h.Slug)
	}
	return nil
}

// CommitHydration installs fetched records as the template's binding data.
// A hydration superseded by a newer one for the same template is discarded
// and false is returned.
func (e *Engine) CommitHydration(h Hydration, endpoint *datasource.Endpoint, records []datasource.Record) bool {
	if e.hydrationGen[h.TemplateID] != h.Generation {
		return false
	}
	data := &BindingData{
		Slug:    h.Slug,
		Records: records,
	}
	if endpoint != nil {
		data.DataSourceID = endpoint.ID
		data.Name = endpoint.Name
	}
	if tpl := e.state.TemplateByID(h.TemplateID); tpl != nil && tpl.DataSourceConfig != nil {
		data.DisplayField = tpl.DataSourceConfig.DisplayField
	}
	e.bindingData[h.TemplateID] = data
	return true
}

// =============================================================================
// Fallback source matching
// =============================================================================

// MatchFallbackSource finds a data source for a template that has bindings
// but no declared source: every listed endpoint is probed and the first
// one resolving at least half of the template's binding keys is adopted
// and persisted on the template.
//
// Returns the matched endpoint, or nil when none qualifies.
func (e *Engine) MatchFallbackSource(ctx context.Context, templateID string) (*datasource.Endpoint, error) {
	tpl := e.state.TemplateByID(templateID)
	if tpl == nil {
		return nil, errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", templateID)
	}
	if e.opts.Resolver == nil {
		return nil, errors.New(errors.ErrCodeValidation, "no data resolver configured")
	}
	keys := e.templateBindingKeys(templateID)
	if len(keys) == 0 {
		return nil, nil
	}

	endpoints, err := e.opts.Resolver.ListEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	for _, ep := range endpoints {
		records, err := e.opts.Resolver.FetchRecords(ctx, ep.Slug)
		if err != nil {
			e.log.Warn("fallback probe failed", "slug", ep.Slug, "err", err)
			continue
		}
		if datasource.ResolutionRatio(records, keys) < fallbackMatchThreshold {
			continue
		}

		tpl.DataSourceID = ep.ID
		tpl.DataSourceConfig = &document.DataSourceConfig{Slug: ep.Slug}
		e.markDirty()
		e.bindingData[templateID] = &BindingData{
			DataSourceID: ep.ID,
			Name:         ep.Name,
			Slug:         ep.Slug,
			Records:      records,
		}
		return &ep, nil
	}
	return nil, nil
}

// templateBindingKeys collects the distinct binding keys used by a
// template's elements.
func (e *Engine) templateBindingKeys(templateID string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, b := range e.state.Bindings {
		el := e.state.ElementByID(b.ElementID)
		if el == nil || el.TemplateID != templateID || seen[b.BindingKey] {
			continue
		}
		seen[b.BindingKey] = true
		keys = append(keys, b.BindingKey)
	}
	return keys
}

// =============================================================================
// Bindings
// =============================================================================

// AddBinding links an element property to a field of the active record.
func (e *Engine) AddBinding(elementID, bindingKey, targetProperty, bindingType string) (*document.Binding, error) {
	el := e.state.ElementByID(elementID)
	if el == nil {
		return nil, errors.New(errors.ErrCodeElementNotFound, "element %s not found", elementID)
	}
	if bindingKey == "" || targetProperty == "" {
		return nil, errors.New(errors.ErrCodeValidation, "binding key and target property are required")
	}

	e.pushHistory("Add binding")
	b := &document.Binding{
		ID:             uuid.NewString(),
		TemplateID:     el.TemplateID,
		ElementID:      elementID,
		BindingKey:     bindingKey,
		TargetProperty: targetProperty,
		BindingType:    bindingType,
	}
	e.state.Bindings = append(e.state.Bindings, b)
	e.markDirty()
	return b, nil
}

// DeleteBinding removes a binding.
func (e *Engine) DeleteBinding(id string) error {
	found := false
	for _, b := range e.state.Bindings {
		if b.ID == id {
			found = true
			break
		}
	}
	if !found {
		return errors.New(errors.ErrCodeNotFound, "binding %s not found", id)
	}
	e.pushHistory("Delete binding")
	e.state.Bindings = filterOut(e.state.Bindings, func(b *document.Binding) bool { return b.ID == id })
	e.pending.Bindings = enqueue(e.pending.Bindings, id)
	e.markDirty()
	return nil
}

// ResolveBinding evaluates one binding against the active record of the
// element's template. The second return is false when no data is cached or
// the key does not resolve.
func (e *Engine) ResolveBinding(b *document.Binding) (any, bool) {
	el := e.state.ElementByID(b.ElementID)
	if el == nil {
		return nil, false
	}
	rec := e.bindingData[el.TemplateID].ActiveRecord()
	if rec == nil {
		return nil, false
	}
	return datasource.Lookup(rec, b.BindingKey)
}

// =============================================================================
// Record navigation
// =============================================================================

// SetCurrentRecordIndex selects the active record of a template's cached
// data, clamped to the valid range.
func (e *Engine) SetCurrentRecordIndex(templateID string, index int) error {
	data := e.bindingData[templateID]
	if data == nil {
		return errors.New(errors.ErrCodeValidation, "template %s has no cached data", templateID)
	}
	if len(data.Records) == 0 {
		data.ActiveRecordIndex = 0
		return nil
	}
	data.ActiveRecordIndex = clamp(index, 0, len(data.Records)-1)
	return nil
}

// NextRecord advances the active record, clamped at the last one.
func (e *Engine) NextRecord(templateID string) error {
	data := e.bindingData[templateID]
	if data == nil {
		return errors.New(errors.ErrCodeValidation, "template %s has no cached data", templateID)
	}
	return e.SetCurrentRecordIndex(templateID, data.ActiveRecordIndex+1)
}

// PrevRecord steps the active record back, clamped at the first one.
func (e *Engine) PrevRecord(templateID string) error {
	data := e.bindingData[templateID]
	if data == nil {
		return errors.New(errors.ErrCodeValidation, "template %s has no cached data", templateID)
	}
	return e.SetCurrentRecordIndex(templateID, data.ActiveRecordIndex-1)
}
