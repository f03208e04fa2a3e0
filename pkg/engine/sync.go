package engine

import (
	"context"
	"time"

	"github.com/keylinehq/keyline/pkg/errors"
	"github.com/keylinehq/keyline/pkg/observability"
	"github.com/keylinehq/keyline/pkg/remote"
)

// Save runs one full persistence cycle against the remote store:
//
//  1. Upsert batches in dependency order: project, layers, templates,
//     elements, animations, keyframes, bindings. Archived templates ride
//     along in the templates batch.
//  2. Drain the pending-deletion queues in reverse dependency order:
//     keyframes, animations, bindings, elements, templates, layers.
//
// A failed step never aborts the cycle; remaining steps still run and the
// failures come back aggregated as a PartialSaveError. The deletion
// queues are cleared together once the drain ran. The dirty flag clears
// only on a fully clean cycle, so a later save retries everything.
//
// Regardless of outcome, the full state is written to the durable local
// cache afterwards so an offline fallback always reflects the latest
// edits.
//
// With Options.SkipSave set, the remote store is not touched: the state
// is committed to the local cache and the session stays dirty.
func (e *Engine) Save(ctx context.Context) error {
	if e.state.Project == nil {
		return errors.New(errors.ErrCodeValidation, "no project loaded")
	}
	projectID := e.state.Project.ID

	if e.opts.SkipSave {
		e.log.Debug("skipping remote save", "project", projectID)
		e.writeLocalFallback(ctx, projectID)
		return nil
	}

	start := time.Now()
	observability.Engine().OnSaveStart(ctx, projectID)

	perr := &errors.PartialSaveError{}
	for _, kind := range remote.SaveOrder {
		records, err := e.encodeBatch(kind)
		step := "upsert:" + string(kind)
		if err != nil {
			perr.Add(step, err)
			continue
		}
		if err := e.opts.Store.BatchUpsert(ctx, kind, records); err != nil {
			e.log.Warn("save step failed", "step", step, "err", err)
			perr.Add(step, err)
		}
	}

	queues := []struct {
		kind remote.Kind
		ids  []string
	}{
		{remote.KindKeyframe, e.pending.Keyframes},
		{remote.KindAnimation, e.pending.Animations},
		{remote.KindBinding, e.pending.Bindings},
		{remote.KindElement, e.pending.Elements},
		{remote.KindTemplate, e.pending.Templates},
		{remote.KindLayer, e.pending.Layers},
	}
	for _, q := range queues {
		if len(q.ids) == 0 {
			continue
		}
		step := "delete:" + string(q.kind)
		if err := e.opts.Store.BatchDelete(ctx, q.kind, q.ids); err != nil {
			e.log.Warn("save step failed", "step", step, "err", err)
			perr.Add(step, err)
		}
	}
	// The drain ran (successfully or not); the queues are cleared as one.
	// Entities that failed to delete remotely are gone locally either way
	// and the next full upsert cycle does not resurrect them.
	e.pending = pendingDeletions{}

	err := perr.OrNil()
	if err == nil {
		e.dirty = false
		e.archives = nil
	}
	observability.Engine().OnSaveComplete(ctx, projectID, time.Since(start), err)

	e.writeLocalFallback(ctx, projectID)
	return err
}

// encodeBatch serializes one kind's collection into wire records. The
// templates batch includes pending archive upserts so soft-deletes reach
// the remote store.
func (e *Engine) encodeBatch(kind remote.Kind) ([]remote.Record, error) {
	var entities []any
	switch kind {
	case remote.KindProject:
		entities = append(entities, e.state.Project)
	case remote.KindLayer:
		for _, l := range e.state.Layers {
			entities = append(entities, l)
		}
	case remote.KindTemplate:
		for _, t := range e.state.Templates {
			entities = append(entities, t)
		}
		for _, t := range e.archives {
			entities = append(entities, t)
		}
	case remote.KindElement:
		for _, el := range e.state.Elements {
			entities = append(entities, el)
		}
	case remote.KindAnimation:
		for _, a := range e.state.Animations {
			entities = append(entities, a)
		}
	case remote.KindKeyframe:
		for _, k := range e.state.Keyframes {
			entities = append(entities, k)
		}
	case remote.KindBinding:
		for _, b := range e.state.Bindings {
			entities = append(entities, b)
		}
	default:
		return nil, errors.New(errors.ErrCodeInternal, "unknown save kind %q", kind)
	}

	records := make([]remote.Record, 0, len(entities))
	for _, v := range entities {
		rec, err := remote.Encode(kind, v)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode %s record", kind)
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeLocalFallback persists the full state to the durable local cache.
// Failures are logged, never surfaced: a broken local cache must not fail
// a save.
func (e *Engine) writeLocalFallback(ctx context.Context, projectID string) {
	if err := e.opts.Local.Set(ctx, projectID, e.state); err != nil {
		e.log.Warn("local fallback write failed", "project", projectID, "err", err)
	}
}

// PendingDeletionCount returns the total number of ids queued for remote
// deletion.
func (e *Engine) PendingDeletionCount() int {
	p := &e.pending
	return len(p.Elements) + len(p.Animations) + len(p.Keyframes) +
		len(p.Bindings) + len(p.Templates) + len(p.Layers)
}
