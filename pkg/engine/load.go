package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
)

// Load fetches a project from the remote store and makes it the engine's
// state, resetting history, selection, pending deletions, and the binding
// cache.
//
// The project, layers, and templates are fetched first; per-template
// children (elements, animations, keyframes, bindings) are then fetched
// concurrently. A single template failing to load is logged and skipped,
// the rest of the project still opens. When the remote store is
// unreachable outright, the durable local cache is consulted; its blob is
// structurally validated and a corrupt one counts as a miss.
func (e *Engine) Load(ctx context.Context, projectID string) error {
	project, err := e.opts.Store.FetchProject(ctx, projectID)
	if err != nil {
		return e.loadFromLocal(ctx, projectID, err)
	}
	layers, err := e.opts.Store.FetchLayers(ctx, projectID)
	if err != nil {
		return e.loadFromLocal(ctx, projectID, err)
	}
	templates, err := e.opts.Store.FetchTemplates(ctx, projectID)
	if err != nil {
		return e.loadFromLocal(ctx, projectID, err)
	}

	state := &document.State{
		Project:   project,
		Layers:    layers,
		Templates: templates,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, tpl := range templates {
		g.Go(func() error {
			children, err := e.fetchTemplateChildren(gctx, tpl.ID)
			if err != nil {
				// Degrade: open the project without this template's
				// children rather than failing the whole load.
				e.log.Warn("template load failed", "template", tpl.ID, "err", err)
				return nil
			}
			mu.Lock()
			state.Elements = append(state.Elements, children.elements...)
			state.Animations = append(state.Animations, children.animations...)
			state.Keyframes = append(state.Keyframes, children.keyframes...)
			state.Bindings = append(state.Bindings, children.bindings...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.resetSession(state)
	e.writeLocalFallback(ctx, projectID)
	e.log.Info("project loaded",
		"project", projectID,
		"templates", len(templates),
		"elements", len(state.Elements))
	return nil
}

// templateChildren bundles the per-template fetches.
type templateChildren struct {
	elements   []*document.Element
	animations []*document.Animation
	keyframes  []*document.Keyframe
	bindings   []*document.Binding
}

func (e *Engine) fetchTemplateChildren(ctx context.Context, templateID string) (templateChildren, error) {
	var out templateChildren
	var err error
	if out.elements, err = e.opts.Store.FetchElements(ctx, templateID); err != nil {
		return out, err
	}
	if out.animations, err = e.opts.Store.FetchAnimations(ctx, templateID); err != nil {
		return out, err
	}
	if out.keyframes, err = e.opts.Store.FetchKeyframes(ctx, templateID); err != nil {
		return out, err
	}
	if out.bindings, err = e.opts.Store.FetchBindings(ctx, templateID); err != nil {
		return out, err
	}
	return out, nil
}

// loadFromLocal falls back to the durable local cache after a remote
// failure. A cache miss surfaces the original remote error.
func (e *Engine) loadFromLocal(ctx context.Context, projectID string, remoteErr error) error {
	state, hit, err := e.opts.Local.Get(ctx, projectID)
	if err != nil {
		e.log.Warn("local fallback read failed", "project", projectID, "err", err)
	}
	if !hit {
		code := errors.GetCode(remoteErr)
		if code == "" {
			code = errors.ErrCodeNetwork
		}
		return errors.Wrap(code, remoteErr, "project %s unavailable remotely and not cached locally", projectID)
	}
	e.log.Warn("remote unavailable, loaded project from local cache", "project", projectID, "err", remoteErr)
	e.resetSession(state)
	return nil
}
