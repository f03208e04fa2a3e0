// Package pkg provides the core libraries for the Keyline scene and
// timeline engine.
//
// # Overview
//
// Keyline edits broadcast motion-graphics templates: scene graphs of
// positioned elements, phase-based timelines, and live data bindings. The
// pkg directory is organized into four main areas:
//
//  1. [engine] - State engine (scene graph, timeline, history, bindings, sync)
//  2. [document] - Entity types and the scene state container
//  3. Infrastructure - [remote], [cache], [datasource], [httputil]
//  4. Supporting - [geometry], [measure], [errors], [observability], [treeviz]
//
// # Architecture
//
// The typical data flow through Keyline:
//
//	Remote entity store (or local cache fallback)
//	         ↓
//	    [engine] Load (scene state assembly)
//	         ↓
//	    [engine] mutations (scene, timeline, bindings, history)
//	         ↓
//	    [engine] Save (ordered upsert batches + deletion drain)
//	         ↓
//	    Remote entity store + durable local snapshot
//
// # Quick Start
//
// Open a project, edit it, and save:
//
//	import (
//	    "github.com/keylinehq/keyline/pkg/cache"
//	    "github.com/keylinehq/keyline/pkg/document"
//	    "github.com/keylinehq/keyline/pkg/engine"
//	    "github.com/keylinehq/keyline/pkg/remote"
//	)
//
//	fc, _ := cache.NewFileCache(dir)
//	eng, _ := engine.New(engine.Options{
//	    Store: remote.NewHTTPStore(baseURL),
//	    Local: cache.NewProjectStore(fc),
//	})
//	_ = eng.Load(ctx, projectID)
//	el, _ := eng.AddElement(templateID, document.ElementText, "")
//	_ = eng.Save(ctx)
//
// # Main Packages
//
// [engine] - The single owner of a loaded project's state. Synchronous
// mutations with snapshot undo/redo, deferred fit-to-content, a
// per-template data binding cache, and the persistence cycle.
//
// [document] - Projects, layers, templates, elements, animations,
// keyframes, and bindings, plus the State container with its traversal
// helpers and structural snapshots.
//
// [remote] - The entity store contract with HTTP, MongoDB, and in-memory
// implementations. Batches are shape-uniform and ordered so foreign keys
// stay satisfiable.
//
// [cache] - Local caching: file, Redis, and null backends behind one
// interface, plus the validated project snapshot store.
//
// [datasource] - External data endpoints for bindings: resolution by
// slug, record fetching, and key-coverage probing for fallback matching.
//
// [geometry], [measure] - Rectangle math for grouping and fit-to-content,
// and headless text measurement.
package pkg
