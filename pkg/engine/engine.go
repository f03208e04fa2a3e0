// Package engine implements the Keyline state engine: the single owner of
// a loaded project's scene state and every mutation applied to it.
//
// # Architecture
//
// Engine is an explicitly constructed object; there is no package-level
// instance and multiple engines can coexist in one process. All state
// transitions are synchronous methods that run to completion: the engine
// is single-goroutine owned and not safe for concurrent use. Hosts that
// need background work (data hydration, saving) drive it through the
// explicit generation-token hydration API and re-enter the engine from
// their own goroutine discipline.
//
// The engine groups its behavior into five concerns, one file each:
//
//   - scene.go: scene graph mutations (add/duplicate/delete/group/reorder)
//   - timeline.go: phases, transport, animations, keyframes, sampling
//   - history.go: snapshot undo/redo
//   - binding.go: per-template data binding cache and hydration
//   - sync.go, load.go: persistence against the remote store and the
//     durable local cache
//
// # Usage
//
//	eng, err := engine.New(engine.Options{
//	    Store:    remote.NewHTTPStore(baseURL),
//	    Resolver: datasource.NewHTTPResolver(dataURL),
//	    Local:    cache.NewProjectStore(fileCache),
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := eng.Load(ctx, projectID); err != nil {
//	    return err
//	}
//	el, _ := eng.AddElement(templateID, document.ElementText, "")
//	_ = eng.Save(ctx)
package engine

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/keylinehq/keyline/pkg/cache"
	"github.com/keylinehq/keyline/pkg/datasource"
	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
	"github.com/keylinehq/keyline/pkg/measure"
	"github.com/keylinehq/keyline/pkg/remote"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultHistoryCap bounds the undo stack. The oldest entry is evicted
	// when a push would exceed it.
	DefaultHistoryCap = 50

	// zIndexStep separates sibling z-index and sort-order values so
	// elements can be slotted between neighbors without renumbering.
	zIndexStep = 10

	// Pinned z-index values per element type. Video backgrounds always
	// paint first; tickers always paint above ordinary content.
	zIndexVideo  = 0
	zIndexTicker = 500

	// duplicateOffset shifts duplicated subtree roots so copies do not
	// land exactly on their originals.
	duplicateOffset = 16
)

// =============================================================================
// Options
// =============================================================================

// Options configures an Engine.
type Options struct {
	// Store is the remote entity store used by Load and Save. Required.
	Store remote.Store

	// Resolver provides external data endpoints for the binding cache.
	// Optional: without it templates hydrate from cache only.
	Resolver datasource.Resolver

	// Measurer measures text for the fit-to-content pass. Defaults to the
	// headless heuristic.
	Measurer measure.Measurer

	// Local is the durable local cache written after every save attempt
	// and consulted when the remote store is unreachable. Defaults to a
	// null-backed store (no local fallback).
	Local *cache.ProjectStore

	// Logger receives engine diagnostics. Defaults to a discard logger;
	// the engine never writes to stderr on its own.
	Logger *log.Logger

	// HistoryCap overrides the undo stack bound. Defaults to
	// DefaultHistoryCap.
	HistoryCap int

	// SkipSave commits save cycles to the local cache only, deferring all
	// remote persistence. The dirty flag stays set so a later real save
	// still runs.
	SkipSave bool
}

// ValidateAndSetDefaults checks required options and fills defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Store == nil {
		return errors.New(errors.ErrCodeValidation, "engine requires a remote store")
	}
	if o.Measurer == nil {
		o.Measurer = measure.NewHeuristic()
	}
	if o.Local == nil {
		o.Local = cache.NewProjectStore(nil)
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	if o.HistoryCap <= 0 {
		o.HistoryCap = DefaultHistoryCap
	}
	return nil
}

// =============================================================================
// Engine
// =============================================================================

// pendingDeletions holds the ids removed locally but not yet deleted
// remotely, one queue per entity kind. Queues are drained by the save
// cycle in dependency order and each id is enqueued at most once.
type pendingDeletions struct {
	Elements   []string
	Animations []string
	Keyframes  []string
	Bindings   []string
	Templates  []string
	Layers     []string
}

func enqueue(queue []string, id string) []string {
	for _, existing := range queue {
		if existing == id {
			return queue
		}
	}
	return append(queue, id)
}

func (p *pendingDeletions) empty() bool {
	return len(p.Elements) == 0 && len(p.Animations) == 0 && len(p.Keyframes) == 0 &&
		len(p.Bindings) == 0 && len(p.Templates) == 0 && len(p.Layers) == 0
}

// Engine owns one project's scene state and applies every mutation to it.
// Not safe for concurrent use.
type Engine struct {
	opts Options
	log  *log.Logger

	state *document.State
	dirty bool

	pending  pendingDeletions
	archives []*document.Template

	// History (history.go).
	undoStack []historyEntry
	redoStack []historyEntry

	// Selection and outline UI state. Never part of history snapshots.
	selection         []string
	selectedKeyframe  string
	outlineExpanded   map[string]bool
	currentTemplateID string

	// Binding cache (binding.go).
	bindingData  map[string]*BindingData
	hydrationGen map[string]uint64

	// Transport (timeline.go).
	transport Transport

	// Deferred fit-to-content queue (fit.go).
	fitPending map[string]bool
}

// New constructs an engine with an empty state. Call Load or NewProject
// before editing.
func New(opts Options) (*Engine, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return &Engine{
		opts:            opts,
		log:             opts.Logger,
		state:           &document.State{},
		outlineExpanded: make(map[string]bool),
		bindingData:     make(map[string]*BindingData),
		hydrationGen:    make(map[string]uint64),
		fitPending:      make(map[string]bool),
		transport:       Transport{Phase: document.PhaseIn},
	}, nil
}

// NewProject initializes a fresh project in place of any loaded state.
func (e *Engine) NewProject(name string, canvasWidth, canvasHeight int) *document.Project {
	p := &document.Project{
		ID:           uuid.NewString(),
		Name:         name,
		CanvasWidth:  canvasWidth,
		CanvasHeight: canvasHeight,
		FrameRate:    50,
		Settings: document.ProjectSettings{
			PhaseDurations: map[document.Phase]int{
				document.PhaseIn:   document.DefaultPhaseDuration,
				document.PhaseLoop: document.DefaultPhaseDuration,
				document.PhaseOut:  document.DefaultPhaseDuration,
			},
			Tokens: map[string]string{},
		},
	}
	e.resetSession(&document.State{Project: p})
	e.dirty = true
	return p
}

// resetSession replaces the state and clears every per-session collection:
// history, selection, pending deletions, binding cache, transport.
func (e *Engine) resetSession(state *document.State) {
	e.state = state
	e.dirty = false
	e.pending = pendingDeletions{}
	e.archives = nil
	e.undoStack = nil
	e.redoStack = nil
	e.selection = nil
	e.selectedKeyframe = ""
	e.outlineExpanded = make(map[string]bool)
	e.currentTemplateID = ""
	e.bindingData = make(map[string]*BindingData)
	e.hydrationGen = make(map[string]uint64)
	e.fitPending = make(map[string]bool)
	e.transport = Transport{Phase: document.PhaseIn}
}

// ImportState installs an externally produced state, such as a locally
// cached snapshot, and marks the session dirty so the next save pushes
// the full state to the remote store.
func (e *Engine) ImportState(state *document.State) error {
	if state == nil || state.Project == nil {
		return errors.New(errors.ErrCodeValidation, "state has no project")
	}
	e.resetSession(state)
	e.dirty = true
	return nil
}

// State returns the live scene state. Callers must treat it as read-only;
// every mutation goes through engine methods so dirty tracking, history,
// and pending-deletion bookkeeping stay correct.
func (e *Engine) State() *document.State { return e.state }

// IsDirty reports whether unsaved changes exist.
func (e *Engine) IsDirty() bool { return e.dirty }

// markDirty flags the session as having unsaved changes.
func (e *Engine) markDirty() { e.dirty = true }

// CurrentTemplateID returns the template whose timeline and binding state
// are active, or "" when none is.
func (e *Engine) CurrentTemplateID() string { return e.currentTemplateID }

// =============================================================================
// Selection
// =============================================================================

// SelectMode controls how SelectElements combines ids with the current
// selection.
type SelectMode int

// Selection modes.
const (
	// SelectReplace discards the current selection.
	SelectReplace SelectMode = iota
	// SelectAdd unions ids into the current selection.
	SelectAdd
	// SelectToggle adds missing ids and removes present ones.
	SelectToggle
)

// SelectOptions tunes side effects of a selection change.
type SelectOptions struct {
	// ExpandInOutline expands the outline ancestors of each selected
	// element so the selection is visible in the tree view.
	ExpandInOutline bool

	// SkipTemplateSwitch suppresses switching the current template to the
	// selection's template (used when the host is mid-switch already).
	SkipTemplateSwitch bool
}

// SelectElements updates the selection. Unknown ids are a validation
// error. Selection changes never touch history or the dirty flag.
func (e *Engine) SelectElements(ids []string, mode SelectMode, opts SelectOptions) error {
	for _, id := range ids {
		if e.state.ElementByID(id) == nil {
			return errors.New(errors.ErrCodeElementNotFound, "cannot select missing element %s", id)
		}
	}

	switch mode {
	case SelectReplace:
		e.selection = append([]string(nil), ids...)
	case SelectAdd:
		for _, id := range ids {
			e.selection = enqueue(e.selection, id)
		}
	case SelectToggle:
		for _, id := range ids {
			if idx := indexOf(e.selection, id); idx >= 0 {
				e.selection = append(e.selection[:idx], e.selection[idx+1:]...)
			} else {
				e.selection = append(e.selection, id)
			}
		}
	default:
		return errors.New(errors.ErrCodeValidation, "unknown select mode %d", mode)
	}

	if opts.ExpandInOutline {
		for _, id := range e.selection {
			for el := e.state.ElementByID(id); el != nil && el.ParentElementID != ""; {
				e.outlineExpanded[el.ParentElementID] = true
				el = e.state.ElementByID(el.ParentElementID)
			}
		}
	}

	if !opts.SkipTemplateSwitch && len(e.selection) > 0 {
		if el := e.state.ElementByID(e.selection[0]); el != nil && el.TemplateID != e.currentTemplateID {
			e.setCurrentTemplateLocal(el.TemplateID)
		}
	}
	return nil
}

// Selection returns the selected element ids in selection order.
func (e *Engine) Selection() []string {
	return append([]string(nil), e.selection...)
}

// ClearSelection empties the selection.
func (e *Engine) ClearSelection() {
	e.selection = nil
}

// OutlineExpanded reports whether an element is expanded in the outline.
func (e *Engine) OutlineExpanded(id string) bool {
	return e.outlineExpanded[id]
}

// dropFromSelection removes deleted ids from the selection.
func (e *Engine) dropFromSelection(removed map[string]bool) {
	kept := e.selection[:0]
	for _, id := range e.selection {
		if !removed[id] {
			kept = append(kept, id)
		}
	}
	e.selection = kept
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
