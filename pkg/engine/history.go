package engine

import (
	"context"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/observability"
)

// historyEntry is one undoable step: the structural state as it was
// before the described mutation ran.
type historyEntry struct {
	Description string
	Snapshot    document.Snapshot
}

// pushHistory captures the pre-mutation structural snapshot. Every
// structural operation calls it before mutating; non-structural changes
// (selection, playhead, pan/zoom) never do. Pushing truncates the redo
// tail and evicts the oldest entry once the cap is reached.
func (e *Engine) pushHistory(description string) {
	e.undoStack = append(e.undoStack, historyEntry{
		Description: description,
		Snapshot:    e.state.StructuralSnapshot(),
	})
	e.redoStack = nil
	if len(e.undoStack) > e.opts.HistoryCap {
		e.undoStack = e.undoStack[len(e.undoStack)-e.opts.HistoryCap:]
	}
	observability.Engine().OnHistoryPush(context.Background(), description, len(e.undoStack))
}

// clearHistory drops both stacks. Called when a template is archived or
// deleted: snapshots cover only the element-level collections, so every
// entry captured while the template existed would, if restored, resurrect
// entities whose template row is gone.
func (e *Engine) clearHistory() {
	e.undoStack = nil
	e.redoStack = nil
}

// CanUndo reports whether an undo step is available.
func (e *Engine) CanUndo() bool { return len(e.undoStack) > 0 }

// CanRedo reports whether a redo step is available.
func (e *Engine) CanRedo() bool { return len(e.redoStack) > 0 }

// UndoDepth returns the number of undoable steps.
func (e *Engine) UndoDepth() int { return len(e.undoStack) }

// Undo restores the structural collections from the most recent history
// entry, wholesale. The pre-undo state moves onto the redo stack. Undoing
// marks the session dirty: the restored state differs from what was last
// saved.
func (e *Engine) Undo() bool {
	if len(e.undoStack) == 0 {
		return false
	}
	entry := e.undoStack[len(e.undoStack)-1]
	e.undoStack = e.undoStack[:len(e.undoStack)-1]

	e.redoStack = append(e.redoStack, historyEntry{
		Description: entry.Description,
		Snapshot:    e.state.StructuralSnapshot(),
	})
	e.state.RestoreSnapshot(entry.Snapshot)
	e.afterHistoryRestore()
	return true
}

// Redo re-applies the most recently undone step.
func (e *Engine) Redo() bool {
	if len(e.redoStack) == 0 {
		return false
	}
	entry := e.redoStack[len(e.redoStack)-1]
	e.redoStack = e.redoStack[:len(e.redoStack)-1]

	e.undoStack = append(e.undoStack, historyEntry{
		Description: entry.Description,
		Snapshot:    e.state.StructuralSnapshot(),
	})
	e.state.RestoreSnapshot(entry.Snapshot)
	e.afterHistoryRestore()
	return true
}

// afterHistoryRestore reconciles session state with a restored snapshot:
// selected ids that no longer exist are dropped and the session is dirty.
func (e *Engine) afterHistoryRestore() {
	gone := make(map[string]bool)
	for _, id := range e.selection {
		if e.state.ElementByID(id) == nil {
			gone[id] = true
		}
	}
	if len(gone) > 0 {
		e.dropFromSelection(gone)
	}
	if e.selectedKeyframe != "" && e.state.KeyframeByID(e.selectedKeyframe) == nil {
		e.selectedKeyframe = ""
	}
	e.markDirty()
}

// LastUndoDescription returns the description of the step Undo would
// revert, or "".
func (e *Engine) LastUndoDescription() string {
	if len(e.undoStack) == 0 {
		return ""
	}
	return e.undoStack[len(e.undoStack)-1].Description
}
