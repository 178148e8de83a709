package session

import (
	"io"
	"log/slog"
	"sync"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/observability"
)

// WorkingSetState tracks which working set is being edited. It is deliberately
// independent of Session: switching or clearing the working set never touches
// filter or condition state, and nothing is derived from it.
type WorkingSetState struct {
	mu  sync.RWMutex
	log *slog.Logger

	editing *model.WorkingSet
}

func NewWorkingSetState(log *slog.Logger) *WorkingSetState {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &WorkingSetState{log: log}
}

// SetEditing replaces the working set under edit, nil to clear.
func (w *WorkingSetState) SetEditing(ws *model.WorkingSet) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ws == nil {
		w.editing = nil
		w.log.Debug("editing working set cleared")
	} else {
		cp := *ws
		w.editing = &cp
		w.log.Debug("editing working set set", "working_set_id", ws.ID)
	}
	observability.ObserveSessionMutation("working_set")
}

// Editing returns a copy of the working set under edit, nil when none.
func (w *WorkingSetState) Editing() *model.WorkingSet {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.editing == nil {
		return nil
	}
	cp := *w.editing
	return &cp
}

// Reset clears the editing slot.
func (w *WorkingSetState) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.editing = nil
}
