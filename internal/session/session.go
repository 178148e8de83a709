// Package session owns the mutable editing state of one review workspace:
// the filter under edit, its condition list, the selected condition, the
// annotation overlay, and the date-range pick toggle.
package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/observability"
)

// Session is the condition-editing state container. A nil filter means the
// workspace is idle; clearing the filter tears down the selection and the
// condition list with it, while annotations and the pick toggle survive
// until replaced or Reset.
//
// All mutators are total: they accept any input, never fail, and apply
// atomically under the lock.
type Session struct {
	mu  sync.RWMutex
	log *slog.Logger

	filter        *model.Filter
	selected      *model.Condition
	conditions    []model.Condition
	annotations   []json.RawMessage
	pickDateRange bool
}

// Snapshot is a point-in-time copy of the container, safe to read while
// mutations continue. Nil slices mean the state was never set (or was torn
// down); empty slices were set empty on purpose.
type Snapshot struct {
	Filter        *model.Filter     `json:"filter"`
	Selected      *model.Condition  `json:"selectedCondition"`
	Conditions    []model.Condition `json:"conditions"`
	Annotations   []json.RawMessage `json:"annotations"`
	PickDateRange bool              `json:"pickDateRange"`
	Editing       bool              `json:"editing"`
}

func New(log *slog.Logger) *Session {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{log: log}
}

// SetEditingFilter replaces the filter under edit. Clearing it (nil) also
// drops the selected condition and the condition list; storing a present
// filter touches nothing else.
func (s *Session) SetEditingFilter(f *model.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f == nil {
		s.filter = nil
		s.selected = nil
		s.conditions = nil
		s.log.Debug("editing filter cleared")
	} else {
		cp := *f
		s.filter = &cp
		s.log.Debug("editing filter set", "filter_id", f.ID)
	}
	observability.ObserveSessionMutation("filter")
}

// SetSelectedCondition stores the selection as given. No membership check is
// made against the condition list; a selection no list entry matches simply
// excludes nothing downstream.
func (s *Session) SetSelectedCondition(c *model.Condition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c == nil {
		s.selected = nil
	} else {
		cp := *c
		s.selected = &cp
	}
	observability.ObserveSessionMutation("selected_condition")
}

// SetConditions replaces the whole condition list. Nil clears it; an empty
// slice stores an empty, present list.
func (s *Session) SetConditions(list []model.Condition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conditions = slices.Clone(list)
	observability.ObserveSessionMutation("conditions")
}

// SetAnnotations replaces the annotation overlay wholesale. The payloads are
// opaque here; they flow back out exactly as stored.
func (s *Session) SetAnnotations(a []json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.annotations = slices.Clone(a)
	observability.ObserveSessionMutation("annotations")
}

// SetPickDateRange toggles date-range pick mode.
func (s *Session) SetPickDateRange(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pickDateRange = enabled
	observability.ObserveSessionMutation("pick_date_range")
}

// Reset returns the container to its just-constructed state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter = nil
	s.selected = nil
	s.conditions = nil
	s.annotations = nil
	s.pickDateRange = false
	s.log.Debug("session reset")
	observability.ObserveSessionMutation("reset")
}

// Editing reports whether a filter is under edit.
func (s *Session) Editing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter != nil
}

// Snapshot copies the current state out under the read lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Conditions:    slices.Clone(s.conditions),
		Annotations:   slices.Clone(s.annotations),
		PickDateRange: s.pickDateRange,
		Editing:       s.filter != nil,
	}
	if s.filter != nil {
		cp := *s.filter
		snap.Filter = &cp
	}
	if s.selected != nil {
		cp := *s.selected
		snap.Selected = &cp
	}
	return snap
}
