package section

import "fmt"

// PendingAction is the rollback snapshot carried by a section while it is
// generating. Making the snapshot part of the state keeps the rollback
// contract in the type instead of in caller bookkeeping.
type PendingAction struct {
	OriginalStatus  Status
	OriginalContent string
}

// State is the dynamic state of one section within one document.
type State struct {
	Content string         `json:"content"`
	Status  Status         `json:"status"`
	Pending *PendingAction `json:"-"`
}

// Store maps section keys to their state for the active document. It owns
// the only mutable editor state; all UI output derives from it.
//
// Mutations never recompute statuses implicitly — callers run Evaluate
// afterwards. The separation is deliberate: batched edits during AI
// orchestration must not trigger intermediate recomputation that could
// flip a section back out of generating.
//
// Store is not safe for concurrent use; the owning session serializes
// access.
type Store struct {
	states map[string]*State
}

// NewStore creates a store with one empty state per graph section.
func NewStore(g *Graph) *Store {
	s := &Store{states: make(map[string]*State, len(g.order))}
	for _, key := range g.order {
		s.states[key] = &State{Status: StatusEmpty}
	}
	return s
}

// Get returns a copy of the state for key.
func (s *Store) Get(key string) (State, error) {
	st, ok := s.states[key]
	if !ok {
		return State{}, &UnknownSectionError{Key: key}
	}
	return *st, nil
}

// SetContent replaces a section's content. Status is untouched; it is
// derived by the next Evaluate call.
func (s *Store) SetContent(key, text string) error {
	st, ok := s.states[key]
	if !ok {
		return &UnknownSectionError{Key: key}
	}
	st.Content = text
	return nil
}

// SetStatus overrides a section's status directly.
func (s *Store) SetStatus(key string, status Status) error {
	st, ok := s.states[key]
	if !ok {
		return &UnknownSectionError{Key: key}
	}
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	st.Status = status
	return nil
}

// BeginGeneration snapshots the section and enters the generating status.
// The snapshot travels with the state until ResolveGeneration.
func (s *Store) BeginGeneration(key string) error {
	st, ok := s.states[key]
	if !ok {
		return &UnknownSectionError{Key: key}
	}
	if st.Status == StatusGenerating {
		return fmt.Errorf("section %q is already generating", key)
	}
	st.Pending = &PendingAction{
		OriginalStatus:  st.Status,
		OriginalContent: st.Content,
	}
	st.Status = StatusGenerating
	return nil
}

// ResolveGeneration leaves the generating status, restoring the snapshot
// status. It restores status only — content mutations made before the
// call (an accepted rewrite) stay; the evaluator then re-derives
// completed versus empty from the actual content.
func (s *Store) ResolveGeneration(key string) error {
	st, ok := s.states[key]
	if !ok {
		return &UnknownSectionError{Key: key}
	}
	if st.Pending == nil {
		return fmt.Errorf("section %q has no generation in progress", key)
	}
	st.Status = st.Pending.OriginalStatus
	st.Pending = nil
	return nil
}

// Rollback leaves the generating status restoring both the snapshot
// status and the snapshot content.
func (s *Store) Rollback(key string) error {
	st, ok := s.states[key]
	if !ok {
		return &UnknownSectionError{Key: key}
	}
	if st.Pending == nil {
		return fmt.Errorf("section %q has no generation in progress", key)
	}
	st.Content = st.Pending.OriginalContent
	st.Status = st.Pending.OriginalStatus
	st.Pending = nil
	return nil
}

// Generating reports whether any section is currently generating.
func (s *Store) Generating() bool {
	for _, st := range s.states {
		if st.Status == StatusGenerating {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of all section states, keyed by section.
func (s *Store) Snapshot() map[string]State {
	out := make(map[string]State, len(s.states))
	for key, st := range s.states {
		out[key] = State{Content: st.Content, Status: st.Status}
	}
	return out
}

// Load replaces the store contents from a loaded document. Keys absent
// from the store are ignored; keys absent from the input reset to empty.
func (s *Store) Load(states map[string]State) {
	for key, st := range s.states {
		if in, ok := states[key]; ok {
			st.Content = in.Content
			st.Status = in.Status
		} else {
			st.Content = ""
			st.Status = StatusEmpty
		}
		st.Pending = nil
	}
}

// Reset clears all sections back to empty.
func (s *Store) Reset() {
	for _, st := range s.states {
		st.Content = ""
		st.Status = StatusEmpty
		st.Pending = nil
	}
}
