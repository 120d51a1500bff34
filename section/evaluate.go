package section

import "strings"

// Evaluate recomputes every section's status from its dependencies and its
// own content. Sections in the generating status are skipped — that status
// is owned by the in-flight action and is resolved explicitly.
//
// Only direct dependencies are inspected, so topological order is not
// required for correctness; evaluation runs in declaration order to match
// the documented structure.
//
// Evaluate is idempotent: a second run over an unchanged store yields the
// same statuses.
func Evaluate(g *Graph, s *Store) {
	for _, key := range g.order {
		st, ok := s.states[key]
		if !ok {
			continue
		}
		if st.Status == StatusGenerating {
			continue
		}

		locked := false
		for _, dep := range g.specs[key].Dependencies {
			ds, ok := s.states[dep]
			if !ok || ds.Status != StatusCompleted {
				locked = true
				break
			}
		}

		switch {
		case locked:
			st.Status = StatusLocked
		case strings.TrimSpace(st.Content) == "":
			st.Status = StatusEmpty
		default:
			st.Status = StatusCompleted
		}
	}
}
