package section

// Status is the lifecycle state of a section within one document.
type Status string

const (
	// StatusLocked means at least one dependency is not completed.
	StatusLocked Status = "locked"

	// StatusEmpty means the section is unlocked but has no content.
	StatusEmpty Status = "empty"

	// StatusGenerating means an AI action is in flight for this section.
	// The evaluator never overrides it; only the action that set it
	// resolves it.
	StatusGenerating Status = "generating"

	// StatusCompleted means the section is unlocked and has content.
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusLocked, StatusEmpty, StatusGenerating, StatusCompleted:
		return true
	}
	return false
}
