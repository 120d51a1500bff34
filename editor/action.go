package editor

// Action is an AI action run against one section. The wire value is sent
// to the backend as action_type.
type Action string

const (
	// ActionGenerate writes a section from scratch using completed
	// dependencies as context.
	ActionGenerate Action = "generate"

	// ActionModify rewrites a section following a user instruction.
	ActionModify Action = "modify"

	// ActionExpand lengthens a section while keeping its argument.
	ActionExpand Action = "expand"

	// ActionPolish improves wording without changing substance.
	ActionPolish Action = "polish"

	// ActionAnnotate asks the model to insert inline review annotations.
	ActionAnnotate Action = "annotate"

	// ActionModifyAnnotated rewrites a section applying its inline
	// annotations, guided by an optional user instruction.
	ActionModifyAnnotated Action = "modify_annotated"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionGenerate, ActionModify, ActionExpand, ActionPolish,
		ActionAnnotate, ActionModifyAnnotated:
		return true
	}
	return false
}

// RequiresPrompt reports whether the action needs a user instruction.
func (a Action) RequiresPrompt() bool {
	return a == ActionModify
}

// RequiresContent reports whether the action only makes sense on a section
// that already has text.
func (a Action) RequiresContent() bool {
	return a != ActionGenerate
}
