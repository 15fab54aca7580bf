package tutor

import (
	"errors"
	"fmt"
)

var (
	// ErrLearnerNotFound is returned when no record exists for a learner.
	ErrLearnerNotFound = errors.New("learner not found")
	// ErrLearnerExists is returned when onboarding an already known learner.
	ErrLearnerExists = errors.New("learner already exists")
	// ErrAppendOnly is returned when an update would mutate or drop logged events.
	ErrAppendOnly = errors.New("task log is append-only")
	// ErrNotOnboarded is returned when a command needs a project pointer the learner lacks.
	ErrNotOnboarded = errors.New("learner has no current project")
)

// GenerationError means the text-generation capability failed or returned output
// that could not be parsed into the expected structure. Retrying with the same
// context is safe: nothing was recorded.
type GenerationError struct {
	Role  AgentRole
	Cause error
	Raw   string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Role, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// ExternalToolError means a subprocess could not be executed at all.
type ExternalToolError struct {
	Command string
	Cause   error
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("run %q: %v", e.Command, e.Cause)
}

func (e *ExternalToolError) Unwrap() error { return e.Cause }

// StateCorruptionError means a persisted learner record failed validation on load.
// The session must stop; the record is never reset automatically.
type StateCorruptionError struct {
	LearnerID string
	Cause     error
}

func (e *StateCorruptionError) Error() string {
	return fmt.Sprintf("learner %s: corrupt state record: %v", e.LearnerID, e.Cause)
}

func (e *StateCorruptionError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err may be retried with identical context.
func IsRetryable(err error) bool {
	var gen *GenerationError
	return errors.As(err, &gen)
}
