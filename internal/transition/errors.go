package transition

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidStageError reports a target stage name that is not in the registry.
// It is the only transition failure that is fatal to the requested operation;
// it is never remapped, even under force.
type InvalidStageError struct {
	Stage string
}

func (e *InvalidStageError) Error() string {
	return fmt.Sprintf("transition: invalid stage %q", e.Stage)
}

// PrerequisitesNotMetError reports that the target stage's prerequisite
// fields are not all populated.
type PrerequisitesNotMetError struct {
	Stage   string
	Missing []string
}

func (e *PrerequisitesNotMetError) Error() string {
	return fmt.Sprintf("transition: prerequisites not met for %q: missing %s",
		e.Stage, strings.Join(e.Missing, ", "))
}

// StageIncompleteError reports a forward move attempted before the current
// stage's own completion fields are populated.
type StageIncompleteError struct {
	Stage   string
	Missing []string
}

func (e *StageIncompleteError) Error() string {
	return fmt.Sprintf("transition: stage %q incomplete: missing %s",
		e.Stage, strings.Join(e.Missing, ", "))
}

// JumpTooFarError reports a forward jump beyond the allowed ordinal distance.
type JumpTooFarError struct {
	From     string
	To       string
	Distance int
}

func (e *JumpTooFarError) Error() string {
	return fmt.Sprintf("transition: jump from %q to %q spans %d stages (max %d)",
		e.From, e.To, e.Distance, MaxJump)
}

// Recoverable reports whether a transition failure is one the conversation
// can absorb: the caller keeps the user on the current stage and invites
// another attempt. InvalidStage is not recoverable.
func Recoverable(err error) bool {
	var pre *PrerequisitesNotMetError
	var inc *StageIncompleteError
	var jump *JumpTooFarError
	return errors.As(err, &pre) || errors.As(err, &inc) || errors.As(err, &jump)
}

// MissingFields extracts the missing-field detail from a recoverable
// transition failure, or nil if the error carries none.
func MissingFields(err error) []string {
	var pre *PrerequisitesNotMetError
	if errors.As(err, &pre) {
		return pre.Missing
	}
	var inc *StageIncompleteError
	if errors.As(err, &inc) {
		return inc.Missing
	}
	return nil
}
