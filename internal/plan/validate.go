package plan

import "fmt"

// ValidationError describes a document that violates a structural invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("plan: invalid document: %s: %s", e.Field, e.Reason)
}

// Validate checks the document's structural invariants against the fixed
// stage list. Every public operation on a document validates at entry and
// exit; a failure here means malformed configuration or a corrupted record,
// not a recoverable user condition.
func Validate(d *Document, stages []string) error {
	if d == nil {
		return &ValidationError{Field: "document", Reason: "nil"}
	}
	if d.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	valid := make(map[string]bool, len(stages))
	for _, s := range stages {
		valid[s] = true
	}
	if !valid[d.CurrentStage] {
		return &ValidationError{Field: "current_stage", Reason: fmt.Sprintf("%q is not a known stage", d.CurrentStage)}
	}
	seen := make(map[string]bool, len(d.Completed))
	for _, s := range d.Completed {
		if !valid[s] {
			return &ValidationError{Field: "completed", Reason: fmt.Sprintf("%q is not a known stage", s)}
		}
		if seen[s] {
			return &ValidationError{Field: "completed", Reason: fmt.Sprintf("duplicate entry %q", s)}
		}
		seen[s] = true
	}
	for i, turn := range d.Turns {
		switch turn.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return &ValidationError{Field: "turns", Reason: fmt.Sprintf("turn %d: unknown role %q", i, turn.Role)}
		}
		if i > 0 && turn.Timestamp.Before(d.Turns[i-1].Timestamp) {
			return &ValidationError{Field: "turns", Reason: fmt.Sprintf("turn %d: timestamp precedes turn %d", i, i-1)}
		}
	}
	if d.UpdatedAt.Before(d.CreatedAt) {
		return &ValidationError{Field: "updated_at", Reason: "precedes created_at"}
	}
	return nil
}
