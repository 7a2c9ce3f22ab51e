package unit

import (
	"context"
	"fmt"
	"strings"

	"github.com/aldenmarsh/planforge/internal/plan"
	"github.com/aldenmarsh/planforge/internal/stage"
)

// Scripted is a deterministic stand-in for a real content-generation unit:
// each user message fills the stage's next empty completion field verbatim.
// The CLI uses it for offline runs and the orchestration tests depend on its
// determinism.
type Scripted struct {
	desc stage.Descriptor
}

// NewScripted creates a scripted unit for one stage descriptor.
func NewScripted(desc stage.Descriptor) *Scripted {
	return &Scripted{desc: desc}
}

// Stage returns the unit's stage name.
func (s *Scripted) Stage() string { return s.desc.Name }

// Execute stores the user text into the first empty completion field, then
// replies with either the next field still needed or a completion note.
func (s *Scripted) Execute(_ context.Context, doc *plan.Document, userText string) (*plan.Document, error) {
	text := strings.TrimSpace(userText)
	if text != "" {
		for _, field := range s.desc.Completion {
			if !doc.HasField(field) {
				doc.SetField(s.desc.Name, field, text)
				break
			}
		}
	}

	var missing []string
	for _, field := range s.desc.Completion {
		if !doc.HasField(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		doc.AppendTurn(plan.RoleAssistant, fmt.Sprintf(
			"Working on %s. Next I need: %s.", s.desc.Name, strings.Join(missing, ", ")))
	} else {
		doc.AppendTurn(plan.RoleAssistant, fmt.Sprintf(
			"%s looks complete.", s.desc.Name))
	}
	return doc, nil
}
