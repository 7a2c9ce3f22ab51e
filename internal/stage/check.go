package stage

import (
	"fmt"

	"github.com/aldenmarsh/planforge/internal/plan"
)

// ErrUnknownStage is wrapped by checks against a stage name that is not in
// the registry. An unknown stage is a configuration error, never silently
// treated as satisfied or complete.
var ErrUnknownStage = fmt.Errorf("stage: unknown stage")

// Prerequisites reports whether every prerequisite field for the named stage
// is present and non-empty in the document, along with the missing field
// names. A stage with no prerequisites is always eligible.
func (r *Registry) Prerequisites(doc *plan.Document, name string) (bool, []string, error) {
	desc, ok := r.Descriptor(name)
	if !ok {
		return false, nil, fmt.Errorf("%w %q", ErrUnknownStage, name)
	}
	missing := missingFields(doc, desc.Prerequisites)
	return len(missing) == 0, missing, nil
}

// Completion reports whether every completion field for the named stage is
// present and non-empty, along with the missing field names.
func (r *Registry) Completion(doc *plan.Document, name string) (bool, []string, error) {
	desc, ok := r.Descriptor(name)
	if !ok {
		return false, nil, fmt.Errorf("%w %q", ErrUnknownStage, name)
	}
	missing := missingFields(doc, desc.Completion)
	return len(missing) == 0, missing, nil
}

func missingFields(doc *plan.Document, fields []string) []string {
	var missing []string
	for _, f := range fields {
		if !doc.HasField(f) {
			missing = append(missing, f)
		}
	}
	return missing
}
