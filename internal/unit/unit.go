// Package unit defines the processing-unit contract (the per-stage content
// generators behind the Unit interface) and the Adapter that makes every unit
// call total: failures become error-log entries and assistant turns, never
// escaped errors.
package unit

import (
	"context"
	"fmt"

	"github.com/aldenmarsh/planforge/internal/obs"
	"github.com/aldenmarsh/planforge/internal/plan"
)

// Unit is one stage's content generator. Execute consumes the document and
// the latest user text and returns the updated document. Units may perform
// blocking network calls; retries are the unit's own concern.
type Unit interface {
	Stage() string
	Execute(ctx context.Context, doc *plan.Document, userText string) (*plan.Document, error)
}

// Adapter wraps a Unit so that the orchestration core only ever sees a
// well-formed document come back: errors and panics are absorbed, the plan id
// and edit-return marker survive, and the current stage is corrected if the
// unit moved it.
type Adapter struct {
	unit Unit
	obs  obs.Observer
}

// NewAdapter wraps a unit. A nil observer defaults to Nop.
func NewAdapter(u Unit, observer obs.Observer) *Adapter {
	if observer == nil {
		observer = obs.Nop{}
	}
	return &Adapter{unit: u, obs: observer}
}

// Stage returns the wrapped unit's declared stage.
func (a *Adapter) Stage() string { return a.unit.Stage() }

// Run executes the unit. It is total: on any failure the original document
// comes back with an error-log entry and an assistant turn inviting another
// attempt, and the conversation continues.
func (a *Adapter) Run(ctx context.Context, doc *plan.Document, userText string) *plan.Document {
	stageName := a.unit.Stage()
	entryID := doc.ID
	entryMarker := doc.ReturnStage

	out, err := a.execute(ctx, doc.Clone(), userText)
	if err == nil && out == nil {
		err = fmt.Errorf("unit %q returned a nil document", stageName)
	}
	if err != nil {
		a.obs.Event("unit.failure", map[string]any{
			"plan": doc.ID, "stage": stageName, "err": err.Error(),
		})
		failed := doc.Clone()
		failed.AppendError(stageName, err.Error())
		failed.AppendTurn(plan.RoleAssistant, fmt.Sprintf(
			"I ran into a problem while working on %s. Nothing was lost, please try again.",
			stageName))
		return failed
	}

	// Units know nothing about the control-flow bookkeeping; repair anything
	// they dropped or moved.
	if out.ID != entryID {
		a.obs.Event("unit.id_rewritten", map[string]any{"plan": entryID, "stage": stageName})
		out.ID = entryID
	}
	if out.CurrentStage != stageName {
		a.obs.Event("unit.stage_corrected", map[string]any{
			"plan": out.ID, "stage": stageName, "reported": out.CurrentStage,
		})
		out.CurrentStage = stageName
	}
	if entryMarker != "" && out.ReturnStage == "" {
		out.ReturnStage = entryMarker
	}
	out.Touch()
	return out
}

// execute converts a panicking unit into an ordinary error.
func (a *Adapter) execute(ctx context.Context, doc *plan.Document, userText string) (out *plan.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("unit %q panicked: %v", a.unit.Stage(), r)
		}
	}()
	return a.unit.Execute(ctx, doc, userText)
}
