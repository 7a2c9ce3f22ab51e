package route

import (
	"github.com/aldenmarsh/planforge/internal/obs"
	"github.com/aldenmarsh/planforge/internal/plan"
	"github.com/aldenmarsh/planforge/internal/stage"
)

// Tracker owns the edit-return marker's state transitions. The marker has
// two states: idle (empty) and pending a return stage. Nested detours never
// stack; only the outermost pre-edit stage is remembered.
type Tracker struct {
	reg *stage.Registry
	obs obs.Observer
}

// NewTracker creates a tracker. A nil observer defaults to Nop.
func NewTracker(reg *stage.Registry, observer obs.Observer) *Tracker {
	if observer == nil {
		observer = obs.Nop{}
	}
	return &Tracker{reg: reg, obs: observer}
}

// Pending reports whether a detour is in flight.
func (t *Tracker) Pending(doc *plan.Document) bool {
	return doc.ReturnStage != ""
}

// Begin records origin as the return stage unless a detour is already in
// flight, in which case the existing (outermost) origin wins.
func (t *Tracker) Begin(doc *plan.Document, origin string) {
	if doc.ReturnStage != "" {
		return
	}
	doc.ReturnStage = origin
	doc.Touch()
}

// Resolve returns the stage to resume and clears the marker. If the recorded
// stage is not in the registry, it logs the anomaly and falls back to the
// first stage.
func (t *Tracker) Resolve(doc *plan.Document) string {
	target := doc.ReturnStage
	doc.ReturnStage = ""
	doc.Touch()
	if !t.reg.Known(target) {
		t.obs.Event("route.marker_invalid", map[string]any{
			"plan": doc.ID, "marker": target,
		})
		return t.reg.First()
	}
	return target
}
