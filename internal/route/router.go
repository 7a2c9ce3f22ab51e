package route

import (
	"context"

	"github.com/aldenmarsh/planforge/internal/obs"
	"github.com/aldenmarsh/planforge/internal/plan"
	"github.com/aldenmarsh/planforge/internal/stage"
	"github.com/aldenmarsh/planforge/internal/transition"
)

// Router resolves "I want to edit X" requests to a target stage and activates
// the detour: record the origin in the edit-return marker, then force a
// transition to the resolved stage.
type Router struct {
	reg        *stage.Registry
	engine     *transition.Engine
	classifier Classifier
	obs        obs.Observer
}

// NewRouter creates a router. A nil observer defaults to Nop.
func NewRouter(engine *transition.Engine, classifier Classifier, observer obs.Observer) *Router {
	if observer == nil {
		observer = obs.Nop{}
	}
	return &Router{
		reg:        engine.Registry(),
		engine:     engine,
		classifier: classifier,
		obs:        observer,
	}
}

// ResolveEditTarget maps free text to a stage name. It always returns a
// valid stage: classification failure or an out-of-set answer degrades to
// the first stage rather than propagating.
func (r *Router) ResolveEditTarget(ctx context.Context, text string, doc *plan.Document) string {
	names := r.reg.Names()
	label, err := r.classifier.Classify(ctx, text, names)
	if err != nil || !r.reg.Known(label) {
		r.obs.Event("route.classify_fallback", map[string]any{
			"plan": doc.ID, "text": text, "err": errString(err),
		})
		return r.reg.First()
	}
	return label
}

// BeginDetour resolves the edit target from text, records the current stage
// in the marker (nested detours collapse to the outermost origin), and
// force-transitions to the target. Returns the updated document and the
// resolved stage.
func (r *Router) BeginDetour(ctx context.Context, doc *plan.Document, text string) (*plan.Document, string, error) {
	target := r.ResolveEditTarget(ctx, text, doc)

	out := doc.Clone()
	if out.ReturnStage == "" {
		out.ReturnStage = out.CurrentStage
	}
	out, err := r.engine.TransitionTo(out, target, true)
	if err != nil {
		// Target came from the registry, so only a malformed document can
		// land here.
		return nil, "", err
	}
	r.obs.Event("route.detour", map[string]any{
		"plan": out.ID, "target": target, "return": out.ReturnStage,
	})
	return out, target, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
