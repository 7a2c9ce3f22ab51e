// Package transition validates and performs moves between stages: forward
// with completion gating, backward at will, bounded forward jumps, and
// forced moves for user-directed edits. All failures are typed; the document
// is never half-mutated.
package transition

import (
	"github.com/aldenmarsh/planforge/internal/plan"
	"github.com/aldenmarsh/planforge/internal/stage"
)

// MaxJump is the largest forward ordinal distance a non-forced move may span.
const MaxJump = 2

// Engine performs stage transitions against a fixed registry.
type Engine struct {
	reg *stage.Registry
}

// NewEngine creates a transition engine.
func NewEngine(reg *stage.Registry) *Engine {
	return &Engine{reg: reg}
}

// TransitionTo validates and applies a move to target, returning the updated
// document. The input document is not mutated. With force set, prerequisite,
// completion, and jump gating are bypassed; an unknown target still fails.
//
// Rules, in order:
//  1. unknown target -> InvalidStageError, force or not
//  2. target == current -> no-op
//  3. forward (ordinal+1) requires the current stage's own completion
//     -> StageIncompleteError (unless forced)
//  4. target prerequisites unmet -> PrerequisitesNotMetError (unless forced)
//  5. forward jumps beyond MaxJump -> JumpTooFarError (unless forced);
//     any backward move is allowed
//
// On success the prior stage joins the completed set when the move was a
// plain forward step, the current stage is updated, and the update timestamp
// is refreshed. The edit-return marker is treated as sacrosanct: if it was
// present on entry it is present on exit, whatever intervening mutation did.
func (e *Engine) TransitionTo(doc *plan.Document, target string, force bool) (*plan.Document, error) {
	if err := plan.Validate(doc, e.reg.Names()); err != nil {
		return nil, err
	}
	targetOrd := e.reg.Ordinal(target)
	if targetOrd < 0 {
		return nil, &InvalidStageError{Stage: target}
	}
	if target == doc.CurrentStage {
		return doc, nil
	}

	currentOrd := e.reg.Ordinal(doc.CurrentStage)
	delta := targetOrd - currentOrd

	if !force {
		// A forward step reports the current stage's unfinished work before
		// the target's prerequisites: a field can sit in both sets, and the
		// user is still on the current stage.
		if delta == 1 {
			if ok, missing, err := e.reg.Completion(doc, doc.CurrentStage); err != nil {
				return nil, err
			} else if !ok {
				return nil, &StageIncompleteError{Stage: doc.CurrentStage, Missing: missing}
			}
		}
		if ok, missing, err := e.reg.Prerequisites(doc, target); err != nil {
			return nil, err
		} else if !ok {
			return nil, &PrerequisitesNotMetError{Stage: target, Missing: missing}
		}
		if delta > MaxJump {
			return nil, &JumpTooFarError{From: doc.CurrentStage, To: target, Distance: delta}
		}
	}

	marker := doc.ReturnStage
	out := doc.Clone()
	// Only a gated forward step proved the prior stage complete; a forced
	// move never did, so it must not touch the completed set.
	if delta == 1 && !force {
		out.MarkCompleted(out.CurrentStage)
	}
	out.CurrentStage = target
	out.Touch()
	if marker != "" && out.ReturnStage == "" {
		out.ReturnStage = marker
	}
	if err := plan.Validate(out, e.reg.Names()); err != nil {
		return nil, err
	}
	return out, nil
}

// Registry exposes the engine's stage registry.
func (e *Engine) Registry() *stage.Registry { return e.reg }
