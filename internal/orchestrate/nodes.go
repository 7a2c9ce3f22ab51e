package orchestrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/aldenmarsh/planforge/internal/plan"
	"github.com/aldenmarsh/planforge/internal/route"
	"github.com/aldenmarsh/planforge/internal/transition"
)

const (
	nodeRouter   = "router"
	nodeResume   = "resume"
	nodeApproval = "approval"
)

func stageNode(name string) string { return "stage:" + name }

// stageStep runs one stage's adapter and decides where control goes next:
// resume when a detour's destination just completed, the approval gate at the
// final stage, a forward transition otherwise, or a self-loop retry when the
// stage is still incomplete.
func (m *Machine) stageStep(name string) nodeFunc {
	return func(ctx context.Context, text string) (Step, error) {
		if m.executed >= m.budget {
			m.terminalReason = fmt.Sprintf("step budget exhausted (%d)", m.budget)
			m.obs.Event("orchestrate.budget_exhausted", map[string]any{
				"plan": m.doc.ID, "stage": name, "budget": m.budget,
			})
			m.doc.AppendTurn(plan.RoleSystem, m.terminalReason)
			return Step{Outcome: Terminal}, nil
		}
		m.executed++

		m.doc = m.adapters[name].Run(ctx, m.doc, text)
		m.obs.Metric("orchestrate.stage_executions", float64(m.executed))

		complete, missing, err := m.reg.Completion(m.doc, name)
		if err != nil {
			return Step{}, err
		}
		if !complete {
			m.obs.Event("orchestrate.stage_incomplete", map[string]any{
				"plan": m.doc.ID, "stage": name, "missing": strings.Join(missing, ","),
			})
			return Step{Outcome: Suspend}, nil
		}

		m.obs.Event("orchestrate.stage_complete", map[string]any{
			"plan": m.doc.ID, "stage": name,
		})

		// A pending detour overrides both forward progress and retry.
		if m.tracker.Pending(m.doc) {
			return Step{Outcome: Continue, Next: nodeResume}, nil
		}

		if name == m.reg.Final() {
			m.awaitingApproval = true
			return Step{Outcome: Suspend}, nil
		}

		next, _ := m.reg.Next(name)
		out, err := m.engine.TransitionTo(m.doc, next, false)
		if err != nil {
			if transition.Recoverable(err) {
				m.doc.AppendError(name, err.Error())
				m.doc.AppendTurn(plan.RoleAssistant, fmt.Sprintf(
					"%s is done, but I can't move on yet: still missing %s.",
					name, strings.Join(transition.MissingFields(err), ", ")))
				return Step{Outcome: Suspend}, nil
			}
			return Step{}, err
		}
		m.doc = out
		return Step{Outcome: Suspend}, nil
	}
}

// routerStep activates an edit detour and hands control to the resolved
// stage node within the same traversal, since the user's message is the edit
// instruction that stage needs.
func (m *Machine) routerStep(ctx context.Context, text string) (Step, error) {
	doc, target, err := m.router.BeginDetour(ctx, m.doc, text)
	if err != nil {
		return Step{}, err
	}
	m.doc = doc
	return Step{Outcome: Continue, Next: stageNode(target)}, nil
}

// resumeStep fires once a detour's destination is judged complete: the
// destination joins the completed set, the marker is cleared, and a forced
// transition returns to the recorded origin, all within this step.
func (m *Machine) resumeStep(_ context.Context, _ string) (Step, error) {
	m.doc.MarkCompleted(m.doc.CurrentStage)
	target := m.tracker.Resolve(m.doc)

	out, err := m.engine.TransitionTo(m.doc, target, true)
	if err != nil {
		return Step{}, err
	}
	m.doc = out
	m.obs.Event("orchestrate.resumed", map[string]any{
		"plan": m.doc.ID, "stage": target,
	})

	if target == m.reg.Final() {
		if ok, _, err := m.reg.Completion(m.doc, target); err == nil && ok {
			m.awaitingApproval = true
		}
	}
	m.doc.AppendTurn(plan.RoleAssistant, fmt.Sprintf(
		"Picking up where we left off at %s.", target))
	return Step{Outcome: Suspend}, nil
}

// approvalStep classifies the user's reply at the final review: approve ends
// the conversation; anything else, including an unclear reply, is treated
// as an edit request and routed.
func (m *Machine) approvalStep(ctx context.Context, text string) (Step, error) {
	labels := []string{route.LabelEdit, route.LabelApprove}
	label, err := m.classifier.Classify(ctx, text, labels)
	if err != nil || (label != route.LabelEdit && label != route.LabelApprove) {
		m.obs.Event("orchestrate.approval_fallback", map[string]any{
			"plan": m.doc.ID, "label": label,
		})
		label = route.LabelEdit
	}

	if label == route.LabelApprove {
		m.doc.MarkCompleted(m.reg.Final())
		m.doc.Approved = true
		m.doc.AppendTurn(plan.RoleAssistant, "Plan approved. We're done here.")
		m.terminalReason = "plan approved"
		m.obs.Event("orchestrate.approved", map[string]any{"plan": m.doc.ID})
		return Step{Outcome: Terminal}, nil
	}

	m.awaitingApproval = false
	return Step{Outcome: Continue, Next: nodeRouter}, nil
}
