// Package orchestrate wires the stage adapters, router, and edit-return
// tracker into an explicit state machine. The control-flow graph is data, a
// node-name to node-function table, and each step yields Continue, Suspend,
// or Terminal. One user turn drives one traversal from the currently
// suspended node to the next suspension point.
package orchestrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/aldenmarsh/planforge/internal/obs"
	"github.com/aldenmarsh/planforge/internal/plan"
	"github.com/aldenmarsh/planforge/internal/route"
	"github.com/aldenmarsh/planforge/internal/stage"
	"github.com/aldenmarsh/planforge/internal/transition"
	"github.com/aldenmarsh/planforge/internal/unit"
)

// DefaultBudget caps stage-node executions per machine. It guards against a
// stage that can never self-report completion, not against cancellation.
const DefaultBudget = 64

// maxHops bounds node hops within a single traversal. The longest legal
// chain is approval -> router -> stage -> resume.
const maxHops = 8

// ErrNotStarted is returned by Turn before Start or Attach.
var ErrNotStarted = errors.New("orchestrate: machine not started")

// Outcome is the result kind of one node step.
type Outcome int

const (
	// Continue moves to another node within the same traversal.
	Continue Outcome = iota
	// Suspend returns control to the caller for human input.
	Suspend
	// Terminal ends the conversation.
	Terminal
)

// Step is one node's verdict: where to go, or stop.
type Step struct {
	Outcome Outcome
	Next    string
}

// State is the machine's externally visible condition after a turn.
type State int

const (
	StateSuspended State = iota
	StateTerminal
)

// Result is what a traversal hands back to the caller.
type Result struct {
	State  State
	Stage  string
	Reply  string // most recent assistant turn, for display
	Reason string // terminal reason, when State == StateTerminal
	Doc    *plan.Document
}

type nodeFunc func(ctx context.Context, text string) (Step, error)

// Machine drives one plan document through the stage graph.
type Machine struct {
	reg        *stage.Registry
	engine     *transition.Engine
	router     *route.Router
	tracker    *route.Tracker
	classifier route.Classifier
	adapters   map[string]*unit.Adapter
	obs        obs.Observer

	nodes map[string]nodeFunc

	doc              *plan.Document
	budget           int
	executed         int
	awaitingApproval bool
	done             bool
	terminalReason   string
}

// Option configures a Machine.
type Option func(*Machine)

// WithObserver installs an observability context.
func WithObserver(o obs.Observer) Option {
	return func(m *Machine) { m.obs = o }
}

// WithBudget overrides the stage-execution budget.
func WithBudget(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.budget = n
		}
	}
}

// New builds a machine over a registry, one unit per stage, and a classifier
// shared by the router and the final approval gate.
func New(reg *stage.Registry, units []unit.Unit, classifier route.Classifier, opts ...Option) (*Machine, error) {
	m := &Machine{
		reg:        reg,
		classifier: classifier,
		obs:        obs.Nop{},
		budget:     DefaultBudget,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.adapters = make(map[string]*unit.Adapter, len(units))
	for _, u := range units {
		if !reg.Known(u.Stage()) {
			return nil, fmt.Errorf("orchestrate: unit for unknown stage %q", u.Stage())
		}
		if _, dup := m.adapters[u.Stage()]; dup {
			return nil, fmt.Errorf("orchestrate: duplicate unit for stage %q", u.Stage())
		}
		m.adapters[u.Stage()] = unit.NewAdapter(u, m.obs)
	}
	for _, name := range reg.Names() {
		if _, ok := m.adapters[name]; !ok {
			return nil, fmt.Errorf("orchestrate: no unit for stage %q", name)
		}
	}

	m.engine = transition.NewEngine(reg)
	m.router = route.NewRouter(m.engine, classifier, m.obs)
	m.tracker = route.NewTracker(reg, m.obs)

	// The graph as data: one node per stage, plus router, resume, and the
	// final approval gate.
	m.nodes = make(map[string]nodeFunc, reg.Len()+3)
	for _, name := range reg.Names() {
		m.nodes[stageNode(name)] = m.stageStep(name)
	}
	m.nodes[nodeRouter] = m.routerStep
	m.nodes[nodeResume] = m.resumeStep
	m.nodes[nodeApproval] = m.approvalStep
	return m, nil
}

// Start creates a fresh document for the query and runs the first traversal.
// The first stage node is the only one entered without a preceding
// suspension point.
func (m *Machine) Start(ctx context.Context, query string) (*Result, error) {
	m.doc = plan.New(query, m.reg.First())
	m.executed = 0
	m.done = false
	m.awaitingApproval = false
	return m.run(ctx, query)
}

// Attach resumes a machine over an existing document, recomputing the
// suspension condition from the document alone.
func (m *Machine) Attach(doc *plan.Document) error {
	if err := plan.Validate(doc, m.reg.Names()); err != nil {
		return err
	}
	m.doc = doc.Clone()
	m.done = doc.Approved
	if doc.Approved {
		m.terminalReason = "plan approved"
	}
	m.awaitingApproval = false
	if doc.CurrentStage == m.reg.Final() && !doc.Approved {
		if ok, _, err := m.reg.Completion(doc, m.reg.Final()); err == nil && ok {
			m.awaitingApproval = true
		}
	}
	return nil
}

// Doc returns the machine's current document.
func (m *Machine) Doc() *plan.Document { return m.doc }

// Turn feeds one user message into the machine and runs until the next
// suspension point or terminal.
func (m *Machine) Turn(ctx context.Context, text string) (*Result, error) {
	return m.run(ctx, text)
}

func (m *Machine) run(ctx context.Context, text string) (*Result, error) {
	if m.doc == nil {
		return nil, ErrNotStarted
	}
	if m.done {
		return m.result(StateTerminal), nil
	}
	if err := plan.Validate(m.doc, m.reg.Names()); err != nil {
		return nil, err
	}

	m.doc.AppendTurn(plan.RoleUser, text)

	node := stageNode(m.doc.CurrentStage)
	if m.awaitingApproval {
		node = nodeApproval
	}

	for hop := 0; hop < maxHops; hop++ {
		fn, ok := m.nodes[node]
		if !ok {
			return nil, fmt.Errorf("orchestrate: no node %q", node)
		}
		step, err := fn(ctx, text)
		if err != nil {
			return nil, err
		}
		switch step.Outcome {
		case Continue:
			node = step.Next
		case Suspend:
			if err := plan.Validate(m.doc, m.reg.Names()); err != nil {
				return nil, err
			}
			return m.result(StateSuspended), nil
		case Terminal:
			m.done = true
			return m.result(StateTerminal), nil
		}
	}
	return nil, fmt.Errorf("orchestrate: traversal exceeded %d hops", maxHops)
}

func (m *Machine) result(state State) *Result {
	return &Result{
		State:  state,
		Stage:  m.doc.CurrentStage,
		Reply:  lastAssistant(m.doc),
		Reason: m.terminalReason,
		Doc:    m.doc.Clone(),
	}
}

func lastAssistant(doc *plan.Document) string {
	for i := len(doc.Turns) - 1; i >= 0; i-- {
		if doc.Turns[i].Role == plan.RoleAssistant {
			return doc.Turns[i].Text
		}
	}
	return ""
}
