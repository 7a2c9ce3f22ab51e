package transition

import (
	"errors"
	"testing"

	"github.com/aldenmarsh/planforge/internal/plan"
	"github.com/aldenmarsh/planforge/internal/stage"
)

// fill populates every completion field of a stage with placeholder content.
func fill(doc *plan.Document, reg *stage.Registry, name string) {
	desc, ok := reg.Descriptor(name)
	if !ok {
		panic("unknown stage " + name)
	}
	for _, f := range desc.Completion {
		doc.SetField(name, f, "filled")
	}
}

// docAt returns a document positioned at target with every earlier stage
// (and none after) fully populated.
func docAt(reg *stage.Registry, target string) *plan.Document {
	doc := plan.New("q", reg.First())
	for _, name := range reg.Names() {
		if name == target {
			break
		}
		fill(doc, reg, name)
		doc.MarkCompleted(name)
	}
	doc.CurrentStage = target
	return doc
}

func TestTransition_UnknownStage(t *testing.T) {
	e := NewEngine(stage.Default())
	doc := plan.New("q", stage.ObjectiveSetting)

	for _, force := range []bool{false, true} {
		_, err := e.TransitionTo(doc, "bogus_stage", force)
		var invalid *InvalidStageError
		if !errors.As(err, &invalid) {
			t.Fatalf("force=%v: err = %v, want InvalidStageError", force, err)
		}
		if Recoverable(err) {
			t.Fatal("InvalidStageError must not be recoverable")
		}
	}
}

func TestTransition_SameStageIsNoOp(t *testing.T) {
	e := NewEngine(stage.Default())
	doc := plan.New("q", stage.ObjectiveSetting)
	out, err := e.TransitionTo(doc, stage.ObjectiveSetting, false)
	if err != nil {
		t.Fatal(err)
	}
	if out != doc {
		t.Fatal("same-stage transition should return the document unchanged")
	}
}

func TestTransition_ForwardRequiresCompletion(t *testing.T) {
	reg := stage.Default()
	e := NewEngine(reg)
	doc := plan.New("q", stage.ObjectiveSetting)
	doc.SetField(stage.ObjectiveSetting, "research_question", "why?")
	// success_metric missing; variable_identification's prerequisite is met

	_, err := e.TransitionTo(doc, stage.VariableIdentification, false)
	var inc *StageIncompleteError
	if !errors.As(err, &inc) {
		t.Fatalf("err = %v, want StageIncompleteError", err)
	}
	if len(inc.Missing) != 1 || inc.Missing[0] != "success_metric" {
		t.Fatalf("Missing = %v, want [success_metric]", inc.Missing)
	}
	if doc.CurrentStage != stage.ObjectiveSetting {
		t.Fatalf("stage moved to %q on failure", doc.CurrentStage)
	}
}

func TestTransition_ForwardSuccess(t *testing.T) {
	reg := stage.Default()
	e := NewEngine(reg)
	doc := plan.New("q", stage.ObjectiveSetting)
	fill(doc, reg, stage.ObjectiveSetting)

	out, err := e.TransitionTo(doc, stage.VariableIdentification, false)
	if err != nil {
		t.Fatal(err)
	}
	if out.CurrentStage != stage.VariableIdentification {
		t.Fatalf("CurrentStage = %q", out.CurrentStage)
	}
	if !out.IsCompleted(stage.ObjectiveSetting) {
		t.Fatal("prior stage not in completed set")
	}
	if doc.CurrentStage != stage.ObjectiveSetting {
		t.Fatal("input document was mutated")
	}
}

// A field can belong to the current stage's completion set and the next
// stage's prerequisite set at once (sample_size). The failure must name the
// unfinished current stage, not the target's prerequisites.
func TestTransition_ForwardIncompleteWithSharedField(t *testing.T) {
	reg := stage.Default()
	e := NewEngine(reg)
	doc := docAt(reg, stage.ExperimentalDesign)
	doc.SetField(stage.ExperimentalDesign, "methodology", "double-blind")
	doc.SetField(stage.ExperimentalDesign, "control_group", "placebo arm")
	// sample_size missing: completes experimental_design AND gates
	// analysis_planning

	_, err := e.TransitionTo(doc, stage.AnalysisPlanning, false)
	var inc *StageIncompleteError
	if !errors.As(err, &inc) {
		t.Fatalf("err = %v, want StageIncompleteError", err)
	}
	if inc.Stage != stage.ExperimentalDesign {
		t.Fatalf("Stage = %q, want experimental_design", inc.Stage)
	}
	if len(inc.Missing) != 1 || inc.Missing[0] != "sample_size" {
		t.Fatalf("Missing = %v, want [sample_size]", inc.Missing)
	}
	if doc.CurrentStage != stage.ExperimentalDesign {
		t.Fatalf("stage moved to %q on failure", doc.CurrentStage)
	}
}

func TestTransition_PrerequisitesNotMet(t *testing.T) {
	reg := stage.Default()
	e := NewEngine(reg)
	// experimental_design is complete except nothing earlier exists, so a
	// jump to analysis_planning lacks its prerequisites.
	doc := plan.New("q", stage.HypothesisFormation)

	_, err := e.TransitionTo(doc, stage.AnalysisPlanning, false)
	var pre *PrerequisitesNotMetError
	if !errors.As(err, &pre) {
		t.Fatalf("err = %v, want PrerequisitesNotMetError", err)
	}
	want := map[string]bool{"methodology": true, "sample_size": true}
	for _, f := range pre.Missing {
		if !want[f] {
			t.Fatalf("unexpected missing field %q", f)
		}
	}
}

func TestTransition_BackwardAlwaysAllowed(t *testing.T) {
	reg := stage.Default()
	e := NewEngine(reg)
	// Far back (distance 5), nothing complete at the current stage.
	doc := docAt(reg, stage.FinalReview)

	out, err := e.TransitionTo(doc, stage.ObjectiveSetting, false)
	if err != nil {
		t.Fatalf("backward transition failed: %v", err)
	}
	if out.CurrentStage != stage.ObjectiveSetting {
		t.Fatalf("CurrentStage = %q", out.CurrentStage)
	}
}

func TestTransition_JumpWithinCap(t *testing.T) {
	reg := stage.Default()
	e := NewEngine(reg)
	doc := docAt(reg, stage.ObjectiveSetting)
	fill(doc, reg, stage.ObjectiveSetting)
	fill(doc, reg, stage.VariableIdentification)

	// distance 2: allowed
	out, err := e.TransitionTo(doc, stage.HypothesisFormation, false)
	if err != nil {
		t.Fatalf("jump of 2 failed: %v", err)
	}
	if out.CurrentStage != stage.HypothesisFormation {
		t.Fatalf("CurrentStage = %q", out.CurrentStage)
	}
	// A jump does not mark the origin complete.
	if out.IsCompleted(stage.ObjectiveSetting) {
		t.Fatal("jump added origin to completed set")
	}
}

func TestTransition_JumpTooFar(t *testing.T) {
	reg := stage.Default()
	e := NewEngine(reg)
	// Everything earlier complete, so only the distance rule can fail.
	doc := docAt(reg, stage.ObjectiveSetting)
	for _, name := range reg.Names() {
		fill(doc, reg, name)
	}

	_, err := e.TransitionTo(doc, stage.ExperimentalDesign, false)
	var far *JumpTooFarError
	if !errors.As(err, &far) {
		t.Fatalf("err = %v, want JumpTooFarError", err)
	}
	if far.Distance != 3 {
		t.Fatalf("Distance = %d, want 3", far.Distance)
	}

	// Forced, the same jump goes through.
	out, err := e.TransitionTo(doc, stage.ExperimentalDesign, true)
	if err != nil {
		t.Fatal(err)
	}
	if out.CurrentStage != stage.ExperimentalDesign {
		t.Fatalf("CurrentStage = %q", out.CurrentStage)
	}
}

func TestTransition_ForwardBackwardForward(t *testing.T) {
	reg := stage.Default()
	e := NewEngine(reg)
	doc := plan.New("q", stage.ObjectiveSetting)
	fill(doc, reg, stage.ObjectiveSetting)

	doc, err := e.TransitionTo(doc, stage.VariableIdentification, false)
	if err != nil {
		t.Fatal(err)
	}
	doc, err = e.TransitionTo(doc, stage.ObjectiveSetting, false)
	if err != nil {
		t.Fatal(err)
	}
	doc, err = e.TransitionTo(doc, stage.VariableIdentification, false)
	if err != nil {
		t.Fatal(err)
	}
	if doc.CurrentStage != stage.VariableIdentification {
		t.Fatalf("CurrentStage = %q", doc.CurrentStage)
	}
	count := 0
	for _, s := range doc.Completed {
		if s == stage.ObjectiveSetting {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("objective_setting appears %d times in completed set", count)
	}
}

func TestTransition_MarkerSurvives(t *testing.T) {
	reg := stage.Default()
	e := NewEngine(reg)
	doc := plan.New("q", stage.ObjectiveSetting)
	fill(doc, reg, stage.ObjectiveSetting)
	doc.ReturnStage = stage.FinalReview

	out, err := e.TransitionTo(doc, stage.VariableIdentification, false)
	if err != nil {
		t.Fatal(err)
	}
	if out.ReturnStage != stage.FinalReview {
		t.Fatalf("ReturnStage = %q, want final_review", out.ReturnStage)
	}
}

func TestMissingFields(t *testing.T) {
	err := error(&PrerequisitesNotMetError{Stage: "x", Missing: []string{"a", "b"}})
	if got := MissingFields(err); len(got) != 2 {
		t.Fatalf("MissingFields = %v", got)
	}
	if got := MissingFields(&InvalidStageError{Stage: "x"}); got != nil {
		t.Fatalf("MissingFields(invalid) = %v, want nil", got)
	}
}
