package plan

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	d := New("does caffeine help memory?", "objective_setting")
	if d.ID == "" {
		t.Fatal("ID is empty")
	}
	if d.CurrentStage != "objective_setting" {
		t.Fatalf("CurrentStage = %q, want objective_setting", d.CurrentStage)
	}
	if len(d.Turns) != 0 {
		t.Fatalf("Turns = %d, want 0", len(d.Turns))
	}
	if d.UpdatedAt.Before(d.CreatedAt) {
		t.Fatal("UpdatedAt precedes CreatedAt")
	}
}

func TestClone_DeepCopy(t *testing.T) {
	d := New("q", "a")
	d.SetField("a", "research_question", "original")
	d.AppendTurn(RoleUser, "hello")

	cp := d.Clone()
	cp.SetField("a", "research_question", "changed")
	cp.AppendTurn(RoleAssistant, "reply")
	cp.Completed = append(cp.Completed, "a")

	if v, _ := d.Field("research_question"); v != "original" {
		t.Fatalf("original document mutated: %v", v)
	}
	if len(d.Turns) != 1 {
		t.Fatalf("original Turns = %d, want 1", len(d.Turns))
	}
	if len(d.Completed) != 0 {
		t.Fatalf("original Completed = %v, want empty", d.Completed)
	}
}

func TestAppendTurn_TimestampsNonDecreasing(t *testing.T) {
	d := New("q", "a")
	d.AppendTurn(RoleUser, "one")
	d.AppendTurn(RoleAssistant, "two")
	d.AppendTurn(RoleUser, "three")
	for i := 1; i < len(d.Turns); i++ {
		if d.Turns[i].Timestamp.Before(d.Turns[i-1].Timestamp) {
			t.Fatalf("turn %d timestamp precedes turn %d", i, i-1)
		}
	}
}

func TestTouch_Monotonic(t *testing.T) {
	d := New("q", "a")
	d.UpdatedAt = time.Now().Add(time.Hour)
	before := d.UpdatedAt
	d.Touch()
	if d.UpdatedAt.Before(before) {
		t.Fatal("Touch moved UpdatedAt backwards")
	}
}

func TestField_AcrossStageBlocks(t *testing.T) {
	d := New("q", "a")
	d.SetField("a", "research_question", "why?")
	d.SetField("b", "hypothesis", "because")

	if !d.HasField("research_question") {
		t.Fatal("research_question not found")
	}
	if !d.HasField("hypothesis") {
		t.Fatal("hypothesis not found")
	}
	if d.HasField("sample_size") {
		t.Fatal("sample_size should be absent")
	}
}

func TestField_EmptyValuesDontCount(t *testing.T) {
	d := New("q", "a")
	d.SetField("a", "research_question", "   ")
	if d.HasField("research_question") {
		t.Fatal("blank string counted as populated")
	}
	d.SetField("a", "independent_variables", []string{})
	if d.HasField("independent_variables") {
		t.Fatal("empty slice counted as populated")
	}
}

func TestMarkCompleted_Dedupes(t *testing.T) {
	d := New("q", "a")
	d.MarkCompleted("a")
	d.MarkCompleted("a")
	if len(d.Completed) != 1 {
		t.Fatalf("Completed = %v, want one entry", d.Completed)
	}
}

func TestEmpty(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, true},
		{"blank string", "  \t ", true},
		{"string", "x", false},
		{"empty strings", []string{}, true},
		{"strings", []string{"a"}, false},
		{"empty any slice", []any{}, true},
		{"empty map", map[string]any{}, true},
		{"map", map[string]any{"k": 1}, false},
		{"zero int", 0, false},
		{"bool", false, false},
	}
	for _, tt := range tests {
		if got := Empty(tt.v); got != tt.want {
			t.Errorf("Empty(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	stages := []string{"a", "b", "c"}

	good := New("q", "a")
	good.AppendTurn(RoleUser, "hi")
	if err := Validate(good, stages); err != nil {
		t.Fatalf("Validate(good) = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Document)
	}{
		{"empty id", func(d *Document) { d.ID = "" }},
		{"unknown current stage", func(d *Document) { d.CurrentStage = "bogus" }},
		{"unknown completed stage", func(d *Document) { d.Completed = []string{"bogus"} }},
		{"duplicate completed", func(d *Document) { d.Completed = []string{"a", "a"} }},
		{"bad role", func(d *Document) { d.Turns = []Turn{{Role: "robot", Timestamp: d.CreatedAt}} }},
		{"updated before created", func(d *Document) { d.UpdatedAt = d.CreatedAt.Add(-time.Second) }},
	}
	for _, tt := range tests {
		d := New("q", "a")
		tt.mutate(d)
		if err := Validate(d, stages); err == nil {
			t.Errorf("Validate(%s): want error, got nil", tt.name)
		}
	}
}
