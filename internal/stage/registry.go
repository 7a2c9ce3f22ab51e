// Package stage holds the static stage registry, the fixed ordered list of
// stages with their prerequisite and completion field sets, and the pure
// completion checks that inspect a plan document against it.
package stage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Canonical stage names for the built-in experiment-plan registry.
const (
	ObjectiveSetting       = "objective_setting"
	VariableIdentification = "variable_identification"
	HypothesisFormation    = "hypothesis_formation"
	ExperimentalDesign     = "experimental_design"
	AnalysisPlanning       = "analysis_planning"
	FinalReview            = "final_review"
)

// Descriptor declares one stage: its name, the fields that must exist before
// its processing unit may run, and the fields that must exist before the
// stage counts as finished. Shared read-only by all plan documents.
type Descriptor struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Prerequisites []string `yaml:"prerequisites"`
	Completion    []string `yaml:"completion"`
}

// Registry is the ordered stage table.
type Registry struct {
	stages []Descriptor
	index  map[string]int
}

// NewRegistry builds a registry from an ordered descriptor list.
func NewRegistry(stages []Descriptor) (*Registry, error) {
	if err := validateDescriptors(stages); err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(stages))
	for i, s := range stages {
		idx[s.Name] = i
	}
	return &Registry{stages: stages, index: idx}, nil
}

// Default returns the built-in six-stage experiment-plan registry.
func Default() *Registry {
	reg, err := NewRegistry([]Descriptor{
		{
			Name:        ObjectiveSetting,
			Description: "Pin down the research question and how success is measured",
			Completion:  []string{"research_question", "success_metric"},
		},
		{
			Name:          VariableIdentification,
			Description:   "Identify independent and dependent variables",
			Prerequisites: []string{"research_question"},
			Completion:    []string{"independent_variables", "dependent_variables"},
		},
		{
			Name:          HypothesisFormation,
			Description:   "State the hypothesis and its null counterpart",
			Prerequisites: []string{"independent_variables", "dependent_variables"},
			Completion:    []string{"hypothesis", "null_hypothesis"},
		},
		{
			Name:          ExperimentalDesign,
			Description:   "Choose methodology, sample size, and controls",
			Prerequisites: []string{"hypothesis"},
			Completion:    []string{"methodology", "sample_size", "control_group"},
		},
		{
			Name:          AnalysisPlanning,
			Description:   "Select statistical tests and significance level",
			Prerequisites: []string{"methodology", "sample_size"},
			Completion:    []string{"statistical_tests", "significance_level"},
		},
		{
			Name:          FinalReview,
			Description:   "Summarize the full plan for approval",
			Prerequisites: []string{"statistical_tests"},
			Completion:    []string{"summary"},
		},
	})
	if err != nil {
		panic(err) // built-in table is validated at test time
	}
	return reg
}

// Load reads a YAML registry file and returns a validated Registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file struct {
		Stages []Descriptor `yaml:"stages"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("stage: parsing registry: %w", err)
	}
	return NewRegistry(file.Stages)
}

// Names returns the stage names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of stages.
func (r *Registry) Len() int { return len(r.stages) }

// First returns the name of the first stage.
func (r *Registry) First() string { return r.stages[0].Name }

// Final returns the name of the last stage.
func (r *Registry) Final() string { return r.stages[len(r.stages)-1].Name }

// Ordinal returns the position of the named stage, or -1 if unknown.
func (r *Registry) Ordinal(name string) int {
	if i, ok := r.index[name]; ok {
		return i
	}
	return -1
}

// Known reports whether the name is a registered stage.
func (r *Registry) Known(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Descriptor returns the descriptor for a stage.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	i, ok := r.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.stages[i], true
}

// At returns the descriptor at an ordinal position.
func (r *Registry) At(ordinal int) (Descriptor, bool) {
	if ordinal < 0 || ordinal >= len(r.stages) {
		return Descriptor{}, false
	}
	return r.stages[ordinal], true
}

// Next returns the stage after the named one, or false at the final stage.
func (r *Registry) Next(name string) (string, bool) {
	i, ok := r.index[name]
	if !ok || i+1 >= len(r.stages) {
		return "", false
	}
	return r.stages[i+1].Name, true
}

func validateDescriptors(stages []Descriptor) error {
	if len(stages) == 0 {
		return fmt.Errorf("stage: at least one stage is required")
	}
	seen := make(map[string]bool, len(stages))
	for i, s := range stages {
		if s.Name == "" {
			return fmt.Errorf("stage: stage %d: 'name' is required", i+1)
		}
		if seen[s.Name] {
			return fmt.Errorf("stage: duplicate stage name %q", s.Name)
		}
		seen[s.Name] = true
		if len(s.Completion) == 0 {
			return fmt.Errorf("stage: stage %q: at least one completion field is required", s.Name)
		}
		for _, f := range s.Completion {
			if f == "" {
				return fmt.Errorf("stage: stage %q: completion fields must be non-empty", s.Name)
			}
		}
		for _, f := range s.Prerequisites {
			if f == "" {
				return fmt.Errorf("stage: stage %q: prerequisite fields must be non-empty", s.Name)
			}
		}
	}
	if len(stages[0].Prerequisites) > 0 {
		return fmt.Errorf("stage: first stage %q must not declare prerequisites", stages[0].Name)
	}
	return nil
}
