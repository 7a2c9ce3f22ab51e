// Package route resolves free-form user text to a concrete stage and keeps
// the edit-return bookkeeping that restores the conversation's position after
// a detour. Classification is pluggable: a deterministic keyword engine by
// default, a Claude-backed classifier in production.
package route

import (
	"context"
	"fmt"
	"strings"
)

// Approval labels used by the final-review gate. Edit comes first so an
// inconclusive classification degrades to edit, never to silent approval.
const (
	LabelEdit    = "edit"
	LabelApprove = "approve"
)

// Classifier maps free text to one of the supplied labels. Implementations
// must return one of the labels; on internal failure they return an error and
// the caller degrades to the first label. They must not block past ctx.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (string, error)
}

// KeywordClassifier is a deterministic rule engine: each label owns a keyword
// list, the label with the most hits in the text wins, and ties or zero hits
// fall back to the first label. Dependency-free, used as the default and in
// tests.
type KeywordClassifier struct {
	Rules map[string][]string
}

// NewKeywordClassifier builds a keyword classifier with the built-in rules
// for the default stage set and the approval labels.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{Rules: map[string][]string{
		"objective_setting":       {"objective", "goal", "research question", "question", "metric", "success"},
		"variable_identification": {"variable", "variables", "independent", "dependent", "factor"},
		"hypothesis_formation":    {"hypothesis", "hypotheses", "null", "prediction"},
		"experimental_design":     {"design", "methodology", "sample", "sample size", "control", "group", "procedure"},
		"analysis_planning":       {"analysis", "statistical", "statistics", "test", "significance", "p-value"},
		"final_review":            {"review", "summary", "overview", "finalize"},
		LabelApprove:              {"approve", "approved", "yes", "lgtm", "looks good", "ship it", "go ahead", "accept"},
		LabelEdit:                 {"edit", "change", "fix", "revise", "update", "redo", "adjust", "modify"},
	}}
}

// Classify scores each candidate label by keyword hits. Deterministic: on a
// tie the earlier label in labels wins; with no hits the first label wins.
func (k *KeywordClassifier) Classify(_ context.Context, text string, labels []string) (string, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("route: no labels supplied")
	}
	lowered := strings.ToLower(text)
	best, bestHits := labels[0], 0
	for _, label := range labels {
		hits := 0
		for _, kw := range k.Rules[label] {
			if strings.Contains(lowered, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = label, hits
		}
	}
	return best, nil
}
