// Package plan defines the plan document: the single mutable record that
// accumulates stage content, the conversation transcript, and the
// process-control fields (current stage, completed set, edit-return marker)
// that the rest of the system threads through every operation.
package plan

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one entry in the append-only conversation log.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEntry records a recoverable failure for diagnostics. Typed transition
// failures and processing-unit errors land here instead of escaping to the
// caller.
type ErrorEntry struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Fields is the open-ended structured content of one stage block.
type Fields map[string]any

// Document is the plan document. The ID is immutable after creation; the
// conversation log is append-only; UpdatedAt never moves backwards.
type Document struct {
	ID    string `json:"id"`
	Query string `json:"query"`

	Stages map[string]Fields `json:"stages"`
	Turns  []Turn            `json:"turns,omitempty"`

	CurrentStage string       `json:"current_stage"`
	Completed    []string     `json:"completed,omitempty"`
	Errors       []ErrorEntry `json:"errors,omitempty"`

	// ReturnStage is the edit-return marker: the stage to resume once an
	// edit detour's destination is judged complete. Empty means no detour
	// is in flight.
	ReturnStage string `json:"return_stage,omitempty"`

	Approved bool `json:"approved,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a fresh document positioned at firstStage with empty stage
// blocks. The caller appends the opening user turn.
func New(query, firstStage string) *Document {
	now := time.Now()
	return &Document{
		ID:           uuid.NewString(),
		Query:        query,
		Stages:       make(map[string]Fields),
		CurrentStage: firstStage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy. Mutating operations clone first so a failed
// operation never leaves a half-applied document behind.
func (d *Document) Clone() *Document {
	cp := *d
	cp.Stages = make(map[string]Fields, len(d.Stages))
	for name, fields := range d.Stages {
		nf := make(Fields, len(fields))
		for k, v := range fields {
			nf[k] = v
		}
		cp.Stages[name] = nf
	}
	cp.Turns = append([]Turn(nil), d.Turns...)
	cp.Completed = append([]string(nil), d.Completed...)
	cp.Errors = append([]ErrorEntry(nil), d.Errors...)
	return &cp
}

// Touch advances UpdatedAt, keeping it monotonically non-decreasing even if
// the wall clock steps backwards.
func (d *Document) Touch() {
	if now := time.Now(); now.After(d.UpdatedAt) {
		d.UpdatedAt = now
	}
}

// AppendTurn appends a conversation turn and touches the document.
func (d *Document) AppendTurn(role, text string) {
	d.Touch()
	ts := d.UpdatedAt
	if n := len(d.Turns); n > 0 && d.Turns[n-1].Timestamp.After(ts) {
		ts = d.Turns[n-1].Timestamp
	}
	d.Turns = append(d.Turns, Turn{Role: role, Text: text, Timestamp: ts})
}

// AppendError records a recoverable failure against a stage.
func (d *Document) AppendError(stage, message string) {
	d.Touch()
	d.Errors = append(d.Errors, ErrorEntry{Stage: stage, Message: message, Timestamp: d.UpdatedAt})
}

// Content returns the content block for a stage, creating it if absent.
func (d *Document) Content(stage string) Fields {
	if d.Stages == nil {
		d.Stages = make(map[string]Fields)
	}
	f, ok := d.Stages[stage]
	if !ok {
		f = make(Fields)
		d.Stages[stage] = f
	}
	return f
}

// SetField stores a value in a stage's content block.
func (d *Document) SetField(stage, field string, value any) {
	d.Content(stage)[field] = value
	d.Touch()
}

// Field looks a field up across every stage block and reports whether a
// non-empty value was found. Registry prerequisite and completion checks go
// through here, so a field populated by an earlier stage satisfies a later
// stage's prerequisite.
func (d *Document) Field(name string) (any, bool) {
	for _, fields := range d.Stages {
		if v, ok := fields[name]; ok && !Empty(v) {
			return v, true
		}
	}
	return nil, false
}

// HasField reports whether the named field is present and non-empty anywhere
// in the document.
func (d *Document) HasField(name string) bool {
	_, ok := d.Field(name)
	return ok
}

// IsCompleted reports whether a stage is in the completed set.
func (d *Document) IsCompleted(stage string) bool {
	for _, s := range d.Completed {
		if s == stage {
			return true
		}
	}
	return false
}

// MarkCompleted adds a stage to the completed set, deduplicating. Callers
// must only invoke this after the stage's completion check has passed.
func (d *Document) MarkCompleted(stage string) {
	if d.IsCompleted(stage) {
		return
	}
	d.Completed = append(d.Completed, stage)
	d.Touch()
}

// Empty reports whether a field value counts as empty: nil, a blank string
// after trimming, or a collection with zero entries. Everything else (numbers,
// booleans, structs) counts as populated.
func Empty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
