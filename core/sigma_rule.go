package core

import (
	"errors"
	"fmt"
	"sort"
)

// ConditionKey is the reserved detection key holding the condition expression.
// It is never treated as a selection.
const ConditionKey = "condition"

// Logsource describes the log source a rule applies to.
type Logsource struct {
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Product  string `json:"product,omitempty" yaml:"product,omitempty"`
}

// SigmaRule is a declarative detection rule: named selections of field
// criteria combined by a boolean/quantified condition expression. Rules are
// immutable inputs to the match engine.
type SigmaRule struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Status      string    `json:"status,omitempty" yaml:"status,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Logsource   Logsource `json:"logsource,omitempty" yaml:"logsource,omitempty"`

	// Detection maps selection names to selection blocks, plus the reserved
	// "condition" key holding the condition expression string. Selection
	// blocks are maps from "field" or "field|modifier" to an expected value
	// (scalar or list of scalars).
	Detection map[string]interface{} `json:"detection" yaml:"detection"`

	Level Severity `json:"level,omitempty" yaml:"level,omitempty"`
}

// validStatuses are the accepted rule lifecycle states.
var validStatuses = map[string]bool{
	"experimental": true,
	"test":         true,
	"stable":       true,
	"deprecated":   true,
}

// Validate checks structural requirements of a rule. Condition syntax and
// selection semantics are validated separately when the rule is compiled.
func (r *SigmaRule) Validate() error {
	if r.ID == "" {
		return errors.New("rule ID is required")
	}
	if r.Title == "" {
		return errors.New("rule title is required")
	}
	if len(r.Detection) == 0 {
		return errors.New("rule detection logic is required")
	}
	if _, ok := r.Detection[ConditionKey]; !ok {
		return errors.New("rule detection has no condition")
	}
	if r.Status != "" && !validStatuses[r.Status] {
		return fmt.Errorf("invalid status %q: must be experimental, test, stable, or deprecated", r.Status)
	}
	if r.Level != "" && !r.Level.IsValid() {
		return fmt.Errorf("invalid level %q: must be low, medium, high, or critical", r.Level)
	}
	return nil
}

// Condition returns the rule's condition expression string.
func (r *SigmaRule) Condition() (string, error) {
	raw, ok := r.Detection[ConditionKey]
	if !ok {
		return "", errors.New("rule detection has no condition")
	}
	cond, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("rule condition must be a string, got %T", raw)
	}
	return cond, nil
}

// SelectionNames returns every detection key except the reserved condition
// key, sorted for deterministic iteration.
func (r *SigmaRule) SelectionNames() []string {
	names := make([]string, 0, len(r.Detection))
	for name := range r.Detection {
		if name == ConditionKey {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MatchResult reports a rule that matched an event, carrying the names of
// the selections that evaluated true for audit and enrichment. A non-match
// is represented by the absence of a result, never by an empty result.
type MatchResult struct {
	Rule              *SigmaRule `json:"rule"`
	MatchedSelections []string   `json:"matched_selections"`
}
