package detect

import (
	"fmt"
	"strconv"

	"argus/core"
)

// boundCriterion is one normalized field criterion inside a selection. A
// list-valued expected value matches when any element matches (OR).
type boundCriterion struct {
	Field    string
	Modifier string
	Expected []string
}

func (c *boundCriterion) matches(event *core.SecurityEvent) bool {
	value, present := ResolveField(event, c.Field)
	for _, expected := range c.Expected {
		if MatchModifier(value, present, c.Modifier, expected) {
			return true
		}
	}
	return false
}

// boundSelection is a compiled selection block: all criteria must match
// (AND). An empty selection is vacuously true, mirroring common Sigma
// semantics.
type boundSelection struct {
	Name     string
	Criteria []boundCriterion
}

func (s *boundSelection) matches(event *core.SecurityEvent) bool {
	for i := range s.Criteria {
		if !s.Criteria[i].matches(event) {
			return false
		}
	}
	return true
}

// BoundRule is a rule compiled once at load time: condition parsed and bound
// to the rule's selections, field keys split and validated, expected values
// normalized. It is immutable after compilation and safe to share across
// goroutines, which keeps live matching free of hidden mutable state.
type BoundRule struct {
	Rule       *core.SigmaRule
	selections []boundSelection
	condition  ConditionNode

	// referenced holds, in the rule's sorted selection order, every selection
	// the condition refers to directly or through a quantifier. Match results
	// report the subset of these that evaluated true.
	referenced []string
}

// CompileRule parses and binds a rule. Any failure (malformed condition,
// undefined selection, unknown modifier, malformed pattern) comes back as a
// *RuleError; the caller decides whether to skip-and-log or abort.
func CompileRule(rule *core.SigmaRule) (*BoundRule, error) {
	condition, err := rule.Condition()
	if err != nil {
		return nil, &RuleError{RuleID: rule.ID, Err: err}
	}

	names := rule.SelectionNames()

	node, err := NewConditionParser().Parse(condition, names)
	if err != nil {
		return nil, &RuleError{RuleID: rule.ID, Err: err}
	}

	selections := make([]boundSelection, 0, len(names))
	for _, name := range names {
		sel, err := compileSelection(name, rule.Detection[name])
		if err != nil {
			return nil, &RuleError{RuleID: rule.ID, Err: err}
		}
		selections = append(selections, sel)
	}

	referencedSet := map[string]bool{}
	collectReferenced(node, referencedSet)
	var referenced []string
	for _, name := range names {
		if referencedSet[name] {
			referenced = append(referenced, name)
		}
	}

	return &BoundRule{
		Rule:       rule,
		selections: selections,
		condition:  node,
		referenced: referenced,
	}, nil
}

// CompileRules compiles a rule set, skipping rules that fail to bind. The
// returned bound rules preserve the input order; the errors carry the rule
// ids so the caller can log each skipped rule.
func CompileRules(rules []*core.SigmaRule) ([]*BoundRule, []*RuleError) {
	bound := make([]*BoundRule, 0, len(rules))
	var errs []*RuleError
	for _, rule := range rules {
		b, err := CompileRule(rule)
		if err != nil {
			var re *RuleError
			if r, ok := err.(*RuleError); ok {
				re = r
			} else {
				re = &RuleError{RuleID: rule.ID, Err: err}
			}
			errs = append(errs, re)
			continue
		}
		bound = append(bound, b)
	}
	return bound, errs
}

// compileSelection normalizes one raw detection block into bound criteria.
func compileSelection(name string, raw interface{}) (boundSelection, error) {
	sel := boundSelection{Name: name}
	if raw == nil {
		return sel, nil
	}

	block, ok := raw.(map[string]interface{})
	if !ok {
		return sel, fmt.Errorf("selection %q must be a field map, got %T", name, raw)
	}

	for key, rawValue := range block {
		field, modifier, err := ParseFieldKey(key)
		if err != nil {
			return sel, fmt.Errorf("selection %q: %w", name, err)
		}

		expected, err := normalizeExpected(rawValue)
		if err != nil {
			return sel, fmt.Errorf("selection %q, field %q: %w", name, field, err)
		}

		for _, value := range expected {
			if err := ValidatePattern(modifier, value); err != nil {
				return sel, fmt.Errorf("selection %q, field %q: %w", name, field, err)
			}
		}

		sel.Criteria = append(sel.Criteria, boundCriterion{
			Field:    field,
			Modifier: modifier,
			Expected: expected,
		})
	}

	return sel, nil
}

// normalizeExpected coerces a raw expected value (scalar or list of scalars,
// as decoded from YAML) into its string forms.
func normalizeExpected(raw interface{}) ([]string, error) {
	if list, ok := raw.([]interface{}); ok {
		if len(list) == 0 {
			return nil, fmt.Errorf("expected value list is empty")
		}
		values := make([]string, 0, len(list))
		for _, item := range list {
			s, err := scalarToString(item)
			if err != nil {
				return nil, err
			}
			values = append(values, s)
		}
		return values, nil
	}

	s, err := scalarToString(raw)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}

func scalarToString(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("unsupported expected value %v (type %T)", raw, raw)
	}
}

// collectReferenced walks the condition tree accumulating every selection
// name it can observe.
func collectReferenced(node ConditionNode, into map[string]bool) {
	switch n := node.(type) {
	case *AndNode:
		collectReferenced(n.Left, into)
		collectReferenced(n.Right, into)
	case *OrNode:
		collectReferenced(n.Left, into)
		collectReferenced(n.Right, into)
	case *NotNode:
		collectReferenced(n.Child, into)
	case *SelectionRefNode:
		into[n.Name] = true
	case *QuantifierNode:
		for _, name := range n.Selections {
			into[name] = true
		}
	}
}
