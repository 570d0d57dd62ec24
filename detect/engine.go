// Package detect implements the rule matching engine: a condition parser,
// field modifier evaluation, and per-event rule evaluation over compiled
// rules. Matching is pure and stateless; callers compile rules once and
// evaluate from as many goroutines as they like.
package detect

import "argus/core"

// MatchEvent evaluates one compiled rule against one event. It returns nil
// on no match; a non-nil result always represents a true match and carries
// the referenced selections that evaluated true.
func MatchEvent(event *core.SecurityEvent, rule *BoundRule) *core.MatchResult {
	results := make(map[string]bool, len(rule.selections))
	for i := range rule.selections {
		sel := &rule.selections[i]
		results[sel.Name] = sel.matches(event)
	}

	if !rule.condition.Evaluate(results) {
		return nil
	}

	var matched []string
	for _, name := range rule.referenced {
		if results[name] {
			matched = append(matched, name)
		}
	}

	return &core.MatchResult{
		Rule:              rule.Rule,
		MatchedSelections: matched,
	}
}

// MatchEventAgainstRules evaluates every rule independently and returns the
// matches in the same order as the input rules, omitting non-matches. One
// rule's outcome never affects another's evaluation.
func MatchEventAgainstRules(event *core.SecurityEvent, rules []*BoundRule) []*core.MatchResult {
	var matches []*core.MatchResult
	for _, rule := range rules {
		if result := MatchEvent(event, rule); result != nil {
			matches = append(matches, result)
		}
	}
	return matches
}
