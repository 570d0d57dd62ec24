package detect

import (
	"fmt"
	"strings"
)

// RuleError wraps any compile-time failure of a single rule (malformed
// condition, undefined selection reference, unknown modifier) together with
// the rule id. Callers are expected to skip-and-log the offending rule and
// continue with the rest of the set.
type RuleError struct {
	RuleID string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// TokenizationError reports an invalid character during lexical analysis of a
// condition expression.
type TokenizationError struct {
	// Position is the byte offset where the invalid character appears
	Position int
	// InvalidChar is the character that could not be tokenized
	InvalidChar rune
	// Context is the surrounding expression text for debugging
	Context string
}

func (e *TokenizationError) Error() string {
	return fmt.Sprintf("tokenization error at position %d: invalid character %q (context: %q)",
		e.Position, e.InvalidChar, e.Context)
}

// ParseError reports a syntax error in a condition expression, with the
// position and what was expected versus found.
type ParseError struct {
	Position   int
	Token      TokenType
	TokenValue string
	Expected   string
	Context    string
}

func (e *ParseError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("parse error at position %d: expected %s but got %s (%q) - %s",
			e.Position, e.Expected, e.Token, e.TokenValue, e.Context)
	}
	return fmt.Sprintf("parse error at position %d: expected %s but got %s (%q)",
		e.Position, e.Expected, e.Token, e.TokenValue)
}

// UndefinedSelectionError reports a condition referencing a selection name
// that does not exist in the rule's detection map.
type UndefinedSelectionError struct {
	Name      string
	Position  int
	Available []string
}

func (e *UndefinedSelectionError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("undefined selection %q at position %d (rule has no selections)", e.Name, e.Position)
	}
	return fmt.Sprintf("undefined selection %q at position %d (available: %s)",
		e.Name, e.Position, strings.Join(e.Available, ", "))
}

// AggregationError reports a quantifier expression that cannot be bound, such
// as a glob matching no selections or a count exceeding the matched set.
type AggregationError struct {
	Pattern       string
	Position      int
	Reason        string
	RequiredCount int
	MatchedCount  int
}

func (e *AggregationError) Error() string {
	if e.RequiredCount > 0 {
		return fmt.Sprintf("aggregation %q at position %d: %s (required %d, matched %d)",
			e.Pattern, e.Position, e.Reason, e.RequiredCount, e.MatchedCount)
	}
	return fmt.Sprintf("aggregation %q at position %d: %s", e.Pattern, e.Position, e.Reason)
}

// UnknownModifierError reports a field key using a modifier the engine does
// not support. Unknown modifiers fail rule compilation instead of being
// silently ignored, so false negatives cannot pass undetected.
type UnknownModifierError struct {
	Field    string
	Modifier string
}

func (e *UnknownModifierError) Error() string {
	return fmt.Sprintf("unknown modifier %q on field %q", e.Modifier, e.Field)
}
