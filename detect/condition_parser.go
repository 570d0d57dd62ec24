package detect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TokenType identifies a token in a condition expression.
type TokenType int

const (
	// TokenEOF marks the end of input
	TokenEOF TokenType = iota
	// TokenAND is the AND keyword
	TokenAND
	// TokenOR is the OR keyword
	TokenOR
	// TokenNOT is the NOT keyword
	TokenNOT
	// TokenLPAREN is a left parenthesis
	TokenLPAREN
	// TokenRPAREN is a right parenthesis
	TokenRPAREN
	// TokenOF is the OF keyword in quantifier expressions
	TokenOF
	// TokenALL is the ALL keyword in quantifier expressions
	TokenALL
	// TokenTHEM is the THEM keyword in quantifier expressions
	TokenTHEM
	// TokenNUMBER is a numeric literal (for "N of" expressions)
	TokenNUMBER
	// TokenIDENTIFIER is a selection name, optionally ending in '*' when used
	// as a quantifier target
	TokenIDENTIFIER
)

// String returns the token type name for error messages.
func (tt TokenType) String() string {
	switch tt {
	case TokenEOF:
		return "EOF"
	case TokenAND:
		return "AND"
	case TokenOR:
		return "OR"
	case TokenNOT:
		return "NOT"
	case TokenLPAREN:
		return "LPAREN"
	case TokenRPAREN:
		return "RPAREN"
	case TokenOF:
		return "OF"
	case TokenALL:
		return "ALL"
	case TokenTHEM:
		return "THEM"
	case TokenNUMBER:
		return "NUMBER"
	case TokenIDENTIFIER:
		return "IDENTIFIER"
	default:
		return "UNKNOWN"
	}
}

// Token is a single lexed token with its position for error reporting.
type Token struct {
	Type     TokenType
	Value    string
	Position int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at pos %d", t.Type, t.Value, t.Position)
}

type tokenPattern struct {
	Type    TokenType
	Pattern *regexp.Regexp
}

var (
	// Keyword patterns come before the identifier pattern so "and" is never
	// lexed as an identifier; \b prevents "notation" matching "not".
	tokenPatterns = []tokenPattern{
		{TokenAND, regexp.MustCompile(`^(?i)\band\b`)},
		{TokenOR, regexp.MustCompile(`^(?i)\bor\b`)},
		{TokenNOT, regexp.MustCompile(`^(?i)\bnot\b`)},
		{TokenOF, regexp.MustCompile(`^(?i)\bof\b`)},
		{TokenALL, regexp.MustCompile(`^(?i)\ball\b`)},
		{TokenTHEM, regexp.MustCompile(`^(?i)\bthem\b`)},
		{TokenNUMBER, regexp.MustCompile(`^\d+`)},
		{TokenLPAREN, regexp.MustCompile(`^\(`)},
		{TokenRPAREN, regexp.MustCompile(`^\)`)},
		{TokenIDENTIFIER, regexp.MustCompile(`^[a-zA-Z0-9_]+\*?`)},
	}

	whitespacePattern = regexp.MustCompile(`^\s+`)
)

// Tokenize lexes a condition expression into tokens. Keywords are
// case-insensitive; identifiers may carry a single trailing '*' which is only
// meaningful as a quantifier group target. The returned slice always ends
// with an EOF token.
func Tokenize(expression string) ([]Token, error) {
	var tokens []Token
	position := 0

	for position < len(expression) {
		if match := whitespacePattern.FindString(expression[position:]); match != "" {
			position += len(match)
			continue
		}

		matched := false
		for _, pattern := range tokenPatterns {
			if match := pattern.Pattern.FindString(expression[position:]); match != "" {
				tokens = append(tokens, Token{
					Type:     pattern.Type,
					Value:    match,
					Position: position,
				})
				position += len(match)
				matched = true
				break
			}
		}

		if !matched {
			start := position - 20
			if start < 0 {
				start = 0
			}
			end := position + 20
			if end > len(expression) {
				end = len(expression)
			}
			return nil, &TokenizationError{
				Position:    position,
				InvalidChar: rune(expression[position]),
				Context:     expression[start:end],
			}
		}
	}

	tokens = append(tokens, Token{Type: TokenEOF, Position: position})
	return tokens, nil
}

// ConditionNode is a node in the parsed condition expression tree. Quantifier
// targets are expanded to concrete selection names at parse time, so
// evaluation is a pure lookup into the per-event selection results.
type ConditionNode interface {
	// Evaluate computes the node's boolean result from the map of selection
	// name to selection match result.
	Evaluate(results map[string]bool) bool
}

// AndNode is a logical AND of two subexpressions.
type AndNode struct {
	Left  ConditionNode
	Right ConditionNode
}

// Evaluate short-circuits when the left operand is false.
func (n *AndNode) Evaluate(results map[string]bool) bool {
	return n.Left.Evaluate(results) && n.Right.Evaluate(results)
}

// OrNode is a logical OR of two subexpressions.
type OrNode struct {
	Left  ConditionNode
	Right ConditionNode
}

// Evaluate short-circuits when the left operand is true.
func (n *OrNode) Evaluate(results map[string]bool) bool {
	return n.Left.Evaluate(results) || n.Right.Evaluate(results)
}

// NotNode negates its child.
type NotNode struct {
	Child ConditionNode
}

func (n *NotNode) Evaluate(results map[string]bool) bool {
	return !n.Child.Evaluate(results)
}

// SelectionRefNode references a single named selection. The name is validated
// against the rule's detection map at parse time.
type SelectionRefNode struct {
	Name string
}

func (n *SelectionRefNode) Evaluate(results map[string]bool) bool {
	return results[n.Name]
}

// QuantifierNode is a bound quantifier expression such as "all of them" or
// "2 of sel*". Selections holds the concrete names the target expanded to;
// Count is the required number of matches, or 0 for "all".
type QuantifierNode struct {
	// Pattern is the original target text ("them" or a prefix glob)
	Pattern string
	// Count is the minimum number of selections that must match; 0 means all
	Count int
	// Selections is the expanded list of selection names
	Selections []string
}

// Evaluate counts how many bound selections matched and applies the
// quantifier threshold.
func (n *QuantifierNode) Evaluate(results map[string]bool) bool {
	matched := 0
	for _, name := range n.Selections {
		if results[name] {
			matched++
		}
	}
	if n.Count == 0 {
		return matched == len(n.Selections)
	}
	return matched >= n.Count
}

// ConditionParser is a recursive descent parser for rule condition
// expressions. Operator precedence, highest to lowest: NOT, AND, OR. Binary
// operators are left-associative; parentheses override precedence.
//
// The parser binds the expression to a concrete rule: every selection
// reference is checked against the rule's selection names, and quantifier
// targets ("them", "prefix*") are expanded to explicit name lists. A bound
// tree therefore cannot fail at evaluation time.
type ConditionParser struct {
	tokens     []Token
	position   int
	selections []string
}

// NewConditionParser creates a parser instance. A single parser is not safe
// for concurrent use; parse each rule with its own call sequence.
func NewConditionParser() *ConditionParser {
	return &ConditionParser{}
}

// Parse parses expression and binds it against the given selection names
// (the rule's detection keys minus the reserved condition key).
func (p *ConditionParser) Parse(expression string, selections []string) (ConditionNode, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("cannot parse empty condition expression")
	}

	tokens, err := Tokenize(expression)
	if err != nil {
		return nil, err
	}

	p.tokens = tokens
	p.position = 0
	p.selections = selections

	node, err := p.parseOrExpression()
	if err != nil {
		return nil, err
	}

	if current := p.peek(); current.Type != TokenEOF {
		return nil, &ParseError{
			Position:   current.Position,
			Token:      current.Type,
			TokenValue: current.Value,
			Expected:   "end of expression",
			Context:    "unexpected tokens remain after parsing complete expression",
		}
	}

	return node, nil
}

// parseOrExpression handles the lowest precedence level.
// Grammar: or_expr := and_expr ( "OR" and_expr )*
func (p *ConditionParser) parseOrExpression() (ConditionNode, error) {
	left, err := p.parseAndExpression()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == TokenOR {
		orToken := p.consume()
		right, err := p.parseAndExpression()
		if err != nil {
			return nil, fmt.Errorf("expected expression after OR at position %d: %w", orToken.Position, err)
		}
		left = &OrNode{Left: left, Right: right}
	}

	return left, nil
}

// parseAndExpression handles the middle precedence level.
// Grammar: and_expr := not_expr ( "AND" not_expr )*
func (p *ConditionParser) parseAndExpression() (ConditionNode, error) {
	left, err := p.parseNotExpression()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == TokenAND {
		andToken := p.consume()
		right, err := p.parseNotExpression()
		if err != nil {
			return nil, fmt.Errorf("expected expression after AND at position %d: %w", andToken.Position, err)
		}
		left = &AndNode{Left: left, Right: right}
	}

	return left, nil
}

// parseNotExpression handles the NOT prefix operator.
// Grammar: not_expr := "NOT" not_expr | primary_expr
func (p *ConditionParser) parseNotExpression() (ConditionNode, error) {
	if p.peek().Type == TokenNOT {
		notToken := p.consume()
		child, err := p.parseNotExpression()
		if err != nil {
			return nil, fmt.Errorf("expected expression after NOT at position %d: %w", notToken.Position, err)
		}
		return &NotNode{Child: child}, nil
	}
	return p.parsePrimaryExpression()
}

// parsePrimaryExpression handles parenthesized groups, selection references,
// and quantifier expressions.
// Grammar: primary_expr := "(" or_expr ")" | IDENTIFIER | quantifier
func (p *ConditionParser) parsePrimaryExpression() (ConditionNode, error) {
	current := p.peek()

	switch current.Type {
	case TokenLPAREN:
		p.consume()
		expr, err := p.parseOrExpression()
		if err != nil {
			return nil, err
		}
		closing := p.peek()
		if closing.Type != TokenRPAREN {
			return nil, &ParseError{
				Position:   closing.Position,
				Token:      closing.Type,
				TokenValue: closing.Value,
				Expected:   "closing parenthesis ')'",
				Context:    fmt.Sprintf("unmatched opening parenthesis at position %d", current.Position),
			}
		}
		p.consume()
		return expr, nil

	case TokenIDENTIFIER:
		p.consume()
		if strings.Contains(current.Value, "*") {
			return nil, &ParseError{
				Position:   current.Position,
				Token:      current.Type,
				TokenValue: current.Value,
				Expected:   "selection name",
				Context:    "wildcard patterns are only valid after OF",
			}
		}
		if !containsString(p.selections, current.Value) {
			return nil, &UndefinedSelectionError{
				Name:      current.Value,
				Position:  current.Position,
				Available: p.selections,
			}
		}
		return &SelectionRefNode{Name: current.Value}, nil

	case TokenALL, TokenNUMBER:
		return p.parseQuantifier()

	case TokenEOF:
		return nil, &ParseError{
			Position: current.Position,
			Token:    TokenEOF,
			Expected: "selection name or expression",
			Context:  "unexpected end of expression",
		}

	case TokenRPAREN:
		return nil, &ParseError{
			Position:   current.Position,
			Token:      current.Type,
			TokenValue: current.Value,
			Expected:   "selection name or expression",
			Context:    "unmatched closing parenthesis",
		}

	default:
		return nil, &ParseError{
			Position:   current.Position,
			Token:      current.Type,
			TokenValue: current.Value,
			Expected:   "selection name or expression",
		}
	}
}

// parseQuantifier parses a quantifier expression.
// Grammar: quantifier := ( ALL | NUMBER ) "OF" ( THEM | IDENTIFIER )
// where an IDENTIFIER target may end in '*' to select every selection name
// with that prefix. The target is expanded immediately against the rule's
// selection names.
func (p *ConditionParser) parseQuantifier() (ConditionNode, error) {
	quantToken := p.consume()

	count := 0
	if quantToken.Type == TokenNUMBER {
		n, err := strconv.Atoi(quantToken.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid quantifier %q at position %d: %w", quantToken.Value, quantToken.Position, err)
		}
		if n < 1 {
			return nil, &ParseError{
				Position:   quantToken.Position,
				Token:      TokenNUMBER,
				TokenValue: quantToken.Value,
				Expected:   "quantifier >= 1",
				Context:    "zero quantifier would match vacuously",
			}
		}
		count = n
	}

	ofToken := p.peek()
	if ofToken.Type != TokenOF {
		return nil, &ParseError{
			Position:   ofToken.Position,
			Token:      ofToken.Type,
			TokenValue: ofToken.Value,
			Expected:   "OF keyword",
			Context:    fmt.Sprintf("quantifier %q must be followed by OF", quantToken.Value),
		}
	}
	p.consume()

	target := p.peek()
	var pattern string
	var expanded []string

	switch target.Type {
	case TokenTHEM:
		p.consume()
		pattern = "them"
		expanded = append(expanded, p.selections...)

	case TokenIDENTIFIER:
		p.consume()
		pattern = target.Value
		expanded = expandSelectionGroup(pattern, p.selections)
		if !strings.HasSuffix(pattern, "*") && len(expanded) == 0 {
			return nil, &UndefinedSelectionError{
				Name:      pattern,
				Position:  target.Position,
				Available: p.selections,
			}
		}

	default:
		return nil, &ParseError{
			Position:   target.Position,
			Token:      target.Type,
			TokenValue: target.Value,
			Expected:   "THEM or selection pattern",
			Context:    "OF must be followed by a quantifier target",
		}
	}

	if len(expanded) == 0 {
		return nil, &AggregationError{
			Pattern:       pattern,
			Position:      target.Position,
			Reason:        "matched no selections",
			RequiredCount: count,
		}
	}
	if count > len(expanded) {
		return nil, &AggregationError{
			Pattern:       pattern,
			Position:      quantToken.Position,
			Reason:        "quantifier exceeds matched selections",
			RequiredCount: count,
			MatchedCount:  len(expanded),
		}
	}

	return &QuantifierNode{Pattern: pattern, Count: count, Selections: expanded}, nil
}

func (p *ConditionParser) peek() Token {
	if p.position >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.position]
}

func (p *ConditionParser) consume() Token {
	token := p.peek()
	if p.position < len(p.tokens) {
		p.position++
	}
	return token
}

// expandSelectionGroup resolves a quantifier target pattern to the matching
// selection names. A trailing '*' selects every name with the literal prefix
// before it; anything else is an exact name match. This is the only place
// wildcards are honored in the condition grammar.
func expandSelectionGroup(pattern string, selections []string) []string {
	if !strings.HasSuffix(pattern, "*") {
		if containsString(selections, pattern) {
			return []string{pattern}
		}
		return nil
	}

	prefix := strings.TrimSuffix(pattern, "*")
	var matches []string
	for _, name := range selections {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	return matches
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
