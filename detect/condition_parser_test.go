package detect

import (
	"errors"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       []TokenType
	}{
		{
			name:       "simple and not",
			expression: "sel_a AND NOT filter",
			want:       []TokenType{TokenIDENTIFIER, TokenAND, TokenNOT, TokenIDENTIFIER, TokenEOF},
		},
		{
			name:       "lowercase keywords",
			expression: "sel_a and sel_b or not sel_c",
			want:       []TokenType{TokenIDENTIFIER, TokenAND, TokenIDENTIFIER, TokenOR, TokenNOT, TokenIDENTIFIER, TokenEOF},
		},
		{
			name:       "parentheses",
			expression: "(sel_a OR sel_b) AND NOT filter",
			want: []TokenType{
				TokenLPAREN, TokenIDENTIFIER, TokenOR, TokenIDENTIFIER, TokenRPAREN,
				TokenAND, TokenNOT, TokenIDENTIFIER, TokenEOF,
			},
		},
		{
			name:       "quantifier over them",
			expression: "1 of them",
			want:       []TokenType{TokenNUMBER, TokenOF, TokenTHEM, TokenEOF},
		},
		{
			name:       "all of glob",
			expression: "all of sel*",
			want:       []TokenType{TokenALL, TokenOF, TokenIDENTIFIER, TokenEOF},
		},
		{
			name:       "identifier containing keyword substring",
			expression: "notation",
			want:       []TokenType{TokenIDENTIFIER, TokenEOF},
		},
		{
			name:       "empty expression",
			expression: "",
			want:       []TokenType{TokenEOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.expression)
			if err != nil {
				t.Fatalf("Tokenize(%q) error: %v", tt.expression, err)
			}
			if len(tokens) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %d tokens", tt.expression, tokens, len(tt.want))
			}
			for i, tok := range tokens {
				if tok.Type != tt.want[i] {
					t.Errorf("token %d: got %s, want %s", i, tok.Type, tt.want[i])
				}
			}
		})
	}
}

func TestTokenizeInvalidCharacter(t *testing.T) {
	_, err := Tokenize("sel_a && sel_b")
	if err == nil {
		t.Fatal("expected tokenization error for '&&'")
	}
	var tokErr *TokenizationError
	if !errors.As(err, &tokErr) {
		t.Fatalf("expected *TokenizationError, got %T", err)
	}
	if tokErr.InvalidChar != '&' {
		t.Errorf("InvalidChar = %q, want '&'", tokErr.InvalidChar)
	}
}

// evalParsed is a test helper that parses a condition against selections and
// evaluates it with the given results.
func evalParsed(t *testing.T, expression string, selections []string, results map[string]bool) bool {
	t.Helper()
	node, err := NewConditionParser().Parse(expression, selections)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", expression, err)
	}
	return node.Evaluate(results)
}

func TestParseBooleanCombinations(t *testing.T) {
	selections := []string{"filter", "sel_a", "sel_b"}

	tests := []struct {
		name       string
		expression string
		results    map[string]bool
		want       bool
	}{
		{"single true", "sel_a", map[string]bool{"sel_a": true}, true},
		{"single false", "sel_a", map[string]bool{"sel_a": false}, false},
		{"and both true", "sel_a and sel_b", map[string]bool{"sel_a": true, "sel_b": true}, true},
		{"and one false", "sel_a and sel_b", map[string]bool{"sel_a": true, "sel_b": false}, false},
		{"or one true", "sel_a or sel_b", map[string]bool{"sel_a": false, "sel_b": true}, true},
		{"or both false", "sel_a or sel_b", map[string]bool{"sel_a": false, "sel_b": false}, false},
		{"not", "not sel_a", map[string]bool{"sel_a": false}, true},
		{"double not", "not not sel_a", map[string]bool{"sel_a": true}, true},
		{
			"selection and not filter matches",
			"sel_a AND NOT filter",
			map[string]bool{"sel_a": true, "filter": false},
			true,
		},
		{
			"selection and not filter suppressed",
			"sel_a AND NOT filter",
			map[string]bool{"sel_a": true, "filter": true},
			false,
		},
		{
			// NOT > AND > OR: parses as sel_a OR (sel_b AND (NOT filter))
			"precedence without parens",
			"sel_a or sel_b and not filter",
			map[string]bool{"sel_a": false, "sel_b": true, "filter": true},
			false,
		},
		{
			"parens override precedence",
			"(sel_a or sel_b) and not filter",
			map[string]bool{"sel_a": true, "sel_b": false, "filter": false},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalParsed(t, tt.expression, selections, tt.results)
			if got != tt.want {
				t.Errorf("%q = %v, want %v", tt.expression, got, tt.want)
			}
		})
	}
}

func TestParseQuantifiers(t *testing.T) {
	selections := []string{"filter", "sel_a", "sel_b", "sel_c"}

	tests := []struct {
		name       string
		expression string
		results    map[string]bool
		want       bool
	}{
		{
			"all of them requires every selection",
			"all of them",
			map[string]bool{"filter": true, "sel_a": true, "sel_b": true, "sel_c": false},
			false,
		},
		{
			"all of them satisfied",
			"all of them",
			map[string]bool{"filter": true, "sel_a": true, "sel_b": true, "sel_c": true},
			true,
		},
		{
			"1 of them needs at least one",
			"1 of them",
			map[string]bool{"filter": false, "sel_a": false, "sel_b": true, "sel_c": false},
			true,
		},
		{
			"1 of them with none",
			"1 of them",
			map[string]bool{"filter": false, "sel_a": false, "sel_b": false, "sel_c": false},
			false,
		},
		{
			// sel* excludes filter; filter matching is irrelevant.
			"all of glob ignores selections outside prefix",
			"all of sel*",
			map[string]bool{"filter": false, "sel_a": true, "sel_b": true, "sel_c": true},
			true,
		},
		{
			"2 of glob threshold met",
			"2 of sel*",
			map[string]bool{"sel_a": true, "sel_b": true, "sel_c": false},
			true,
		},
		{
			"2 of glob threshold missed",
			"2 of sel*",
			map[string]bool{"sel_a": true, "sel_b": false, "sel_c": false},
			false,
		},
		{
			"quantifier combined with boolean",
			"1 of sel* and not filter",
			map[string]bool{"sel_a": true, "filter": false},
			true,
		},
		{
			"exact name after of",
			"1 of sel_a",
			map[string]bool{"sel_a": true},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalParsed(t, tt.expression, selections, tt.results)
			if got != tt.want {
				t.Errorf("%q = %v, want %v", tt.expression, got, tt.want)
			}
		})
	}
}

func TestParseQuantifierExpansion(t *testing.T) {
	selections := []string{"filter", "sel_a", "sel_b"}

	node, err := NewConditionParser().Parse("all of sel*", selections)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	quant, ok := node.(*QuantifierNode)
	if !ok {
		t.Fatalf("expected *QuantifierNode, got %T", node)
	}
	if len(quant.Selections) != 2 || quant.Selections[0] != "sel_a" || quant.Selections[1] != "sel_b" {
		t.Errorf("expanded selections = %v, want [sel_a sel_b]", quant.Selections)
	}
	if quant.Count != 0 {
		t.Errorf("Count = %d, want 0 for 'all'", quant.Count)
	}
}

func TestParseErrors(t *testing.T) {
	selections := []string{"filter", "selection"}

	tests := []struct {
		name       string
		expression string
	}{
		{"empty expression", ""},
		{"undefined selection", "selection and missing"},
		{"missing right operand", "selection and"},
		{"missing left operand", "and selection"},
		{"unmatched open paren", "(selection"},
		{"unmatched close paren", "selection)"},
		{"of without quantifier", "of them"},
		{"quantifier without of", "1 selection"},
		{"quantifier without target", "1 of"},
		{"zero quantifier", "0 of them"},
		{"glob matching nothing", "all of nomatch*"},
		{"count exceeding group", "3 of them"},
		{"wildcard outside quantifier", "selection and fil*"},
		{"not without operand", "not"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConditionParser().Parse(tt.expression, selections)
			if err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.expression)
			}
		})
	}
}

func TestParseUndefinedSelectionError(t *testing.T) {
	_, err := NewConditionParser().Parse("missing", []string{"selection"})
	var undefErr *UndefinedSelectionError
	if !errors.As(err, &undefErr) {
		t.Fatalf("expected *UndefinedSelectionError, got %T (%v)", err, err)
	}
	if undefErr.Name != "missing" {
		t.Errorf("Name = %q, want \"missing\"", undefErr.Name)
	}
}

func TestExpandSelectionGroup(t *testing.T) {
	selections := []string{"filter", "sel_linux", "sel_windows"}

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"prefix glob", "sel_*", []string{"sel_linux", "sel_windows"}},
		{"full glob", "*", []string{"filter", "sel_linux", "sel_windows"}},
		{"exact match", "filter", []string{"filter"}},
		{"exact miss", "absent", nil},
		{"prefix miss", "zzz*", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandSelectionGroup(tt.pattern, selections)
			if len(got) != len(tt.want) {
				t.Fatalf("expandSelectionGroup(%q) = %v, want %v", tt.pattern, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expandSelectionGroup(%q)[%d] = %q, want %q", tt.pattern, i, got[i], tt.want[i])
				}
			}
		})
	}
}
