package detect

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"

	"argus/core"
)

// Supported field modifiers. A field key is either "field" (plain equality,
// with glob support when the expected value contains '*') or
// "field|modifier" with one of the modifiers below.
const (
	// ModifierNone is plain equality, case-sensitive, with anchored glob
	// matching when the expected value contains '*'
	ModifierNone = ""
	// ModifierContains is a case-insensitive substring test
	ModifierContains = "contains"
	// ModifierStartsWith is a case-insensitive prefix test
	ModifierStartsWith = "startswith"
	// ModifierEndsWith is a case-insensitive suffix test
	ModifierEndsWith = "endswith"
	// ModifierRegex matches the pattern anywhere in the field (unanchored)
	ModifierRegex = "re"
	// ModifierGreaterThan compares both sides numerically
	ModifierGreaterThan = "gt"
	// ModifierLessThan compares both sides numerically
	ModifierLessThan = "lt"
	// ModifierCIDR tests an IPv4 address against an IPv4 CIDR block
	ModifierCIDR = "cidr"
)

var knownModifiers = map[string]bool{
	ModifierContains:    true,
	ModifierStartsWith:  true,
	ModifierEndsWith:    true,
	ModifierRegex:       true,
	ModifierGreaterThan: true,
	ModifierLessThan:    true,
	ModifierCIDR:        true,
}

// regexEvalTimeout bounds a single regexp2 match. The engine evaluates rules
// in the hot ingest path, so a pathological pattern must never stall it.
const regexEvalTimeout = 100 * time.Millisecond

// Compiled-pattern caches shared across all rule evaluations. LRU keeps the
// memory bound under rule churn; typical deployments reuse a few hundred
// patterns so hits dominate.
const patternCacheSize = 1024

var (
	globCache *lru.Cache[string, *regexp.Regexp]
	reCache   *lru.Cache[string, *regexp2.Regexp]
)

func init() {
	// lru.New only fails on a non-positive size.
	globCache, _ = lru.New[string, *regexp.Regexp](patternCacheSize)
	reCache, _ = lru.New[string, *regexp2.Regexp](patternCacheSize)
}

// ParseFieldKey splits a selection key into field name and modifier. A key
// has at most one modifier; an unknown modifier is a rule-definition error,
// never silently ignored.
func ParseFieldKey(key string) (field, modifier string, err error) {
	parts := strings.SplitN(key, "|", 2)
	field = parts[0]
	if field == "" {
		return "", "", fmt.Errorf("empty field name in key %q", key)
	}
	if len(parts) == 1 {
		return field, ModifierNone, nil
	}
	modifier = parts[1]
	if !knownModifiers[modifier] {
		return "", "", &UnknownModifierError{Field: field, Modifier: modifier}
	}
	return field, modifier, nil
}

// ValidatePattern checks that an expected value compiles where the modifier
// requires compilation (regex, glob equality). Called at rule bind time so
// malformed patterns surface as rule errors instead of silent non-matches.
func ValidatePattern(modifier, expected string) error {
	switch modifier {
	case ModifierRegex:
		_, err := compiledRegex(expected)
		return err
	case ModifierNone:
		if strings.Contains(expected, "*") {
			_, err := compiledGlob(expected)
			return err
		}
	}
	return nil
}

// MatchModifier applies a single field criterion: the resolved field value
// against the expected value under the given modifier. Absent fields never
// match. Coercion failures (non-numeric gt/lt operands, malformed IPs or
// CIDR blocks) resolve to no-match rather than errors; live matching fails
// closed instead of failing loud.
func MatchModifier(value core.FieldValue, present bool, modifier, expected string) bool {
	if !present {
		return false
	}

	switch modifier {
	case ModifierNone:
		return matchEquals(value.AsString(), expected)
	case ModifierContains:
		return strings.Contains(strings.ToLower(value.AsString()), strings.ToLower(expected))
	case ModifierStartsWith:
		return strings.HasPrefix(strings.ToLower(value.AsString()), strings.ToLower(expected))
	case ModifierEndsWith:
		return strings.HasSuffix(strings.ToLower(value.AsString()), strings.ToLower(expected))
	case ModifierRegex:
		return matchRegex(value.AsString(), expected)
	case ModifierGreaterThan:
		return matchNumeric(value, expected, func(a, b float64) bool { return a > b })
	case ModifierLessThan:
		return matchNumeric(value, expected, func(a, b float64) bool { return a < b })
	case ModifierCIDR:
		return matchCIDRv4(value.AsString(), expected)
	default:
		// Unknown modifiers are rejected at bind time; fail closed if one
		// slips through.
		return false
	}
}

// matchEquals is case-sensitive exact equality, or an anchored glob match
// when the expected value contains '*'.
func matchEquals(value, expected string) bool {
	if !strings.Contains(expected, "*") {
		return value == expected
	}
	re, err := compiledGlob(expected)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

// compiledGlob converts a glob pattern to an anchored regex ('*' becomes
// '.*', everything else literal) and compiles it through the LRU cache.
func compiledGlob(pattern string) (*regexp.Regexp, error) {
	if re, ok := globCache.Get(pattern); ok {
		return re, nil
	}
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	globCache.Add(pattern, re)
	return re, nil
}

// compiledRegex compiles an 're' modifier pattern through the LRU cache.
// regexp2 is used for its MatchTimeout: unlike the stdlib RE2 engine it
// backtracks, so matching needs an explicit time bound.
func compiledRegex(pattern string) (*regexp2.Regexp, error) {
	if re, ok := reCache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	re.MatchTimeout = regexEvalTimeout
	reCache.Add(pattern, re)
	return re, nil
}

// matchRegex reports whether the pattern is found anywhere in the value.
// Compile and match failures (including timeouts) resolve to no-match.
func matchRegex(value, pattern string) bool {
	re, err := compiledRegex(pattern)
	if err != nil {
		return false
	}
	matched, err := re.MatchString(value)
	if err != nil {
		return false
	}
	return matched
}

// matchNumeric parses both sides as numbers and applies cmp. Either side
// failing to parse means no match.
func matchNumeric(value core.FieldValue, expected string, cmp func(a, b float64) bool) bool {
	actual, ok := value.AsNumber()
	if !ok {
		return false
	}
	threshold, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	if err != nil {
		return false
	}
	return cmp(actual, threshold)
}

// matchCIDRv4 reports whether ipStr is a syntactically valid IPv4 address
// inside the IPv4 CIDR block. Malformed addresses or blocks, and any IPv6
// input, resolve to no-match.
func matchCIDRv4(ipStr, cidrStr string) bool {
	ip := net.ParseIP(strings.TrimSpace(ipStr))
	if ip == nil || ip.To4() == nil {
		return false
	}
	_, network, err := net.ParseCIDR(strings.TrimSpace(cidrStr))
	if err != nil || network.IP.To4() == nil {
		return false
	}
	return network.Contains(ip)
}
