package core

// Severity classifies events and campaigns.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for comparison. Unknown values rank below low
// so they never win an escalation.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the numeric priority of a severity. Unknown severities return 0.
func (s Severity) Rank() int {
	return severityRank[s]
}

// IsValid reports whether s is one of the four defined severity levels.
func (s Severity) IsValid() bool {
	return severityRank[s] > 0
}

// MaxSeverity returns the highest severity present in severities, checking in
// priority order critical > high > medium > low. If none of the four levels is
// present the result defaults to medium.
func MaxSeverity(severities []Severity) Severity {
	for _, want := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow} {
		for _, s := range severities {
			if s == want {
				return want
			}
		}
	}
	return SeverityMedium
}

// EscalateSeverity returns the higher ranked of a and b.
func EscalateSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
