package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxSeverity(t *testing.T) {
	tests := []struct {
		name       string
		severities []Severity
		want       Severity
	}{
		{"critical wins over everything", []Severity{SeverityLow, SeverityCritical, SeverityMedium}, SeverityCritical},
		{"high wins without critical", []Severity{SeverityMedium, SeverityHigh, SeverityLow}, SeverityHigh},
		{"single low", []Severity{SeverityLow}, SeverityLow},
		{"empty defaults to medium", nil, SeverityMedium},
		{"unknown values default to medium", []Severity{"bogus", ""}, SeverityMedium},
		{"unknown mixed with known", []Severity{"bogus", SeverityLow}, SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaxSeverity(tt.severities))
		})
	}
}

func TestEscalateSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, EscalateSeverity(SeverityHigh, SeverityCritical))
	assert.Equal(t, SeverityCritical, EscalateSeverity(SeverityCritical, SeverityLow))
	assert.Equal(t, SeverityMedium, EscalateSeverity(SeverityMedium, SeverityMedium))
	// Unknown never wins an escalation.
	assert.Equal(t, SeverityLow, EscalateSeverity(SeverityLow, "bogus"))
}

func TestSeverityIsValid(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		assert.True(t, s.IsValid(), "severity %q should be valid", s)
	}
	assert.False(t, Severity("warning").IsValid())
	assert.False(t, Severity("").IsValid())
}
