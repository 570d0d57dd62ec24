package sigma

import (
	"os"
	"path/filepath"
	"testing"

	"argus/core"
	"argus/detect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleRuleYAML = `
id: ssh-brute-force
title: SSH Brute Force Burst
status: stable
description: Repeated failed SSH logins from one source.
logsource:
  category: authentication
  product: sshd
detection:
  selection:
    category: authentication
    outcome: failure
    attempts|gt: "5"
  filter:
    username|contains: honeypot
  condition: selection and not filter
level: high
`

func TestParseYAML(t *testing.T) {
	parser := NewParser(zap.NewNop().Sugar())

	loaded, err := parser.ParseYAML([]byte(sampleRuleYAML))
	require.NoError(t, err)

	rule := loaded.Rule
	assert.Equal(t, "ssh-brute-force", rule.ID)
	assert.Equal(t, "SSH Brute Force Burst", rule.Title)
	assert.Equal(t, "stable", rule.Status)
	assert.Equal(t, "authentication", rule.Logsource.Category)
	assert.Equal(t, core.SeverityHigh, rule.Level)
	assert.Equal(t, []string{"filter", "selection"}, rule.SelectionNames())
	assert.Len(t, loaded.ContentHash, 16)

	cond, err := rule.Condition()
	require.NoError(t, err)
	assert.Equal(t, "selection and not filter", cond)
}

func TestParseYAMLCompilesAndMatches(t *testing.T) {
	parser := NewParser(zap.NewNop().Sugar())
	loaded, err := parser.ParseYAML([]byte(sampleRuleYAML))
	require.NoError(t, err)

	bound, err := detect.CompileRule(loaded.Rule)
	require.NoError(t, err, "a loaded rule must compile as-is")

	event := &core.SecurityEvent{
		ID:       "e1",
		Category: "authentication",
		Metadata: map[string]core.FieldValue{
			"outcome":  core.StringValue("failure"),
			"attempts": core.NumberValue(8),
			"username": core.StringValue("root"),
		},
	}
	assert.NotNil(t, detect.MatchEvent(event, bound))
}

func TestParseYAMLErrors(t *testing.T) {
	parser := NewParser(zap.NewNop().Sugar())

	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", ":\n  - ["},
		{"missing id", "title: x\ndetection:\n  selection:\n    a: b\n  condition: selection\n"},
		{"missing condition", "id: x\ntitle: x\ndetection:\n  selection:\n    a: b\n"},
		{"bad level", "id: x\ntitle: x\nlevel: extreme\ndetection:\n  selection:\n    a: b\n  condition: selection\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseYAML([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_rule.yml"), []byte(sampleRuleYAML), 0644))

	second := []byte(`
id: port-scan
title: Port Scan
detection:
  selection:
    category: network
  condition: selection
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_rule.yaml"), second, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("id: x\ntitle: x\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	parser := NewParser(zap.NewNop().Sugar())
	rules, err := parser.ParseDirectory(dir)
	require.NoError(t, err)

	require.Len(t, rules, 2, "broken and non-YAML files are skipped")
	assert.Equal(t, "port-scan", rules[0].Rule.ID, "lexical walk order")
	assert.Equal(t, "ssh-brute-force", rules[1].Rule.ID)
	assert.Equal(t, filepath.Join(dir, "b_rule.yml"), rules[1].FilePath)
}
