package service

import (
	"os"
	"path/filepath"
	"testing"

	"argus/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const goodRule = `
id: ssh-brute-force
title: SSH Brute Force Burst
detection:
  selection:
    category: authentication
    attempts|gt: "5"
  condition: selection
level: high
`

// Parses as YAML but fails at compile time: the modifier is unsupported.
const uncompilableRule = `
id: bad-modifier
title: Uses an unsupported modifier
detection:
  selection:
    field|base64: dmFsdWU=
  condition: selection
`

func TestLoadRulesSkipsUncompilable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yml"), []byte(goodRule), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte(uncompilableRule), 0644))

	svc := NewRuleService(zap.NewNop().Sugar())
	count, err := svc.LoadRules(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, svc.Rules(), 1)
	assert.Equal(t, "ssh-brute-force", svc.Rules()[0].Rule.ID)
}

func TestMatchEvent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yml"), []byte(goodRule), 0644))

	svc := NewRuleService(zap.NewNop().Sugar())
	_, err := svc.LoadRules(dir)
	require.NoError(t, err)

	matching := &core.SecurityEvent{
		ID:       "e1",
		Category: "authentication",
		Metadata: map[string]core.FieldValue{
			"attempts": core.NumberValue(9),
		},
	}
	results := svc.MatchEvent(matching)
	require.Len(t, results, 1)
	assert.Equal(t, "ssh-brute-force", results[0].Rule.ID)
	assert.Equal(t, []string{"selection"}, results[0].MatchedSelections)

	quiet := &core.SecurityEvent{
		ID:       "e2",
		Category: "authentication",
		Metadata: map[string]core.FieldValue{
			"attempts": core.NumberValue(2),
		},
	}
	assert.Empty(t, svc.MatchEvent(quiet))
}
