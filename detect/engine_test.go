package detect

import (
	"sync"
	"testing"
	"time"

	"argus/core"
)

func mustCompile(t *testing.T, rule *core.SigmaRule) *BoundRule {
	t.Helper()
	bound, err := CompileRule(rule)
	if err != nil {
		t.Fatalf("CompileRule(%s) error: %v", rule.ID, err)
	}
	return bound
}

func bruteForceRule() *core.SigmaRule {
	return &core.SigmaRule{
		ID:    "brute-force",
		Title: "SSH Brute Force Burst",
		Detection: map[string]interface{}{
			"selection": map[string]interface{}{
				"category":       "authentication",
				"outcome":        "failure",
				"attempts|gt":    "5",
				"source_ip|cidr": "203.0.113.0/24",
			},
			"filter": map[string]interface{}{
				"username|contains": "honeypot",
			},
			core.ConditionKey: "selection and not filter",
		},
		Level: core.SeverityHigh,
	}
}

func bruteForceEvent() *core.SecurityEvent {
	return &core.SecurityEvent{
		ID:        "evt-100",
		Timestamp: time.Now(),
		Source:    "sshd",
		Severity:  core.SeverityMedium,
		Category:  "authentication",
		Host:      "bastion-01",
		Metadata: map[string]core.FieldValue{
			"outcome":   core.StringValue("failure"),
			"attempts":  core.NumberValue(9),
			"source_ip": core.StringValue("203.0.113.44"),
			"username":  core.StringValue("root"),
		},
	}
}

func TestMatchEvent(t *testing.T) {
	rule := mustCompile(t, bruteForceRule())

	result := MatchEvent(bruteForceEvent(), rule)
	if result == nil {
		t.Fatal("expected a match")
	}
	if result.Rule.ID != "brute-force" {
		t.Errorf("result rule = %q, want brute-force", result.Rule.ID)
	}
	if len(result.MatchedSelections) != 1 || result.MatchedSelections[0] != "selection" {
		t.Errorf("MatchedSelections = %v, want [selection]", result.MatchedSelections)
	}
}

func TestMatchEventFilterSuppresses(t *testing.T) {
	rule := mustCompile(t, bruteForceRule())

	event := bruteForceEvent()
	event.Metadata["username"] = core.StringValue("honeypot-svc")

	if result := MatchEvent(event, rule); result != nil {
		t.Errorf("filter should suppress the match, got %+v", result)
	}
}

func TestMatchEventNoMatchIsNil(t *testing.T) {
	rule := mustCompile(t, bruteForceRule())

	event := bruteForceEvent()
	event.Metadata["attempts"] = core.NumberValue(2)

	if result := MatchEvent(event, rule); result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
}

func TestMatchEventEmptySelectionVacuouslyTrue(t *testing.T) {
	rule := mustCompile(t, &core.SigmaRule{
		ID:    "vacuous",
		Title: "Empty selection",
		Detection: map[string]interface{}{
			"anything":        map[string]interface{}{},
			core.ConditionKey: "anything",
		},
	})

	if MatchEvent(&core.SecurityEvent{ID: "e"}, rule) == nil {
		t.Error("empty selection must match every event")
	}
}

func TestMatchEventQuantifierSelections(t *testing.T) {
	rule := mustCompile(t, &core.SigmaRule{
		ID:    "multi",
		Title: "Two of three indicators",
		Detection: map[string]interface{}{
			"ind_proc": map[string]interface{}{
				"process|endswith": "mimikatz.exe",
			},
			"ind_net": map[string]interface{}{
				"dest_port|lt": "1024",
			},
			"ind_user": map[string]interface{}{
				"username": "SYSTEM",
			},
			core.ConditionKey: "2 of ind_*",
		},
	})

	event := &core.SecurityEvent{
		ID: "evt-1",
		Metadata: map[string]core.FieldValue{
			"process":   core.StringValue(`C:\Tools\MIMIKATZ.exe`),
			"dest_port": core.NumberValue(445),
			"username":  core.StringValue("alice"),
		},
	}

	result := MatchEvent(event, rule)
	if result == nil {
		t.Fatal("expected match with 2 of 3 indicators")
	}
	// endswith is case-insensitive, so ind_proc matches; ind_net matches;
	// ind_user does not.
	want := []string{"ind_net", "ind_proc"}
	if len(result.MatchedSelections) != len(want) {
		t.Fatalf("MatchedSelections = %v, want %v", result.MatchedSelections, want)
	}
	for i := range want {
		if result.MatchedSelections[i] != want[i] {
			t.Errorf("MatchedSelections[%d] = %q, want %q", i, result.MatchedSelections[i], want[i])
		}
	}
}

func TestMatchEventAgainstRulesPreservesOrder(t *testing.T) {
	r1 := mustCompile(t, &core.SigmaRule{
		ID:    "r1",
		Title: "matches",
		Detection: map[string]interface{}{
			"selection":       map[string]interface{}{"category": "authentication"},
			core.ConditionKey: "selection",
		},
	})
	r2 := mustCompile(t, &core.SigmaRule{
		ID:    "r2",
		Title: "also matches",
		Detection: map[string]interface{}{
			"selection":       map[string]interface{}{"host|startswith": "bastion"},
			core.ConditionKey: "selection",
		},
	})
	r3 := mustCompile(t, &core.SigmaRule{
		ID:    "r3",
		Title: "does not match",
		Detection: map[string]interface{}{
			"selection":       map[string]interface{}{"category": "process_creation"},
			core.ConditionKey: "selection",
		},
	})

	results := MatchEventAgainstRules(bruteForceEvent(), []*BoundRule{r1, r2, r3})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Rule.ID != "r1" || results[1].Rule.ID != "r2" {
		t.Errorf("result order = [%s, %s], want [r1, r2]", results[0].Rule.ID, results[1].Rule.ID)
	}
}

func TestMatchEventConcurrent(t *testing.T) {
	rule := mustCompile(t, bruteForceRule())
	event := bruteForceEvent()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if MatchEvent(event, rule) == nil {
					t.Error("concurrent evaluation diverged")
					return
				}
			}
		}()
	}
	wg.Wait()
}
