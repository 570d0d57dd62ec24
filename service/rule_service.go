// Package service wires rule loading, live matching and scheduled
// clustering scans together.
package service

import (
	"fmt"
	"time"

	"argus/core"
	"argus/detect"
	"argus/metrics"
	"argus/sigma"

	"go.uber.org/zap"
)

// RuleService loads rules from disk, compiles them and evaluates events
// against the compiled set. The rule set is immutable after LoadRules;
// MatchEvent is safe for concurrent use.
type RuleService struct {
	parser *sigma.Parser
	logger *zap.SugaredLogger

	rules []*detect.BoundRule
}

// NewRuleService creates a rule service.
func NewRuleService(logger *zap.SugaredLogger) *RuleService {
	return &RuleService{
		parser: sigma.NewParser(logger),
		logger: logger,
	}
}

// LoadRules loads and compiles every rule under directory. Rules that fail
// to compile are logged and skipped; the rest of the set still loads.
// Returns the number of usable rules.
func (s *RuleService) LoadRules(directory string) (int, error) {
	loaded, err := s.parser.ParseDirectory(directory)
	if err != nil {
		return 0, fmt.Errorf("failed to load rules: %w", err)
	}

	rules := make([]*core.SigmaRule, 0, len(loaded))
	for _, lr := range loaded {
		rules = append(rules, lr.Rule)
	}

	bound, ruleErrs := detect.CompileRules(rules)
	for _, ruleErr := range ruleErrs {
		s.logger.Warnw("Skipping rule", "rule_id", ruleErr.RuleID, "error", ruleErr.Err)
		metrics.RuleCompileFailures.Inc()
	}

	s.rules = bound
	metrics.RulesLoaded.Set(float64(len(bound)))
	s.logger.Infow("Rules loaded", "loaded", len(bound), "skipped", len(ruleErrs))
	return len(bound), nil
}

// Rules returns the compiled rule set.
func (s *RuleService) Rules() []*detect.BoundRule {
	return s.rules
}

// MatchEvent evaluates one event against the loaded rule set, preserving
// rule load order in the results.
func (s *RuleService) MatchEvent(event *core.SecurityEvent) []*core.MatchResult {
	start := time.Now()
	results := detect.MatchEventAgainstRules(event, s.rules)
	metrics.EventsEvaluated.Inc()
	metrics.MatchDuration.Observe(time.Since(start).Seconds())

	for _, result := range results {
		metrics.RuleMatches.WithLabelValues(result.Rule.ID, string(result.Rule.Level)).Inc()
		s.logger.Debugw("Rule matched",
			"rule_id", result.Rule.ID,
			"event_id", event.ID,
			"selections", result.MatchedSelections)
	}
	return results
}
