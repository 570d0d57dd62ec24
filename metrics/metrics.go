package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RulesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "argus_rules_loaded",
			Help: "Number of detection rules currently loaded",
		},
	)

	RuleCompileFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_rule_compile_failures_total",
			Help: "Total number of rules rejected at load time",
		},
	)

	EventsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_events_evaluated_total",
			Help: "Total number of events evaluated against the rule set",
		},
	)

	RuleMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_rule_matches_total",
			Help: "Total number of rule matches",
		},
		[]string{"rule_id", "level"},
	)

	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_match_duration_seconds",
			Help:    "Time taken to evaluate one event against the rule set",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
		},
	)

	CampaignScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_campaign_scan_duration_seconds",
			Help:    "Time taken by one clustering scan",
			Buckets: prometheus.DefBuckets,
		},
	)

	CampaignScanFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_campaign_scan_failures_total",
			Help: "Total number of clustering scans that rolled back",
		},
	)

	CampaignsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_campaigns_created_total",
			Help: "Total number of campaigns created",
		},
	)

	CampaignsUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_campaigns_updated_total",
			Help: "Total number of campaigns merged on re-scan",
		},
	)

	EventsCorrelated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_events_correlated_total",
			Help: "Total number of events assigned to a campaign",
		},
	)
)
