// Package correlate groups unclustered threat events into campaigns. A scan
// is a batch job: it reads every untagged event inside the scan window,
// clusters by source IP and by attack pattern, and writes campaigns plus
// event tags in one transaction.
package correlate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"argus/core"
	"argus/metrics"

	"go.uber.org/zap"
)

// ScanSummary reports what one scan did.
type ScanSummary struct {
	NewCampaigns     int
	UpdatedCampaigns int
	EventsCorrelated int
	Duration         time.Duration
}

// Engine runs campaign clustering scans. It holds no state between scans;
// callers must not run two scans concurrently against the same store.
type Engine struct {
	config *Config
	store  Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewEngine creates a clustering engine.
func NewEngine(store Store, config *Config, logger *zap.SugaredLogger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		config: config,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// ScanForCampaigns runs one clustering pass over unclustered events received
// within the scan window. All campaign writes and event tags from one scan
// commit atomically; on error nothing is applied and the next scheduled scan
// retries the same work.
func (e *Engine) ScanForCampaigns(ctx context.Context) (*ScanSummary, error) {
	start := e.now()
	cutoff := start.Add(-time.Duration(e.config.ScanWindowHours) * time.Hour)
	summary := &ScanSummary{}

	err := e.store.InTransaction(ctx, func(tx Tx) error {
		events, err := tx.UnclusteredEvents(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to fetch unclustered events: %w", err)
		}
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Timestamp.Before(events[j].Timestamp)
		})

		assigned := make(map[string]bool, len(events))

		for _, cluster := range e.ipClusters(events) {
			if len(cluster) < e.config.MinEventsForCampaign {
				continue
			}
			campaign := e.buildCampaign(core.CampaignTypeIPCluster, start, cluster)
			if err := e.commitCampaign(ctx, tx, campaign, cluster, assigned, summary); err != nil {
				return err
			}
		}

		remaining := make([]*core.EnrichedThreatEvent, 0, len(events))
		for _, event := range events {
			if !assigned[event.ID] {
				remaining = append(remaining, event)
			}
		}

		for _, group := range e.patternGroups(remaining) {
			if distinctIPCount(group) < e.config.MinIPsForPatternCampaign {
				continue
			}
			campaign := e.buildCampaign(core.CampaignTypePatternCluster, start, group)
			if err := e.commitCampaign(ctx, tx, campaign, group, assigned, summary); err != nil {
				return err
			}
		}
		return nil
	})

	summary.Duration = e.now().Sub(start)
	if err != nil {
		metrics.CampaignScanFailures.Inc()
		return nil, err
	}

	metrics.CampaignScanDuration.Observe(summary.Duration.Seconds())
	metrics.EventsCorrelated.Add(float64(summary.EventsCorrelated))

	e.logger.Infow("Campaign scan complete",
		"new_campaigns", summary.NewCampaigns,
		"updated_campaigns", summary.UpdatedCampaigns,
		"events_correlated", summary.EventsCorrelated,
		"duration", summary.Duration)

	return summary, nil
}

// ipClusters splits the time-ordered event list into per-IP clusters. An
// event joins the current cluster while its gap to the cluster's FIRST
// event stays within the time window; otherwise it starts a new cluster.
// The anchor is deliberately the first event, not the previous one, so the
// same inputs always produce the same campaign identities.
func (e *Engine) ipClusters(events []*core.EnrichedThreatEvent) [][]*core.EnrichedThreatEvent {
	byIP := make(map[string][]*core.EnrichedThreatEvent)
	ips := make([]string, 0)
	for _, event := range events {
		if event.AttackSourceIP == "" {
			continue
		}
		if _, seen := byIP[event.AttackSourceIP]; !seen {
			ips = append(ips, event.AttackSourceIP)
		}
		byIP[event.AttackSourceIP] = append(byIP[event.AttackSourceIP], event)
	}
	sort.Strings(ips)

	window := time.Duration(e.config.TimeWindowMinutes) * time.Minute

	var clusters [][]*core.EnrichedThreatEvent
	for _, ip := range ips {
		var current []*core.EnrichedThreatEvent
		for _, event := range byIP[ip] {
			if len(current) > 0 && event.Timestamp.Sub(current[0].Timestamp) > window {
				clusters = append(clusters, current)
				current = nil
			}
			current = append(current, event)
		}
		if len(current) > 0 {
			clusters = append(clusters, current)
		}
	}
	return clusters
}

// patternGroups buckets events by attack type plus sorted MITRE technique
// set, returning groups in deterministic key order.
func (e *Engine) patternGroups(events []*core.EnrichedThreatEvent) [][]*core.EnrichedThreatEvent {
	byKey := make(map[string][]*core.EnrichedThreatEvent)
	keys := make([]string, 0)
	for _, event := range events {
		techniques := make([]string, len(event.MitreTechniques))
		copy(techniques, event.MitreTechniques)
		sort.Strings(techniques)

		key := event.AttackType + "|" + strings.Join(techniques, ",")
		if _, seen := byKey[key]; !seen {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], event)
	}
	sort.Strings(keys)

	groups := make([][]*core.EnrichedThreatEvent, 0, len(keys))
	for _, key := range keys {
		groups = append(groups, byKey[key])
	}
	return groups
}

// buildCampaign aggregates a member set into a campaign candidate.
func (e *Engine) buildCampaign(campaignType core.CampaignType, scanTime time.Time, members []*core.EnrichedThreatEvent) *core.Campaign {
	memberIDs := make([]string, 0, len(members))
	severities := make([]core.Severity, 0, len(members))
	attackTypes := make([]string, 0)
	techniques := make([]string, 0)
	regions := make([]string, 0)

	firstSeen := members[0].Timestamp
	lastSeen := members[0].Timestamp
	for _, event := range members {
		memberIDs = append(memberIDs, event.ID)
		severities = append(severities, event.Severity)
		if event.AttackType != "" {
			attackTypes = append(attackTypes, event.AttackType)
		}
		techniques = append(techniques, event.MitreTechniques...)
		if event.Region != "" {
			regions = append(regions, event.Region)
		}
		if event.Timestamp.Before(firstSeen) {
			firstSeen = event.Timestamp
		}
		if event.Timestamp.After(lastSeen) {
			lastSeen = event.Timestamp
		}
	}

	campaign := &core.Campaign{
		CampaignID:      CampaignID(scanTime, memberIDs),
		CampaignType:    campaignType,
		FirstSeen:       firstSeen,
		LastSeen:        lastSeen,
		EventCount:      len(members),
		UniqueIPs:       distinctIPCount(members),
		AttackTypes:     distinctSorted(attackTypes),
		MitreTechniques: distinctSorted(techniques),
		Regions:         distinctSorted(regions),
		Severity:        core.MaxSeverity(severities),
		Status:          core.CampaignStatusActive,
		CreatedAt:       scanTime,
		UpdatedAt:       scanTime,
	}
	campaign.Name = campaignName(campaign, members)
	return campaign
}

// commitCampaign upserts the candidate with read-merge-write semantics,
// tags its member events and records them as assigned.
func (e *Engine) commitCampaign(ctx context.Context, tx Tx, campaign *core.Campaign, members []*core.EnrichedThreatEvent, assigned map[string]bool, summary *ScanSummary) error {
	existing, err := tx.GetCampaign(ctx, campaign.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign %s: %w", campaign.CampaignID, err)
	}
	if existing != nil {
		campaign = mergeCampaigns(existing, campaign, e.now())
		summary.UpdatedCampaigns++
		metrics.CampaignsUpdated.Inc()
	} else {
		summary.NewCampaigns++
		metrics.CampaignsCreated.Inc()
	}

	if err := tx.UpsertCampaign(ctx, campaign); err != nil {
		return fmt.Errorf("failed to upsert campaign %s: %w", campaign.CampaignID, err)
	}

	memberIDs := make([]string, 0, len(members))
	for _, event := range members {
		memberIDs = append(memberIDs, event.ID)
		assigned[event.ID] = true
	}
	if err := tx.TagEvents(ctx, campaign.CampaignID, memberIDs); err != nil {
		return fmt.Errorf("failed to tag events for campaign %s: %w", campaign.CampaignID, err)
	}
	summary.EventsCorrelated += len(members)
	return nil
}

// mergeCampaigns folds a recomputed candidate into an existing campaign row.
// The candidate's member set equals the existing one (same id implies same
// members), so counts come from the candidate; sets union, timestamps
// widen, severity only escalates, and the operator-facing fields (name,
// status, creation time) stay untouched.
func mergeCampaigns(existing, candidate *core.Campaign, now time.Time) *core.Campaign {
	merged := *existing
	merged.EventCount = candidate.EventCount
	merged.UniqueIPs = candidate.UniqueIPs
	merged.AttackTypes = distinctSorted(append(existing.AttackTypes, candidate.AttackTypes...))
	merged.MitreTechniques = distinctSorted(append(existing.MitreTechniques, candidate.MitreTechniques...))
	merged.Regions = distinctSorted(append(existing.Regions, candidate.Regions...))
	merged.Severity = core.EscalateSeverity(existing.Severity, candidate.Severity)
	if candidate.FirstSeen.Before(merged.FirstSeen) {
		merged.FirstSeen = candidate.FirstSeen
	}
	if candidate.LastSeen.After(merged.LastSeen) {
		merged.LastSeen = candidate.LastSeen
	}
	merged.UpdatedAt = now
	return &merged
}

func campaignName(campaign *core.Campaign, members []*core.EnrichedThreatEvent) string {
	switch campaign.CampaignType {
	case core.CampaignTypeIPCluster:
		return fmt.Sprintf("Repeated attacks from %s", members[0].AttackSourceIP)
	case core.CampaignTypePatternCluster:
		attackType := "untyped"
		if len(campaign.AttackTypes) > 0 {
			attackType = campaign.AttackTypes[0]
		}
		return fmt.Sprintf("%s pattern across %d sources", attackType, campaign.UniqueIPs)
	default:
		return campaign.CampaignID
	}
}

func distinctIPCount(events []*core.EnrichedThreatEvent) int {
	ips := make(map[string]struct{}, len(events))
	for _, event := range events {
		if event.AttackSourceIP != "" {
			ips[event.AttackSourceIP] = struct{}{}
		}
	}
	return len(ips)
}

func distinctSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
