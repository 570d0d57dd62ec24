package core

import "time"

// SourceType identifies where an enriched threat event originated.
type SourceType string

const (
	SourceGuard        SourceType = "guard"
	SourceTrap         SourceType = "trap"
	SourceExternalFeed SourceType = "external_feed"
)

// EnrichedThreatEvent is a normalized, enriched threat observation owned by
// the event store. The clustering engine only reads these and assigns
// CampaignID; all other fields are written by the ingestion pipeline.
type EnrichedThreatEvent struct {
	ID              string     `json:"id"`
	SourceType      SourceType `json:"source_type"`
	AttackSourceIP  string     `json:"attack_source_ip"`
	AttackType      string     `json:"attack_type"`
	MitreTechniques []string   `json:"mitre_techniques"`
	Timestamp       time.Time  `json:"timestamp"`
	ReceivedAt      time.Time  `json:"received_at"`
	Region          string     `json:"region,omitempty"`
	Confidence      float64    `json:"confidence"`
	Severity        Severity   `json:"severity"`

	ServiceType string   `json:"service_type,omitempty"`
	SkillLevel  string   `json:"skill_level,omitempty"`
	Intent      string   `json:"intent,omitempty"`
	Tools       []string `json:"tools,omitempty"`

	// EventHash is the ingestion dedup key.
	EventHash string `json:"event_hash"`

	// CampaignID is empty until the clustering engine assigns the event to a
	// campaign.
	CampaignID string `json:"campaign_id,omitempty"`
}

// CampaignType distinguishes how a campaign was formed.
type CampaignType string

const (
	// CampaignTypeIPCluster groups repeated events from one source IP within
	// a time window.
	CampaignTypeIPCluster CampaignType = "ip_cluster"
	// CampaignTypePatternCluster groups one attack signature seen across many
	// distinct source IPs.
	CampaignTypePatternCluster CampaignType = "pattern_cluster"
	// CampaignTypeManual marks analyst-created campaigns. The clustering
	// engine never creates or extends these.
	CampaignTypeManual CampaignType = "manual"
)

// CampaignStatus is the analyst-facing lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusActive        CampaignStatus = "active"
	CampaignStatusResolved      CampaignStatus = "resolved"
	CampaignStatusFalsePositive CampaignStatus = "false_positive"
)

// Campaign is a group of correlated threat events believed to originate from
// one coordinated attack pattern or source. CampaignID is a pure function of
// the sorted member event ids at creation time, so re-deriving it from the
// same inputs reproduces the same id.
type Campaign struct {
	CampaignID      string         `json:"campaign_id"`
	Name            string         `json:"name"`
	CampaignType    CampaignType   `json:"campaign_type"`
	FirstSeen       time.Time      `json:"first_seen"`
	LastSeen        time.Time      `json:"last_seen"`
	EventCount      int            `json:"event_count"`
	UniqueIPs       int            `json:"unique_ips"`
	AttackTypes     []string       `json:"attack_types"`
	MitreTechniques []string       `json:"mitre_techniques"`
	Regions         []string       `json:"regions"`
	Severity        Severity       `json:"severity"`
	Status          CampaignStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
