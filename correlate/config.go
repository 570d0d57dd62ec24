package correlate

// Config controls the clustering scan.
type Config struct {
	// TimeWindowMinutes bounds an IP cluster: events join the cluster while
	// their gap to the cluster's first event stays within this window.
	TimeWindowMinutes int `mapstructure:"time_window_minutes" validate:"gte=1"`

	// MinEventsForCampaign is the minimum cluster size that becomes an
	// IP campaign.
	MinEventsForCampaign int `mapstructure:"min_events_for_campaign" validate:"gte=1"`

	// MinIPsForPatternCampaign is the minimum number of distinct source IPs
	// a pattern group needs to become a campaign.
	MinIPsForPatternCampaign int `mapstructure:"min_ips_for_pattern_campaign" validate:"gte=1"`

	// ScanWindowHours bounds how far back a scan looks for unclustered
	// events, measured against receivedAt.
	ScanWindowHours int `mapstructure:"scan_window_hours" validate:"gte=1"`
}

// DefaultConfig returns the default scan configuration.
func DefaultConfig() *Config {
	return &Config{
		TimeWindowMinutes:        60,
		MinEventsForCampaign:     3,
		MinIPsForPatternCampaign: 5,
		ScanWindowHours:          24,
	}
}
