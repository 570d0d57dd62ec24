package correlate

import (
	"context"
	"time"

	"argus/core"
)

// Tx is the set of storage operations a scan performs inside one
// transaction. Implemented by the storage layer.
type Tx interface {
	// UnclusteredEvents returns events with no campaign assignment whose
	// receivedAt is at or after cutoff, ordered by timestamp ascending.
	UnclusteredEvents(ctx context.Context, cutoff time.Time) ([]*core.EnrichedThreatEvent, error)

	// GetCampaign returns the campaign with the given id, or nil if none
	// exists.
	GetCampaign(ctx context.Context, campaignID string) (*core.Campaign, error)

	// UpsertCampaign inserts the campaign or replaces an existing row with
	// the same id.
	UpsertCampaign(ctx context.Context, campaign *core.Campaign) error

	// TagEvents assigns campaignID to every listed event.
	TagEvents(ctx context.Context, campaignID string, eventIDs []string) error
}

// Store wraps scan storage in a transaction. The callback either commits
// (nil return) or rolls back fully; a scan never leaves partially tagged
// events behind.
type Store interface {
	InTransaction(ctx context.Context, fn func(tx Tx) error) error
}
