package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"argus/core"
	"argus/correlate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// eventHash derives the dedup key for feeds that do not supply one: the same
// attack observation reported twice hashes to the same value.
func eventHash(event *core.EnrichedThreatEvent) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s",
		event.SourceType, event.AttackSourceIP, event.AttackType,
		event.Timestamp.UTC().Format(time.RFC3339))))
	return hex.EncodeToString(sum[:])
}

// ThreatStore persists enriched threat events and campaigns. It implements
// correlate.Store for the clustering engine.
type ThreatStore struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewThreatStore creates a threat event store.
func NewThreatStore(sqlite *SQLite, logger *zap.SugaredLogger) *ThreatStore {
	return &ThreatStore{sqlite: sqlite, logger: logger}
}

const enrichedEventColumns = `id, source_type, attack_source_ip, attack_type, mitre_techniques,
	timestamp, received_at, region, confidence, severity,
	service_type, skill_level, intent, tools, event_hash, campaign_id`

// InsertEnrichedEvent stores a new enriched event. Events are deduplicated
// on event_hash; a duplicate returns ErrDuplicateEvent. Missing id and hash
// are filled in for feeds that do not provide them.
func (s *ThreatStore) InsertEnrichedEvent(ctx context.Context, event *core.EnrichedThreatEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.EventHash == "" {
		event.EventHash = eventHash(event)
	}

	techniquesJSON, _ := json.Marshal(event.MitreTechniques)
	toolsJSON, _ := json.Marshal(event.Tools)

	var campaignID interface{}
	if event.CampaignID != "" {
		campaignID = event.CampaignID
	}

	query := `
		INSERT INTO enriched_events (` + enrichedEventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.sqlite.WriteDB.ExecContext(ctx, query,
		event.ID, event.SourceType, event.AttackSourceIP, event.AttackType, string(techniquesJSON),
		event.Timestamp, event.ReceivedAt, event.Region, event.Confidence, event.Severity,
		event.ServiceType, event.SkillLevel, event.Intent, string(toolsJSON), event.EventHash, campaignID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("failed to insert enriched event: %w", err)
	}
	return nil
}

// GetEnrichedEvent retrieves an enriched event by id.
func (s *ThreatStore) GetEnrichedEvent(ctx context.Context, id string) (*core.EnrichedThreatEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := s.sqlite.ReadDB.QueryRowContext(ctx,
		`SELECT `+enrichedEventColumns+` FROM enriched_events WHERE id = ?`, id)
	event, err := scanEnrichedEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enriched event: %w", err)
	}
	return event, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEnrichedEvent(row rowScanner) (*core.EnrichedThreatEvent, error) {
	var event core.EnrichedThreatEvent
	var techniquesJSON, toolsJSON string
	var campaignID sql.NullString

	err := row.Scan(
		&event.ID, &event.SourceType, &event.AttackSourceIP, &event.AttackType, &techniquesJSON,
		&event.Timestamp, &event.ReceivedAt, &event.Region, &event.Confidence, &event.Severity,
		&event.ServiceType, &event.SkillLevel, &event.Intent, &toolsJSON, &event.EventHash, &campaignID,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(techniquesJSON), &event.MitreTechniques)
	_ = json.Unmarshal([]byte(toolsJSON), &event.Tools)
	if campaignID.Valid {
		event.CampaignID = campaignID.String
	}
	return &event, nil
}

// GetCampaign retrieves a campaign by id.
func (s *ThreatStore) GetCampaign(ctx context.Context, campaignID string) (*core.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	campaign, err := getCampaign(ctx, s.sqlite.ReadDB, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return campaign, nil
}

// ListCampaigns returns campaigns ordered by last_seen descending. An empty
// status returns every campaign.
func (s *ThreatStore) ListCampaigns(ctx context.Context, status core.CampaignStatus) ([]*core.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY last_seen DESC`

	rows, err := s.sqlite.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*core.Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

// SetCampaignStatus applies a manual lifecycle transition.
func (s *ThreatStore) SetCampaignStatus(ctx context.Context, campaignID string, status core.CampaignStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.sqlite.WriteDB.ExecContext(ctx,
		`UPDATE campaigns SET status = ?, updated_at = ? WHERE campaign_id = ?`,
		status, time.Now().UTC(), campaignID)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrCampaignNotFound
	}

	s.logger.Infow("Campaign status changed", "campaign_id", campaignID, "status", status)
	return nil
}

// InTransaction runs a clustering scan's reads and writes inside one write
// transaction.
func (s *ThreatStore) InTransaction(ctx context.Context, fn func(tx correlate.Tx) error) error {
	return s.sqlite.WithTransaction(func(tx *sql.Tx) error {
		return fn(&scanTx{tx: tx})
	})
}

// scanTx implements correlate.Tx over one *sql.Tx.
type scanTx struct {
	tx *sql.Tx
}

func (t *scanTx) UnclusteredEvents(ctx context.Context, cutoff time.Time) ([]*core.EnrichedThreatEvent, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+enrichedEventColumns+`
		FROM enriched_events
		WHERE campaign_id IS NULL AND received_at >= ?
		ORDER BY timestamp ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query unclustered events: %w", err)
	}
	defer rows.Close()

	var events []*core.EnrichedThreatEvent
	for rows.Next() {
		event, err := scanEnrichedEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enriched event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (t *scanTx) GetCampaign(ctx context.Context, campaignID string) (*core.Campaign, error) {
	return getCampaign(ctx, t.tx, campaignID)
}

func (t *scanTx) UpsertCampaign(ctx context.Context, campaign *core.Campaign) error {
	attackTypesJSON, _ := json.Marshal(campaign.AttackTypes)
	techniquesJSON, _ := json.Marshal(campaign.MitreTechniques)
	regionsJSON, _ := json.Marshal(campaign.Regions)

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO campaigns (
			campaign_id, name, campaign_type, first_seen, last_seen,
			event_count, unique_ips, attack_types, mitre_techniques, regions,
			severity, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(campaign_id) DO UPDATE SET
			name = excluded.name,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			event_count = excluded.event_count,
			unique_ips = excluded.unique_ips,
			attack_types = excluded.attack_types,
			mitre_techniques = excluded.mitre_techniques,
			regions = excluded.regions,
			severity = excluded.severity,
			status = excluded.status,
			updated_at = excluded.updated_at
	`,
		campaign.CampaignID, campaign.Name, campaign.CampaignType, campaign.FirstSeen, campaign.LastSeen,
		campaign.EventCount, campaign.UniqueIPs, string(attackTypesJSON), string(techniquesJSON), string(regionsJSON),
		campaign.Severity, campaign.Status, campaign.CreatedAt, campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert campaign: %w", err)
	}
	return nil
}

func (t *scanTx) TagEvents(ctx context.Context, campaignID string, eventIDs []string) error {
	stmt, err := t.tx.PrepareContext(ctx, `UPDATE enriched_events SET campaign_id = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare tag statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range eventIDs {
		if _, err := stmt.ExecContext(ctx, campaignID, id); err != nil {
			return fmt.Errorf("failed to tag event %s: %w", id, err)
		}
	}
	return nil
}

const campaignColumns = `campaign_id, name, campaign_type, first_seen, last_seen,
	event_count, unique_ips, attack_types, mitre_techniques, regions,
	severity, status, created_at, updated_at`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// getCampaign returns nil with no error when the campaign does not exist.
func getCampaign(ctx context.Context, q querier, campaignID string) (*core.Campaign, error) {
	row := q.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE campaign_id = ?`, campaignID)
	campaign, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

func scanCampaign(row rowScanner) (*core.Campaign, error) {
	var campaign core.Campaign
	var attackTypesJSON, techniquesJSON, regionsJSON string

	err := row.Scan(
		&campaign.CampaignID, &campaign.Name, &campaign.CampaignType, &campaign.FirstSeen, &campaign.LastSeen,
		&campaign.EventCount, &campaign.UniqueIPs, &attackTypesJSON, &techniquesJSON, &regionsJSON,
		&campaign.Severity, &campaign.Status, &campaign.CreatedAt, &campaign.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(attackTypesJSON), &campaign.AttackTypes)
	_ = json.Unmarshal([]byte(techniquesJSON), &campaign.MitreTechniques)
	_ = json.Unmarshal([]byte(regionsJSON), &campaign.Regions)
	return &campaign, nil
}
