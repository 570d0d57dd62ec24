package storage

import "errors"

var (
	// ErrEventNotFound is returned when an enriched event is not found
	ErrEventNotFound = errors.New("event not found")

	// ErrCampaignNotFound is returned when a campaign is not found
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrDuplicateEvent is returned when an event with the same hash already exists
	ErrDuplicateEvent = errors.New("event already exists")
)
