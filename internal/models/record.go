package models

import "time"

// RawRecord is one source-specific item fetched by a harvester. It lives only
// for the duration of a single harvest pass.
type RawRecord struct {
	ID        string
	Source    Source
	Text      string
	ImageURL  string
	Permalink string
	Author    string
	PostedAt  time.Time

	// Platform is set for event-platform records, which arrive structured
	// and skip model extraction.
	Platform *PlatformEvent
}

// PlatformEvent is a structured listing from an event platform, normalized
// across the GraphQL and scraping-service transports.
type PlatformEvent struct {
	ID           string
	Platform     string // meetup, eventbrite, luma
	Title        string
	Description  string
	StartsAt     time.Time
	Timezone     string
	VenueName    string
	Address      string
	City         string
	State        string
	Country      string
	IsOnline     bool
	EventURL     string
	ImageURL     string
	PriceMin     *float64
	PriceMax     *float64
	Currency     string
	TicketStatus string
	GroupName    string
	Topics       []string
}

// DedupKey returns the URL identifying the record within a run.
func (r RawRecord) DedupKey() string {
	if r.Platform != nil && r.Platform.EventURL != "" {
		return r.Platform.EventURL
	}
	return r.Permalink
}
