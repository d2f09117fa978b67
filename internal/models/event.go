package models

import (
	"strings"
	"time"
)

// CandidateEvent is a normalized event produced by extraction that has not
// been persisted yet.
type CandidateEvent struct {
	Title          string   `json:"title"`
	TitleEn        string   `json:"title_en"`
	TitleEs        string   `json:"title_es"`
	Description    *string  `json:"description"`
	DescriptionEn  *string  `json:"description_en"`
	DescriptionEs  *string  `json:"description_es"`
	SourceLanguage Language `json:"source_language"`
	DateStart      string   `json:"date_start"` // YYYY-MM-DD
	Time           *string  `json:"time"`       // HH:MM, 24h
	Location       string   `json:"location"`
	TicketPrice    *string  `json:"ticket_price"`
	Category       Category `json:"category"`
	ImageURL       *string  `json:"image_url"`
	Source         Source   `json:"source"`
	SourceURL      *string  `json:"source_url"`
}

// PersistedEvent is a stored event row.
type PersistedEvent struct {
	CandidateEvent
	ID            string    `json:"id"`
	SourceURLGone bool      `json:"source_url_gone"`
	CreatedAt     time.Time `json:"created_at"`

	// SourceURLCheckedAt is when the link-health monitor last probed the
	// source URL.
	SourceURLCheckedAt *time.Time `json:"source_url_checked_at,omitempty"`
}

// SourceLink is the subset of a stored event the link-health monitor needs.
type SourceLink struct {
	ID        string `json:"id"`
	SourceURL string `json:"source_url"`
}

// Category is the closed set of event categories.
type Category string

const (
	CategoryMusic    Category = "music"
	CategoryArts     Category = "arts"
	CategoryFood     Category = "food"
	CategorySports   Category = "sports"
	CategoryFestival Category = "festival"
	CategoryTheater  Category = "theater"
	CategoryWorkshop Category = "workshop"
	CategoryMarket   Category = "market"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryMusic,
	CategoryArts,
	CategoryFood,
	CategorySports,
	CategoryFestival,
	CategoryTheater,
	CategoryWorkshop,
	CategoryMarket,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// NormalizeCategory maps free text onto the closed set. Anything unknown
// becomes festival.
func NormalizeCategory(raw string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if c.Valid() {
		return c
	}
	return CategoryFestival
}

// Source identifies where an event was harvested from.
type Source string

const (
	SourceInstagram  Source = "instagram"
	SourceSlack      Source = "slack"
	SourceMeetup     Source = "meetup"
	SourceEventbrite Source = "eventbrite"
	SourceLuma       Source = "luma"
	SourceManual     Source = "manual"
)

// SourceForPlatform maps an event platform name onto its Source. Unknown
// platforms are attributed to meetup.
func SourceForPlatform(platform string) Source {
	switch Source(strings.ToLower(strings.TrimSpace(platform))) {
	case SourceEventbrite:
		return SourceEventbrite
	case SourceLuma:
		return SourceLuma
	default:
		return SourceMeetup
	}
}

// Language is the detected language of the source text.
type Language string

const (
	LanguageEn      Language = "en"
	LanguageEs      Language = "es"
	LanguageUnknown Language = "unknown"
)

// NormalizeLanguage maps anything other than en/es to unknown.
func NormalizeLanguage(raw string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(raw))) {
	case LanguageEn:
		return LanguageEn
	case LanguageEs:
		return LanguageEs
	default:
		return LanguageUnknown
	}
}

// Persistable reports whether the event carries both a start date and a
// source URL. Events failing this check must never reach storage.
func (e *CandidateEvent) Persistable() bool {
	return e != nil && strings.TrimSpace(e.DateStart) != "" && e.SourceURL != nil && strings.TrimSpace(*e.SourceURL) != ""
}

// HasBothLanguages reports whether both title variants are present.
func (e *CandidateEvent) HasBothLanguages() bool {
	return strings.TrimSpace(e.TitleEn) != "" && strings.TrimSpace(e.TitleEs) != ""
}

// Incomplete reports whether any of the gap-fillable fields is missing:
// title, date, time, description or ticket price.
func (e *CandidateEvent) Incomplete() bool {
	return strings.TrimSpace(e.Title) == "" ||
		strings.TrimSpace(e.DateStart) == "" ||
		isBlank(e.Time) ||
		isBlank(e.Description) ||
		isBlank(e.TicketPrice)
}

// MergeGaps fills the gap-fillable fields of e from other. Values already
// present on e are never overwritten.
func (e *CandidateEvent) MergeGaps(other *CandidateEvent) {
	if other == nil {
		return
	}
	if strings.TrimSpace(e.Title) == "" {
		e.Title = other.Title
	}
	if strings.TrimSpace(e.DateStart) == "" {
		e.DateStart = other.DateStart
	}
	if isBlank(e.Time) {
		e.Time = other.Time
	}
	if isBlank(e.Description) {
		e.Description = other.Description
	}
	if isBlank(e.TicketPrice) {
		e.TicketPrice = other.TicketPrice
	}
}

// StringPtr returns nil for blank strings and a pointer to the trimmed value
// otherwise.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
