package models

import (
	"time"
)

// IngestionError records a soft failure that was logged and skipped during a
// harvest run.
type IngestionError struct {
	ID         string     `json:"id"`
	Platform   string     `json:"platform"`   // e.g., "instagram", "slack", "meetup"
	ErrorType  string     `json:"error_type"` // e.g., "fetch_failed", "auth_failed"
	URL        string     `json:"url"`
	ErrorMsg   string     `json:"error_msg"`
	Metadata   string     `json:"metadata"` // JSON
	CreatedAt  time.Time  `json:"created_at"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// IngestionErrorType categorizes soft failures.
type IngestionErrorType string

const (
	ErrorTypeFetchFailed       IngestionErrorType = "fetch_failed"
	ErrorTypeParsingFailed     IngestionErrorType = "parsing_failed"
	ErrorTypeAuthFailed        IngestionErrorType = "auth_failed"
	ErrorTypeRateLimitExceeded IngestionErrorType = "rate_limit_exceeded"
	ErrorTypeExtractionFailed  IngestionErrorType = "extraction_failed"
	ErrorTypePersistFailed     IngestionErrorType = "persist_failed"
)
