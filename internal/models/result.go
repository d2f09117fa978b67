package models

import "time"

// UpsertStatus classifies a single persistence attempt.
type UpsertStatus string

const (
	UpsertInserted UpsertStatus = "inserted"
	UpsertSkipped  UpsertStatus = "skipped"
	UpsertError    UpsertStatus = "error"
)

// PipelineResult counts per-record outcomes for one source.
type PipelineResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// Total is the number of records that reached the pipeline.
func (r PipelineResult) Total() int {
	return r.Inserted + r.Skipped + r.Errors
}

// Add records one outcome.
func (r *PipelineResult) Add(status UpsertStatus) {
	switch status {
	case UpsertInserted:
		r.Inserted++
	case UpsertSkipped:
		r.Skipped++
	default:
		r.Errors++
	}
}

// SourceOutcome is what the orchestrator reports for one source: counts, an
// error, or both when the pipeline was interrupted part way.
type SourceOutcome struct {
	*PipelineResult
	Error string `json:"error,omitempty"`
}

// Failed reports whether the source ended with an error.
func (o SourceOutcome) Failed() bool {
	return o.Error != ""
}

// LinkHealthResult summarizes one link-health batch.
type LinkHealthResult struct {
	Checked int `json:"checked"`
	Marked  int `json:"marked"`
	Errors  int `json:"errors"`
}

// RunWindow records when an invocation started and finished.
type RunWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RunSummary is the structured result of a full ingestion run.
type RunSummary struct {
	Sources    map[string]SourceOutcome `json:"sources"`
	LinkHealth *LinkHealthOutcome       `json:"mark_gone_source_urls,omitempty"`
	Timestamp  RunWindow                `json:"timestamp"`
}

// LinkHealthOutcome is a link-health result or the error that prevented it.
type LinkHealthOutcome struct {
	*LinkHealthResult
	Error string `json:"error,omitempty"`
}
