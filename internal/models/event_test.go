package models

import (
	"encoding/json"
	"testing"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Category
	}{
		{"Known category", "music", CategoryMusic},
		{"Mixed case with spaces", "  Theater ", CategoryTheater},
		{"Unknown category", "nightlife", CategoryFestival},
		{"Empty", "", CategoryFestival},
		{"Spanish word", "música", CategoryFestival},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCategory(tt.input); got != tt.expected {
				t.Errorf("NormalizeCategory(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]Language{
		"en":      LanguageEn,
		"ES":      LanguageEs,
		"fr":      LanguageUnknown,
		"":        LanguageUnknown,
		"unknown": LanguageUnknown,
	}

	for input, expected := range tests {
		if got := NormalizeLanguage(input); got != expected {
			t.Errorf("NormalizeLanguage(%q) = %v, want %v", input, got, expected)
		}
	}
}

func TestCandidateEvent_Persistable(t *testing.T) {
	url := "https://www.instagram.com/p/abc/"
	blank := "  "

	tests := []struct {
		name     string
		event    *CandidateEvent
		expected bool
	}{
		{"Date and URL", &CandidateEvent{DateStart: "2026-03-01", SourceURL: &url}, true},
		{"Missing date", &CandidateEvent{SourceURL: &url}, false},
		{"Missing URL", &CandidateEvent{DateStart: "2026-03-01"}, false},
		{"Blank URL", &CandidateEvent{DateStart: "2026-03-01", SourceURL: &blank}, false},
		{"Nil event", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Persistable(); got != tt.expected {
				t.Errorf("Persistable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCandidateEvent_MergeGapsKeepsExistingValues(t *testing.T) {
	text := &CandidateEvent{
		Title:       "Jazz night",
		DateStart:   "2026-03-01",
		Description: StringPtr("Live quartet"),
		Location:    "Vegueta",
	}
	image := &CandidateEvent{
		Title:       "JAZZ NIGHT POSTER",
		DateStart:   "2026-03-02",
		Time:        StringPtr("21:00"),
		Description: StringPtr("Poster text"),
		TicketPrice: StringPtr("10€"),
		Location:    "Somewhere else",
	}

	if !text.Incomplete() {
		t.Fatal("expected text-derived event to be incomplete")
	}

	text.MergeGaps(image)

	if text.Title != "Jazz night" || text.DateStart != "2026-03-01" {
		t.Errorf("text values were overwritten: %+v", text)
	}
	if Deref(text.Description) != "Live quartet" {
		t.Errorf("description overwritten: %q", Deref(text.Description))
	}
	if Deref(text.Time) != "21:00" || Deref(text.TicketPrice) != "10€" {
		t.Errorf("gaps not filled: time=%q price=%q", Deref(text.Time), Deref(text.TicketPrice))
	}
	if text.Location != "Vegueta" {
		t.Errorf("location should not be merged, got %q", text.Location)
	}
	if text.Incomplete() {
		t.Error("expected merged event to be complete")
	}
}

func TestSourceOutcomeJSON(t *testing.T) {
	tests := []struct {
		name     string
		outcome  SourceOutcome
		expected string
	}{
		{
			name:     "Counts",
			outcome:  SourceOutcome{PipelineResult: &PipelineResult{Inserted: 2, Skipped: 1}},
			expected: `{"inserted":2,"skipped":1,"errors":0}`,
		},
		{
			name:     "Error only",
			outcome:  SourceOutcome{Error: "boom"},
			expected: `{"error":"boom"}`,
		},
		{
			name:     "Partial",
			outcome:  SourceOutcome{PipelineResult: &PipelineResult{Inserted: 1}, Error: "context deadline exceeded"},
			expected: `{"inserted":1,"skipped":0,"errors":0,"error":"context deadline exceeded"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.outcome)
			if err != nil {
				t.Fatalf("Marshal returned error: %v", err)
			}
			if string(data) != tt.expected {
				t.Errorf("got %s, want %s", data, tt.expected)
			}
		})
	}
}
