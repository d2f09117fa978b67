package extraction

import (
	"strings"
	"time"

	"github.com/granhackaria/eventharvest/internal/llm"
	"github.com/granhackaria/eventharvest/internal/models"
)

// parseCandidate turns a model reply into a candidate. Malformed replies and
// the not_event sentinel both yield nil.
func (e *Engine) parseCandidate(reply string) *models.CandidateEvent {
	obj, err := llm.DecodeObject(reply)
	if err != nil {
		e.logger.Debug("model reply is not JSON, treating as not an event", "error", err)
		return nil
	}

	if notEvent, _ := obj["not_event"].(bool); notEvent {
		return nil
	}

	event := &models.CandidateEvent{
		Title:          llm.StringField(obj, "title"),
		TitleEn:        llm.StringField(obj, "title_en"),
		TitleEs:        llm.StringField(obj, "title_es"),
		Description:    models.StringPtr(llm.StringField(obj, "description")),
		DescriptionEn:  models.StringPtr(llm.StringField(obj, "description_en")),
		DescriptionEs:  models.StringPtr(llm.StringField(obj, "description_es")),
		SourceLanguage: models.NormalizeLanguage(llm.StringField(obj, "source_language")),
		DateStart:      normalizeDate(llm.StringField(obj, "date_start")),
		Time:           normalizeTime(llm.StringField(obj, "time")),
		Location:       llm.StringField(obj, "location"),
		TicketPrice:    models.StringPtr(llm.StringField(obj, "ticket_price")),
		Category:       models.NormalizeCategory(llm.StringField(obj, "category")),
	}

	if event.Location == "" {
		event.Location = e.config.DefaultLocation
	}

	if event.Title == "" {
		switch event.SourceLanguage {
		case models.LanguageEs:
			event.Title = firstNonEmpty(event.TitleEs, event.TitleEn)
		default:
			event.Title = firstNonEmpty(event.TitleEn, event.TitleEs)
		}
	}
	if event.Description == nil {
		if event.SourceLanguage == models.LanguageEs && event.DescriptionEs != nil {
			event.Description = event.DescriptionEs
		} else if event.DescriptionEn != nil {
			event.Description = event.DescriptionEn
		}
	}

	return event
}

// normalizeDate accepts YYYY-MM-DD, optionally followed by a time part.
// Anything unparseable becomes "".
func normalizeDate(raw string) string {
	if len(raw) < len(time.DateOnly) {
		return ""
	}
	d, err := time.Parse(time.DateOnly, raw[:len(time.DateOnly)])
	if err != nil {
		return ""
	}
	return d.Format(time.DateOnly)
}

// normalizeTime accepts H:MM, HH:MM and HH:MM:SS and renders HH:MM.
func normalizeTime(raw string) *string {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04", "15:04:05", "3:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			s := t.Format("15:04")
			return &s
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
