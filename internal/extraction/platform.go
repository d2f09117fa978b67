package extraction

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/granhackaria/eventharvest/internal/models"
)

const untitledEvent = "Untitled Event"

// TransformPlatformEvent maps a structured platform listing onto the
// canonical schema without a model call. The language is left unknown so the
// bilingual normalizer translates it.
func (e *Engine) TransformPlatformEvent(ctx context.Context, pe models.PlatformEvent) *models.CandidateEvent {
	title := strings.TrimSpace(pe.Title)
	if title == "" {
		title = untitledEvent
	}

	event := &models.CandidateEvent{
		Title:          title,
		Description:    models.StringPtr(pe.Description),
		SourceLanguage: models.LanguageUnknown,
		Location:       platformLocation(pe),
		TicketPrice:    formatPrice(pe),
		Category:       ClassifyKeywords(title, pe.Description, pe.GroupName, strings.Join(pe.Topics, " ")),
		ImageURL:       models.StringPtr(pe.ImageURL),
		Source:         models.SourceForPlatform(pe.Platform),
		SourceURL:      models.StringPtr(pe.EventURL),
	}

	if !pe.StartsAt.IsZero() {
		local := pe.StartsAt.In(e.locationFor(pe.Timezone))
		event.DateStart = local.Format(time.DateOnly)
		t := local.Format("15:04")
		event.Time = &t
	}

	if event.ImageURL == nil && e.pages != nil && pe.EventURL != "" {
		img, err := e.pages.FindImage(ctx, pe.EventURL)
		if err != nil {
			e.logger.Debug("page image lookup failed", "url", pe.EventURL, "error", err)
		}
		event.ImageURL = models.StringPtr(img)
	}

	return event
}

func (e *Engine) locationFor(tz string) *time.Location {
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return e.config.Location
}

func platformLocation(pe models.PlatformEvent) string {
	if pe.IsOnline {
		return "Online"
	}

	var parts []string
	seen := map[string]bool{}
	for _, p := range []string{pe.VenueName, pe.Address, pe.City, pe.State, pe.Country} {
		p = strings.TrimSpace(p)
		if p == "" || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true
		parts = append(parts, p)
	}

	if len(parts) == 0 {
		return "Online"
	}
	return strings.Join(parts, ", ")
}

func formatPrice(pe models.PlatformEvent) *string {
	status := strings.ToLower(strings.TrimSpace(pe.TicketStatus))
	if status == "free" {
		return models.StringPtr("Free")
	}

	if status != "" && (pe.PriceMin != nil || pe.PriceMax != nil) {
		currency := pe.Currency
		if currency == "" || strings.EqualFold(currency, "EUR") {
			currency = "€"
		}

		switch {
		case pe.PriceMin != nil && pe.PriceMax != nil && *pe.PriceMin != *pe.PriceMax:
			return models.StringPtr(formatAmount(*pe.PriceMin) + "-" + formatAmount(*pe.PriceMax) + currency)
		case pe.PriceMin != nil:
			return models.StringPtr(formatAmount(*pe.PriceMin) + currency)
		default:
			return models.StringPtr(formatAmount(*pe.PriceMax) + currency)
		}
	}

	if pe.PriceMin != nil && *pe.PriceMin == 0 {
		return models.StringPtr("Free")
	}
	return nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
