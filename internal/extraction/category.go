package extraction

import (
	"strings"
	"unicode"

	"github.com/granhackaria/eventharvest/internal/models"
)

// categoryKeywords is checked in order; the first category with a matching
// keyword wins.
var categoryKeywords = []struct {
	category models.Category
	keywords []string
}{
	{models.CategoryMusic, []string{"music", "concert", "dj", "band", "live music", "karaoke", "jazz", "salsa", "música", "concierto"}},
	{models.CategoryArts, []string{"art", "gallery", "exhibition", "painting", "photography", "creative", "arte", "foto", "exposición"}},
	{models.CategoryFood, []string{"food", "cooking", "cuisine", "restaurant", "tasting", "tapas", "comida", "gastronomía", "cata"}},
	{models.CategorySports, []string{"sport", "fitness", "running", "hiking", "yoga", "cycling", "deporte", "senderismo"}},
	{models.CategoryFestival, []string{"festival", "celebration", "carnival", "fiesta", "party", "carnaval"}},
	{models.CategoryTheater, []string{"theater", "theatre", "play", "performance", "drama", "teatro"}},
	{models.CategoryWorkshop, []string{"workshop", "class", "training", "learning", "course", "seminar", "networking", "taller", "meetup"}},
	{models.CategoryMarket, []string{"market", "fair", "bazaar", "flea market", "artisan", "mercado", "feria", "mercadillo"}},
}

// ClassifyKeywords picks a category for platform listings from whole-word
// keyword matches (a trailing plural "s" is accepted). Defaults to workshop.
func ClassifyKeywords(texts ...string) models.Category {
	normalized := " " + normalizeWords(strings.Join(texts, " ")) + " "

	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(normalized, " "+kw+" ") || strings.Contains(normalized, " "+kw+"s ") {
				return entry.category
			}
		}
	}
	return models.CategoryWorkshop
}

func normalizeWords(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
