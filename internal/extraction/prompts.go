package extraction

import (
	"fmt"
	"strings"

	"github.com/granhackaria/eventharvest/internal/models"
)

// eventFields is the JSON contract shared by the text and image prompts.
const eventFields = `- title: string (event name, concise, in the original language)
- description: string | null (one or two sentences, null if nothing useful)
- date_start: string (YYYY-MM-DD)
- time: string | null (HH:MM, 24h, null if not stated)
- location: string (venue or place name)
- ticket_price: string | null (for example "15€", "Free", "From 10€"; null if not stated)
- category: one of %s
- title_en, title_es: string (title in English and Spanish)
- description_en, description_es: string | null
- source_language: "en" | "es" | "unknown"`

const textSystemTemplate = `You extract event listings for %[1]s from social media captions and chat messages.

If the text announces a specific event, reply with a JSON object with these fields:
%[2]s

If the text is not about a specific upcoming event (personal post, meme, generic promotion), reply with exactly {"not_event": true}.

Rules:
- Resolve relative dates ("this Saturday", "mañana") against today's date given by the user.
- If the place is unclear use "%[3]s".
- Choose the closest category; use "festival" for general gatherings.
- Captions may be in Spanish or English.
- Reply with JSON only. No markdown, no commentary.`

const visionSystemTemplate = `You extract event listings for %[1]s from images such as posters, flyers and tickets.

If the image advertises a specific event, reply with a JSON object with these fields:
%[2]s

If the image does not show a specific event (no date or venue, personal photo, meme), reply with exactly {"not_event": true}.

Rules:
- Read dates and times from the text in the image. Resolve relative dates against today's date given by the user.
- If the place is unclear use "%[3]s".
- Choose the closest category; use "festival" when unsure.
- Reply with JSON only. No markdown, no commentary.`

// captionContextLimit bounds how much caption text accompanies an image.
const captionContextLimit = 200

func categoryList() string {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func textSystemPrompt(region, defaultLocation string) string {
	fields := fmt.Sprintf(eventFields, categoryList())
	return fmt.Sprintf(textSystemTemplate, region, fields, defaultLocation)
}

func visionSystemPrompt(region, defaultLocation string) string {
	fields := fmt.Sprintf(eventFields, categoryList())
	return fmt.Sprintf(visionSystemTemplate, region, fields, defaultLocation)
}

func textUserContent(today, text string) string {
	return fmt.Sprintf("Today's date is %s.\n\nText:\n%s", today, text)
}

func visionUserContent(today, caption string) string {
	content := fmt.Sprintf("Today's date is %s. Extract the event shown in this image.", today)

	caption = strings.TrimSpace(caption)
	if caption == "" {
		return content
	}
	runes := []rune(caption)
	if len(runes) > captionContextLimit {
		caption = string(runes[:captionContextLimit]) + "…"
	}
	return content + "\nOptional caption context: " + caption
}
