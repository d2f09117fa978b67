package bilingual

import "fmt"

func systemPrompt(region string) string {
	return fmt.Sprintf(`You are a translator for event listings in %s. Given an event title and optional description, provide short translations in English and Spanish.

Return ONLY a JSON object with these fields (no markdown, no explanation):
- title_en: string (event name in English, concise)
- title_es: string (event name in Spanish, concise)
- description_en: string | null (brief description in English; null if input description was empty)
- description_es: string | null (brief description in Spanish; null if input description was empty)
- source_language: "en" | "es" | "unknown" (detected language of the input)

Rules:
- Detect the source language. If Spanish, keep the original as title_es/description_es and translate to en. If English, keep as title_en/description_en and translate to es. If unclear, set source_language "unknown" and provide both.
- Keep titles concise (under 80 characters). Descriptions can be one or two sentences.
- Return ONLY valid JSON.`, region)
}

func userContent(title, description string) string {
	if description == "" {
		description = "(none)"
	}
	return fmt.Sprintf("Title: %s\n\nDescription: %s", title, description)
}
