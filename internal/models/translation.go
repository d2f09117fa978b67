package models

// Translation holds both language variants of an event's title and
// description.
type Translation struct {
	TitleEn        string   `json:"title_en"`
	TitleEs        string   `json:"title_es"`
	DescriptionEn  *string  `json:"description_en"`
	DescriptionEs  *string  `json:"description_es"`
	SourceLanguage Language `json:"source_language"`
}

// ApplyTranslation copies t into the event's bilingual fields.
func (e *CandidateEvent) ApplyTranslation(t Translation) {
	e.TitleEn = t.TitleEn
	e.TitleEs = t.TitleEs
	e.DescriptionEn = t.DescriptionEn
	e.DescriptionEs = t.DescriptionEs
	e.SourceLanguage = t.SourceLanguage
}
