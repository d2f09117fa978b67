// Package bilingual fills the English and Spanish variants of event titles
// and descriptions.
package bilingual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/granhackaria/eventharvest/internal/llm"
	"github.com/granhackaria/eventharvest/internal/models"
)

const untitledEvent = "Untitled Event"

// Normalizer translates event text with a language model.
type Normalizer struct {
	provider llm.Provider
	region   string
	logger   *slog.Logger
}

// NewNormalizer creates a normalizer. provider may be nil, in which case
// Translate reports llm.ErrNoProvider and Ensure leaves events untouched
// apart from marking their language unknown.
func NewNormalizer(provider llm.Provider, region string, logger *slog.Logger) *Normalizer {
	if region == "" {
		region = "Gran Canaria, Spain"
	}
	return &Normalizer{provider: provider, region: region, logger: logger}
}

// Translate asks the model for both language variants. Non-string fields in
// the reply fall back to the original title, or to nil for descriptions.
func (n *Normalizer) Translate(ctx context.Context, title string, description *string) (*models.Translation, error) {
	if n.provider == nil {
		return nil, llm.ErrNoProvider
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = untitledEvent
	}
	desc := strings.TrimSpace(models.Deref(description))

	reply, err := n.provider.Complete(ctx, llm.Request{
		Operation: llm.OperationTranslate,
		System:    systemPrompt(n.region),
		Text:      userContent(title, desc),
	})
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}

	obj, err := llm.DecodeObject(reply)
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}

	t := &models.Translation{
		TitleEn:        llm.StringField(obj, "title_en"),
		TitleEs:        llm.StringField(obj, "title_es"),
		DescriptionEn:  models.StringPtr(llm.StringField(obj, "description_en")),
		DescriptionEs:  models.StringPtr(llm.StringField(obj, "description_es")),
		SourceLanguage: models.NormalizeLanguage(llm.StringField(obj, "source_language")),
	}
	if t.TitleEn == "" {
		t.TitleEn = title
	}
	if t.TitleEs == "" {
		t.TitleEs = title
	}
	return t, nil
}

// Ensure fills missing title variants in place. It never fails: on any error
// the original fields are kept and the language is marked unknown so a later
// backfill can retry.
func (n *Normalizer) Ensure(ctx context.Context, event *models.CandidateEvent) {
	if event == nil || event.HasBothLanguages() {
		return
	}

	t, err := n.Translate(ctx, event.Title, event.Description)
	if err != nil {
		if !errors.Is(err, llm.ErrNoProvider) {
			n.logger.Warn("translation failed, keeping original text", "title", event.Title, "error", err)
		}
		event.SourceLanguage = models.LanguageUnknown
		return
	}

	if event.TitleEn != "" {
		t.TitleEn = event.TitleEn
	}
	if event.TitleEs != "" {
		t.TitleEs = event.TitleEs
	}
	if event.DescriptionEn != nil {
		t.DescriptionEn = event.DescriptionEn
	}
	if event.DescriptionEs != nil {
		t.DescriptionEs = event.DescriptionEs
	}
	if t.SourceLanguage == models.LanguageUnknown && event.SourceLanguage != "" {
		t.SourceLanguage = event.SourceLanguage
	}
	event.ApplyTranslation(*t)
}
