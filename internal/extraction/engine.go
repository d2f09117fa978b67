package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/granhackaria/eventharvest/internal/llm"
	"github.com/granhackaria/eventharvest/internal/models"
)

// Config tunes the engine.
type Config struct {
	MinTextLength   int
	DefaultLocation string
	Region          string
	Location        *time.Location
}

// DefaultConfig returns the Gran Canaria defaults.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Atlantic/Canary")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		MinTextLength:   10,
		DefaultLocation: "Gran Canaria",
		Region:          "Gran Canaria, Canary Islands, Spain",
		Location:        loc,
	}
}

// ImageFetcher downloads an image for inline model input.
type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) (*llm.Image, error)
}

// PageImageFinder finds a representative image for a web page.
type PageImageFinder interface {
	FindImage(ctx context.Context, pageURL string) (string, error)
}

// Engine turns raw records into candidate events.
type Engine struct {
	provider llm.Provider
	images   ImageFetcher
	pages    PageImageFinder
	config   Config
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPageImageFinder enables the page image fallback for platform events
// that arrive without an image.
func WithPageImageFinder(f PageImageFinder) Option {
	return func(e *Engine) { e.pages = f }
}

// WithClock overrides the engine's notion of today.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine. provider may be nil, in which case model
// extraction reports llm.ErrNoProvider while platform records still work.
func NewEngine(provider llm.Provider, images ImageFetcher, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	e := &Engine{
		provider: provider,
		images:   images,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract produces a candidate from one record, or nil when the record is
// not an event. Text shorter than the configured minimum rejects the record
// before any model call, image included. Errors are provider or transport
// failures; callers skip the record.
func (e *Engine) Extract(ctx context.Context, rec models.RawRecord) (*models.CandidateEvent, error) {
	if rec.Platform != nil {
		return e.TransformPlatformEvent(ctx, *rec.Platform), nil
	}
	if e.tooShort(rec.Text) {
		return nil, nil
	}

	event, err := e.ExtractFromText(ctx, rec.Text)
	if err != nil {
		if rec.ImageURL == "" {
			return nil, err
		}
		e.logger.Warn("text extraction failed, trying image", "record", rec.ID, "error", err)
		fromImage, imgErr := e.ExtractFromImage(ctx, rec.ImageURL, rec.Text)
		if imgErr != nil {
			e.logger.Warn("image extraction failed", "record", rec.ID, "error", imgErr)
		}
		if fromImage == nil {
			return nil, err
		}
		return fromImage, nil
	}

	if event == nil {
		if rec.ImageURL == "" {
			return nil, nil
		}
		e.logger.Debug("text extraction found no event, trying image", "record", rec.ID)
		return e.ExtractFromImage(ctx, rec.ImageURL, rec.Text)
	}

	if event.Incomplete() && rec.ImageURL != "" {
		fromImage, err := e.ExtractFromImage(ctx, rec.ImageURL, rec.Text)
		if err != nil {
			e.logger.Warn("image gap-fill failed, keeping text result", "record", rec.ID, "error", err)
		} else {
			event.MergeGaps(fromImage)
		}
	}

	return event, nil
}

func (e *Engine) tooShort(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < e.config.MinTextLength
}

// ExtractFromText extracts an event from caption or message text. Text
// shorter than the configured minimum is rejected without a model call.
func (e *Engine) ExtractFromText(ctx context.Context, text string) (*models.CandidateEvent, error) {
	if e.tooShort(text) {
		return nil, nil
	}
	text = strings.TrimSpace(text)
	if e.provider == nil {
		return nil, llm.ErrNoProvider
	}

	reply, err := e.provider.Complete(ctx, llm.Request{
		Operation: llm.OperationText,
		System:    textSystemPrompt(e.config.Region, e.config.DefaultLocation),
		Text:      textUserContent(e.today(), text),
	})
	if err != nil {
		return nil, fmt.Errorf("text extraction: %w", err)
	}

	return e.parseCandidate(reply), nil
}

// ExtractFromImage downloads imageURL and extracts an event from it. A failed
// download yields nil without error.
func (e *Engine) ExtractFromImage(ctx context.Context, imageURL, textContext string) (*models.CandidateEvent, error) {
	if e.provider == nil {
		return nil, llm.ErrNoProvider
	}
	if e.images == nil || imageURL == "" {
		return nil, nil
	}

	img, err := e.images.Fetch(ctx, imageURL)
	if err != nil {
		e.logger.Warn("image download failed", "url", imageURL, "error", err)
		return nil, nil
	}

	reply, err := e.provider.Complete(ctx, llm.Request{
		Operation: llm.OperationVision,
		System:    visionSystemPrompt(e.config.Region, e.config.DefaultLocation),
		Text:      visionUserContent(e.today(), textContext),
		Image:     img,
	})
	if err != nil {
		return nil, fmt.Errorf("image extraction: %w", err)
	}

	return e.parseCandidate(reply), nil
}

func (e *Engine) today() string {
	return e.now().In(e.config.Location).Format(time.DateOnly)
}
