package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/granhackaria/eventharvest/internal/config"
	"github.com/granhackaria/eventharvest/internal/models"
)

// minApifyItemsPerPlatform is the scraper actor's lower bound; results are
// trimmed to the configured cap afterwards.
const minApifyItemsPerPlatform = 10

// ApifyTransport runs the event scraper actor synchronously and reads its
// dataset items.
type ApifyTransport struct {
	cfg    config.ApifyConfig
	client *http.Client
	now    func() time.Time
}

// NewApifyTransport creates the scraping-service transport.
func NewApifyTransport(cfg config.ApifyConfig, client *http.Client) *ApifyTransport {
	return &ApifyTransport{cfg: cfg, client: client, now: time.Now}
}

// Name identifies the transport in logs.
func (t *ApifyTransport) Name() string {
	return "apify"
}

type apifyInput struct {
	Keywords            []string `json:"keywords"`
	Cities              []string `json:"cities"`
	Country             string   `json:"country"`
	Platforms           []string `json:"platforms"`
	DateFrom            string   `json:"dateFrom"`
	DateTo              string   `json:"dateTo"`
	MaxItemsPerPlatform int      `json:"maxItemsPerPlatform"`
	IncludeOnline       bool     `json:"includeOnline"`
	MinAttendees        int      `json:"minAttendees"`
	IncludeFree         bool     `json:"includeFree"`
	IncludePaid         bool     `json:"includePaid"`
}

type apifyItem struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   *string  `json:"description"`
	StartsAt      string   `json:"startsAt"`
	EventURL      string   `json:"eventUrl"`
	CoverImageURL *string  `json:"coverImageUrl"`
	City          *string  `json:"city"`
	VenueName     *string  `json:"venueName"`
	Address       *string  `json:"address"`
	PriceMin      *float64 `json:"priceMin"`
	PriceMax      *float64 `json:"priceMax"`
	Currency      string   `json:"currency"`
	TicketStatus  string   `json:"ticketStatus"`
	OrganizerName *string  `json:"organizerName"`
	Category      *string  `json:"category"`
	Topics        []string `json:"topics"`
	IsOnline      bool     `json:"isOnline"`
	Timezone      string   `json:"timezone"`
	Platform      string   `json:"platform"`
}

// Fetch implements the scraper transport.
func (t *ApifyTransport) Fetch(ctx context.Context) ([]models.PlatformEvent, error) {
	now := t.now()
	input := apifyInput{
		Keywords:            t.cfg.Keywords,
		Cities:              t.cfg.Cities,
		Country:             t.cfg.Country,
		Platforms:           t.cfg.Platforms,
		DateFrom:            now.Format(time.DateOnly),
		DateTo:              now.AddDate(0, t.cfg.DateRangeMonths, 0).Format(time.DateOnly),
		MaxItemsPerPlatform: max(t.cfg.MaxItemsPerPlatform, minApifyItemsPerPlatform),
		IncludeOnline:       true,
		MinAttendees:        0,
		IncludeFree:         true,
		IncludePaid:         true,
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode actor input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?token=%s",
		strings.TrimSuffix(t.cfg.BaseURL, "/"),
		url.PathEscape(t.cfg.ActorID),
		url.QueryEscape(t.cfg.Token),
	)

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("actor run: %w", redactToken(err, t.cfg.Token))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	var items []apifyItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("actor did not return an array of items: %w", err)
	}

	return t.selectItems(items), nil
}

// selectItems drops unusable items and items from other platforms, then caps
// each platform at the configured count.
func (t *ApifyTransport) selectItems(items []apifyItem) []models.PlatformEvent {
	allowed := make(map[string]bool, len(t.cfg.Platforms))
	for _, p := range t.cfg.Platforms {
		allowed[strings.ToLower(p)] = true
	}

	perPlatform := map[string]int{}
	var events []models.PlatformEvent
	for _, item := range items {
		if item.EventURL == "" || (item.ID == "" && item.Title == "") {
			continue
		}
		platform := strings.ToLower(item.Platform)
		if platform != "" && !allowed[platform] {
			continue
		}
		if platform == "" {
			platform = string(models.SourceMeetup)
		}
		if t.cfg.MaxItemsPerPlatform > 0 && perPlatform[platform] >= t.cfg.MaxItemsPerPlatform {
			continue
		}
		perPlatform[platform]++
		events = append(events, item.toPlatformEvent(platform))
	}
	return events
}

func (it apifyItem) toPlatformEvent(platform string) models.PlatformEvent {
	pe := models.PlatformEvent{
		ID:           it.ID,
		Platform:     platform,
		Title:        it.Title,
		Description:  models.Deref(it.Description),
		Timezone:     it.Timezone,
		VenueName:    models.Deref(it.VenueName),
		Address:      models.Deref(it.Address),
		City:         models.Deref(it.City),
		IsOnline:     it.IsOnline,
		EventURL:     it.EventURL,
		ImageURL:     strings.TrimSpace(models.Deref(it.CoverImageURL)),
		PriceMin:     it.PriceMin,
		PriceMax:     it.PriceMax,
		Currency:     strings.TrimSpace(it.Currency),
		TicketStatus: it.TicketStatus,
		GroupName:    models.Deref(it.OrganizerName),
		Topics:       it.Topics,
	}
	if c := models.Deref(it.Category); c != "" {
		pe.Topics = append(append([]string{}, it.Topics...), c)
	}
	if t, err := time.Parse(time.RFC3339, it.StartsAt); err == nil {
		pe.StartsAt = t
	}
	return pe
}

// redactToken keeps the API token out of logged URLs.
func redactToken(err error, token string) error {
	var uerr *url.Error
	if token != "" && errors.As(err, &uerr) {
		uerr.URL = strings.ReplaceAll(uerr.URL, url.QueryEscape(token), "REDACTED")
	}
	return err
}
