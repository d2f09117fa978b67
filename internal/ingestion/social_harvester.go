package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/granhackaria/eventharvest/internal/config"
	"github.com/granhackaria/eventharvest/internal/models"
)

// SocialHarvester fetches recent posts for configured Instagram accounts via
// a RapidAPI scraper.
type SocialHarvester struct {
	cfg      config.SocialConfig
	client   *http.Client
	recorder ErrorRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewSocialHarvester creates the Instagram harvester.
func NewSocialHarvester(cfg config.SocialConfig, client *http.Client, recorder ErrorRecorder, logger *slog.Logger) *SocialHarvester {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &SocialHarvester{
		cfg:      cfg,
		client:   client,
		recorder: recorder,
		logger:   logger.With("source", string(models.SourceInstagram)),
		now:      time.Now,
	}
}

// Name implements Harvester.
func (h *SocialHarvester) Name() string {
	return string(models.SourceInstagram)
}

// FetchRecent implements Harvester. Accounts are fetched one by one; a failed
// account is logged and skipped.
func (h *SocialHarvester) FetchRecent(ctx context.Context) ([]models.RawRecord, error) {
	if h.cfg.RapidAPIKey == "" {
		h.logger.Warn("RAPIDAPI_KEY is not set, skipping")
		return nil, nil
	}
	if len(h.cfg.Accounts) == 0 {
		h.logger.Warn("no accounts configured, skipping")
		return nil, nil
	}

	cutoff := h.now().Add(-time.Duration(h.cfg.DaysBack) * 24 * time.Hour)

	var records []models.RawRecord
	for _, account := range h.cfg.Accounts {
		if ctx.Err() != nil {
			break
		}

		posts, err := h.fetchAccount(ctx, account)
		if err != nil {
			h.logger.Error("failed to fetch account posts", "account", account, "error", err)
			continue
		}

		recent := filterRecent(posts, cutoff, h.cfg.MaxPostsPerAccount)
		switch {
		case len(posts) == 0:
			h.logger.Warn("API returned 0 posts", "account", account)
		case len(recent) == 0:
			h.logger.Info("no posts in recency window",
				"account", account,
				"fetched", len(posts),
				"days_back", h.cfg.DaysBack,
			)
		default:
			h.logger.Info("fetched posts", "account", account, "recent", len(recent), "fetched", len(posts))
		}

		records = append(records, recent...)
	}

	return records, nil
}

func (h *SocialHarvester) fetchAccount(ctx context.Context, account string) ([]models.RawRecord, error) {
	base := h.cfg.BaseURL
	if base == "" {
		base = "https://" + h.cfg.RapidAPIHost
	}
	endpoint := strings.TrimSuffix(base, "/") + "/v1/posts?username_or_id_or_url=" + url.QueryEscape(account)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-rapidapi-host", h.cfg.RapidAPIHost)
	req.Header.Set("x-rapidapi-key", h.cfg.RapidAPIKey)

	resp, err := h.client.Do(req)
	if err != nil {
		h.recorder.RecordError(ctx, h.Name(), models.ErrorTypeFetchFailed, account, err)
		return nil, fmt.Errorf("request posts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("rapidapi status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		h.recorder.RecordError(ctx, h.Name(), classifyStatus(resp.StatusCode), account, err)
		return nil, err
	}

	var env socialEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		h.recorder.RecordError(ctx, h.Name(), models.ErrorTypeParsingFailed, account, err)
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	items := env.items()
	records := make([]models.RawRecord, 0, len(items))
	for _, item := range items {
		rec, ok := item.toRecord(account)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// filterRecent keeps posts newer than cutoff, at most max of them.
func filterRecent(posts []models.RawRecord, cutoff time.Time, max int) []models.RawRecord {
	recent := make([]models.RawRecord, 0, len(posts))
	for _, p := range posts {
		if p.PostedAt.Before(cutoff) {
			continue
		}
		recent = append(recent, p)
		if max > 0 && len(recent) >= max {
			break
		}
	}
	return recent
}

// socialEnvelope covers the response layouts the scraper has been observed
// to return.
type socialEnvelope struct {
	Data *struct {
		Items    []socialItem `json:"items"`
		Timeline *edgeList    `json:"edge_owner_to_timeline_media"`
		User     *struct {
			Timeline *edgeList `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
	Result json.RawMessage `json:"result"`
}

type edgeList struct {
	Edges []struct {
		Node socialItem `json:"node"`
	} `json:"edges"`
}

func (l *edgeList) nodes() []socialItem {
	if l == nil {
		return nil
	}
	out := make([]socialItem, 0, len(l.Edges))
	for _, e := range l.Edges {
		out = append(out, e.Node)
	}
	return out
}

func (e socialEnvelope) items() []socialItem {
	if e.Data != nil {
		if len(e.Data.Items) > 0 {
			return e.Data.Items
		}
		if nodes := e.Data.Timeline.nodes(); len(nodes) > 0 {
			return nodes
		}
		if e.Data.User != nil {
			if nodes := e.Data.User.Timeline.nodes(); len(nodes) > 0 {
				return nodes
			}
		}
	}

	if len(e.Result) == 0 {
		return nil
	}

	var list []socialItem
	if err := json.Unmarshal(e.Result, &list); err == nil {
		return list
	}

	var obj struct {
		edgeList
		Items []socialItem `json:"items"`
	}
	if err := json.Unmarshal(e.Result, &obj); err != nil {
		return nil
	}
	if nodes := obj.edgeList.nodes(); len(nodes) > 0 {
		return nodes
	}
	return obj.Items
}

type socialItem struct {
	ID        json.RawMessage `json:"id"`
	Caption   json.RawMessage `json:"caption"`
	CaptionGQ *struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
	ImageVersions *struct {
		Candidates []struct {
			URL string `json:"url"`
		} `json:"candidates"`
	} `json:"image_versions2"`
	DisplayURL       string          `json:"display_url"`
	Code             string          `json:"code"`
	Shortcode        string          `json:"shortcode"`
	TakenAt          json.RawMessage `json:"taken_at"`
	TakenAtTimestamp json.RawMessage `json:"taken_at_timestamp"`
	CreatedAt        json.RawMessage `json:"created_at"`
}

func (it socialItem) toRecord(account string) (models.RawRecord, bool) {
	postedAt, ok := firstTimestamp(it.TakenAt, it.TakenAtTimestamp, it.CreatedAt)
	if !ok {
		return models.RawRecord{}, false
	}

	rec := models.RawRecord{
		ID:       rawScalar(it.ID),
		Source:   models.SourceInstagram,
		Text:     it.caption(),
		Author:   account,
		PostedAt: postedAt,
	}

	if it.ImageVersions != nil && len(it.ImageVersions.Candidates) > 0 {
		rec.ImageURL = it.ImageVersions.Candidates[0].URL
	}
	if rec.ImageURL == "" {
		rec.ImageURL = it.DisplayURL
	}

	code := it.Code
	if code == "" {
		code = it.Shortcode
	}
	if code != "" {
		rec.Permalink = fmt.Sprintf("https://www.instagram.com/p/%s/", code)
	} else {
		rec.Permalink = fmt.Sprintf("https://www.instagram.com/%s/", account)
	}

	return rec, true
}

func (it socialItem) caption() string {
	if len(it.Caption) > 0 {
		var s string
		if err := json.Unmarshal(it.Caption, &s); err == nil {
			return s
		}
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(it.Caption, &obj); err == nil && obj.Text != "" {
			return obj.Text
		}
	}
	if it.CaptionGQ != nil && len(it.CaptionGQ.Edges) > 0 {
		return it.CaptionGQ.Edges[0].Node.Text
	}
	return ""
}

// rawScalar renders a JSON string or number as a string.
func rawScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func firstTimestamp(raws ...json.RawMessage) (time.Time, bool) {
	for _, raw := range raws {
		if t, ok := parseTimestamp(raw); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseTimestamp accepts unix seconds, unix milliseconds (as numbers or
// numeric strings) and RFC 3339 strings.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	s := strings.TrimSpace(rawScalar(raw))
	if s == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n <= 0 {
			return time.Time{}, false
		}
		if n > 1e12 {
			return time.UnixMilli(int64(n)).UTC(), true
		}
		return time.Unix(int64(n), 0).UTC(), true
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
