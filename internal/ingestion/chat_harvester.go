package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/granhackaria/eventharvest/internal/config"
	"github.com/granhackaria/eventharvest/internal/models"
	"github.com/slack-go/slack"
)

// chatAPI is the subset of the Slack client the harvester uses.
type chatAPI interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetPermalinkContext(ctx context.Context, params *slack.PermalinkParameters) (string, error)
}

// ChatHarvester reads new messages from one Slack channel. Once a batch is
// acknowledged, the newest message handled without failure becomes the
// cursor for the next run.
type ChatHarvester struct {
	cfg      config.ChatConfig
	api      chatAPI
	cursors  CursorStore
	recorder ErrorRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewChatHarvester creates the Slack harvester. Without a bot token the
// harvester yields nothing.
func NewChatHarvester(cfg config.ChatConfig, client *http.Client, cursors CursorStore, recorder ErrorRecorder, logger *slog.Logger) *ChatHarvester {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if cursors == nil {
		cursors = NewMemoryCursorStore()
	}

	h := &ChatHarvester{
		cfg:      cfg,
		cursors:  cursors,
		recorder: recorder,
		logger:   logger.With("source", string(models.SourceSlack)),
		now:      time.Now,
	}

	if cfg.BotToken != "" {
		opts := []slack.Option{}
		if client != nil {
			opts = append(opts, slack.OptionHTTPClient(client))
		}
		if cfg.APIURL != "" {
			opts = append(opts, slack.OptionAPIURL(strings.TrimSuffix(cfg.APIURL, "/")+"/"))
		}
		h.api = slack.New(cfg.BotToken, opts...)
	}
	return h
}

// Name implements Harvester.
func (h *ChatHarvester) Name() string {
	return string(models.SourceSlack)
}

func (h *ChatHarvester) cursorKey() string {
	return "slack:oldest:" + h.cfg.ChannelID
}

// FetchRecent implements Harvester. Records are returned oldest first so an
// interrupted batch leaves only newer messages unhandled.
func (h *ChatHarvester) FetchRecent(ctx context.Context) ([]models.RawRecord, error) {
	if h.api == nil {
		h.logger.Warn("SLACK_BOT_TOKEN is not set, skipping")
		return nil, nil
	}
	if h.cfg.ChannelID == "" {
		h.logger.Warn("SLACK_CHANNEL_ID is not set, skipping")
		return nil, nil
	}

	params := &slack.GetConversationHistoryParameters{
		ChannelID: h.cfg.ChannelID,
		Oldest:    h.oldest(ctx),
		Limit:     h.cfg.PageLimit,
	}

	var (
		records  []models.RawRecord
		messages int
	)
	for {
		resp, err := h.api.GetConversationHistoryContext(ctx, params)
		if err != nil {
			h.logger.Error("failed to fetch channel history", "channel", h.cfg.ChannelID, "error", err)
			h.recorder.RecordError(ctx, h.Name(), chatErrorType(err), h.cfg.ChannelID, err)
			// Earlier pages are kept; acknowledging them only moves the
			// cursor up to what was actually handled.
			break
		}

		messages += len(resp.Messages)
		for _, msg := range resp.Messages {
			if !isContentMessage(msg.Msg) {
				continue
			}
			records = append(records, models.RawRecord{
				ID:        msg.Timestamp,
				Source:    models.SourceSlack,
				Text:      msg.Text,
				Author:    msg.User,
				Permalink: h.permalink(ctx, msg.Timestamp),
				PostedAt:  tsTime(msg.Timestamp),
			})
		}

		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		params.Cursor = resp.ResponseMetaData.NextCursor
	}

	sort.SliceStable(records, func(i, j int) bool {
		return tsAfter(records[j].ID, records[i].ID)
	})

	h.logger.Info("fetched channel messages",
		"channel", h.cfg.ChannelID,
		"oldest", params.Oldest,
		"messages", messages,
		"content", len(records),
	)
	return records, nil
}

// Acknowledge implements Acknowledger. The cursor moves to the newest handled
// message that is older than every failed one, so failures are fetched again.
func (h *ChatHarvester) Acknowledge(ctx context.Context, handled, failed []models.RawRecord) {
	var cutoff string
	for _, rec := range failed {
		if cutoff == "" || tsAfter(cutoff, rec.ID) {
			cutoff = rec.ID
		}
	}

	var newest string
	for _, rec := range handled {
		if cutoff != "" && !tsAfter(cutoff, rec.ID) {
			continue
		}
		if tsAfter(rec.ID, newest) {
			newest = rec.ID
		}
	}

	if cutoff != "" {
		h.logger.Info("holding channel cursor before failed message", "failed", len(failed), "ts", cutoff)
	}
	if newest == "" {
		return
	}
	if err := h.cursors.SetCursor(ctx, h.cursorKey(), newest); err != nil {
		h.logger.Warn("failed to store channel cursor", "error", err)
	}
}

// oldest is the exclusive lower bound for the next fetch: the stored cursor,
// but never earlier than the lookback window. A zero lookback leaves the
// window unbounded.
func (h *ChatHarvester) oldest(ctx context.Context) string {
	var floor string
	if h.cfg.Lookback > 0 {
		floor = formatTS(h.now().Add(-h.cfg.Lookback))
	}

	cursor, ok, err := h.cursors.GetCursor(ctx, h.cursorKey())
	if err != nil {
		h.logger.Warn("failed to read channel cursor, using lookback", "error", err)
	}
	if ok && cursor != "" && tsAfter(cursor, floor) {
		return cursor
	}
	return floor
}

// permalink resolves a message link. Failure leaves it empty.
func (h *ChatHarvester) permalink(ctx context.Context, ts string) string {
	link, err := h.api.GetPermalinkContext(ctx, &slack.PermalinkParameters{
		Channel: h.cfg.ChannelID,
		Ts:      ts,
	})
	if err != nil {
		h.logger.Debug("permalink lookup failed", "ts", ts, "error", err)
		return ""
	}
	return link
}

// isContentMessage drops joins, edits, bot posts and empty messages.
func isContentMessage(m slack.Msg) bool {
	return m.Type == "message" &&
		m.SubType == "" &&
		m.BotID == "" &&
		strings.TrimSpace(m.Text) != ""
}

func chatErrorType(err error) models.IngestionErrorType {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return models.ErrorTypeRateLimitExceeded
	}
	switch err.Error() {
	case "invalid_auth", "not_authed", "account_inactive", "token_revoked", "not_in_channel":
		return models.ErrorTypeAuthFailed
	}
	return models.ErrorTypeFetchFailed
}

func formatTS(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

func tsTime(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func tsAfter(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA != nil {
		return false
	}
	if errB != nil {
		return true
	}
	return fa > fb
}
