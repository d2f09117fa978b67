package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables
// and the optional sources file.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Model      ModelConfig
	Pipeline   PipelineConfig
	Social     SocialConfig
	Chat       ChatConfig
	Platform   PlatformConfig
	LinkHealth LinkHealthConfig
	Cron       CronConfig
	Cache      CacheConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// ModelConfig selects and tunes the extraction providers. OpenAI is used when
// its key is present, Anthropic otherwise.
type ModelConfig struct {
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	MaxTokens        int
	Timeout          time.Duration
	RateLimitRetries int
	RateLimitWait    time.Duration
}

// PipelineConfig tunes per-source processing.
type PipelineConfig struct {
	RecordDelay          time.Duration
	MinTextLength        int
	DefaultLocation      string
	Region               string
	Timezone             string
	MaxConcurrentSources int
	ImageFetchTimeout    time.Duration
	HTTPTimeout          time.Duration
	EnabledSources       []string
}

// SocialConfig configures the Instagram feed harvester.
type SocialConfig struct {
	RapidAPIKey        string
	RapidAPIHost       string
	BaseURL            string
	Accounts           []string
	DaysBack           int
	MaxPostsPerAccount int
}

// ChatConfig configures the Slack channel harvester.
type ChatConfig struct {
	BotToken  string
	ChannelID string
	APIURL    string
	Lookback  time.Duration
	PageLimit int
}

// PlatformConfig configures the event platform harvester and both of its
// transports.
type PlatformConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
	GraphQLURL   string
	Latitude     float64
	Longitude    float64
	RadiusKm     float64
	First        int
	Apify        ApifyConfig
}

// ApifyConfig configures the scraping-service transport.
type ApifyConfig struct {
	Token               string
	BaseURL             string
	ActorID             string
	Keywords            []string
	Cities              []string
	Country             string
	Platforms           []string
	MaxItemsPerPlatform int
	DateRangeMonths     int
	Timeout             time.Duration
}

// LinkHealthConfig configures the source URL probe.
type LinkHealthConfig struct {
	BatchSize      int
	Timeout        time.Duration
	UserAgent      string
	RunAfterIngest bool

	// Interval runs a batch in-process on a ticker. Zero leaves link health
	// to the cron endpoint.
	Interval time.Duration
}

// CronConfig configures the scheduler entry points.
type CronConfig struct {
	Secret          string
	IngestTimeout   time.Duration
	MarkGoneTimeout time.Duration
}

// CacheConfig configures the optional Valkey cursor store.
type CacheConfig struct {
	ValkeyAddr     string
	ValkeyPassword string
	ValkeyTLS      bool
	KeyPrefix      string
}

// OAuthConfigured reports whether the GraphQL transport has credentials.
func (c PlatformConfig) OAuthConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// ApifyConfigured reports whether the scraping-service transport has credentials.
func (c PlatformConfig) ApifyConfigured() bool {
	return c.Apify.Token != ""
}

// SourceEnabled reports whether the named source should run.
func (c PipelineConfig) SourceEnabled(name string) bool {
	if len(c.EnabledSources) == 0 {
		return true
	}
	for _, s := range c.EnabledSources {
		if s == name {
			return true
		}
	}
	return false
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 6 * time.Minute
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultOpenAIModel      = "gpt-4o-mini"
	defaultAnthropicModel   = "claude-sonnet-4-20250514"
	defaultMaxTokens        = 512
	defaultModelTimeout     = 60 * time.Second
	defaultRateLimitRetries = 3
	defaultRateLimitWait    = 65 * time.Second

	defaultMinTextLength        = 10
	defaultLocation             = "Gran Canaria"
	defaultRegion               = "Gran Canaria, Canary Islands, Spain"
	defaultTimezone             = "Atlantic/Canary"
	defaultMaxConcurrentSources = 3
	defaultImageFetchTimeout    = 15 * time.Second
	defaultHTTPTimeout          = 30 * time.Second

	defaultRapidAPIHost       = "instagram-scraper-api2.p.rapidapi.com"
	defaultDaysBack           = 3
	defaultMaxPostsPerAccount = 10

	defaultChatPageLimit = 100

	defaultTokenURL   = "https://secure.meetup.com/oauth2/access"
	defaultGraphQLURL = "https://api.meetup.com/gql"
	defaultLatitude   = 27.9202
	defaultLongitude  = -15.5474
	defaultRadiusKm   = 50
	defaultFirst      = 50

	defaultApifyBaseURL         = "https://api.apify.com"
	defaultApifyActor           = "webdatalabs~event-scraper-pro"
	defaultApifyCountry         = "ES"
	defaultApifyMaxItems        = 3
	defaultApifyDateRangeMonths = 2
	defaultApifyTimeout         = 120 * time.Second

	defaultLinkBatchSize = 30
	defaultLinkTimeout   = 8 * time.Second
	defaultLinkUserAgent = "Mozilla/5.0 (compatible; GranHackariaBot/1.0; +https://granhackaria.com)"

	defaultIngestTimeout   = 5 * time.Minute
	defaultMarkGoneTimeout = 60 * time.Second

	defaultCacheKeyPrefix = "eventharvest:"
)

var (
	defaultApifyKeywords  = []string{"tech", "meetup", "networking"}
	defaultApifyCities    = []string{"Las Palmas"}
	defaultApifyPlatforms = []string{"meetup"}
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided. Invalid values are reported as errors.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: defaultDatabaseConfig(),
		Model: ModelConfig{
			OpenAIModel:      defaultOpenAIModel,
			AnthropicModel:   defaultAnthropicModel,
			MaxTokens:        defaultMaxTokens,
			Timeout:          defaultModelTimeout,
			RateLimitRetries: defaultRateLimitRetries,
			RateLimitWait:    defaultRateLimitWait,
		},
		Pipeline: PipelineConfig{
			MinTextLength:        defaultMinTextLength,
			DefaultLocation:      defaultLocation,
			Region:               defaultRegion,
			Timezone:             defaultTimezone,
			MaxConcurrentSources: defaultMaxConcurrentSources,
			ImageFetchTimeout:    defaultImageFetchTimeout,
			HTTPTimeout:          defaultHTTPTimeout,
		},
		Social: SocialConfig{
			RapidAPIHost:       defaultRapidAPIHost,
			DaysBack:           defaultDaysBack,
			MaxPostsPerAccount: defaultMaxPostsPerAccount,
		},
		Chat: ChatConfig{
			PageLimit: defaultChatPageLimit,
		},
		Platform: PlatformConfig{
			TokenURL:   defaultTokenURL,
			GraphQLURL: defaultGraphQLURL,
			Latitude:   defaultLatitude,
			Longitude:  defaultLongitude,
			RadiusKm:   defaultRadiusKm,
			First:      defaultFirst,
			Apify: ApifyConfig{
				BaseURL:             defaultApifyBaseURL,
				ActorID:             defaultApifyActor,
				Keywords:            defaultApifyKeywords,
				Cities:              defaultApifyCities,
				Country:             defaultApifyCountry,
				Platforms:           defaultApifyPlatforms,
				MaxItemsPerPlatform: defaultApifyMaxItems,
				DateRangeMonths:     defaultApifyDateRangeMonths,
				Timeout:             defaultApifyTimeout,
			},
		},
		LinkHealth: LinkHealthConfig{
			BatchSize:      defaultLinkBatchSize,
			Timeout:        defaultLinkTimeout,
			UserAgent:      defaultLinkUserAgent,
			RunAfterIngest: true,
		},
		Cron: CronConfig{
			IngestTimeout:   defaultIngestTimeout,
			MarkGoneTimeout: defaultMarkGoneTimeout,
		},
		Cache: CacheConfig{
			KeyPrefix: defaultCacheKeyPrefix,
		},
	}

	if path := os.Getenv("SOURCES_FILE"); path != "" {
		if err := applySourcesFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("invalid SOURCES_FILE: %w", err)
		}
	}

	loaders := []func(*Config) error{
		loadServer,
		loadLogging,
		loadDatabase,
		loadModel,
		loadPipeline,
		loadSocial,
		loadChat,
		loadPlatform,
		loadLinkHealth,
		loadCron,
		loadCache,
	}
	for _, load := range loaders {
		if err := load(&cfg); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func loadServer(cfg *Config) error {
	if err := durationFromEnv("SERVER_READ_TIMEOUT_SECONDS", parseSeconds, &cfg.Server.ReadTimeout); err != nil {
		return err
	}
	if err := durationFromEnv("SERVER_WRITE_TIMEOUT_SECONDS", parseSeconds, &cfg.Server.WriteTimeout); err != nil {
		return err
	}
	return durationFromEnv("SERVER_SHUTDOWN_TIMEOUT_SECONDS", parseSeconds, &cfg.Server.ShutdownTimeout)
}

func loadLogging(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text", "pretty":
			cfg.Logging.Format = v
		default:
			return fmt.Errorf("invalid LOG_FORMAT: must be 'json', 'text' or 'pretty'")
		}
	}

	return nil
}

func loadModel(cfg *Config) error {
	m := &cfg.Model
	m.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	m.OpenAIModel = getEnv("OPENAI_MODEL", m.OpenAIModel)
	m.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", m.OpenAIBaseURL)
	m.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	m.AnthropicModel = getEnv("ANTHROPIC_MODEL", m.AnthropicModel)
	m.AnthropicBaseURL = getEnv("ANTHROPIC_BASE_URL", m.AnthropicBaseURL)

	if err := intFromEnv("MODEL_MAX_TOKENS", 1, &m.MaxTokens); err != nil {
		return err
	}
	if err := durationFromEnv("MODEL_TIMEOUT_SECONDS", parseSeconds, &m.Timeout); err != nil {
		return err
	}
	if err := intFromEnv("MODEL_RATE_LIMIT_RETRIES", 0, &m.RateLimitRetries); err != nil {
		return err
	}
	return durationFromEnv("MODEL_RATE_LIMIT_WAIT_MS", parseMilliseconds, &m.RateLimitWait)
}

func loadPipeline(cfg *Config) error {
	p := &cfg.Pipeline
	if err := durationFromEnv("PARSER_DELAY_MS", parseMilliseconds, &p.RecordDelay); err != nil {
		return err
	}
	if err := intFromEnv("PARSER_MIN_TEXT_LENGTH", 1, &p.MinTextLength); err != nil {
		return err
	}
	p.DefaultLocation = getEnv("EVENT_DEFAULT_LOCATION", p.DefaultLocation)
	p.Region = getEnv("EVENT_REGION", p.Region)
	p.Timezone = getEnv("EVENT_TIMEZONE", p.Timezone)
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("invalid EVENT_TIMEZONE: %w", err)
	}
	if err := intFromEnv("INGEST_MAX_CONCURRENT_SOURCES", 1, &p.MaxConcurrentSources); err != nil {
		return err
	}
	if err := durationFromEnv("IMAGE_FETCH_TIMEOUT_SECONDS", parseSeconds, &p.ImageFetchTimeout); err != nil {
		return err
	}
	if err := durationFromEnv("HTTP_TIMEOUT_SECONDS", parseSeconds, &p.HTTPTimeout); err != nil {
		return err
	}
	if v := os.Getenv("INGEST_SOURCES"); v != "" {
		p.EnabledSources = splitList(v)
	}
	return nil
}

func loadSocial(cfg *Config) error {
	s := &cfg.Social
	s.RapidAPIKey = getEnv("RAPIDAPI_KEY", s.RapidAPIKey)
	s.RapidAPIHost = getEnv("RAPIDAPI_INSTAGRAM_HOST", s.RapidAPIHost)
	s.BaseURL = getEnv("RAPIDAPI_INSTAGRAM_BASE_URL", s.BaseURL)
	if s.BaseURL == "" {
		s.BaseURL = "https://" + s.RapidAPIHost
	}
	if v := os.Getenv("INSTAGRAM_ACCOUNTS"); v != "" {
		s.Accounts = splitList(v)
	}
	if err := intFromEnv("INSTAGRAM_POSTS_DAYS_BACK", 1, &s.DaysBack); err != nil {
		return err
	}
	return intFromEnv("INSTAGRAM_MAX_POSTS_PER_ACCOUNT", 1, &s.MaxPostsPerAccount)
}

func loadChat(cfg *Config) error {
	c := &cfg.Chat
	c.BotToken = getEnv("SLACK_BOT_TOKEN", c.BotToken)
	c.ChannelID = getEnv("SLACK_CHANNEL_ID", c.ChannelID)
	c.APIURL = getEnv("SLACK_API_URL", c.APIURL)
	if v := os.Getenv("SLACK_LOOKBACK_HOURS"); v != "" {
		n, err := parseNonNegativeInt(v)
		if err != nil {
			return fmt.Errorf("invalid SLACK_LOOKBACK_HOURS: %w", err)
		}
		c.Lookback = hours(n)
	}
	return intFromEnv("SLACK_PAGE_LIMIT", 1, &c.PageLimit)
}

func loadPlatform(cfg *Config) error {
	p := &cfg.Platform
	p.ClientID = getEnv("MEETUP_CLIENT_ID", p.ClientID)
	p.ClientSecret = getEnv("MEETUP_CLIENT_SECRET", p.ClientSecret)
	p.RefreshToken = getEnv("MEETUP_REFRESH_TOKEN", p.RefreshToken)
	p.TokenURL = getEnv("MEETUP_TOKEN_URL", p.TokenURL)
	p.GraphQLURL = getEnv("MEETUP_GRAPHQL_URL", p.GraphQLURL)

	for key, dst := range map[string]*float64{
		"MEETUP_LAT":       &p.Latitude,
		"MEETUP_LON":       &p.Longitude,
		"MEETUP_RADIUS_KM": &p.RadiusKm,
	} {
		if err := floatFromEnv(key, dst); err != nil {
			return err
		}
	}
	if err := intFromEnv("MEETUP_FIRST", 1, &p.First); err != nil {
		return err
	}

	a := &p.Apify
	a.Token = getEnv("APIFY_API_TOKEN", a.Token)
	a.BaseURL = getEnv("APIFY_BASE_URL", a.BaseURL)
	a.ActorID = getEnv("MEETUP_APIFY_ACTOR", a.ActorID)
	a.Country = getEnv("MEETUP_APIFY_COUNTRY", a.Country)
	if v := os.Getenv("MEETUP_APIFY_CITY"); v != "" {
		a.Cities = splitList(v)
	}
	if v := os.Getenv("MEETUP_APIFY_KEYWORDS"); v != "" {
		a.Keywords = splitList(v)
	}
	if v := os.Getenv("MEETUP_APIFY_PLATFORMS"); v != "" {
		platforms, err := parsePlatforms(v)
		if err != nil {
			return fmt.Errorf("invalid MEETUP_APIFY_PLATFORMS: %w", err)
		}
		a.Platforms = platforms
	}
	if err := intFromEnv("MEETUP_APIFY_MAX_RESULTS", 1, &a.MaxItemsPerPlatform); err != nil {
		return err
	}
	return durationFromEnv("APIFY_TIMEOUT_SECONDS", parseSeconds, &a.Timeout)
}

func loadLinkHealth(cfg *Config) error {
	l := &cfg.LinkHealth
	if err := intFromEnv("LINK_HEALTH_BATCH_SIZE", 1, &l.BatchSize); err != nil {
		return err
	}
	if err := durationFromEnv("LINK_HEALTH_TIMEOUT_SECONDS", parseSeconds, &l.Timeout); err != nil {
		return err
	}
	if err := durationFromEnv("LINK_HEALTH_INTERVAL_SECONDS", parseSeconds, &l.Interval); err != nil {
		return err
	}
	l.UserAgent = getEnv("LINK_HEALTH_USER_AGENT", l.UserAgent)
	return boolFromEnv("LINK_HEALTH_AFTER_INGEST", &l.RunAfterIngest)
}

func loadCron(cfg *Config) error {
	cfg.Cron.Secret = os.Getenv("CRON_SECRET")
	if err := durationFromEnv("CRON_INGEST_TIMEOUT_SECONDS", parseSeconds, &cfg.Cron.IngestTimeout); err != nil {
		return err
	}
	return durationFromEnv("CRON_MARK_GONE_TIMEOUT_SECONDS", parseSeconds, &cfg.Cron.MarkGoneTimeout)
}

func loadCache(cfg *Config) error {
	cfg.Cache.ValkeyAddr = os.Getenv("CACHE_VALKEY_ADDR")
	cfg.Cache.ValkeyPassword = os.Getenv("CACHE_VALKEY_PASSWORD")
	cfg.Cache.ValkeyTLS = os.Getenv("CACHE_VALKEY_TLS") == "true"
	cfg.Cache.KeyPrefix = getEnv("CACHE_KEY_PREFIX", cfg.Cache.KeyPrefix)
	return nil
}

var supportedPlatforms = map[string]bool{"meetup": true, "eventbrite": true, "luma": true}

func parsePlatforms(raw string) ([]string, error) {
	var out []string
	for _, p := range splitList(strings.ToLower(raw)) {
		if !supportedPlatforms[p] {
			return nil, fmt.Errorf("unsupported platform %q", p)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one platform is required")
	}
	return out, nil
}
