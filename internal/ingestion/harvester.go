package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/granhackaria/eventharvest/internal/models"
)

// ErrPlatformNotConfigured is returned by the platform harvester when neither
// transport has credentials. Unlike transport failures it is not soft: the
// orchestrator reports it as the source's error.
var ErrPlatformNotConfigured = errors.New("event platform not configured: set MEETUP_CLIENT_ID, MEETUP_CLIENT_SECRET and MEETUP_REFRESH_TOKEN (OAuth) or APIFY_API_TOKEN (scraper)")

// ErrUnauthorized marks upstream authorization failures.
var ErrUnauthorized = errors.New("unauthorized")

// Harvester defines the interface that all source harvesters must implement.
type Harvester interface {
	// Name returns the source identifier used in run summaries.
	Name() string

	// FetchRecent retrieves the records to process for one run. Transport
	// failures are logged and yield an empty list; only configuration errors
	// that make the source unusable are returned.
	FetchRecent(ctx context.Context) ([]models.RawRecord, error)
}

// Acknowledger is implemented by harvesters that keep a fetch position
// between runs. After a batch the pipeline passes the records it reached, in
// order, and those among them that failed and must be fetched again.
type Acknowledger interface {
	Acknowledge(ctx context.Context, handled, failed []models.RawRecord)
}

// ErrorRecorder persists soft failures for later inspection.
type ErrorRecorder interface {
	RecordError(ctx context.Context, source string, kind models.IngestionErrorType, url string, err error)
}

// IngestionErrorStore is the storage behind StoreRecorder.
type IngestionErrorStore interface {
	Store(ctx context.Context, e models.IngestionError) error
}

// NopRecorder discards errors.
type NopRecorder struct{}

// RecordError implements ErrorRecorder.
func (NopRecorder) RecordError(context.Context, string, models.IngestionErrorType, string, error) {}

// StoreRecorder writes soft failures to an IngestionErrorStore. Storage
// failures are logged and otherwise ignored.
type StoreRecorder struct {
	store  IngestionErrorStore
	logger *slog.Logger
}

// NewStoreRecorder creates a recorder backed by store.
func NewStoreRecorder(store IngestionErrorStore, logger *slog.Logger) *StoreRecorder {
	return &StoreRecorder{store: store, logger: logger}
}

// RecordError implements ErrorRecorder.
func (r *StoreRecorder) RecordError(ctx context.Context, source string, kind models.IngestionErrorType, url string, err error) {
	if err == nil {
		return
	}
	// Recording must survive a cancelled run context.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if storeErr := r.store.Store(storeCtx, models.IngestionError{
		Platform:  source,
		ErrorType: string(kind),
		URL:       url,
		ErrorMsg:  err.Error(),
		Metadata:  "{}",
	}); storeErr != nil {
		r.logger.Warn("failed to record ingestion error",
			"source", source,
			"error_type", kind,
			"error", storeErr,
		)
	}
}

// classifyStatus maps an upstream HTTP status to an ingestion error type.
func classifyStatus(status int) models.IngestionErrorType {
	switch {
	case status == 401 || status == 403:
		return models.ErrorTypeAuthFailed
	case status == 429:
		return models.ErrorTypeRateLimitExceeded
	default:
		return models.ErrorTypeFetchFailed
	}
}
