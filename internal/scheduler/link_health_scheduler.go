package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/granhackaria/eventharvest/internal/ingestion"
)

// LinkHealthScheduler runs link-health batches on a fixed interval inside the
// server process.
type LinkHealthScheduler struct {
	checker       ingestion.LinkChecker
	batchSize     int
	batchTimeout  time.Duration
	logger        *slog.Logger
	stopChan      chan struct{}
	stopOnce      sync.Once
	checkInterval time.Duration
}

// NewLinkHealthScheduler creates a scheduler. batchTimeout bounds each batch;
// zero leaves it unbounded.
func NewLinkHealthScheduler(
	checker ingestion.LinkChecker,
	interval time.Duration,
	batchSize int,
	batchTimeout time.Duration,
	logger *slog.Logger,
) *LinkHealthScheduler {
	return &LinkHealthScheduler{
		checker:       checker,
		batchSize:     batchSize,
		batchTimeout:  batchTimeout,
		logger:        logger,
		stopChan:      make(chan struct{}),
		checkInterval: interval,
	}
}

// Start begins the scheduler loop. It returns when Stop is called or ctx is
// cancelled.
func (s *LinkHealthScheduler) Start(ctx context.Context) {
	s.logger.Info("starting link health scheduler", "check_interval", s.checkInterval, "batch_size", s.batchSize)
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runBatch(ctx)
		case <-s.stopChan:
			s.logger.Info("link health scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("link health scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler. It is safe to call more than once.
func (s *LinkHealthScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *LinkHealthScheduler) runBatch(ctx context.Context) {
	if s.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.batchTimeout)
		defer cancel()
	}

	result, err := s.checker.CheckBatch(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("scheduled link health batch failed", "error", err, "checked", result.Checked)
		return
	}

	s.logger.Info("scheduled link health batch finished",
		"checked", result.Checked,
		"marked", result.Marked,
		"errors", result.Errors,
	)
}
