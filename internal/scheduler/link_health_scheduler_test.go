package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/granhackaria/eventharvest/internal/logging"
	"github.com/granhackaria/eventharvest/internal/models"
)

type countingChecker struct {
	mu       sync.Mutex
	calls    int
	limits   []int
	deadline bool
	err      error
}

func (c *countingChecker) CheckBatch(ctx context.Context, limit int) (models.LinkHealthResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.limits = append(c.limits, limit)
	_, c.deadline = ctx.Deadline()
	return models.LinkHealthResult{Checked: limit}, c.err
}

func (c *countingChecker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestLinkHealthScheduler_RunsOnInterval(t *testing.T) {
	checker := &countingChecker{}
	s := NewLinkHealthScheduler(checker, 10*time.Millisecond, 30, time.Second, logging.Discard())

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return checker.count() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	checker.mu.Lock()
	defer checker.mu.Unlock()
	assert.Equal(t, 30, checker.limits[0])
	assert.True(t, checker.deadline)
}

func TestLinkHealthScheduler_StopsOnContextCancel(t *testing.T) {
	checker := &countingChecker{err: errors.New("db down")}
	s := NewLinkHealthScheduler(checker, time.Hour, 30, 0, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Zero(t, checker.count())
}

func TestLinkHealthScheduler_BatchErrorIsLogged(t *testing.T) {
	checker := &countingChecker{err: errors.New("db down")}
	s := NewLinkHealthScheduler(checker, time.Hour, 5, 0, logging.Discard())

	s.runBatch(context.Background())

	assert.Equal(t, 1, checker.count())
	assert.False(t, checker.deadline)
}
