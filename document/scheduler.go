package document

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/querycache/observe"
)

// TickerScheduler runs a Collector every interval and immediately again
// whenever the collector reschedules itself.
type TickerScheduler struct {
	collector *Collector
	interval  time.Duration
	logger    observe.Logger

	kick chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTickerScheduler creates a scheduler for c and registers itself as c's
// scheduler.
func NewTickerScheduler(c *Collector, interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	s := &TickerScheduler{
		collector: c,
		interval:  interval,
		logger:    c.logger,
		kick:      make(chan struct{}, 1),
	}
	c.SetScheduler(s)
	return s
}

// Reschedule requests another run as soon as the current one returns.
func (s *TickerScheduler) Reschedule() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Start runs the collection loop until ctx is done or Stop is called.
// Calling Start on a running scheduler is a no-op.
func (s *TickerScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop ends the loop and waits for an in-flight run to finish.
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *TickerScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.kick:
		}

		if _, _, err := s.collector.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn(ctx, "document collection run failed", observe.F("error", err))
		}
	}
}

var _ Scheduler = (*TickerScheduler)(nil)
