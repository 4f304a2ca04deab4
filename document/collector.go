package document

import (
	"context"
	"sort"
	"time"

	"github.com/jonwraymond/querycache/observe"
)

// CollectorConfig configures garbage collection.
type CollectorConfig struct {
	// Age is how long a document may go without updates before it is
	// eligible for deletion.
	// Default: 30 days
	Age time.Duration

	// BatchSize caps deletions per run.
	// Default: 100
	BatchSize int
}

// Scheduler runs the collector again soon after a run leaves work behind.
type Scheduler interface {
	Reschedule()
}

// Collector deletes stale documents in bounded batches.
type Collector struct {
	store     *Store
	config    CollectorConfig
	scheduler Scheduler
	logger    observe.Logger
	now       func() time.Time
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithScheduler sets the scheduler asked to rerun the collector.
func WithScheduler(s Scheduler) CollectorOption {
	return func(c *Collector) { c.scheduler = s }
}

// WithCollectorLogger sets the collector logger.
func WithCollectorLogger(l observe.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCollectorClock sets the time source used to compute document age.
func WithCollectorClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCollector creates a collector over store.
func NewCollector(store *Store, config CollectorConfig, opts ...CollectorOption) *Collector {
	if config.Age <= 0 {
		config.Age = 30 * 24 * time.Hour
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	c := &Collector{
		store:  store,
		config: config,
		logger: observe.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetScheduler replaces the scheduler. It is not safe to call concurrently
// with Run.
func (c *Collector) SetScheduler(s Scheduler) { c.scheduler = s }

// Eligible returns the documents a run would consider, oldest first.
func (c *Collector) Eligible(ctx context.Context) ([]QueryDocument, error) {
	docs, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := c.now().Add(-c.config.Age)
	out := docs[:0]
	for _, d := range docs {
		if !d.SkipGC && d.UpdatedAt.Before(cutoff) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// Run deletes at most BatchSize eligible documents. When it made progress
// and eligible documents remain it asks the scheduler for another run and
// reports rescheduled. A run that deletes nothing leaves the backlog to the
// next regular tick.
func (c *Collector) Run(ctx context.Context) (deleted int, rescheduled bool, err error) {
	eligible, err := c.Eligible(ctx)
	if err != nil {
		return 0, false, err
	}

	batch := eligible
	if len(batch) > c.config.BatchSize {
		batch = batch[:c.config.BatchSize]
	}
	for _, d := range batch {
		if err := ctx.Err(); err != nil {
			return deleted, false, err
		}
		if err := c.store.Delete(ctx, d.ID); err != nil {
			c.logger.Warn(ctx, "document collection failed", observe.F("document_id", d.ID), observe.F("error", err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		c.logger.Info(ctx, "documents collected", observe.F("deleted", deleted), observe.F("eligible", len(eligible)))
	}

	if deleted > 0 && len(eligible) > len(batch) && c.scheduler != nil {
		c.scheduler.Reschedule()
		return deleted, true, nil
	}
	return deleted, false, nil
}
