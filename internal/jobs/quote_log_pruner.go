package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/swap-router/internal/metrics"
	"github.com/Checker-Finance/swap-router/internal/store"
)

// SubjectQuoteLogPruned is published after every successful prune.
const SubjectQuoteLogPruned = "evt.quote.log.pruned.v1"

const pruneQuery = `DELETE FROM analytics.quote_log WHERE recorded_at < $1`

// EventPublisher is satisfied by *publisher.Publisher.
type EventPublisher interface {
	PublishEvent(ctx context.Context, subject, eventType string, payload any) error
}

// PrunedEvent is the payload of SubjectQuoteLogPruned.
type PrunedEvent struct {
	Cutoff     time.Time `json:"cutoff"`
	Deleted    int64     `json:"deleted"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// QuoteLogPruner periodically deletes quote log rows older than the retention
// window and announces each prune on NATS.
type QuoteLogPruner struct {
	logger    *zap.Logger
	db        store.DBExecutor
	publisher EventPublisher
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewQuoteLogPruner constructs the background job. pub may be nil.
func NewQuoteLogPruner(logger *zap.Logger, db store.DBExecutor, pub EventPublisher, interval, retention time.Duration) *QuoteLogPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteLogPruner{
		logger:    logger,
		db:        db,
		publisher: pub,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the prune loop until ctx is cancelled or Stop is called.
func (p *QuoteLogPruner) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("quote_log_pruner.started",
		zap.Duration("interval", p.interval),
		zap.Duration("retention", p.retention))

	for {
		select {
		case <-ticker.C:
			_ = p.RunOnce(ctx)
		case <-p.stopCh:
			p.logger.Info("quote_log_pruner.stopped", zap.String("reason", "manual stop"))
			return
		case <-ctx.Done():
			p.logger.Info("quote_log_pruner.stopped", zap.String("reason", "context canceled"))
			return
		}
	}
}

// Stop halts the pruner.
func (p *QuoteLogPruner) Stop() {
	close(p.stopCh)
}

// RunOnce executes one prune cycle.
func (p *QuoteLogPruner) RunOnce(ctx context.Context) error {
	start := p.now()
	cutoff := start.Add(-p.retention).UTC()

	tag, err := p.db.Exec(ctx, pruneQuery, cutoff)
	if err != nil {
		metrics.IncError("quote_log_pruner", "delete_failed")
		p.logger.Error("quote_log_pruner.prune_failed", zap.Error(err))
		return err
	}
	metrics.SetLastPrune(p.now())

	ev := PrunedEvent{
		Cutoff:     cutoff,
		Deleted:    tag.RowsAffected(),
		DurationMs: p.now().Sub(start).Milliseconds(),
		Timestamp:  p.now().UTC(),
	}
	if p.publisher != nil {
		if err := p.publisher.PublishEvent(ctx, SubjectQuoteLogPruned, "quote.log.pruned", ev); err != nil {
			p.logger.Warn("quote_log_pruner.nats_publish_failed", zap.Error(err))
		}
	}

	p.logger.Info("quote_log_pruner.success",
		zap.Int64("deleted", ev.Deleted),
		zap.Time("cutoff", cutoff))
	return nil
}
