package quotelog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/swap-router/internal/metrics"
	"github.com/Checker-Finance/swap-router/internal/store"
	"github.com/Checker-Finance/swap-router/pkg/model"
)

const insertQuery = `
	INSERT INTO analytics.quote_log (
		id,
		token_in,
		token_in_chain_id,
		token_out,
		token_out_chain_id,
		trade_type,
		amount,
		router_preference,
		state,
		method,
		quote,
		error_message,
		latency_ms,
		source,
		recorded_at
	)
	VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8,
		$9, $10, $11, $12, $13, $14, $15
	)
	ON CONFLICT (id) DO NOTHING;
`

// drainTimeout bounds how long Run keeps flushing queued records after shutdown.
const drainTimeout = 5 * time.Second

// Writer records every quote acquisition into analytics.quote_log.
// Record never blocks the caller; rows are written by Run.
type Writer struct {
	db     store.DBExecutor
	logger *zap.Logger
	source string
	queue  chan model.QuoteRecord
}

// NewWriter constructs a writer. source identifies the service writing the rows.
func NewWriter(db store.DBExecutor, logger *zap.Logger, source string, buffer int) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 1024
	}
	return &Writer{
		db:     db,
		logger: logger,
		source: source,
		queue:  make(chan model.QuoteRecord, buffer),
	}
}

// Record queues rec. When the queue is full the record is dropped.
func (w *Writer) Record(_ context.Context, rec model.QuoteRecord) {
	select {
	case w.queue <- rec:
	default:
		metrics.IncError("quotelog", "queue_full")
		w.logger.Warn("quotelog.dropped",
			zap.String("id", rec.ID.String()),
			zap.String("state", string(rec.State)))
	}
}

// Run writes queued records until ctx is cancelled, then drains what is left.
func (w *Writer) Run(ctx context.Context) {
	w.logger.Info("quotelog.started", zap.Int("buffer", cap(w.queue)))
	for {
		select {
		case rec := <-w.queue:
			_ = w.Insert(ctx, rec)
		case <-ctx.Done():
			w.drain()
			w.logger.Info("quotelog.stopped")
			return
		}
	}
}

func (w *Writer) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case rec := <-w.queue:
			if err := w.Insert(ctx, rec); err != nil && ctx.Err() != nil {
				return
			}
		default:
			return
		}
	}
}

// Insert writes one row synchronously.
func (w *Writer) Insert(ctx context.Context, rec model.QuoteRecord) error {
	_, err := w.db.Exec(ctx, insertQuery,
		rec.ID,                     // id
		rec.TokenIn,                // token_in
		int64(rec.TokenInChainID),  // token_in_chain_id
		rec.TokenOut,               // token_out
		int64(rec.TokenOutChainID), // token_out_chain_id
		string(rec.TradeType),      // trade_type
		rec.Amount,                 // amount (numeric)
		string(rec.RouterPreference),
		string(rec.State),
		nullIfEmpty(string(rec.Method)),
		nullIfEmpty(rec.Quote), // quote (numeric)
		nullIfEmpty(rec.ErrorMessage),
		rec.LatencyMs,
		w.source,
		rec.RecordedAt,
	)
	if err != nil {
		metrics.IncError("quotelog", "insert_failed")
		w.logger.Error("quotelog.insert_failed",
			zap.String("id", rec.ID.String()),
			zap.Error(err),
		)
		return err
	}

	w.logger.Debug("quotelog.inserted",
		zap.String("id", rec.ID.String()),
		zap.String("state", string(rec.State)),
		zap.Float64("latency_ms", rec.LatencyMs),
	)
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
