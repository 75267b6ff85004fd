package simulator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/richxcame/fraud-investigator/internal/fraud"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTPS       = 2.0
	defaultBatchSize = 1000
)

// Processor runs one transaction through the fraud pipeline
type Processor interface {
	ProcessTransaction(ctx context.Context, txn *fraud.Transaction) (*fraud.ProcessResult, error)
}

// BulkInserter loads historical transactions without scoring them
type BulkInserter interface {
	InsertTransactions(ctx context.Context, txns []fraud.Transaction) (int64, error)
}

// Worker streams synthetic transactions into the pipeline and seeds history
type Worker struct {
	processor Processor
	gen       *Generator
	pool      []Account
	limiter   *rate.Limiter
	logger    *zap.Logger
	now       func() time.Time
	batchSize int
	done      chan struct{}
	stopOnce  sync.Once
}

// Option configures a Worker
type Option func(*Worker)

// WithGenerator replaces the randomly seeded generator
func WithGenerator(g *Generator) Option {
	return func(w *Worker) { w.gen = g }
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithBatchSize sets how many rows go into each seed COPY
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// NewWorker creates a simulator emitting tps transactions per second
func NewWorker(processor Processor, logger *zap.Logger, tps float64, opts ...Option) *Worker {
	if tps <= 0 {
		tps = defaultTPS
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		processor: processor,
		limiter:   rate.NewLimiter(rate.Limit(tps), 1),
		logger:    logger,
		now:       time.Now,
		batchSize: defaultBatchSize,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.gen == nil {
		w.gen = NewGenerator(uint64(w.now().UnixNano()))
	}
	w.pool = w.gen.Accounts(LiveAccounts)
	return w
}

// Start streams transactions until ctx is cancelled or Stop is called.
// Pipeline failures are logged and the stream keeps going.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting transaction simulator", zap.Float64("tps", float64(w.limiter.Limit())))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if err := w.limiter.Wait(ctx); err != nil {
			w.logger.Info("Transaction simulator stopped")
			return
		}
		w.Step(ctx)
	}
}

// Step generates and processes a single live transaction
func (w *Worker) Step(ctx context.Context) *fraud.ProcessResult {
	txn := w.gen.Live(w.pool, w.now())
	res, err := w.processor.ProcessTransaction(ctx, &txn)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("simulated transaction failed", zap.String("txn_id", txn.TxnID), zap.Error(err))
		}
		return nil
	}
	if res.Case != nil {
		w.logger.Debug("simulated transaction opened case",
			zap.String("txn_id", txn.TxnID),
			zap.String("case_id", res.Case.CaseID),
			zap.Int("score", res.Risk.Score),
		)
	}
	return res
}

// Stop gracefully stops the worker. Calling it more than once is safe.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// SeedHistorical bulk-loads total transactions spread over the last days days.
// It runs once per flag file: an existing flag means the seed already happened.
// It reports how many rows were written.
func (w *Worker) SeedHistorical(ctx context.Context, store BulkInserter, days, total int, flagPath string) (int64, error) {
	if days <= 0 || total <= 0 {
		return 0, nil
	}
	if flagPath != "" {
		if _, err := os.Stat(flagPath); err == nil {
			w.logger.Info("historical seed already present", zap.String("flag", flagPath))
			return 0, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("check seed flag: %w", err)
		}
	}

	end := w.now().UTC()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	pool := w.gen.Accounts(SeedAccounts)

	w.logger.Info("seeding historical transactions", zap.Int("days", days), zap.Int("total", total))

	var written int64
	batch := make([]fraud.Transaction, 0, min(w.batchSize, total))
	for i := 0; i < total; i++ {
		batch = append(batch, w.gen.Historical(pool, start, end))
		if len(batch) < w.batchSize && i < total-1 {
			continue
		}
		n, err := store.InsertTransactions(ctx, batch)
		written += n
		if err != nil {
			return written, fmt.Errorf("seed batch ending at %d: %w", i+1, err)
		}
		w.logger.Debug("seed progress", zap.Int64("written", written), zap.Int("total", total))
		batch = make([]fraud.Transaction, 0, min(w.batchSize, total-i-1))
	}

	if flagPath != "" {
		if dir := filepath.Dir(flagPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return written, fmt.Errorf("create seed flag dir: %w", err)
			}
		}
		if err := os.WriteFile(flagPath, []byte(w.now().UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
			return written, fmt.Errorf("write seed flag: %w", err)
		}
	}

	w.logger.Info("historical seed complete", zap.Int64("rows", written))
	return written, nil
}
