package acquisition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/domain/shared"
	"github.com/lotes/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

var (
	// ErrQueueNotRunning is returned when submitting to a stopped settlement queue
	ErrQueueNotRunning = errors.New("settlement queue is not running")

	// ErrQueueFull is returned when the settlement queue has no free slot
	ErrQueueFull = errors.New("settlement queue is full")
)

// Settlement charges an actor for a lote whose ownership was committed
type Settlement struct {
	ActorID string
	LoteID  string
	Price   int64
}

// Settler accepts settlements for asynchronous processing
type Settler interface {
	Submit(s Settlement) error
}

// SettlementQueueConfig tunes the settlement worker pool
type SettlementQueueConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries uint64
	Timeout    time.Duration // bound on a single settlement attempt
}

// DefaultSettlementQueueConfig returns default configuration
func DefaultSettlementQueueConfig() SettlementQueueConfig {
	return SettlementQueueConfig{
		Workers:    4,
		QueueSize:  256,
		MaxRetries: 8,
		Timeout:    5 * time.Second,
	}
}

// SettlementQueue debits balances and records collections after a committed
// acquisition. Settlements are idempotent per lote, so failed attempts are
// retried with exponential backoff.
type SettlementQueue struct {
	actors  identity.ActorRepository
	config  SettlementQueueConfig
	logger  *zap.Logger
	metrics *Metrics
	backoff func() backoff.BackOff

	jobs      chan Settlement
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
}

// NewSettlementQueue creates a settlement queue. Call Start before submitting.
func NewSettlementQueue(actors identity.ActorRepository, config SettlementQueueConfig, metrics *Metrics, logger *zap.Logger) *SettlementQueue {
	defaults := DefaultSettlementQueueConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementQueue{
		actors:  actors,
		config:  config,
		logger:  logger,
		metrics: metrics,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		jobs: make(chan Settlement, config.QueueSize),
	}
}

// Start launches the workers
func (q *SettlementQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return
	}
	q.isRunning = true

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = cancel

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.logger.Info("Settlement queue started",
		zap.Int("workers", q.config.Workers),
		zap.Int("queue_size", q.config.QueueSize),
	)
}

// Submit enqueues a settlement without blocking
func (q *SettlementQueue) Submit(s Settlement) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.isRunning {
		return ErrQueueNotRunning
	}
	select {
	case q.jobs <- s:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting settlements and waits for pending ones to finish.
// When ctx expires first, in-flight retries are abandoned.
func (q *SettlementQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.logger.Info("Settlement queue drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("Settlement queue stop timed out", zap.Int("pending", len(q.jobs)))
		return ctx.Err()
	}
}

func (q *SettlementQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()
	for s := range q.jobs {
		if ctx.Err() != nil {
			q.logger.Error("Settlement abandoned",
				zap.Int("worker_id", workerID),
				zap.String("actor_id", s.ActorID),
				zap.String("lote_id", s.LoteID),
				zap.Int64("price", s.Price))
			q.metrics.recordSettlement(ctx, settlementAbandoned)
			continue
		}
		q.process(ctx, s)
	}
}

// Process settles synchronously. It is what the workers run for each job.
func (q *SettlementQueue) Process(ctx context.Context, s Settlement) error {
	return q.process(ctx, s)
}

func (q *SettlementQueue) process(ctx context.Context, s Settlement) error {
	log := q.logger.With(
		zap.String("actor_id", s.ActorID),
		zap.String("lote_id", s.LoteID),
		zap.Int64("price", s.Price),
	)

	var (
		result   identity.Settlement
		attempts int
	)
	operation := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, q.config.Timeout)
		defer cancel()

		var err error
		result, err = q.actors.Settle(attemptCtx, s.ActorID, s.LoteID, s.Price)
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, persistence.ErrMalformedDocument) {
			return backoff.Permanent(err)
		}
		if err != nil {
			log.Debug("Settlement attempt failed", zap.Int("attempt", attempts), zap.Error(err))
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(q.backoff(), q.config.MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		log.Error("Settlement failed, ownership stays committed",
			zap.Int("attempts", attempts),
			zap.Error(err))
		q.metrics.recordSettlement(ctx, settlementFailed)
		return err
	}

	if !result.Applied {
		log.Info("Settlement already applied", zap.Int64("balance", result.Balance))
		q.metrics.recordSettlement(ctx, settlementDuplicate)
		return nil
	}
	if result.Balance < 0 {
		log.Warn("Settlement left a negative balance", zap.Int64("balance", result.Balance))
	} else {
		log.Info("Settlement applied", zap.Int64("balance", result.Balance))
	}
	q.metrics.recordSettlement(ctx, settlementApplied)
	return nil
}

var _ Settler = (*SettlementQueue)(nil)
