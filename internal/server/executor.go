package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/montecarlo"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// ErrBatchNotStarted is returned when waiting on a batch that was never started
var ErrBatchNotStarted = errors.New("batch not started")

// BatchRunner runs one Monte Carlo batch. *montecarlo.Runner satisfies it.
type BatchRunner interface {
	Run(ctx context.Context, req models.BatchRequest, progress montecarlo.ProgressFunc) (*models.BatchResult, error)
}

// ExecutorOption configures a BatchExecutor
type ExecutorOption func(*BatchExecutor)

// WithExecutorLogger sets the executor logger
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *BatchExecutor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithExecutorMetrics records batch outcomes on m
func WithExecutorMetrics(m *metrics.Manager) ExecutorOption {
	return func(e *BatchExecutor) {
		e.metrics = m
	}
}

// WithNotifier posts terminal batches to their callback URL
func WithNotifier(n *Notifier) ExecutorOption {
	return func(e *BatchExecutor) {
		e.notifier = n
	}
}

// BatchExecutor runs stored batches in the background
type BatchExecutor struct {
	store    *BatchStore
	runner   BatchRunner
	notifier *Notifier
	metrics  *metrics.Manager
	logger   *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	done    map[string]chan struct{}
	errs    map[string]error
	wg      sync.WaitGroup
}

func NewBatchExecutor(store *BatchStore, runner BatchRunner, opts ...ExecutorOption) *BatchExecutor {
	e := &BatchExecutor{
		store:   store,
		runner:  runner,
		logger:  logger.Default,
		cancels: make(map[string]context.CancelFunc),
		done:    make(map[string]chan struct{}),
		errs:    make(map[string]error),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches a pending batch. Starting a running batch is a no-op.
func (e *BatchExecutor) Start(id string) (models.Batch, error) {
	if id == "" {
		return models.Batch{}, ErrBatchIDMissing
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.store.Get(id)
	if !ok {
		return models.Batch{}, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	if b.Status.Terminal() {
		return b, fmt.Errorf("%w: %s is %s", ErrBatchTerminal, id, b.Status)
	}
	if _, started := e.done[id]; started {
		return b, nil
	}

	updated, err := e.store.SetStatus(id, models.BatchStatusRunning, "")
	if err != nil {
		return updated, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancels[id] = cancel
	e.done[id] = make(chan struct{})

	e.wg.Add(1)
	go e.runBatch(ctx, updated)
	return updated, nil
}

// Stop cancels a pending or running batch
func (e *BatchExecutor) Stop(id string) (models.Batch, error) {
	if id == "" {
		return models.Batch{}, ErrBatchIDMissing
	}
	if _, ok := e.store.Get(id); !ok {
		return models.Batch{}, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}

	updated, err := e.store.SetStatus(id, models.BatchStatusCancelled, "")
	if err != nil {
		return updated, err
	}

	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()
	if ok {
		cancel()
	}

	e.metrics.RecordBatch(string(models.BatchStatusCancelled))
	e.notifier.Notify(updated)
	return updated, nil
}

// Wait blocks until a started batch reaches a terminal state or ctx ends.
// The returned error is the run error of a failed batch.
func (e *BatchExecutor) Wait(ctx context.Context, id string) (models.Batch, error) {
	b, ok := e.store.Get(id)
	if !ok {
		return models.Batch{}, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}

	e.mu.Lock()
	done, started := e.done[id]
	e.mu.Unlock()
	if !started {
		if b.Status.Terminal() {
			return b, nil
		}
		return b, fmt.Errorf("%w: %s", ErrBatchNotStarted, id)
	}

	select {
	case <-ctx.Done():
		return b, ctx.Err()
	case <-done:
	}

	b, _ = e.store.Get(id)
	e.mu.Lock()
	err := e.errs[id]
	e.mu.Unlock()
	return b, err
}

// Shutdown cancels every running batch and waits for their goroutines
func (e *BatchExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.cancels))
	for id := range e.cancels {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if _, err := e.Stop(id); err != nil && !errors.Is(err, ErrBatchTerminal) {
			e.logger.Warn("Failed to stop batch during shutdown", "batch_id", id, "error", err)
		}
	}

	finished := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *BatchExecutor) runBatch(ctx context.Context, b models.Batch) {
	var runErr error
	defer func() {
		e.mu.Lock()
		if cancel, ok := e.cancels[b.ID]; ok {
			cancel()
			delete(e.cancels, b.ID)
		}
		if runErr != nil {
			e.errs[b.ID] = runErr
		}
		close(e.done[b.ID])
		e.mu.Unlock()
		e.wg.Done()
	}()

	log := e.logger.With("batch_id", b.ID)
	log.Info("Starting batch run", "season", b.Request.Season, "location", b.Request.Location, "simulations", b.Request.Simulations)

	result, err := e.runner.Run(ctx, b.Request, func(done, _ int) {
		e.store.SetProgress(b.ID, done)
	})
	if err != nil {
		if ctx.Err() != nil {
			log.Info("Batch cancelled")
			return
		}
		runErr = err
		log.Error("Batch failed", "error", err)
		failed, setErr := e.store.SetStatus(b.ID, models.BatchStatusFailed, err.Error())
		if setErr != nil {
			log.Error("Failed to set failed status", "error", setErr)
			return
		}
		e.metrics.RecordBatch(string(models.BatchStatusFailed))
		e.notifier.Notify(failed)
		return
	}

	completed, err := e.store.Complete(b.ID, result)
	if err != nil {
		log.Debug("Batch finished after leaving the running state", "error", err)
		return
	}
	e.metrics.RecordBatch(string(models.BatchStatusCompleted))
	log.Info("Batch completed", "trials", result.Trials)
	e.notifier.Notify(completed)
}
