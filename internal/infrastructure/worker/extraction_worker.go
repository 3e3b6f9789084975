package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/application/service"
	"github.com/garyjia/lease-agent/internal/domain/workflow"
)

// ExtractionWorkerConfig holds configuration for the extraction worker
type ExtractionWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// QueueSize bounds requests waiting for an immediate run
	QueueSize int
}

// DefaultExtractionWorkerConfig returns default configuration
func DefaultExtractionWorkerConfig() ExtractionWorkerConfig {
	return ExtractionWorkerConfig{
		PollInterval: 10 * time.Second,
		BatchSize:    10,
		QueueSize:    64,
	}
}

// ExtractionStats are the worker counters
type ExtractionStats struct {
	Runs          int       `json:"runs"`
	Recorded      int       `json:"recorded"`
	Failed        int       `json:"failed"`
	LastProcessed time.Time `json:"last_processed"`
	LastError     string    `json:"last_error,omitempty"`
}

// ExtractionWorker finds requests with unscored documents and runs the
// extraction agent over them. Requests can also be queued directly.
type ExtractionWorker struct {
	config     ExtractionWorkerConfig
	repo       port.LeaseRequestRepository
	extraction service.ExtractionService
	logger     *zap.Logger

	queue chan string

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	stats     ExtractionStats
}

// NewExtractionWorker creates a new extraction worker
func NewExtractionWorker(
	config ExtractionWorkerConfig,
	repo port.LeaseRequestRepository,
	extraction service.ExtractionService,
	logger *zap.Logger,
) *ExtractionWorker {
	defaults := DefaultExtractionWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	return &ExtractionWorker{
		config:     config,
		repo:       repo,
		extraction: extraction,
		logger:     logger,
		queue:      make(chan string, config.QueueSize),
	}
}

// Name returns the worker name for identification
func (w *ExtractionWorker) Name() string {
	return "ExtractionWorker"
}

// Start begins the polling loop
func (w *ExtractionWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("extraction worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("ExtractionWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.loop(runCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the current run to finish
func (w *ExtractionWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("ExtractionWorker stopped",
		zap.Int("runs", stats.Runs),
		zap.Int("failed", stats.Failed))
	return nil
}

// Enqueue asks for an immediate run for requestID. When the queue is full the
// request is left to the next poll.
func (w *ExtractionWorker) Enqueue(requestID string) bool {
	select {
	case w.queue <- requestID:
		return true
	default:
		w.logger.Warn("Extraction queue full, deferring to poll", zap.String("request_id", requestID))
		return false
	}
}

// Stats returns a copy of the worker counters
func (w *ExtractionWorker) Stats() ExtractionStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *ExtractionWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Extraction loop context cancelled")
			return
		case id := <-w.queue:
			w.process(ctx, id)
		case <-ticker.C:
			if err := w.Poll(ctx); err != nil {
				w.recordError(err)
				w.logger.Error("Failed to poll for pending extractions", zap.Error(err))
			}
		}
	}
}

// Poll runs extraction once for every request with unscored documents
func (w *ExtractionWorker) Poll(ctx context.Context) error {
	pending, err := w.repo.ListAwaitingExtraction(ctx, w.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending extractions: %w", err)
	}

	seen := make(map[string]bool, len(pending))
	for _, p := range pending {
		if seen[p.RequestID] {
			continue
		}
		seen[p.RequestID] = true
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.process(ctx, p.RequestID)
	}
	return nil
}

func (w *ExtractionWorker) process(ctx context.Context, requestID string) {
	run, err := w.extraction.RunExtraction(ctx, requestID)

	w.mu.Lock()
	w.stats.Runs++
	w.stats.LastProcessed = time.Now()
	if err == nil {
		w.stats.Recorded += run.Recorded
	}
	w.mu.Unlock()

	switch {
	case err == nil:
		w.logger.Info("Extraction run finished",
			zap.String("request_id", requestID),
			zap.Int("submitted", run.Submitted),
			zap.Int("recorded", run.Recorded),
			zap.Bool("review", run.FlaggedForReview),
			zap.Bool("auto_advanced", run.AutoAdvanced))
	case errors.Is(err, workflow.ErrConcurrentModification):
		// another writer holds the request; the next poll picks it up again
		w.logger.Debug("Request busy, retrying later", zap.String("request_id", requestID))
	default:
		w.recordError(err)
		w.logger.Warn("Extraction run failed",
			zap.String("request_id", requestID),
			zap.Bool("agent_unavailable", errors.Is(err, port.ErrAgentUnavailable)),
			zap.Error(err))
	}
}

func (w *ExtractionWorker) recordError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Failed++
	w.stats.LastError = err.Error()
}
