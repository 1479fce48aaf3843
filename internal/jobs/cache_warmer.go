package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// Lister is the subset of the aggregator the warmer drives.
type Lister interface {
	DefaultWindow() model.DateRange
	Invalidate(ctx context.Context, r model.DateRange)
	ListAll(ctx context.Context, r model.DateRange, f model.Filters) ([]model.Experience, error)
}

// CacheWarmer periodically rebuilds the merged listing of the default
// window so API reads hit a warm cache.
type CacheWarmer struct {
	logger   *zap.Logger
	lister   Lister
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCacheWarmer constructs the background job. timeout bounds one refresh.
func NewCacheWarmer(logger *zap.Logger, lister Lister, interval, timeout time.Duration) *CacheWarmer {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &CacheWarmer{
		logger:   logger,
		lister:   lister,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
	}
}

// Start warms once, then on every tick until Stop or ctx cancellation.
func (w *CacheWarmer) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("cache_warmer.started", zap.Duration("interval", w.interval))
	w.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.stopCh:
			w.logger.Info("cache_warmer.stopped", zap.String("reason", "manual stop"))
			return
		case <-ctx.Done():
			w.logger.Info("cache_warmer.stopped", zap.String("reason", "context canceled"))
			return
		}
	}
}

// Stop halts the warmer. It is safe to call more than once.
func (w *CacheWarmer) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// RunOnce drops the cached window and lists it again.
func (w *CacheWarmer) RunOnce(ctx context.Context) {
	start := time.Now()
	r := w.lister.DefaultWindow()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	w.lister.Invalidate(ctx, r)
	items, err := w.lister.ListAll(ctx, r, model.Filters{})
	if err != nil {
		w.logger.Error("cache_warmer.refresh_failed",
			zap.String("start", r.Start.String()),
			zap.String("end", r.End.String()),
			zap.Error(err))
		return
	}

	w.logger.Info("cache_warmer.success",
		zap.Int("total", len(items)),
		zap.Duration("duration", time.Since(start)))
}
