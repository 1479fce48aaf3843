package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/internal/metrics"
	"github.com/Checker-Finance/experiences/internal/source"
	"github.com/Checker-Finance/experiences/pkg/model"
)

type outcome[T any] struct {
	val T
	err error
}

// call runs fn against one adapter under the adapter's deadline. A panic in
// fn is returned as source.ErrPanic and an adapter that ignores its context
// is abandoned when the deadline passes. The returned error is always an
// *source.AdapterError. A source.ErrDegraded failure keeps the adapter's
// value alongside the error.
func call[T any](ctx context.Context, a *Aggregator, adp source.Adapter, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	name := adp.Name()
	callCtx, cancel := context.WithTimeout(ctx, a.timeoutFor(adp))
	defer cancel()

	start := time.Now()
	ch := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome[T]{err: fmt.Errorf("%w: %v", source.ErrPanic, r)}
			}
		}()
		v, err := fn(callCtx)
		ch <- outcome[T]{val: v, err: err}
	}()

	var res outcome[T]
	select {
	case res = <-ch:
		if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			res.err = source.ErrTimeout
		}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			res.err = ctx.Err()
		} else {
			res.err = source.ErrTimeout
		}
	}
	metrics.ObserveDuration(metrics.SourceCallDuration, start, name, op)

	if res.err != nil {
		result := "error"
		switch {
		case errors.Is(res.err, source.ErrTimeout) || errors.Is(res.err, context.DeadlineExceeded):
			result = "timeout"
		case errors.Is(res.err, source.ErrDegraded):
			metrics.IncSourceCall(name, op, "degraded")
			return res.val, source.Wrap(name, op, res.err)
		}
		metrics.IncSourceCall(name, op, result)
		return zero, source.Wrap(name, op, res.err)
	}
	metrics.IncSourceCall(name, op, "ok")
	return res.val, nil
}

// forEach runs fn(0..n-1) concurrently and waits for all of them.
func forEach(n int, fn func(i int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			fn(i)
		}(i)
	}
	wg.Wait()
}

func (a *Aggregator) timeoutFor(adp source.Adapter) time.Duration {
	if ta, ok := adp.(source.TimeoutAware); ok {
		if d := ta.Timeout(); d > 0 {
			return d
		}
	}
	return a.cfg.DefaultProviderTimeout
}

// reportFailure logs a provider failure, then emits it as an event.
func (a *Aggregator) reportFailure(ctx context.Context, name, op string, err error) {
	a.logger.Warn("aggregator.provider_failed",
		zap.String("source", name),
		zap.String("op", op),
		zap.Error(err))
	a.events.Emit(ctx, model.ProviderFailedEvent{
		Source:    name,
		Operation: op,
		Error:     err.Error(),
		Timestamp: a.now().UTC(),
	})
}

// healthyProviders returns the providers that report healthy, in registry
// order. Health checks run concurrently.
func (a *Aggregator) healthyProviders(ctx context.Context, op string) []source.Adapter {
	providers := a.registry.Providers()
	healthy := make([]bool, len(providers))
	forEach(len(providers), func(i int) {
		healthy[i] = a.isHealthy(ctx, providers[i])
	})

	out := make([]source.Adapter, 0, len(providers))
	for i, p := range providers {
		if healthy[i] {
			out = append(out, p)
			continue
		}
		metrics.IncSourceCall(p.Name(), op, "skipped")
		a.logger.Debug("aggregator.provider_skipped",
			zap.String("source", p.Name()),
			zap.String("op", op))
	}
	return out
}

// isHealthy treats a panicking health check as unhealthy.
func (a *Aggregator) isHealthy(ctx context.Context, p source.Adapter) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("aggregator.health_check_panicked",
				zap.String("source", p.Name()),
				zap.Any("panic", r))
			ok = false
		}
	}()
	return p.IsHealthy(ctx)
}
