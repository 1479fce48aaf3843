package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/internal/metrics"
	"github.com/Checker-Finance/experiences/internal/rate"
)

// ErrNotFound is returned when the upstream answers 404 and no custom error
// handler claims the response.
var ErrNotFound = errors.New("upstream resource not found")

// maxBodyBytes caps how much of a response body is buffered.
const maxBodyBytes = 8 << 20

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// StatusError is the default error for a non-retryable 4xx response.
type StatusError struct {
	Provider string
	Status   int
	Body     []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d", e.Provider, e.Status)
}

// Executor handles rate-limited, retrying HTTP execution with JSON decoding
// for one upstream provider.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	provider     string
	errorHandler func(status int, body []byte) error
}

// New creates an Executor. errorHandler is called on 4xx failure responses to
// produce a provider-specific error. If nil, 404 maps to ErrNotFound and other
// statuses to *StatusError.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	provider string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if retryMax < 0 {
		retryMax = 0
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		provider:     provider,
		errorHandler: errorHandler,
	}
}

// DoJSON executes req with rate limiting and retries, then JSON-decodes the
// response into out. endpoint is a low-cardinality label for metrics and logs
// (e.g. "tours.list"); the rate limiter is scoped to the provider.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, endpoint string, out any) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, e.provider); err != nil {
			metrics.IncUpstreamRequest(e.provider, endpoint, "rate_limited")
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, Backoff(attempt-1)); err != nil {
				return fmt.Errorf("%s request aborted: %w", e.provider, err)
			}
		}

		attemptReq, err := cloneForAttempt(ctx, req, attempt)
		if err != nil {
			return err
		}

		start := time.Now()
		resp, err := e.http.Do(attemptReq)
		if err != nil {
			lastErr = err
			metrics.IncUpstreamRequest(e.provider, endpoint, "transport_error")
			e.logger.Warn(e.provider+".http_failed",
				zap.String("endpoint", endpoint),
				zap.String("url", req.URL.Redacted()),
				zap.Error(err),
				zap.Int("attempt", attempt))
			if ctx.Err() != nil {
				return fmt.Errorf("%s request aborted: %w", e.provider, ctx.Err())
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		elapsed := time.Since(start)
		status := strconv.Itoa(resp.StatusCode)

		if readErr != nil {
			lastErr = readErr
			metrics.IncUpstreamRequest(e.provider, endpoint, "read_error")
			continue
		}

		if resp.StatusCode >= 500 {
			metrics.IncUpstreamRequest(e.provider, endpoint, status)
			e.logger.Warn(e.provider+".server_error",
				zap.String("endpoint", endpoint),
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.Redacted()),
				zap.Duration("latency", elapsed))
			lastErr = fmt.Errorf("%s server error: %d", e.provider, resp.StatusCode)
			continue
		}

		metrics.IncUpstreamRequest(e.provider, endpoint, status)

		if resp.StatusCode >= 400 {
			if e.errorHandler != nil {
				return e.errorHandler(resp.StatusCode, body)
			}
			if resp.StatusCode == http.StatusNotFound {
				return ErrNotFound
			}
			return &StatusError{Provider: e.provider, Status: resp.StatusCode, Body: body}
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				e.logger.Warn(e.provider+".decode_failed",
					zap.String("endpoint", endpoint),
					zap.Error(err),
					zap.String("url", req.URL.Redacted()),
					zap.Int("body_len", len(body)))
				return fmt.Errorf("decode failed: %w", err)
			}
		}

		e.logger.Debug(e.provider+".http_success",
			zap.String("endpoint", endpoint),
			zap.String("url", req.URL.Redacted()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))

		return nil
	}

	return fmt.Errorf("%s request failed after %d attempts: %w", e.provider, e.retryMax+1, lastErr)
}

// cloneForAttempt binds req to ctx and rewinds its body for retries.
func cloneForAttempt(ctx context.Context, req *http.Request, attempt int) (*http.Request, error) {
	r := req.Clone(ctx)
	if attempt == 0 || req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed for retry")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	r.Body = body
	return r, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
