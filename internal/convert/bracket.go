package convert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	aerrors "github.com/a3tai/mcp-affidavit/internal/errors"
)

// Defaults for Bracket
const (
	DefaultTimeout = 2 * time.Minute
	DefaultRetries = 1
	DefaultBackoff = 500 * time.Millisecond
)

// ErrTimeout reports that one conversion attempt ran past its deadline
var ErrTimeout = errors.New("conversion deadline exceeded")

// Bracket serializes conversions and wraps each attempt in
// acquire resource -> convert -> release resource. Release runs on every path.
type Bracket struct {
	conv     Converter
	resource Resource
	slot     *semaphore.Weighted
	timeout  time.Duration
	retries  int
	backoff  time.Duration
	logger   *zap.Logger
	waiting  prometheus.Gauge
	outcomes *prometheus.CounterVec
}

// BracketOption configures a Bracket
type BracketOption func(*Bracket)

// WithTimeout bounds each attempt
func WithTimeout(d time.Duration) BracketOption {
	return func(b *Bracket) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithRetries sets how many extra attempts a retryable failure gets
func WithRetries(n int) BracketOption {
	return func(b *Bracket) {
		if n >= 0 {
			b.retries = n
		}
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n times it
func WithBackoff(d time.Duration) BracketOption {
	return func(b *Bracket) { b.backoff = d }
}

// WithLogger sets the bracket logger
func WithLogger(logger *zap.Logger) BracketOption {
	return func(b *Bracket) { b.logger = logger }
}

// WithMetrics reports callers waiting for the converter and conversion outcomes
func WithMetrics(waiting prometheus.Gauge, outcomes *prometheus.CounterVec) BracketOption {
	return func(b *Bracket) {
		b.waiting = waiting
		b.outcomes = outcomes
	}
}

// NewBracket wraps conv. A nil resource means there is nothing to set up.
func NewBracket(conv Converter, resource Resource, opts ...BracketOption) *Bracket {
	if resource == nil {
		resource = NopResource{}
	}
	b := &Bracket{
		conv:     conv,
		resource: resource,
		slot:     semaphore.NewWeighted(1),
		timeout:  DefaultTimeout,
		retries:  DefaultRetries,
		backoff:  DefaultBackoff,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Convert converts with bounded retry. Failures are ConversionFailure errors.
func (b *Bracket) Convert(ctx context.Context, docxPath, outDir string) (string, error) {
	for attempt := 0; ; attempt++ {
		pdfPath, err := b.attempt(ctx, docxPath, outDir)
		if err == nil {
			b.observe("success")
			return pdfPath, nil
		}

		var ae *aerrors.AssemblyError
		if !errors.As(err, &ae) {
			ae = aerrors.Wrap(aerrors.ErrorTypeConversionFailure, "", "conversion failed", err)
		}
		if attempt >= b.retries || !ae.IsRetryable() || ctx.Err() != nil {
			b.observe("failure")
			return "", ae
		}

		b.observe("retry")
		delay := b.backoff * time.Duration(attempt+1)
		b.logger.Warn("conversion failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			b.observe("failure")
			return "", aerrors.Wrap(aerrors.ErrorTypeConversionFailure, "",
				"conversion abandoned while waiting to retry", ctx.Err())
		case <-timer.C:
		}
	}
}

// attempt runs one bracketed conversion under its own deadline
func (b *Bracket) attempt(ctx context.Context, docxPath, outDir string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if b.waiting != nil {
		b.waiting.Inc()
	}
	err := b.slot.Acquire(callCtx, 1)
	if b.waiting != nil {
		b.waiting.Dec()
	}
	if err != nil {
		return "", b.failure(ctx, callCtx, "converter is busy", err)
	}
	defer b.slot.Release(1)

	if err := b.resource.Acquire(callCtx); err != nil {
		return "", b.failure(ctx, callCtx, "failed to initialize converter", err)
	}
	defer func() {
		if err := b.resource.Release(); err != nil {
			b.logger.Error("failed to release converter resource", zap.Error(err))
		}
	}()

	start := time.Now()
	pdfPath, err := b.conv.Convert(callCtx, docxPath, outDir)
	if err != nil {
		return "", b.failure(ctx, callCtx, "converter failed", err)
	}
	b.logger.Debug("converted document",
		zap.String("source", docxPath),
		zap.Duration("elapsed", time.Since(start)))
	return pdfPath, nil
}

// failure classifies an attempt error. Running out of the per-attempt
// deadline while the caller is still waiting is a retryable timeout.
func (b *Bracket) failure(parent, call context.Context, msg string, err error) error {
	if parent.Err() == nil && errors.Is(call.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", ErrTimeout, b.timeout)
	}
	return aerrors.Wrap(aerrors.ErrorTypeConversionFailure, "", msg, err)
}

func (b *Bracket) observe(outcome string) {
	if b.outcomes != nil {
		b.outcomes.WithLabelValues(outcome).Inc()
	}
}
