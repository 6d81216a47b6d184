// Package telemetry reports sync runs and reconcile passes to Sentry.
// Every helper is safe to call when Sentry was never initialized.
package telemetry

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	serverName   = "witsync"
	flushTimeout = 5 * time.Second
)

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// unsampledTransactions are polled endpoints that would drown real traffic.
var unsampledTransactions = map[string]bool{
	"GET /health":    true,
	"GET /watermark": true,
}

// Init configures the global Sentry client. The returned func flushes
// buffered events. An empty DSN disables reporting.
func Init(cfg Config) (func(), error) {
	noop := func() {}
	if cfg.DSN == "" {
		return noop, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		ServerName:       serverName,
		Debug:            cfg.Debug,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		TracesSampler:    sampler(cfg.TracesSampleRate),
	})
	if err != nil {
		slog.Warn("sentry disabled", "error", err)
		return noop, nil
	}

	slog.Info("sentry initialized", "environment", cfg.Environment, "sample_rate", cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if unsampledTransactions[ctx.Span.Name] {
			return 0
		}
		// Children inherit the sampling decision of their transaction.
		if ctx.Span.ParentSpanID != (sentry.SpanID{}) {
			if ctx.Span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

// SpanAttributes tags a span with the sync entities it covers.
type SpanAttributes struct {
	RunID      string
	WorkItemID int
	Mode       string
	Operation  string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	if a.RunID != "" {
		span.SetTag("run_id", a.RunID)
	}
	if a.WorkItemID != 0 {
		span.SetTag("work_item_id", strconv.Itoa(a.WorkItemID))
	}
	if a.Mode != "" {
		span.SetTag("reconcile_mode", a.Mode)
	}
	if a.Operation != "" {
		span.Op = a.Operation
	}
}

// Span is a started sentry span. The zero value is inert.
type Span struct {
	inner *sentry.Span
}

// StartSpan opens a child of the span carried by ctx, or a new transaction
// when there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetData records a counter or value on the span.
func (s *Span) SetData(key string, value any) {
	if s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// SetError marks the span failed and reports err on the span's hub.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

// CaptureError reports err on the hub of ctx, falling back to the global hub.
func CaptureError(ctx context.Context, err error) {
	hubFor(ctx).CaptureException(err)
}

// AddBreadcrumb records a trail entry that is attached to the next event.
func AddBreadcrumb(ctx context.Context, category, message string) {
	hubFor(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}, nil)
}

func hubFor(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}
