package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/KOMKZ/yogan-shield/breaker"
	"github.com/KOMKZ/yogan-shield/logger"
)

// exportBreakerName names the breaker in logs and stats
const exportBreakerName = "telemetry_exporter"

// guardedExporter sends spans to primary until the breaker opens, then to fallback
type guardedExporter struct {
	breaker  *breaker.CircuitBreaker
	primary  trace.SpanExporter
	fallback trace.SpanExporter
}

func newGuardedExporter(cfg breaker.Config, log *logger.CtxZapLogger, primary, fallback trace.SpanExporter) (*guardedExporter, error) {
	cb, err := breaker.New(exportBreakerName, cfg, breaker.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return &guardedExporter{breaker: cb, primary: primary, fallback: fallback}, nil
}

// ExportSpans implements trace.SpanExporter
func (e *guardedExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	_, err := e.breaker.Execute(ctx,
		func(ctx context.Context) (any, error) {
			return nil, e.primary.ExportSpans(ctx, spans)
		},
		func(ctx context.Context, _ error) (any, error) {
			return nil, e.fallback.ExportSpans(ctx, spans)
		},
	)
	return err
}

// Shutdown implements trace.SpanExporter
func (e *guardedExporter) Shutdown(ctx context.Context) error {
	err := e.primary.Shutdown(ctx)
	if fbErr := e.fallback.Shutdown(ctx); err == nil {
		err = fbErr
	}
	return err
}
