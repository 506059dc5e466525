package ledger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

const tracerName = "github.com/rxchain/rxchain/internal/platform/ledger"

// Traced wraps a Gateway with one client span per ledger call.
type Traced struct {
	next   Gateway
	tracer trace.Tracer
}

// NewTraced uses tp, or the global provider when tp is nil.
func NewTraced(next Gateway, tp trace.TracerProvider) *Traced {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Traced{next: next, tracer: tp.Tracer(tracerName)}
}

func (t *Traced) Submit(ctx context.Context, op Operation, args ...string) ([]byte, error) {
	ctx, span := t.start(ctx, "submit", op, args)
	defer span.End()
	result, err := t.next.Submit(ctx, op, args...)
	record(span, err)
	return result, err
}

func (t *Traced) Query(ctx context.Context, op Operation, args ...string) ([]byte, error) {
	ctx, span := t.start(ctx, "query", op, args)
	defer span.End()
	result, err := t.next.Query(ctx, op, args...)
	record(span, err)
	return result, err
}

func (t *Traced) start(ctx context.Context, mode string, op Operation, args []string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("ledger.mode", mode),
		attribute.String("ledger.operation", string(op)),
	}
	if len(args) > 0 {
		attrs = append(attrs, attribute.String("ledger.batch_id", args[0]))
	}
	return t.tracer.Start(ctx, "ledger."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
}

func record(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.kind", string(apperr.KindOf(err))),
		attribute.Bool("error.retryable", apperr.IsRetryable(err)),
	)
	span.SetStatus(codes.Error, apperr.MessageOf(err))
}
