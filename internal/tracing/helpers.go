package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StoreOperation represents the kind of collection store operation being traced.
type StoreOperation string

const (
	// StoreOperationLoad reads a whole collection.
	StoreOperationLoad StoreOperation = "load"
	// StoreOperationReplace overwrites a whole collection.
	StoreOperationReplace StoreOperation = "replace"
	// StoreOperationUpdate is an exclusive read-modify-write.
	StoreOperationUpdate StoreOperation = "update"
)

// StartStoreSpan creates a new span for a collection store operation.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartStoreSpan(ctx, "file", "diaries", tracing.StoreOperationUpdate)
//	defer func() { endSpan(err) }()
func StartStoreSpan(ctx context.Context, backend, collection string, operation StoreOperation) (context.Context, func(error)) {
	tracer := otel.Tracer("travelog/collection")

	spanName := "collection." + string(operation)
	if collection != "" {
		spanName = spanName + " " + collection
	}

	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("collection.backend", backend),
			attribute.String("collection.operation", string(operation)),
		),
	)

	if collection != "" {
		span.SetAttributes(attribute.String("collection.name", collection))
	}

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer("travelog")

	ctx, span := tracer.Start(ctx, name)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
