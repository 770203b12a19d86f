// Package tracing wires OpenTelemetry spans around store mutations, sync
// push/pull round-trips, and indexing ingest (SPEC_FULL.md §2.1's ambient
// observability layer, which no Non-goal excludes). Grounded on the
// teacher's internal/tracing/otelexport/exporter.go OTLP-exporter setup,
// adapted from its Postgres-backed TraceData/SpanData batching model
// (irrelevant here — Engram has no equivalent trace store) down to a
// direct go.opentelemetry.io/otel/trace.Tracer, since there is nothing
// for a Collector to batch into locally.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = otel.Tracer("engram")

// Init configures the global TracerProvider to export to the given OTLP
// gRPC endpoint. If endpoint is empty, tracing stays a no-op (the
// default otel.Tracer) and Init returns a no-op shutdown function.
func Init(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("engram"),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(100),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer("engram")

	slog.Info("tracing: otlp exporter configured", "endpoint", endpoint)
	return tp.Shutdown, nil
}

// StartSpan begins a span named op (e.g. "memory.create", "sync.push"),
// returning a context carrying it and an End func that records err (if
// any) and closes the span.
func StartSpan(ctx context.Context, op string) (context.Context, func(err error)) {
	spanCtx, span := tracer.Start(ctx, op)
	return spanCtx, func(err error) {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
