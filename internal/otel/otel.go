// Package otel bridges runnable lifecycle events to OpenTelemetry traces.
// It subscribes to the global event bus and opens one span per run, batch or
// stream, keyed by the run ID in the context.
package otel

import (
	"context"
	"sync"

	"github.com/billvsme/langchain/internal/eventbus"
	"github.com/billvsme/langchain/internal/events"
	"github.com/billvsme/langchain/internal/runid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// Setup configures the OTLP trace exporter and attaches the event
// subscribers. If endpoint is empty, no telemetry is configured and the
// returned shutdown is a no-op.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := &subscriber{tracer: otel.Tracer("langchain")}
	sub.register()

	return tp.Shutdown, nil
}

type subscriber struct {
	tracer      trace.Tracer
	runSpans    sync.Map // run id -> trace.Span
	batchSpans  sync.Map
	streamSpans sync.Map
	remoteSpans sync.Map
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.RunStart) {
		rid, _ := runid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "runnable.invoke")
		span.SetAttributes(
			attribute.String("runnable.kind", e.Kind),
			attribute.String("runnable.run_name", e.RunName),
		)
		if len(e.Tags) > 0 {
			span.SetAttributes(attribute.StringSlice("runnable.tags", e.Tags))
		}
		s.runSpans.Store(rid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.RunFinish) {
		rid, _ := runid.FromContext(ctx)
		v, ok := s.runSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.BatchStart) {
		rid, _ := runid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "runnable.batch")
		span.SetAttributes(
			attribute.String("runnable.kind", e.Kind),
			attribute.Int("runnable.batch.size", e.Size),
			attribute.Bool("runnable.batch.fast_path", e.FastPath),
			attribute.Bool("runnable.batch.async", e.Async),
		)
		s.batchSpans.Store(rid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.BatchFinish) {
		rid, _ := runid.FromContext(ctx)
		v, ok := s.batchSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("runnable.batch.failures", e.Failures))
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.StreamStart) {
		rid, _ := runid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "runnable.stream")
		span.SetAttributes(attribute.String("runnable.kind", e.Kind))
		s.streamSpans.Store(rid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.StreamFinish) {
		rid, _ := runid.FromContext(ctx)
		v, ok := s.streamSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("runnable.stream.chunks", e.Chunks))
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.RemoteCallStart) {
		rid, _ := runid.FromContext(ctx)
		parent := ctx
		if v, ok := s.runSpans.Load(rid); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		} else if v, ok := s.batchSpans.Load(rid); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "grpc.client")
		span.SetAttributes(
			semconv.RPCServiceKey.String(e.Service),
			semconv.RPCMethodKey.String(e.Method),
			attribute.String("net.peer.name", e.Target),
		)
		s.remoteSpans.Store(rid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.RemoteCallFinish) {
		rid, _ := runid.FromContext(ctx)
		v, ok := s.remoteSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.String("grpc.code", e.Code.String()))
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})
}
