package tracing

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TracingEngine wires an OpenTelemetry tracer provider for connection and
// stream level spans.
type TracingEngine struct {
	tracer     oteltrace.Tracer
	config     TracingConfig
	provider   *trace.TracerProvider
	propagator propagation.TextMapPropagator
	exporter   trace.SpanExporter
	processor  trace.SpanProcessor
	sampler    trace.Sampler
}

type TracingConfig struct {
	ServiceName        string
	ServiceVersion     string
	Environment        string
	ExporterType       ExporterType
	JaegerEndpoint     string
	OTLPEndpoint       string
	SamplingRate       float64
	MaxSpansPerTrace   int
	ResourceAttributes map[string]string
	SpanProcessors     []SpanProcessorConfig
	BatchConfig        BatchConfig
}

type ExporterType string

const (
	ExporterStdout  ExporterType = "stdout"
	ExporterConsole ExporterType = "console"
)

type SpanProcessorConfig struct {
	Type          string
	BatchSize     int
	Timeout       time.Duration
	ExportTimeout time.Duration
}

type BatchConfig struct {
	BatchTimeout     time.Duration
	ExportTimeout    time.Duration
	MaxBatchSize     int
	MaxQueueSize     int
	BlockOnQueueFull bool
}

// ConnectionSpan tracks a single QUIC or h2c connection's lifetime.
type ConnectionSpan struct {
	span      oteltrace.Span
	context   context.Context
	startTime time.Time
	connID    string
}

// StreamSpan tracks a single stream nested under a connection's span.
type StreamSpan struct {
	span      oteltrace.Span
	context   context.Context
	startTime time.Time
	streamID  uint64
}

func NewTracingEngine(config TracingConfig) (*TracingEngine, error) {
	te := &TracingEngine{
		config: config,
	}

	if err := te.initializeTracer(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return te, nil
}

func (te *TracingEngine) initializeTracer() error {
	exporter, err := te.createExporter()
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}
	te.exporter = exporter

	processor := te.createSpanProcessor()
	te.processor = processor

	sampler := te.createSampler()
	te.sampler = sampler

	res := te.createResource()

	tp := trace.NewTracerProvider(
		trace.WithSpanProcessor(processor),
		trace.WithSampler(sampler),
		trace.WithResource(res),
	)

	te.provider = tp
	otel.SetTracerProvider(tp)

	te.propagator = propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(te.propagator)

	te.tracer = tp.Tracer(
		te.config.ServiceName,
		oteltrace.WithInstrumentationVersion(te.config.ServiceVersion),
	)

	return nil
}

func (te *TracingEngine) createExporter() (trace.SpanExporter, error) {
	switch te.config.ExporterType {
	// case ExporterJaeger:  // Deprecated - Jaeger exporter removed, use OTLP exporter instead
	//	return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(te.config.JaegerEndpoint)))

	// case ExporterOTLP:  // Temporarily disabled due to genproto conflicts
	//	return otlptracehttp.New(
	//		context.Background(),
	//		otlptracehttp.WithEndpoint(te.config.OTLPEndpoint),
	//	)

	case ExporterStdout, ExporterConsole:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())

	default:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
}

func (te *TracingEngine) createSpanProcessor() trace.SpanProcessor {
	if len(te.config.SpanProcessors) > 0 {
		var processors []trace.SpanProcessor
		for _, config := range te.config.SpanProcessors {
			switch config.Type {
			case "batch":
				processors = append(processors, trace.NewBatchSpanProcessor(
					te.exporter,
					trace.WithBatchTimeout(config.Timeout),
					trace.WithExportTimeout(config.ExportTimeout),
				))
			case "simple":
				processors = append(processors, trace.NewSimpleSpanProcessor(te.exporter))
			}
		}

		if len(processors) == 1 {
			return processors[0]
		}

		return trace.NewBatchSpanProcessor(te.exporter)
	}

	if te.config.BatchConfig.BatchTimeout > 0 {
		opts := []trace.BatchSpanProcessorOption{
			trace.WithBatchTimeout(te.config.BatchConfig.BatchTimeout),
			trace.WithExportTimeout(te.config.BatchConfig.ExportTimeout),
			trace.WithMaxExportBatchSize(te.config.BatchConfig.MaxBatchSize),
			trace.WithMaxQueueSize(te.config.BatchConfig.MaxQueueSize),
		}
		if te.config.BatchConfig.BlockOnQueueFull {
			opts = append(opts, trace.WithBlocking())
		}
		return trace.NewBatchSpanProcessor(te.exporter, opts...)
	}

	return trace.NewBatchSpanProcessor(te.exporter)
}

func (te *TracingEngine) createSampler() trace.Sampler {
	if te.config.SamplingRate <= 0 {
		return trace.NeverSample()
	}
	if te.config.SamplingRate >= 1.0 {
		return trace.AlwaysSample()
	}
	return trace.TraceIDRatioBased(te.config.SamplingRate)
}

func (te *TracingEngine) createResource() *resource.Resource {
	attributes := []attribute.KeyValue{
		semconv.ServiceNameKey.String(te.config.ServiceName),
		semconv.ServiceVersionKey.String(te.config.ServiceVersion),
		attribute.String("environment", te.config.Environment),
	}

	for key, value := range te.config.ResourceAttributes {
		attributes = append(attributes, attribute.String(key, value))
	}

	return resource.NewWithAttributes(
		semconv.SchemaURL,
		attributes...,
	)
}

// StartConnectionSpan begins a span for an accepted or dialed connection.
func (te *TracingEngine) StartConnectionSpan(ctx context.Context, connID string, remote net.Addr, variant string) *ConnectionSpan {
	spanCtx, span := te.tracer.Start(ctx, "connection",
		oteltrace.WithSpanKind(oteltrace.SpanKindServer),
		oteltrace.WithTimestamp(time.Now()),
	)

	span.SetAttributes(
		attribute.String("connection.id", connID),
		attribute.String("connection.variant", variant),
	)
	if remote != nil {
		span.SetAttributes(attribute.String("connection.remote", remote.String()))
	}

	return &ConnectionSpan{
		span:      span,
		context:   spanCtx,
		startTime: time.Now(),
		connID:    connID,
	}
}

// StartStreamSpan begins a span for a stream nested under an open connection.
func (te *TracingEngine) StartStreamSpan(cs *ConnectionSpan, streamID uint64, direction string) *StreamSpan {
	spanCtx, span := te.tracer.Start(cs.context, "stream",
		oteltrace.WithSpanKind(oteltrace.SpanKindInternal),
		oteltrace.WithTimestamp(time.Now()),
	)

	span.SetAttributes(
		attribute.Int64("stream.id", int64(streamID)),
		attribute.String("stream.direction", direction),
		attribute.String("connection.id", cs.connID),
	)

	return &StreamSpan{
		span:      span,
		context:   spanCtx,
		startTime: time.Now(),
		streamID:  streamID,
	}
}

// FinishConnectionSpan closes a connection span, recording its outcome.
func (te *TracingEngine) FinishConnectionSpan(cs *ConnectionSpan, outcome string, err error) {
	duration := time.Since(cs.startTime)
	cs.span.SetAttributes(
		attribute.String("connection.outcome", outcome),
		attribute.Int64("duration_ms", duration.Milliseconds()),
	)

	if err != nil {
		te.setErrorAttributes(cs.span, err)
		cs.span.SetStatus(codes.Error, err.Error())
	} else {
		cs.span.SetStatus(codes.Ok, "")
	}

	cs.span.End(oteltrace.WithTimestamp(time.Now()))
}

// FinishStreamSpan closes a stream span, recording the number of bytes moved
// in each direction.
func (te *TracingEngine) FinishStreamSpan(ss *StreamSpan, bytesSent, bytesReceived int64, err error) {
	duration := time.Since(ss.startTime)
	ss.span.SetAttributes(
		attribute.Int64("stream.bytes_sent", bytesSent),
		attribute.Int64("stream.bytes_received", bytesReceived),
		attribute.Int64("duration_ms", duration.Milliseconds()),
	)

	if err != nil {
		te.setErrorAttributes(ss.span, err)
		ss.span.SetStatus(codes.Error, err.Error())
	} else {
		ss.span.SetStatus(codes.Ok, "")
	}

	ss.span.End(oteltrace.WithTimestamp(time.Now()))
}

func (te *TracingEngine) setErrorAttributes(span oteltrace.Span, err error) {
	span.SetAttributes(
		attribute.String("error.type", fmt.Sprintf("%T", err)),
		attribute.String("error.message", err.Error()),
		attribute.Bool("error", true),
	)
}

func (te *TracingEngine) InjectTraceHeaders(ctx context.Context, carrier propagation.TextMapCarrier) {
	te.propagator.Inject(ctx, carrier)
}

func (te *TracingEngine) ExtractTraceContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return te.propagator.Extract(ctx, carrier)
}

func (te *TracingEngine) CreateChildSpan(ctx context.Context, operationName string) (context.Context, oteltrace.Span) {
	return te.tracer.Start(ctx, operationName,
		oteltrace.WithSpanKind(oteltrace.SpanKindInternal),
	)
}

func (te *TracingEngine) RecordEvent(span oteltrace.Span, name string, attributes ...attribute.KeyValue) {
	span.AddEvent(name, oteltrace.WithAttributes(attributes...))
}

func (te *TracingEngine) AddSpanAttribute(span oteltrace.Span, key string, value interface{}) {
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	default:
		span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (te *TracingEngine) GetTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

func (te *TracingEngine) GetSpanID(ctx context.Context) string {
	spanCtx := oteltrace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.SpanID().String()
	}
	return ""
}

func (te *TracingEngine) IsTracing(ctx context.Context) bool {
	spanCtx := oteltrace.SpanContextFromContext(ctx)
	return spanCtx.IsValid()
}

func (te *TracingEngine) Shutdown(ctx context.Context) error {
	if te.provider != nil {
		return te.provider.Shutdown(ctx)
	}
	return nil
}

func (te *TracingEngine) ForceFlush(ctx context.Context) error {
	if te.provider != nil {
		return te.provider.ForceFlush(ctx)
	}
	return nil
}

func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:      "march-quicd",
		ServiceVersion:   "1.0.0",
		Environment:      "production",
		ExporterType:     ExporterStdout,
		SamplingRate:     0.1,
		MaxSpansPerTrace: 1000,
		ResourceAttributes: map[string]string{
			"transport.protocol": "quic",
		},
		BatchConfig: BatchConfig{
			BatchTimeout:     5 * time.Second,
			ExportTimeout:    10 * time.Second,
			MaxBatchSize:     512,
			MaxQueueSize:     2048,
			BlockOnQueueFull: false,
		},
	}
}

func DevelopmentTracingConfig() TracingConfig {
	config := DefaultTracingConfig()
	config.Environment = "development"
	config.ExporterType = ExporterStdout
	config.SamplingRate = 1.0
	return config
}

func ProductionTracingConfig() TracingConfig {
	config := DefaultTracingConfig()
	config.Environment = "production"
	config.SamplingRate = 0.05
	config.BatchConfig.MaxBatchSize = 1024
	config.BatchConfig.MaxQueueSize = 4096
	return config
}
