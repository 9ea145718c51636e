package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/clover/internal/tracing/exporters"
)

// Setup configures the global tracer provider. When no OTLP endpoint is
// configured a no-op console exporter is installed so span creation stays
// cheap in development. The returned shutdown function flushes pending spans.
func Setup(ctx context.Context, serviceName, otlpEndpoint, otlpProtocol string) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	if otlpEndpoint != "" {
		cfg := exporters.DefaultOTLPConfig()
		cfg.Endpoint = otlpEndpoint
		if otlpProtocol != "" {
			cfg.Protocol = otlpProtocol
		}
		otlp, err := exporters.NewOTLPExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		exporter = otlp
	} else {
		exporter = &exporters.ConsoleExporter{}
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	SetTracer(provider.Tracer(serviceName))

	return provider.Shutdown, nil
}
