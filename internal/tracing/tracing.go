package tracing

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// ServiceName - имя сервиса в трейсах.
const ServiceName = "order-service"

// Provider управляет жизненным циклом TracerProvider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup настраивает глобальный TracerProvider с экспортом в Jaeger.
// Пустой endpoint оставляет noop-провайдер, propagator устанавливается всегда.
func Setup(endpoint, version string) (*Provider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if endpoint == "" {
		log.WithField("component", "tracing").Info("jaeger endpoint is not configured, tracing disabled")
		return &Provider{}, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(version),
		)),
	)
	otel.SetTracerProvider(tp)

	log.WithFields(log.Fields{
		"component": "tracing",
		"endpoint":  endpoint,
	}).Info("jaeger tracing enabled")

	return &Provider{tp: tp}, nil
}

// Enabled сообщает, настроен ли экспорт.
func (p *Provider) Enabled() bool {
	return p != nil && p.tp != nil
}

// Shutdown сбрасывает накопленные спаны и останавливает экспорт.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
