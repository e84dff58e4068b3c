// Package otel exposes devcrew metrics through an OpenTelemetry meter provider
// backed by a Prometheus exporter.
package otel

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelglobal "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "github.com/ankittk/devcrew"

// Resource describes the process in every exported series.
type Resource struct {
	ServiceName string
	Version     string
	Environment string
}

func (r Resource) attributes() []attribute.KeyValue {
	name := r.ServiceName
	if name == "" {
		name = "devcrew"
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if r.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(r.Version))
	}
	if r.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(r.Environment))
	}
	return attrs
}

// Provider is an installed meter provider and the handler that scrapes it.
type Provider struct {
	Handler  http.Handler
	provider *sdkmetric.MeterProvider
}

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// InitMeterProvider installs a global MeterProvider exporting to a private
// Prometheus registry. Call once at daemon startup; on error the caller
// serves the default registry instead.
func InitMeterProvider(ctx context.Context, res Resource) (*Provider, error) {
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	r, err := resource.New(ctx, resource.WithAttributes(res.attributes()...))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(r),
	)
	otelglobal.SetMeterProvider(provider)
	return &Provider{
		Handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}),
		provider: provider,
	}, nil
}

// Meter returns the devcrew meter from the global provider.
func Meter() metric.Meter {
	return otelglobal.Meter(meterName)
}

var (
	AttrStatus  = attribute.Key("status")
	AttrAgent   = attribute.Key("agent")
	AttrEvent   = attribute.Key("event")
	AttrBackend = attribute.Key("backend")
	AttrOutcome = attribute.Key("outcome")
	AttrType    = attribute.Key("type")
)
