// Package telemetry holds the service's OpenTelemetry instrumentation.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics exposes the auth operation counters.
type Metrics struct {
	authOps metric.Int64Counter
}

// NewMetrics registers the instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	authOps, err := meter.Int64Counter(
		"auth.operations",
		metric.WithDescription("Count of auth operations by operation and outcome."),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{authOps: authOps}, nil
}

// RecordAuthOperation counts one auth operation. operation is one of
// register, login, refresh, logout; outcome is success or failure.
func (m *Metrics) RecordAuthOperation(ctx context.Context, operation, outcome string) {
	m.authOps.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}
