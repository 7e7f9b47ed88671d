// Copyright 2026 The Hivebase Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsLogger counts audit events on an OpenTelemetry counter, labeled
// by event type and tenant. Usually combined with SlogLogger through
// Multi.
type MetricsLogger struct {
	counter metric.Int64Counter
}

// NewMetricsLogger creates a metrics-backed audit logger.
func NewMetricsLogger(meter metric.Meter) (*MetricsLogger, error) {
	counter, err := meter.Int64Counter(
		"audit_events_total",
		metric.WithDescription("Audit events by type and tenant"),
	)
	if err != nil {
		return nil, err
	}
	return &MetricsLogger{counter: counter}, nil
}

// Log implements Logger.
func (l *MetricsLogger) Log(ctx context.Context, event Event) {
	l.counter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("audit_type", event.Type),
			attribute.String("tenant_id", event.TenantID),
		),
	)
}

// Multi fans one audit event out to several loggers.
type Multi []Logger

// Log implements Logger.
func (m Multi) Log(ctx context.Context, event Event) {
	for _, l := range m {
		l.Log(ctx, event)
	}
}
