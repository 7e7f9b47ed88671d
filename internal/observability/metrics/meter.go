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

package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config controls metric collection. Disabled metering still hands out
// a working no-op meter so instrument creation never fails upstream.
type Config struct {
	Enabled bool
}

// Meter wraps the hivebase meter. Instruments are created by the
// consumers that record on them, such as the audit metrics logger.
type Meter struct {
	meter metric.Meter
}

// New resolves the meter from the global meter provider. Exporter
// configuration belongs to the process that installs the provider.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{meter: otel.Meter("noop")}, nil
	}
	return &Meter{meter: otel.Meter(serviceName)}, nil
}

// GetMeter returns the underlying meter.
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}
