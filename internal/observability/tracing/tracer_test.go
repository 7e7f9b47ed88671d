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

package tracing

import (
	"context"
	"testing"
)

func TestTracer_ShutdownIsAlwaysSafe(t *testing.T) {
	ctx := context.Background()

	// 1. A nil tracer, as left behind by a failed New, shuts down cleanly
	var nilTracer *Tracer
	if err := nilTracer.Shutdown(ctx); err != nil {
		t.Fatalf("nil tracer shutdown: %v", err)
	}

	// 2. A disabled tracer has no provider to flush
	tracer, err := New(ctx, Config{Enabled: false, ServiceName: "hivebase"})
	if err != nil {
		t.Fatalf("new disabled tracer: %v", err)
	}
	if err := tracer.Shutdown(ctx); err != nil {
		t.Fatalf("disabled tracer shutdown: %v", err)
	}

	// 3. Spans on a disabled tracer still start and end
	_, span := tracer.Start(ctx, "noop-span")
	span.End()
}
