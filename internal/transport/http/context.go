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

package http

import (
	"context"

	"github.com/hivebase/hivebase/internal/auth"
	"github.com/hivebase/hivebase/internal/tenant"
)

type contextKey string

const (
	tenantKey         contextKey = "tenant"
	requestContextKey contextKey = "request_context"
)

// withTenant stores the resolved tenant in the request context.
func withTenant(ctx context.Context, t tenant.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// GetTenant retrieves the resolved tenant from context.
func GetTenant(ctx context.Context) (tenant.Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(tenant.Tenant)
	return t, ok
}

// withRequestContext stores the per-request auth context.
func withRequestContext(ctx context.Context, rc auth.RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// GetRequestContext retrieves the per-request auth context. The zero value
// means the authentication middleware did not run.
func GetRequestContext(ctx context.Context) (auth.RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(auth.RequestContext)
	return rc, ok
}
