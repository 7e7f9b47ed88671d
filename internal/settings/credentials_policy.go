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

package settings

import (
	"context"

	"github.com/hivebase/hivebase/internal/credential"
)

// CredentialsSettingsName is the settings document holding a tenant's
// credentials policy.
const CredentialsSettingsName = "credentials"

// RegisterCredentialsPolicy registers the credentials policy settings
// type. The document stays admin only.
func RegisterCredentialsPolicy(r *Registry) {
	r.Register(CredentialsSettingsName, func() any { return new(credential.Policy) }, nil)
}

// CredentialsPolicySource resolves tenant credentials policies from stored
// settings, falling back to platform defaults for tenants that never
// stored their own. Stored documents override defaults wholesale, field by
// field through JSON merge onto the default value.
type CredentialsPolicySource struct {
	service  *Service
	defaults credential.Policy
}

// NewCredentialsPolicySource creates a policy source over the settings
// service.
func NewCredentialsPolicySource(service *Service, defaults credential.Policy) *CredentialsPolicySource {
	return &CredentialsPolicySource{service: service, defaults: defaults}
}

// CredentialsPolicy implements credential.PolicySource.
func (s *CredentialsPolicySource) CredentialsPolicy(ctx context.Context, tenantID string) (credential.Policy, error) {
	policy := s.defaults
	if _, err := s.service.Load(ctx, tenantID, CredentialsSettingsName, &policy); err != nil {
		return credential.Policy{}, err
	}
	return policy, nil
}
