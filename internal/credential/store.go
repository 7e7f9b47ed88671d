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

package credential

import (
	"context"
	"time"
)

// Store persists credentials for all tenants. Every lookup is tenant
// scoped. Update is the single compare-and-swap point: a version mismatch
// surfaces as a Conflict error kind and the caller re-reads and retries.
//
// GetByUsername and GetByToken must fail with an integrity-violation error
// if more than one credential matches, and with not-found if none does.
type Store interface {
	Create(ctx context.Context, c Credential) (Credential, error)
	GetByID(ctx context.Context, tenantID, id string) (Credential, error)
	GetByUsername(ctx context.Context, tenantID, username string) (Credential, error)
	GetByToken(ctx context.Context, tenantID, token string) (Credential, error)
	Update(ctx context.Context, c Credential, expectedVersion int64) (Credential, error)
	Delete(ctx context.Context, tenantID, id string) error
	CountSuperadmins(ctx context.Context, tenantID string) (int, error)
	List(ctx context.Context, tenantID string, from, size int) ([]Credential, int, error)
}

// Policy is the per-tenant credentials policy. It lives in the tenant's
// settings document, so the durations are plain integers on the wire. The
// zero value is unusable, use DefaultPolicy.
type Policy struct {
	GuestSignUpEnabled bool `json:"guestSignUpEnabled"`

	UsernameRegex string `json:"usernameRegex,omitempty"`
	PasswordRegex string `json:"passwordRegex,omitempty"`

	SessionMaximumLifetimeSeconds int64 `json:"sessionMaximumLifetime"`
	SessionsSizeMax               int   `json:"sessionsSizeMax"`

	MaximumInvalidChallenges          int   `json:"maximumInvalidChallenges"`
	ResetInvalidChallengesAfterMinute int64 `json:"resetInvalidChallengesAfterMinutes"`
}

// SessionMaximumLifetime returns the maximum session lifetime as a
// duration.
func (p Policy) SessionMaximumLifetime() time.Duration {
	return time.Duration(p.SessionMaximumLifetimeSeconds) * time.Second
}

// InvalidChallengeResetWindow returns the lockout counter reset window as
// a duration.
func (p Policy) InvalidChallengeResetWindow() time.Duration {
	return time.Duration(p.ResetInvalidChallengesAfterMinute) * time.Minute
}

// DefaultPolicy returns the policy applied to tenants that never stored
// their own.
func DefaultPolicy() Policy {
	return Policy{
		GuestSignUpEnabled:                false,
		UsernameRegex:                     `^[a-zA-Z0-9_.@-]{3,}$`,
		PasswordRegex:                     `^.{6,}$`,
		SessionMaximumLifetimeSeconds:     24 * 60 * 60,
		SessionsSizeMax:                   10,
		MaximumInvalidChallenges:          0,
		ResetInvalidChallengesAfterMinute: 60,
	}
}

// PolicySource resolves the credentials policy for a tenant. The settings
// service implements it; tests use a fixed policy.
type PolicySource interface {
	CredentialsPolicy(ctx context.Context, tenantID string) (Policy, error)
}

// StaticPolicySource returns the same policy for every tenant.
type StaticPolicySource Policy

// CredentialsPolicy implements PolicySource.
func (s StaticPolicySource) CredentialsPolicy(ctx context.Context, tenantID string) (Policy, error) {
	return Policy(s), nil
}
