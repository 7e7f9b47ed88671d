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

// Package auth turns raw request authorization data into a validated
// Principal and owns the session lifecycle around it.
package auth

import (
	"github.com/hivebase/hivebase/internal/credential"
	"github.com/hivebase/hivebase/internal/permission"
)

// Principal is the authenticated identity of one request. The zero value
// is not valid; use Guest for unauthenticated requests.
type Principal struct {
	ID       string
	TenantID string
	Username string
	GroupID  string
	Roles    []string
	Level    credential.Level

	// SessionToken is the bearer token that authenticated this request,
	// empty for basic-auth and guest principals.
	SessionToken string

	cred *credential.Credential
}

// Guest is the principal of an unauthenticated request in a tenant.
func Guest(tenantID string) Principal {
	return Principal{
		TenantID: tenantID,
		Username: credential.RoleGuest,
		Roles:    []string{credential.RoleGuest},
		Level:    credential.LevelGuest,
	}
}

// Superdog is the synthetic platform-operator principal. It is valid
// across all tenants and backed by no stored credential.
func Superdog(tenantID, sessionToken string) Principal {
	return Principal{
		TenantID:     tenantID,
		Username:     credential.RoleSuperdog,
		Roles:        []string{credential.RoleSuperdog},
		Level:        credential.LevelSuperdog,
		SessionToken: sessionToken,
	}
}

func fromCredential(c credential.Credential, sessionToken string) Principal {
	return Principal{
		ID:           c.ID,
		TenantID:     c.TenantID,
		Username:     c.Username,
		GroupID:      c.GroupID,
		Roles:        append([]string(nil), c.Roles...),
		Level:        c.Level(),
		SessionToken: sessionToken,
		cred:         &c,
	}
}

// IsGuest reports whether the principal is unauthenticated.
func (p Principal) IsGuest() bool { return p.Level == credential.LevelGuest && p.cred == nil }

// IsSuperdog reports whether the principal is the platform operator.
func (p Principal) IsSuperdog() bool { return p.Level == credential.LevelSuperdog }

// AtLeast reports whether the principal's level meets the minimum.
func (p Principal) AtLeast(min credential.Level) bool { return p.Level.AtLeast(min) }

// CanManage reports whether the principal may act on the target
// credential. Acting on oneself is always allowed.
func (p Principal) CanManage(target credential.Credential) bool {
	if p.ID != "" && p.ID == target.ID {
		return true
	}
	return p.Level.CanManage(target.Level())
}

// Credential returns the stored credential behind the principal, if any.
func (p Principal) Credential() (credential.Credential, bool) {
	if p.cred == nil {
		return credential.Credential{}, false
	}
	return *p.cred, true
}

// Subject projects the principal into the permission engine's view.
func (p Principal) Subject() permission.Subject {
	return permission.Subject{
		ID:      p.ID,
		GroupID: p.GroupID,
		Roles:   p.Roles,
		Level:   p.Level,
	}
}
