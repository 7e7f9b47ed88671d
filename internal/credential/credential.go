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

// Package credential models one principal's identity within one tenant:
// its roles, password material, lockout bookkeeping, and the bounded list
// of bearer sessions issued against it.
package credential

import (
	"time"
)

// Credential is an immutable value: every mutating operation returns a new
// value and persistence is the only place the version is checked. Two
// requests racing on the same credential resolve through the store's
// compare-and-swap, not through in-place mutation.
type Credential struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`

	Enabled      bool       `json:"enabled"`
	EnableAfter  *time.Time `json:"enableAfter,omitempty"`
	DisableAfter *time.Time `json:"disableAfter,omitempty"`

	Roles   []string          `json:"roles"`
	GroupID string            `json:"groupId,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`

	PasswordMustChange     bool       `json:"passwordMustChange"`
	InvalidChallenges      int        `json:"invalidChallenges"`
	LastInvalidChallengeAt *time.Time `json:"lastInvalidChallengeAt,omitempty"`

	// Never serialized to clients; persisted by the store only.
	PasswordHash      string    `json:"-"`
	PasswordResetCode string    `json:"-"`
	Sessions          []Session `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int64     `json:"version"`
}

// New returns an enabled credential draft for a tenant. The store assigns
// the id and version on create.
func New(tenantID, username string) Credential {
	return Credential{
		TenantID: tenantID,
		Username: username,
		Enabled:  true,
	}
}

// Clone deep-copies the credential. Stores use it to keep persisted state
// from aliasing caller-held values.
func (c Credential) Clone() Credential { return c.clone() }

// clone deep-copies the mutable fields so values derived from a credential
// never alias its slices or maps.
func (c Credential) clone() Credential {
	out := c
	if c.Roles != nil {
		out.Roles = append([]string(nil), c.Roles...)
	}
	if c.Sessions != nil {
		out.Sessions = append([]Session(nil), c.Sessions...)
	}
	if c.Tags != nil {
		out.Tags = make(map[string]string, len(c.Tags))
		for k, v := range c.Tags {
			out.Tags[k] = v
		}
	}
	if c.EnableAfter != nil {
		t := *c.EnableAfter
		out.EnableAfter = &t
	}
	if c.DisableAfter != nil {
		t := *c.DisableAfter
		out.DisableAfter = &t
	}
	if c.LastInvalidChallengeAt != nil {
		t := *c.LastInvalidChallengeAt
		out.LastInvalidChallengeAt = &t
	}
	return out
}

//
// Roles and level
//

// Level returns the highest built-in level among the credential's roles.
func (c Credential) Level() Level {
	level := LevelGuest
	for _, role := range c.Roles {
		if l := LevelOfRole(role); l > level {
			level = l
		}
	}
	return level
}

// HasRole reports whether the credential holds the named role.
func (c Credential) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WithRole returns a credential holding the role; adding a role it already
// holds is a no-op.
func (c Credential) WithRole(role string) Credential {
	if c.HasRole(role) {
		return c
	}
	out := c.clone()
	out.Roles = append(out.Roles, role)
	return out
}

// WithoutRole returns a credential without the role.
func (c Credential) WithoutRole(role string) Credential {
	out := c.clone()
	roles := out.Roles[:0]
	for _, r := range out.Roles {
		if r != role {
			roles = append(roles, r)
		}
	}
	out.Roles = roles
	return out
}

//
// Enable and schedule
//

// Enable returns an enabled credential with the lockout bookkeeping wiped,
// so a locked-out account re-enabled by an admin starts from a clean slate.
func (c Credential) Enable() Credential {
	out := c.clone()
	out.Enabled = true
	out.InvalidChallenges = 0
	out.LastInvalidChallengeAt = nil
	return out
}

// Disable returns a disabled credential.
func (c Credential) Disable() Credential {
	out := c.clone()
	out.Enabled = false
	return out
}

// WithSchedule returns a credential with new enable-after/disable-after
// bounds. Nil clears a bound.
func (c Credential) WithSchedule(enableAfter, disableAfter *time.Time) Credential {
	out := c.clone()
	out.EnableAfter = enableAfter
	out.DisableAfter = disableAfter
	return out
}

// EnabledAt reports whether the credential is usable at the given instant,
// combining the enabled flag with the enable/disable schedule window.
func (c Credential) EnabledAt(now time.Time) bool {
	if !c.Enabled {
		return false
	}
	switch {
	case c.EnableAfter == nil && c.DisableAfter == nil:
		return true
	case c.EnableAfter == nil:
		return now.Before(*c.DisableAfter)
	case c.DisableAfter == nil:
		return c.EnableAfter.Before(now)
	case c.DisableAfter.Before(*c.EnableAfter):
		// The disable window already closed; enabled again after EnableAfter.
		return c.EnableAfter.Before(now)
	default:
		return c.EnableAfter.Before(now) && now.Before(*c.DisableAfter)
	}
}

//
// Password material
//

// WithPasswordHash installs a freshly hashed password. Changing the password
// revokes everything issued against the old one: reset code, sessions, and
// lockout state.
func (c Credential) WithPasswordHash(hash string) Credential {
	out := c.clone()
	out.PasswordHash = hash
	out.PasswordResetCode = ""
	out.Sessions = nil
	out.InvalidChallenges = 0
	out.LastInvalidChallengeAt = nil
	out.PasswordMustChange = false
	return out
}

// WithResetCode clears the password and installs a single-use reset code.
func (c Credential) WithResetCode(code string) Credential {
	out := c.clone()
	out.PasswordHash = ""
	out.PasswordResetCode = code
	out.Sessions = nil
	out.InvalidChallenges = 0
	out.LastInvalidChallengeAt = nil
	return out
}

// WithPasswordMustChange flags the credential as soft-locked until its
// password is changed.
func (c Credential) WithPasswordMustChange() Credential {
	out := c.clone()
	out.PasswordMustChange = true
	return out
}

// RecordInvalidChallenge registers a failed password challenge. If the last
// failure is older than the reset window the counter restarts at 1. The
// caller decides whether the new count disables the account.
func (c Credential) RecordInvalidChallenge(now time.Time, resetWindow time.Duration) Credential {
	out := c.clone()
	if out.LastInvalidChallengeAt != nil && resetWindow > 0 &&
		out.LastInvalidChallengeAt.Add(resetWindow).Before(now) {
		out.InvalidChallenges = 0
	}
	out.InvalidChallenges++
	out.LastInvalidChallengeAt = &now
	return out
}

//
// Sessions
//

// WithSession returns a credential with one more active session.
func (c Credential) WithSession(s Session) Credential {
	out := c.clone()
	out.Sessions = append(out.Sessions, s)
	return out
}

// DropSession removes the session holding the token. The second result
// reports whether a session was removed.
func (c Credential) DropSession(token string) (Credential, bool) {
	out := c.clone()
	for i, s := range out.Sessions {
		if s.Token == token {
			out.Sessions = append(out.Sessions[:i], out.Sessions[i+1:]...)
			return out, true
		}
	}
	return out, false
}

// SessionByToken finds an active session by its token.
func (c Credential) SessionByToken(token string) (Session, bool) {
	for _, s := range c.Sessions {
		if s.Token == token {
			return s, true
		}
	}
	return Session{}, false
}

// PruneSessions returns a credential holding at most max sessions, evicting
// the oldest first.
func (c Credential) PruneSessions(max int) Credential {
	out := c.clone()
	out.Sessions = pruneSessions(out.Sessions, max)
	return out
}

//
// Tags
//

// WithTag sets a free-form tag.
func (c Credential) WithTag(key, value string) Credential {
	out := c.clone()
	if out.Tags == nil {
		out.Tags = make(map[string]string, 1)
	}
	out.Tags[key] = value
	return out
}

// WithoutTag removes a tag.
func (c Credential) WithoutTag(key string) Credential {
	out := c.clone()
	delete(out.Tags, key)
	return out
}
