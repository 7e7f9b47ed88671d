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
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// TestPurpose: Validates that every With* operation returns a new value and
// never mutates the receiver, including its slices and maps.
func TestCredential_Immutability(t *testing.T) {
	c := New("tenant-1", "alice")
	c = c.WithRole(RoleUser).WithTag("team", "core")

	// 1. Adding a role must not touch the original
	withAdmin := c.WithRole(RoleAdmin)
	if c.HasRole(RoleAdmin) {
		t.Error("WithRole mutated the receiver")
	}
	if !withAdmin.HasRole(RoleAdmin) || !withAdmin.HasRole(RoleUser) {
		t.Error("WithRole lost roles")
	}

	// 2. Tag maps must be deep copies
	tagged := c.WithTag("team", "infra")
	if c.Tags["team"] != "core" {
		t.Errorf("WithTag mutated receiver map: %v", c.Tags)
	}
	if tagged.Tags["team"] != "infra" {
		t.Errorf("expected infra, got %s", tagged.Tags["team"])
	}

	// 3. Session slices must be deep copies
	s := NewSession(time.Now(), time.Hour)
	withSession := c.WithSession(s)
	if len(c.Sessions) != 0 {
		t.Error("WithSession mutated receiver sessions")
	}
	if len(withSession.Sessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(withSession.Sessions))
	}
}

func TestCredential_EnabledAt(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	base := New("tenant-1", "alice")

	tests := []struct {
		name         string
		enabled      bool
		enableAfter  *time.Time
		disableAfter *time.Time
		want         bool
	}{
		{"disabled flag wins", false, nil, nil, false},
		{"no schedule", true, nil, nil, true},
		{"inside window", true, &before, &after, true},
		{"before window opens", true, &after, nil, false},
		{"after window closes", true, nil, &before, false},
		{"inverted bounds, past enable-after", true, &before, &before, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base.WithSchedule(tt.enableAfter, tt.disableAfter)
			if tt.enabled {
				c = c.Enable()
			} else {
				c = c.Disable()
			}
			// Enable wipes nothing schedule-related, but set the window
			// again in case ordering ever changes.
			c = c.WithSchedule(tt.enableAfter, tt.disableAfter)
			if got := c.EnabledAt(now); got != tt.want {
				t.Errorf("EnabledAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredential_RecordInvalidChallenge(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	window := 60 * time.Minute

	c := New("tenant-1", "alice")

	// 1. Consecutive failures inside the window accumulate
	c = c.RecordInvalidChallenge(now, window)
	c = c.RecordInvalidChallenge(now.Add(time.Minute), window)
	c = c.RecordInvalidChallenge(now.Add(2*time.Minute), window)
	if c.InvalidChallenges != 3 {
		t.Errorf("expected 3 invalid challenges, got %d", c.InvalidChallenges)
	}

	// 2. A failure after the window restarts the counter at 1
	c = c.RecordInvalidChallenge(now.Add(2*time.Hour), window)
	if c.InvalidChallenges != 1 {
		t.Errorf("expected counter restart at 1, got %d", c.InvalidChallenges)
	}

	// 3. Enable wipes the bookkeeping
	c = c.Enable()
	if c.InvalidChallenges != 0 || c.LastInvalidChallengeAt != nil {
		t.Errorf("Enable kept lockout state: %d", c.InvalidChallenges)
	}
}

// TestPurpose: Validates that a password change revokes all material issued
// against the old password.
func TestCredential_PasswordChangeRevokesEverything(t *testing.T) {
	now := time.Now()
	c := New("tenant-1", "alice").
		WithResetCode("reset-123").
		WithSession(NewSession(now, time.Hour)).
		RecordInvalidChallenge(now, time.Hour).
		WithPasswordMustChange()

	c = c.WithPasswordHash("$argon2id$...")

	if c.PasswordResetCode != "" {
		t.Error("reset code survived password change")
	}
	if len(c.Sessions) != 0 {
		t.Error("sessions survived password change")
	}
	if c.InvalidChallenges != 0 {
		t.Error("lockout counter survived password change")
	}
	if c.PasswordMustChange {
		t.Error("must-change flag survived password change")
	}
}

func TestCredential_Sessions(t *testing.T) {
	now := time.Now()
	c := New("tenant-1", "alice")

	first := NewSession(now, time.Hour)
	second := NewSession(now.Add(time.Minute), time.Hour)
	third := NewSession(now.Add(2*time.Minute), time.Hour)
	c = c.WithSession(first).WithSession(second).WithSession(third)

	if _, ok := c.SessionByToken(second.Token); !ok {
		t.Fatal("SessionByToken missed a live session")
	}

	// Pruning keeps the newest sessions
	pruned := c.PruneSessions(2)
	if len(pruned.Sessions) != 2 {
		t.Fatalf("expected 2 sessions after prune, got %d", len(pruned.Sessions))
	}
	if _, ok := pruned.SessionByToken(first.Token); ok {
		t.Error("prune kept the oldest session")
	}
	if _, ok := pruned.SessionByToken(third.Token); !ok {
		t.Error("prune dropped the newest session")
	}

	// Dropping an exact token
	dropped, ok := c.DropSession(second.Token)
	if !ok {
		t.Fatal("DropSession missed an existing token")
	}
	if _, stillThere := dropped.SessionByToken(second.Token); stillThere {
		t.Error("dropped session still resolvable")
	}
	if _, ok := dropped.DropSession("no-such-token"); ok {
		t.Error("DropSession reported success for unknown token")
	}
}

func TestSession_Expiry(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	s := NewSession(now, time.Hour)

	if s.Expired(now.Add(30 * time.Minute)) {
		t.Error("session expired early")
	}
	if !s.Expired(now.Add(2 * time.Hour)) {
		t.Error("session outlived its lifetime")
	}
	if got := s.ExpiresIn(now); got != 3600 {
		t.Errorf("expected 3600 seconds remaining, got %d", got)
	}
	if got := s.ExpiresIn(now.Add(2 * time.Hour)); got != 0 {
		t.Errorf("expected 0 for expired session, got %d", got)
	}
}

// TestPurpose: Validates that secrets never leak through the public JSON
// representation of a credential.
func TestCredential_JSONHidesSecrets(t *testing.T) {
	c := New("tenant-1", "alice").
		WithPasswordHash("$argon2id$secret").
		WithSession(NewSession(time.Now(), time.Hour))

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	out := string(data)
	for _, needle := range []string{"passwordHash", "argon2id", "sessions", "passwordResetCode"} {
		if strings.Contains(out, needle) {
			t.Errorf("public JSON leaked %q: %s", needle, out)
		}
	}
	if !strings.Contains(out, `"username":"alice"`) {
		t.Errorf("public JSON missing username: %s", out)
	}
}
