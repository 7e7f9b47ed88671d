package credential

import (
	"crypto/rand"
	"encoding/base64"
	"sort"
	"time"
)

// Session is one issued bearer token attached to a credential. A zero
// ExpiresAt means the session carries no usable token anymore.
type Session struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewSession issues a session with a fresh unguessable token.
func NewSession(now time.Time, lifetime time.Duration) Session {
	return Session{
		Token:     newToken(),
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}
}

// ExpiresIn returns the remaining lifetime in whole seconds, rounded up,
// never negative.
func (s Session) ExpiresIn(now time.Time) int64 {
	if s.ExpiresAt.IsZero() {
		return 0
	}
	remaining := s.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	seconds := int64(remaining / time.Second)
	if remaining%time.Second != 0 {
		seconds++
	}
	return seconds
}

// Expired reports whether the session token is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresIn(now) == 0
}

func newToken() string {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		// The platform cannot run without a functioning entropy source.
		panic("credential: reading random session token: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// pruneSessions keeps the max most recent sessions, dropping the oldest
// first. max <= 0 leaves the list untouched.
func pruneSessions(sessions []Session, max int) []Session {
	if max <= 0 || len(sessions) <= max {
		return sessions
	}
	sorted := make([]Session, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted[:max]
}
