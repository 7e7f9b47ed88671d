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

package auth

import (
	"sync"
	"time"

	"github.com/hivebase/hivebase/internal/credential"
)

// superdogRegistry holds bearer sessions for the platform operator, which
// has no stored credential to embed them in. Sessions live only in the
// process that issued them.
type superdogRegistry struct {
	mu       sync.Mutex
	sessions map[string]credential.Session
}

func newSuperdogRegistry() *superdogRegistry {
	return &superdogRegistry{sessions: make(map[string]credential.Session)}
}

func (r *superdogRegistry) add(s credential.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Token] = s
}

// lookup returns the session for the token. Expired sessions are removed
// on the way out; the second result distinguishes expired from unknown.
func (r *superdogRegistry) lookup(token string, now time.Time) (credential.Session, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return credential.Session{}, false, false
	}
	if s.Expired(now) {
		delete(r.sessions, token)
		return credential.Session{}, true, true
	}
	return s, true, false
}

func (r *superdogRegistry) remove(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[token]; !ok {
		return false
	}
	delete(r.sessions, token)
	return true
}
