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

// Package memory provides in-memory store implementations for development
// and tests. They honor the same compare-and-swap semantics as the
// PostgreSQL stores.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hivebase/hivebase/internal/credential"
	"github.com/hivebase/hivebase/internal/errs"
)

type credKey struct {
	tenantID string
	id       string
}

// CredentialStore implements credential.Store in memory.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[credKey]credential.Credential
}

// NewCredentialStore creates an empty in-memory credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[credKey]credential.Credential)}
}

// Create inserts a credential, enforcing per-tenant username uniqueness.
func (s *CredentialStore) Create(ctx context.Context, c credential.Credential) (credential.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.creds {
		if existing.TenantID == c.TenantID && existing.Username == c.Username {
			return credential.Credential{}, errs.AlreadyExists("username", c.Username)
		}
	}

	c.Version = 1
	s.creds[credKey{c.TenantID, c.ID}] = c.Clone()
	return c, nil
}

// GetByID implements credential.Store.
func (s *CredentialStore) GetByID(ctx context.Context, tenantID, id string) (credential.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.creds[credKey{tenantID, id}]
	if !ok {
		return credential.Credential{}, errs.NotFound("credential", id)
	}
	return c.Clone(), nil
}

// GetByUsername implements credential.Store.
func (s *CredentialStore) GetByUsername(ctx context.Context, tenantID, username string) (credential.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []credential.Credential
	for _, c := range s.creds {
		if c.TenantID == tenantID && c.Username == username {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return credential.Credential{}, errs.NotFound("credential with username", username)
	case 1:
		return matches[0].Clone(), nil
	default:
		return credential.Credential{}, errs.IntegrityViolation(
			"more than one credential with username [%s] in tenant [%s]", username, tenantID)
	}
}

// GetByToken implements credential.Store.
func (s *CredentialStore) GetByToken(ctx context.Context, tenantID, token string) (credential.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []credential.Credential
	for _, c := range s.creds {
		if c.TenantID != tenantID {
			continue
		}
		if _, ok := c.SessionByToken(token); ok {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return credential.Credential{}, errs.NotFound("credential with token", "***")
	case 1:
		return matches[0].Clone(), nil
	default:
		return credential.Credential{}, errs.IntegrityViolation(
			"more than one credential holds the same access token in tenant [%s]", tenantID)
	}
}

// Update implements the compare-and-swap write.
func (s *CredentialStore) Update(ctx context.Context, c credential.Credential, expectedVersion int64) (credential.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credKey{c.TenantID, c.ID}
	existing, ok := s.creds[key]
	if !ok {
		return credential.Credential{}, errs.NotFound("credential", c.ID)
	}
	if existing.Version != expectedVersion {
		return credential.Credential{}, errs.Conflict("credential", c.ID)
	}

	c.Version = expectedVersion + 1
	s.creds[key] = c.Clone()
	return c, nil
}

// Delete implements credential.Store.
func (s *CredentialStore) Delete(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credKey{tenantID, id}
	if _, ok := s.creds[key]; !ok {
		return errs.NotFound("credential", id)
	}
	delete(s.creds, key)
	return nil
}

// CountSuperadmins implements credential.Store.
func (s *CredentialStore) CountSuperadmins(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, c := range s.creds {
		if c.TenantID == tenantID && c.HasRole(credential.RoleSuperadmin) {
			count++
		}
	}
	return count, nil
}

// List implements credential.Store, ordered by username.
func (s *CredentialStore) List(ctx context.Context, tenantID string, from, size int) ([]credential.Credential, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []credential.Credential
	for _, c := range s.creds {
		if c.TenantID == tenantID {
			all = append(all, c.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })

	total := len(all)
	if from >= total {
		return nil, total, nil
	}
	end := from + size
	if end > total {
		end = total
	}
	return all[from:end], total, nil
}
