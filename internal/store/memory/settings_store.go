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

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/settings"
)

type settingsKey struct {
	tenantID string
	name     string
}

// SettingsStore implements settings.Store in memory.
type SettingsStore struct {
	mu   sync.RWMutex
	docs map[settingsKey]settings.Document
}

// NewSettingsStore creates an empty in-memory settings store.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{docs: make(map[settingsKey]settings.Document)}
}

// Get implements settings.Store.
func (s *SettingsStore) Get(ctx context.Context, tenantID, name string) (settings.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[settingsKey{tenantID, name}]
	if !ok {
		return settings.Document{}, errs.NotFound("settings", name)
	}
	return cloneDoc(doc), nil
}

// Put implements the compare-and-swap write; expectedVersion 0 creates.
func (s *SettingsStore) Put(ctx context.Context, doc settings.Document, expectedVersion int64) (settings.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := settingsKey{doc.TenantID, doc.Name}
	existing, ok := s.docs[key]

	if expectedVersion == 0 {
		if ok {
			return settings.Document{}, errs.AlreadyExists("settings", doc.Name)
		}
		doc.Version = 1
		s.docs[key] = cloneDoc(doc)
		return doc, nil
	}

	if !ok {
		return settings.Document{}, errs.NotFound("settings", doc.Name)
	}
	if existing.Version != expectedVersion {
		return settings.Document{}, errs.Conflict("settings", doc.Name)
	}

	doc.Version = expectedVersion + 1
	doc.CreatedAt = existing.CreatedAt
	s.docs[key] = cloneDoc(doc)
	return doc, nil
}

// Delete implements settings.Store.
func (s *SettingsStore) Delete(ctx context.Context, tenantID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := settingsKey{tenantID, name}
	if _, ok := s.docs[key]; !ok {
		return errs.NotFound("settings", name)
	}
	delete(s.docs, key)
	return nil
}

// List implements settings.Store, ordered by name.
func (s *SettingsStore) List(ctx context.Context, tenantID string) ([]settings.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []settings.Document
	for _, doc := range s.docs {
		if doc.TenantID == tenantID {
			docs = append(docs, cloneDoc(doc))
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func cloneDoc(doc settings.Document) settings.Document {
	out := doc
	out.Data = append([]byte(nil), doc.Data...)
	return out
}
