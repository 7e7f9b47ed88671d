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

// Package settings stores per-tenant named settings documents. Settings
// types are registered explicitly; registered types get JSON validation
// and may open themselves to non-admin roles through an ACL.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/permission"
)

// Document is one stored settings document. Data holds the raw JSON;
// registered types additionally round-trip through their Go value.
type Document struct {
	TenantID  string          `json:"-"`
	Name      string          `json:"-"`
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store persists settings documents per tenant. Put is a compare-and-swap
// on the document version; expectedVersion 0 creates the document and
// fails with an already-exists kind if it is present.
type Store interface {
	Get(ctx context.Context, tenantID, name string) (Document, error)
	Put(ctx context.Context, doc Document, expectedVersion int64) (Document, error)
	Delete(ctx context.Context, tenantID, name string) error
	List(ctx context.Context, tenantID string) ([]Document, error)
}

// Factory produces a zero value of a registered settings type, as a
// pointer for unmarshalling.
type Factory func() any

type registration struct {
	factory Factory
	acl     permission.RolePermissions
}

// Registry maps settings names to their factories and ACLs. Registration
// happens at wiring time; the registry is read-only afterwards.
type Registry struct {
	entries map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register binds a settings name to a factory and an optional ACL opening
// the document to non-admin roles. A nil ACL keeps the document admin
// only.
func (r *Registry) Register(name string, factory Factory, acl permission.RolePermissions) {
	r.entries[name] = registration{factory: factory, acl: acl}
}

// Service gates settings documents behind the permission engine and
// validates registered types.
type Service struct {
	store    Store
	engine   *permission.Engine
	registry *Registry
	now      func() time.Time
}

// NewService creates a settings service.
func NewService(store Store, engine *permission.Engine, registry *Registry) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		registry: registry,
		now:      time.Now,
	}
}

// Get returns a settings document the subject may read.
func (s *Service) Get(ctx context.Context, subject permission.Subject, tenantID, name string) (Document, error) {
	if err := s.checkAccess(subject, name, permission.Read); err != nil {
		return Document{}, err
	}
	return s.store.Get(ctx, tenantID, name)
}

// List returns the tenant's settings documents filtered to those the
// subject may read.
func (s *Service) List(ctx context.Context, subject permission.Subject, tenantID string) ([]Document, error) {
	docs, err := s.store.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	readable := docs[:0]
	for _, doc := range docs {
		if s.checkAccess(subject, doc.Name, permission.Read) == nil {
			readable = append(readable, doc)
		}
	}
	return readable, nil
}

// Set writes a settings document through the version CAS. Registered types
// are validated by unmarshalling into their factory value first.
func (s *Service) Set(ctx context.Context, subject permission.Subject, tenantID, name string, data json.RawMessage, expectedVersion int64) (Document, error) {
	if err := s.checkAccess(subject, name, permission.Update); err != nil {
		return Document{}, err
	}

	if reg, ok := s.registry.entries[name]; ok {
		value := reg.factory()
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(value); err != nil {
			return Document{}, errs.Wrap(errs.KindInvalidInput, err, "invalid %s settings", name)
		}
	} else if !json.Valid(data) {
		return Document{}, errs.New(errs.KindInvalidInput, "settings document is not valid JSON")
	}

	now := s.now()
	doc := Document{
		TenantID:  tenantID,
		Name:      name,
		Data:      data,
		UpdatedAt: now,
	}
	if expectedVersion == 0 {
		doc.CreatedAt = now
	}
	return s.store.Put(ctx, doc, expectedVersion)
}

// Delete removes a settings document.
func (s *Service) Delete(ctx context.Context, subject permission.Subject, tenantID, name string) error {
	if err := s.checkAccess(subject, name, permission.Delete); err != nil {
		return err
	}
	return s.store.Delete(ctx, tenantID, name)
}

// Load unmarshals a tenant's settings document of a registered type into
// out. A missing document leaves out untouched and reports found=false.
func (s *Service) Load(ctx context.Context, tenantID, name string, out any) (bool, error) {
	doc, err := s.store.Get(ctx, tenantID, name)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(doc.Data, out); err != nil {
		return false, errs.Wrap(errs.KindIntegrityViolation, err, "stored %s settings are corrupt", name)
	}
	return true, nil
}

// checkAccess consults the per-name ACL first and falls back to the
// permission engine, whose admin bypass covers the settings resource
// type.
func (s *Service) checkAccess(subject permission.Subject, name string, action permission.Action) error {
	if reg, ok := s.registry.entries[name]; ok && reg.acl != nil {
		if reg.acl.Check(subject, permission.Resource{}, action) == nil {
			return nil
		}
	}
	return s.engine.Check(subject, permission.TypeSettings, permission.Resource{}, action)
}
