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

package tenant

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hivebase/hivebase/internal/errs"
)

// Namespace is the physical storage location of one (tenant, service,
// resource type) triple. The alias is stable across schema versions; the
// physical id changes on every version bump. The tenant id is always the
// leading alias segment, which keeps aliases collision-free across tenants.
type Namespace struct {
	Alias      string
	PhysicalID string
}

// NewNamespace computes the namespace of a resource type inside a tenant.
// service is optional ("" for core platform types).
func NewNamespace(t Tenant, service, resourceType string, version int) Namespace {
	segments := []string{t.ID}
	if service != "" {
		segments = append(segments, service)
	}
	segments = append(segments, resourceType)
	alias := strings.Join(segments, "-")
	return Namespace{
		Alias:      alias,
		PhysicalID: fmt.Sprintf("%s-v%d", alias, version),
	}
}

// Catalog tracks which schema version each alias currently points at.
// Repointing the alias to a new version is the only supported migration
// path; there is no in-place rename of a physical namespace. Old and new
// physical ids may coexist while a migration copies data over.
type Catalog struct {
	mu       sync.RWMutex
	versions map[string]int
}

// NewCatalog creates an empty namespace catalog.
func NewCatalog() *Catalog {
	return &Catalog{versions: make(map[string]int)}
}

// Resolve returns the namespace an alias currently points at. Unknown
// aliases start at version 0.
func (c *Catalog) Resolve(t Tenant, service, resourceType string) Namespace {
	probe := NewNamespace(t, service, resourceType, 0)

	c.mu.RLock()
	version, ok := c.versions[probe.Alias]
	c.mu.RUnlock()

	if !ok {
		return probe
	}
	return NewNamespace(t, service, resourceType, version)
}

// Repoint moves an alias to a new version. The new version must be strictly
// greater than the current one: downgrades would leave writes in a physical
// namespace the alias no longer covers.
func (c *Catalog) Repoint(alias string, version int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.versions[alias]
	if version <= current {
		return errs.New(errs.KindConflict,
			"namespace [%s] is at version %d, cannot repoint to %d", alias, current, version)
	}
	c.versions[alias] = version
	return nil
}

// Current returns the version an alias points at.
func (c *Catalog) Current(alias string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[alias]
}
