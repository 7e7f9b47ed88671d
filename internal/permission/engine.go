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

package permission

import (
	"github.com/hivebase/hivebase/internal/credential"
	"github.com/hivebase/hivebase/internal/errs"
)

// Administrative resource types. Principals at admin level or above bypass
// the matrix for these, never for ordinary business data.
const (
	TypeCredentials = "credentials"
	TypeSettings    = "settings"
	TypeSchema      = "schema"
)

// RolePermissions maps role names to the actions they grant on one
// resource type.
type RolePermissions map[string][]Action

// Grants reports whether any of the roles is granted the action.
func (rp RolePermissions) Grants(roles []string, action Action) bool {
	for _, role := range roles {
		for _, granted := range rp[role] {
			if granted == action {
				return true
			}
		}
	}
	return false
}

// Subject is the access-relevant slice of a principal: its identity, group,
// roles, and level. The authentication engine produces one per request.
type Subject struct {
	ID      string
	GroupID string
	Roles   []string
	Level   credential.Level
}

// Resource carries the ownership fields of the resource being accessed.
// Create and search checks pass the zero value.
type Resource struct {
	OwnerID string
	GroupID string
}

// Engine evaluates the permission matrix. The matrix maps resource types to
// their role permissions; resource types absent from the matrix deny
// everything except the administrative bypass.
type Engine struct {
	matrix map[string]RolePermissions
}

// NewEngine creates an engine over a matrix. The matrix is not copied; it
// must not change after construction.
func NewEngine(matrix map[string]RolePermissions) *Engine {
	if matrix == nil {
		matrix = map[string]RolePermissions{}
	}
	return &Engine{matrix: matrix}
}

// DefaultMatrix returns the built-in matrix for the administrative resource
// types. Tenants extend it per resource type through settings.
func DefaultMatrix() map[string]RolePermissions {
	return map[string]RolePermissions{
		TypeCredentials: {
			credential.RoleUser: {ReadMine, UpdateMine, DeleteMine},
		},
		TypeSettings: {},
		TypeSchema:   {},
	}
}

// Check evaluates the requested actions against the matrix, broadest
// first. The caller orders actions from broadest to narrowest, e.g.
// update, updateMine, updateGroup. Mine variants additionally require the
// subject to own the resource, group variants a shared non-empty group.
// Admins and above bypass the matrix for administrative resource types
// only.
func (e *Engine) Check(subject Subject, resourceType string, resource Resource, actions ...Action) error {
	if subject.Level.AtLeast(credential.LevelAdmin) && isAdministrative(resourceType) {
		return nil
	}

	rp := e.matrix[resourceType]
	return rp.Check(subject, resource, actions...)
}

// Check evaluates the actions against this role-permissions entry alone,
// without the administrative bypass. Settings documents carry their own
// entries and use this directly.
func (rp RolePermissions) Check(subject Subject, resource Resource, actions ...Action) error {
	for _, action := range actions {
		if !rp.Grants(subject.Roles, action) {
			continue
		}
		switch {
		case action.Mine():
			if subject.ID != "" && subject.ID == resource.OwnerID {
				return nil
			}
		case action.Group():
			if subject.GroupID != "" && subject.GroupID == resource.GroupID {
				return nil
			}
		default:
			return nil
		}
	}
	return errs.Forbidden("forbidden to %s", describe(actions))
}

func isAdministrative(resourceType string) bool {
	switch resourceType {
	case TypeCredentials, TypeSettings, TypeSchema:
		return true
	}
	return false
}

func describe(actions []Action) string {
	if len(actions) == 0 {
		return "access"
	}
	return string(actions[0])
}
