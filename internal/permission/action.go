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

// Package permission evaluates the role and ownership based access matrix
// applied to every data operation.
package permission

// Action is one entry of the closed permission action set. The "Mine" and
// "Group" variants narrow an action to resources the principal owns or
// shares a group with.
type Action string

const (
	Create      Action = "create"
	Read        Action = "read"
	ReadMine    Action = "readMine"
	ReadGroup   Action = "readGroup"
	Update      Action = "update"
	UpdateMine  Action = "updateMine"
	UpdateGroup Action = "updateGroup"
	Delete      Action = "delete"
	DeleteMine  Action = "deleteMine"
	DeleteGroup Action = "deleteGroup"
	Search      Action = "search"
	UpdateMeta  Action = "updateMeta"
)

// Mine reports whether the action is an ownership-scoped variant.
func (a Action) Mine() bool {
	switch a {
	case ReadMine, UpdateMine, DeleteMine:
		return true
	}
	return false
}

// Group reports whether the action is a group-scoped variant.
func (a Action) Group() bool {
	switch a {
	case ReadGroup, UpdateGroup, DeleteGroup:
		return true
	}
	return false
}

// Valid reports whether the action belongs to the closed set.
func (a Action) Valid() bool {
	switch a {
	case Create, Read, ReadMine, ReadGroup,
		Update, UpdateMine, UpdateGroup,
		Delete, DeleteMine, DeleteGroup,
		Search, UpdateMeta:
		return true
	}
	return false
}
