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

// Built-in role names. A credential's level is derived from the highest
// built-in role it holds; custom roles do not change the level.
const (
	RoleGuest      = "guest"
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"

	// RoleSuperdog is the platform operator. It is never stored in a tenant:
	// superdog authenticates against a platform-wide secret and is synthesized
	// by the authentication engine.
	RoleSuperdog = "superdog"
)

// Level orders principals for hierarchy checks.
type Level int

const (
	LevelGuest Level = iota
	LevelUser
	LevelAdmin
	LevelSuperadmin
	LevelSuperdog
)

// String returns the role name of the level.
func (l Level) String() string {
	switch l {
	case LevelUser:
		return RoleUser
	case LevelAdmin:
		return RoleAdmin
	case LevelSuperadmin:
		return RoleSuperadmin
	case LevelSuperdog:
		return RoleSuperdog
	default:
		return RoleGuest
	}
}

// AtLeast reports whether l is at or above the required minimum.
func (l Level) AtLeast(min Level) bool { return l >= min }

// CanManage reports whether a principal at level l may administer a
// credential at level target. A principal may never manage a peer or higher
// level; acting on oneself is decided by the caller before this check.
func (l Level) CanManage(target Level) bool { return target <= l }

// LevelOfRole maps a built-in role name to its level. Custom roles map to
// guest so they never grant hierarchy privileges.
func LevelOfRole(role string) Level {
	switch role {
	case RoleSuperdog:
		return LevelSuperdog
	case RoleSuperadmin:
		return LevelSuperadmin
	case RoleAdmin:
		return LevelAdmin
	case RoleUser:
		return LevelUser
	default:
		return LevelGuest
	}
}

// levelManagingRole returns the minimum level required to grant or revoke a
// role. Built-in roles are managed by their own level; custom roles by
// admins.
func levelManagingRole(role string) Level {
	switch role {
	case RoleSuperdog:
		return LevelSuperdog
	case RoleSuperadmin:
		return LevelSuperadmin
	case RoleAdmin:
		return LevelAdmin
	case RoleUser:
		return LevelUser
	default:
		return LevelAdmin
	}
}

// CanManageRole reports whether a principal at level l may grant or revoke
// the given role.
func (l Level) CanManageRole(role string) bool {
	return l >= levelManagingRole(role)
}
