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

// Package id generates the opaque identifiers used for stored entities.
package id

import "github.com/google/uuid"

// NewUUIDv7 returns a time-ordered unique id. Falls back to v4 in the
// unlikely case the v7 source fails.
func NewUUIDv7() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v7.String()
}

// NewResetCode returns a single-use password reset code.
func NewResetCode() string {
	return uuid.NewString()
}
