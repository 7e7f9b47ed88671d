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

import (
	"strings"
	"testing"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher(19456, 2, 1, 16, 32)

	hash, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=") {
		t.Errorf("unexpected hash format: %s", hash)
	}

	ok, err := hasher.Verify("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}

	ok, err = hasher.Verify("wrong password", hash)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
}

func TestPasswordHasher_DistinctSalts(t *testing.T) {
	hasher := NewPasswordHasher(19456, 2, 1, 16, 32)

	first, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	second, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if first == second {
		t.Error("two hashes of the same password are identical; salt is not random")
	}
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	hasher := NewPasswordHasher(19456, 2, 1, 16, 32)

	for _, h := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=19456,t=2,p=1$onlyfoursections",
		"$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
	} {
		if _, err := hasher.Verify("password", h); err == nil {
			t.Errorf("expected error for malformed hash %q", h)
		}
	}
}

// Parameters travel inside the hash, so verification works even after the
// hasher's configuration changes.
func TestPasswordHasher_ParamsFromHash(t *testing.T) {
	old := NewPasswordHasher(19456, 2, 1, 16, 32)
	hash, err := old.Hash("password123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	current := NewPasswordHasher(65536, 3, 4, 16, 32)
	ok, err := current.Verify("password123", hash)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Error("hash with embedded params rejected after config change")
	}
}
