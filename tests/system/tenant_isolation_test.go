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

// Package system provides integration tests that run against a real
// PostgreSQL database.
//
// Test Execution:
//
//	INTEGRATION_TEST=true go test -v ./tests/system/...
//
// Prerequisites:
//
//	docker compose up -d postgres
package system

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivebase/hivebase/internal/audit"
	"github.com/hivebase/hivebase/internal/auth"
	"github.com/hivebase/hivebase/internal/credential"
	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/id"
	"github.com/hivebase/hivebase/internal/permission"
	"github.com/hivebase/hivebase/internal/settings"
	"github.com/hivebase/hivebase/internal/store/postgres"
	"github.com/hivebase/hivebase/internal/tenant"
)

// testDB is the shared database connection for integration tests
var testDB *postgres.DB

// TestMain sets up and tears down the test database connection
func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		os.Exit(0)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         getEnvOrDefault("DB_HOST", "localhost"),
		Port:         getEnvOrDefault("DB_PORT", "5432"),
		User:         getEnvOrDefault("DB_USER", "hivebase"),
		Password:     getEnvOrDefault("DB_PASSWORD", "hivebase_dev_password"),
		Database:     getEnvOrDefault("DB_NAME", "hivebase"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	testDB = db

	// Apply migrations; tables may already exist from earlier runs.
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		_ = err
	}

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type stack struct {
	store       *postgres.CredentialRepository
	credService *credential.Service
	authEngine  *auth.Engine
	settings    *settings.Service
	policies    *settings.CredentialsPolicySource
}

func newStack(t *testing.T) *stack {
	t.Helper()

	catalog := tenant.NewCatalog()
	store := postgres.NewCredentialRepository(testDB, catalog)
	settingsStore := postgres.NewSettingsRepository(testDB)

	hasher := credential.NewPasswordHasher(19456, 2, 1, 16, 32)
	engine := permission.NewEngine(permission.DefaultMatrix())
	registry := settings.NewRegistry()
	settings.RegisterCredentialsPolicy(registry)
	settingsService := settings.NewService(settingsStore, engine, registry)
	policies := settings.NewCredentialsPolicySource(settingsService, credential.DefaultPolicy())

	return &stack{
		store:       store,
		credService: credential.NewService(store, hasher, policies, credential.LogNotifier{}, audit.Nop{}),
		authEngine:  auth.NewEngine(store, policies, hasher, "", audit.Nop{}),
		settings:    settingsService,
		policies:    policies,
	}
}

// freshTenant returns a tenant ID no previous test run has touched.
func freshTenant(prefix string) tenant.Tenant {
	return tenant.Tenant{ID: fmt.Sprintf("%s-%s", prefix, id.NewUUIDv7())}
}

// TEN-01: a username existing in two tenants resolves to different
// credentials, and neither tenant can read the other's.
func TestSystem_CredentialIsolation(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	tenantA := freshTenant("ten-a")
	tenantB := freshTenant("ten-b")

	credA, err := s.credService.Create(ctx, tenantA.ID, credential.CreateRequest{
		Username: "shared", Password: "password-a1",
	}, credential.LevelSuperadmin)
	require.NoError(t, err)

	credB, err := s.credService.Create(ctx, tenantB.ID, credential.CreateRequest{
		Username: "shared", Password: "password-b1",
	}, credential.LevelSuperadmin)
	require.NoError(t, err)

	assert.NotEqual(t, credA.ID, credB.ID)

	gotA, err := s.credService.GetByUsername(ctx, tenantA.ID, "shared")
	require.NoError(t, err)
	assert.Equal(t, credA.ID, gotA.ID)

	_, err = s.credService.GetByID(ctx, tenantA.ID, credB.ID)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

// TEN-02: a session issued in tenant A must not authenticate in tenant B.
func TestSystem_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	tenantA := freshTenant("ten-sess-a")
	tenantB := freshTenant("ten-sess-b")

	_, err := s.credService.Create(ctx, tenantA.ID, credential.CreateRequest{
		Username: "holder", Password: "password1",
	}, credential.LevelSuperadmin)
	require.NoError(t, err)

	_, session, err := s.authEngine.Login(ctx, tenantA, auth.Data{
		Scheme: auth.SchemeBasic, Username: "holder", Password: "password1",
	}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	_, err = s.authEngine.Authenticate(ctx, tenantA, auth.Data{
		Scheme: auth.SchemeBearer, Token: session.Token,
	}, false)
	require.NoError(t, err)

	_, err = s.authEngine.Authenticate(ctx, tenantB, auth.Data{
		Scheme: auth.SchemeBearer, Token: session.Token,
	}, false)
	assert.True(t, errs.IsKind(err, errs.KindAccessTokenInvalid))
}

// AUT-01: full login, bearer, logout round trip against the real store.
func TestSystem_LoginLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	tnt := freshTenant("ten-login")
	_, err := s.credService.Create(ctx, tnt.ID, credential.CreateRequest{
		Username: "alice", Password: "wonderland1",
	}, credential.LevelSuperadmin)
	require.NoError(t, err)

	principal, session, err := s.authEngine.Login(ctx, tnt, auth.Data{
		Scheme: auth.SchemeBasic, Username: "alice", Password: "wonderland1",
	}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, credential.LevelUser, principal.Level)

	bearer, err := s.authEngine.Authenticate(ctx, tnt, auth.Data{
		Scheme: auth.SchemeBearer, Token: session.Token,
	}, false)
	require.NoError(t, err)

	require.NoError(t, s.authEngine.Logout(ctx, bearer))

	_, err = s.authEngine.Authenticate(ctx, tnt, auth.Data{
		Scheme: auth.SchemeBearer, Token: session.Token,
	}, false)
	assert.True(t, errs.IsKind(err, errs.KindAccessTokenInvalid))
}

// SET-01: a tenant's credentials settings document overrides the default
// policy, here enabling the lockout feature that then disables the account.
func TestSystem_PolicyOverrideAndLockout(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	tnt := freshTenant("ten-policy")
	admin := permission.Subject{ID: "admin", Level: credential.LevelSuperadmin}

	policy := credential.DefaultPolicy()
	policy.MaximumInvalidChallenges = 3
	data, err := json.Marshal(policy)
	require.NoError(t, err)

	doc, err := s.settings.Set(ctx, admin, tnt.ID, settings.CredentialsSettingsName, data, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)

	// Stale version must be rejected.
	_, err = s.settings.Set(ctx, admin, tnt.ID, settings.CredentialsSettingsName, data, 0)
	assert.Error(t, err)

	got, err := s.policies.CredentialsPolicy(ctx, tnt.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MaximumInvalidChallenges)

	_, err = s.credService.Create(ctx, tnt.ID, credential.CreateRequest{
		Username: "bob", Password: "builder-1",
	}, credential.LevelSuperadmin)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err = s.authEngine.Login(ctx, tnt, auth.Data{
			Scheme: auth.SchemeBasic, Username: "bob", Password: "wrong",
		}, 0)
		assert.True(t, errs.IsKind(err, errs.KindInvalidCredentials))
	}

	// The account is disabled now; even the right password is refused.
	_, _, err = s.authEngine.Login(ctx, tnt, auth.Data{
		Scheme: auth.SchemeBasic, Username: "bob", Password: "builder-1",
	}, 0)
	assert.True(t, errs.IsKind(err, errs.KindAccountDisabled))
}
