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

package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivebase/hivebase/internal/audit"
	"github.com/hivebase/hivebase/internal/auth"
	"github.com/hivebase/hivebase/internal/credential"
	"github.com/hivebase/hivebase/internal/permission"
	"github.com/hivebase/hivebase/internal/settings"
	"github.com/hivebase/hivebase/internal/store/memory"
	"github.com/hivebase/hivebase/internal/tenant"
)

type testServer struct {
	router      *chi.Mux
	credService *credential.Service
}

func newTestServer(t *testing.T, policy credential.Policy) *testServer {
	t.Helper()

	credStore := memory.NewCredentialStore()
	settingsStore := memory.NewSettingsStore()

	hasher := credential.NewPasswordHasher(19456, 2, 1, 16, 32)
	permEngine := permission.NewEngine(permission.DefaultMatrix())
	registry := settings.NewRegistry()
	settings.RegisterCredentialsPolicy(registry)
	settingsService := settings.NewService(settingsStore, permEngine, registry)
	policies := settings.NewCredentialsPolicySource(settingsService, policy)

	credService := credential.NewService(credStore, hasher, policies, credential.LogNotifier{}, audit.Nop{})
	engine := auth.NewEngine(credStore, policies, hasher, "", audit.Nop{})

	resolver := tenant.NewResolver(".hivebase.io", "api")
	h := NewHandler(resolver, engine, credService, permEngine, settingsService, policies, audit.Nop{})
	router := NewRouter(h, NewRateLimiter(1000, 1000))

	return &testServer{router: router, credService: credService}
}

func (s *testServer) seed(t *testing.T, tenantID, username, password string, roles ...string) credential.Credential {
	t.Helper()
	c, err := s.credService.Create(context.Background(), tenantID, credential.CreateRequest{
		Username: username,
		Password: password,
		Roles:    roles,
	}, credential.LevelSuperdog)
	require.NoError(t, err)
	return c
}

type requestOpts struct {
	basic  [2]string
	bearer string
	body   any
}

func (s *testServer) do(t *testing.T, method, host, path string, opts requestOpts) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if opts.body != nil {
		data, err := json.Marshal(opts.body)
		require.NoError(t, err)
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, "http://"+host+path, body)
	req.Header.Set("Content-Type", "application/json")
	if opts.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+opts.bearer)
	} else if opts.basic[0] != "" {
		token := base64.StdEncoding.EncodeToString([]byte(opts.basic[0] + ":" + opts.basic[1]))
		req.Header.Set("Authorization", "Basic "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, host, username, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, host, "/1/login", requestOpts{basic: [2]string{username, password}})
	require.Equal(t, http.StatusOK, rec.Code, "login failed: %s", rec.Body.String())

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, credential.DefaultPolicy())
	rec := s.do(t, http.MethodGet, "api.hivebase.io", "/health", requestOpts{})
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestPurpose: Validates the login round trip over the wire: basic
// challenge, bearer self read, bearer login echo, logout.
func TestRouter_LoginFlow(t *testing.T) {
	s := newTestServer(t, credential.DefaultPolicy())
	seeded := s.seed(t, "acme", "alice", "password123")
	host := "acme.hivebase.io"

	// 1. Wrong password and unknown user both map to 401
	rec := s.do(t, http.MethodPost, host, "/1/login", requestOpts{basic: [2]string{"alice", "wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, http.MethodPost, host, "/1/login", requestOpts{basic: [2]string{"ghost", "wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 2. Login returns a token and the public credential view
	rec = s.do(t, http.MethodPost, host, "/1/login", requestOpts{basic: [2]string{"alice", "password123"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int64  `json:"expiresIn"`
		Credentials struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"credentials"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.NotEmpty(t, login.AccessToken)
	assert.Greater(t, login.ExpiresIn, int64(0))
	assert.Equal(t, seeded.ID, login.Credentials.ID)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	// 3. The token reads the owner's credential through the "me" alias
	rec = s.do(t, http.MethodGet, host, "/1/credentials/me", requestOpts{bearer: login.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)

	// 4. GET /1/login with the bearer echoes the session
	rec = s.do(t, http.MethodGet, host, "/1/login", requestOpts{bearer: login.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)

	// 5. Logout invalidates the token
	rec = s.do(t, http.MethodPost, host, "/1/logout", requestOpts{bearer: login.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, host, "/1/credentials/me", requestOpts{bearer: login.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 6. Guests cannot log out
	rec = s.do(t, http.MethodPost, host, "/1/logout", requestOpts{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_GuestSignup(t *testing.T) {
	body := map[string]any{"username": "newbie", "password": "password123"}

	// 1. Disabled policy refuses anonymous signups
	closed := newTestServer(t, credential.DefaultPolicy())
	rec := closed.do(t, http.MethodPost, "acme.hivebase.io", "/1/credentials", requestOpts{body: body})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 2. Enabled policy admits them with the default role
	policy := credential.DefaultPolicy()
	policy.GuestSignUpEnabled = true
	open := newTestServer(t, policy)
	rec = open.do(t, http.MethodPost, "acme.hivebase.io", "/1/credentials", requestOpts{body: body})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID          string `json:"id"`
		Credentials struct {
			Roles []string `json:"roles"`
		} `json:"credentials"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, []string{credential.RoleUser}, created.Credentials.Roles)

	// 3. Even with guest signup on, anonymous role requests are refused
	rec = open.do(t, http.MethodPost, "acme.hivebase.io", "/1/credentials", requestOpts{
		body: map[string]any{"username": "sneaky", "password": "password123", "roles": []string{credential.RoleAdmin}},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// TestPurpose: Validates the wire mapping of the permission rules: owners
// read themselves, strangers are refused, admins pass, enumeration stays
// admin-only.
func TestRouter_Permissions(t *testing.T) {
	s := newTestServer(t, credential.DefaultPolicy())
	host := "acme.hivebase.io"

	alice := s.seed(t, "acme", "alice", "password123")
	s.seed(t, "acme", "bob", "password456")
	s.seed(t, "acme", "root", "rootpass123", credential.RoleSuperadmin)

	aliceToken := s.login(t, host, "alice", "password123")
	bobToken := s.login(t, host, "bob", "password456")
	rootToken := s.login(t, host, "root", "rootpass123")

	// 1. Owner reads own credential by id
	rec := s.do(t, http.MethodGet, host, "/1/credentials/"+alice.ID, requestOpts{bearer: aliceToken})
	assert.Equal(t, http.StatusOK, rec.Code)

	// 2. A stranger is refused
	rec = s.do(t, http.MethodGet, host, "/1/credentials/"+alice.ID, requestOpts{bearer: bobToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 3. Admin reads anyone and may enumerate
	rec = s.do(t, http.MethodGet, host, "/1/credentials/"+alice.ID, requestOpts{bearer: rootToken})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, host, "/1/credentials", requestOpts{bearer: rootToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 3, list.Total)

	// 4. Enumeration is refused below admin
	rec = s.do(t, http.MethodGet, host, "/1/credentials", requestOpts{bearer: aliceToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 5. Admin-only password reset: the owner cannot mint codes
	rec = s.do(t, http.MethodDelete, host, "/1/credentials/"+alice.ID+"/password", requestOpts{bearer: aliceToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodDelete, host, "/1/credentials/"+alice.ID+"/password", requestOpts{bearer: rootToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var reset struct {
		PasswordResetCode string `json:"passwordResetCode"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reset))
	assert.NotEmpty(t, reset.PasswordResetCode)

	// 6. The reset code works without any session
	rec = s.do(t, http.MethodPut, host, "/1/credentials/"+alice.ID+"/password", requestOpts{
		body: map[string]string{"password": "password789", "resetCode": reset.PasswordResetCode},
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.login(t, host, "alice", "password789")
}

func TestRouter_UpdateCredential(t *testing.T) {
	s := newTestServer(t, credential.DefaultPolicy())
	host := "acme.hivebase.io"
	alice := s.seed(t, "acme", "alice", "password123")
	aliceToken := s.login(t, host, "alice", "password123")

	rec := s.do(t, http.MethodPut, host, "/1/credentials/"+alice.ID, requestOpts{
		bearer: aliceToken,
		body: map[string]any{
			"email": "alice@example.com",
			"tags":  map[string]string{"team": "hive"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated struct {
		Email   string            `json:"email"`
		Tags    map[string]string `json:"tags"`
		Version int64             `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "alice@example.com", updated.Email)
	assert.Equal(t, "hive", updated.Tags["team"])
	assert.Equal(t, alice.Version+1, updated.Version)
}

func TestRouter_ErrorStatuses(t *testing.T) {
	s := newTestServer(t, credential.DefaultPolicy())
	host := "acme.hivebase.io"
	s.seed(t, "acme", "root", "rootpass123", credential.RoleSuperadmin)
	rootToken := s.login(t, host, "root", "rootpass123")

	// 1. Unknown id is 404
	rec := s.do(t, http.MethodGet, host, "/1/credentials/no-such-id", requestOpts{bearer: rootToken})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// 2. Duplicate username is 409
	rec = s.do(t, http.MethodPost, host, "/1/credentials", requestOpts{
		bearer: rootToken,
		body:   map[string]string{"username": "root", "password": "password123"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// 3. Short password fails the policy with 400
	rec = s.do(t, http.MethodPost, host, "/1/credentials", requestOpts{
		bearer: rootToken,
		body:   map[string]string{"username": "shorty", "password": "x"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 4. Oversized session lifetime is 403, not clamped
	rec = s.do(t, http.MethodPost, host, "/1/login?lifetime=999999999", requestOpts{basic: [2]string{"root", "rootpass123"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 5. The last superadmin cannot delete itself
	var me struct {
		ID string `json:"id"`
	}
	rec = s.do(t, http.MethodGet, host, "/1/credentials/me", requestOpts{bearer: rootToken})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	rec = s.do(t, http.MethodDelete, host, "/1/credentials/"+me.ID, requestOpts{bearer: rootToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// TestPurpose: Validates that the Host header picks the tenant and tokens
// never cross tenants.
func TestRouter_TenantIsolation(t *testing.T) {
	s := newTestServer(t, credential.DefaultPolicy())
	s.seed(t, "acme", "alice", "password123")

	token := s.login(t, "acme.hivebase.io", "alice", "password123")

	// The same token is rejected under another tenant's host
	rec := s.do(t, http.MethodGet, "globex.hivebase.io", "/1/credentials/me", requestOpts{bearer: token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// And alice does not exist in the default tenant
	rec = s.do(t, http.MethodPost, "api.hivebase.io", "/1/login", requestOpts{basic: [2]string{"alice", "password123"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestPurpose: Validates the must-change soft lock over the wire: every
// operation is refused except the password change itself.
func TestRouter_PasswordMustChange(t *testing.T) {
	s := newTestServer(t, credential.DefaultPolicy())
	host := "acme.hivebase.io"

	alice := s.seed(t, "acme", "alice", "password123")
	s.seed(t, "acme", "root", "rootpass123", credential.RoleSuperadmin)
	rootToken := s.login(t, host, "root", "rootpass123")

	rec := s.do(t, http.MethodPut, host, "/1/credentials/"+alice.ID+"/passwordMustChange", requestOpts{bearer: rootToken})
	require.Equal(t, http.StatusOK, rec.Code)

	// 1. Ordinary basic-auth operations are refused
	rec = s.do(t, http.MethodPost, host, "/1/login", requestOpts{basic: [2]string{"alice", "password123"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 2. The password change itself goes through with basic auth
	rec = s.do(t, http.MethodPut, host, "/1/credentials/"+alice.ID+"/password", requestOpts{
		basic: [2]string{"alice", "password123"},
		body:  map[string]string{"password": "freshpass123"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// 3. After the change the account works again
	s.login(t, host, "alice", "freshpass123")
}

// TestPurpose: Validates that the must-change bypass covers only the
// credential password route, never other resources named "password".
func TestIsPasswordChange(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodPut, "/1/credentials/abc123/password", true},
		{http.MethodPut, "/1/credentials/me/password", true},
		{http.MethodDelete, "/1/credentials/abc123/password", false},
		{http.MethodPut, "/1/settings/password", false},
		{http.MethodPut, "/1/credentials/abc123/passwordMustChange", false},
		{http.MethodPut, "/1/credentials//password", false},
		{http.MethodPut, "/1/credentials/password", false},
		{http.MethodPut, "/1/login", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, "http://acme.hivebase.io"+tc.path, nil)
		assert.Equal(t, tc.want, isPasswordChange(r), "%s %s", tc.method, tc.path)
	}
}

func TestRouter_SettingsRoundTrip(t *testing.T) {
	s := newTestServer(t, credential.DefaultPolicy())
	host := "acme.hivebase.io"
	s.seed(t, "acme", "alice", "password123")
	s.seed(t, "acme", "root", "rootpass123", credential.RoleSuperadmin)
	aliceToken := s.login(t, host, "alice", "password123")
	rootToken := s.login(t, host, "root", "rootpass123")

	// 1. Admin creates a document; plain PUT upserts at version 1
	rec := s.do(t, http.MethodPut, host, "/1/settings/branding", requestOpts{
		bearer: rootToken, body: map[string]string{"logo": "bee"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var doc struct {
		Version int64 `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, int64(1), doc.Version)

	// 2. A second plain PUT bumps the version
	rec = s.do(t, http.MethodPut, host, "/1/settings/branding", requestOpts{
		bearer: rootToken, body: map[string]string{"logo": "hive"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, int64(2), doc.Version)

	// 3. A stale explicit version is a conflict
	rec = s.do(t, http.MethodPut, host, "/1/settings/branding?version=1", requestOpts{
		bearer: rootToken, body: map[string]string{"logo": "wasp"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// 4. Settings are admin-only by default
	rec = s.do(t, http.MethodGet, host, "/1/settings/branding", requestOpts{bearer: aliceToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 5. The registered credentials policy document is validated
	rec = s.do(t, http.MethodPut, host, "/1/settings/credentials", requestOpts{
		bearer: rootToken, body: map[string]any{"noSuchField": true},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 6. Delete removes it
	rec = s.do(t, http.MethodDelete, host, "/1/settings/branding", requestOpts{bearer: rootToken})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, host, "/1/settings/branding", requestOpts{bearer: rootToken})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
