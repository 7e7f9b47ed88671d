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

package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivebase/hivebase/internal/audit"
	"github.com/hivebase/hivebase/internal/credential"
	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/tenant"
)

// Scheme is the authorization scheme of a request.
type Scheme string

const (
	SchemeNone   Scheme = ""
	SchemeBasic  Scheme = "basic"
	SchemeBearer Scheme = "bearer"
)

// Data is the parsed content of a request's Authorization header. The
// transport layer parses the header; the engine never sees raw headers.
type Data struct {
	Scheme   Scheme
	Username string
	Password string
	Token    string
}

// Engine authenticates requests against the credential store and issues
// and revokes bearer sessions. It is stateless apart from the in-process
// superdog session registry.
type Engine struct {
	store          credential.Store
	policies       credential.PolicySource
	hasher         *credential.PasswordHasher
	superdogSecret string
	superdog       *superdogRegistry
	auditLogger    audit.Logger
	now            func() time.Time
}

// NewEngine creates an authentication engine. An empty superdogSecret
// disables superdog authentication entirely.
func NewEngine(
	store credential.Store,
	policies credential.PolicySource,
	hasher *credential.PasswordHasher,
	superdogSecret string,
	auditLogger audit.Logger,
) *Engine {
	return &Engine{
		store:          store,
		policies:       policies,
		hasher:         hasher,
		superdogSecret: superdogSecret,
		superdog:       newSuperdogRegistry(),
		auditLogger:    auditLogger,
		now:            time.Now,
	}
}

// Authenticate resolves the request's principal. No authorization data
// yields a guest, never an error. passwordChangeOp marks the one operation
// a password-must-change credential is still allowed to perform.
func (e *Engine) Authenticate(ctx context.Context, tnt tenant.Tenant, data Data, passwordChangeOp bool) (Principal, error) {
	switch data.Scheme {
	case SchemeNone:
		return Guest(tnt.ID), nil
	case SchemeBasic:
		c, err := e.challenge(ctx, tnt, data.Username, data.Password)
		if err != nil {
			return Principal{}, err
		}
		if c == nil {
			return Superdog(tnt.ID, ""), nil
		}
		if err := e.checkUsable(*c, passwordChangeOp); err != nil {
			return Principal{}, err
		}
		return fromCredential(*c, ""), nil
	case SchemeBearer:
		return e.authenticateToken(ctx, tnt, data.Token, passwordChangeOp)
	default:
		return Principal{}, errs.AccessTokenInvalid()
	}
}

// Login performs a password challenge and, on success, issues a new bearer
// session. A lifetime of zero requests the tenant policy's maximum;
// anything above the maximum is rejected, not clamped.
func (e *Engine) Login(ctx context.Context, tnt tenant.Tenant, data Data, lifetime time.Duration) (Principal, credential.Session, error) {
	if data.Scheme != SchemeBasic {
		return Principal{}, credential.Session{}, errs.Forbidden("login requires a password challenge")
	}

	policy, err := e.policies.CredentialsPolicy(ctx, tnt.ID)
	if err != nil {
		return Principal{}, credential.Session{}, fmt.Errorf("failed to load credentials policy: %w", err)
	}
	if lifetime == 0 {
		lifetime = policy.SessionMaximumLifetime()
	}
	if lifetime > policy.SessionMaximumLifetime() {
		return Principal{}, credential.Session{}, errs.Forbidden(
			"requested session lifetime exceeds the maximum of %s", policy.SessionMaximumLifetime())
	}

	c, err := e.challenge(ctx, tnt, data.Username, data.Password)
	if err != nil {
		return Principal{}, credential.Session{}, err
	}

	now := e.now()
	session := credential.NewSession(now, lifetime)

	if c == nil {
		// Superdog sessions live in the in-process registry.
		e.superdog.add(session)
		e.audit(ctx, audit.TypeLoginSuccess, tnt.ID, "", credential.RoleSuperdog)
		return Superdog(tnt.ID, session.Token), session, nil
	}

	if err := e.checkUsable(*c, false); err != nil {
		return Principal{}, credential.Session{}, err
	}

	updated := c.WithSession(session).PruneSessions(policy.SessionsSizeMax)
	updated.UpdatedAt = now
	persisted, err := e.store.Update(ctx, updated, updated.Version)
	if err != nil {
		return Principal{}, credential.Session{}, err
	}

	e.audit(ctx, audit.TypeLoginSuccess, tnt.ID, persisted.ID, persisted.Username)
	e.audit(ctx, audit.TypeSessionIssued, tnt.ID, persisted.ID, persisted.Username)
	return fromCredential(persisted, session.Token), session, nil
}

// SessionOf returns the session that authenticated the principal, if the
// request carried a bearer token.
func (e *Engine) SessionOf(p Principal) (credential.Session, bool) {
	if p.SessionToken == "" {
		return credential.Session{}, false
	}
	if p.IsSuperdog() {
		s, found, expired := e.superdog.lookup(p.SessionToken, e.now())
		if !found || expired {
			return credential.Session{}, false
		}
		return s, true
	}
	c, ok := p.Credential()
	if !ok {
		return credential.Session{}, false
	}
	return c.SessionByToken(p.SessionToken)
}

// Logout removes exactly the session that authenticated the principal. A
// principal without a current session (basic auth) is a no-op.
func (e *Engine) Logout(ctx context.Context, p Principal) error {
	if p.SessionToken == "" {
		return nil
	}

	if p.IsSuperdog() {
		e.superdog.remove(p.SessionToken)
		e.audit(ctx, audit.TypeLogout, p.TenantID, "", p.Username)
		return nil
	}

	c, ok := p.Credential()
	if !ok {
		return nil
	}

	updated, removed := c.DropSession(p.SessionToken)
	if !removed {
		return nil
	}
	updated.UpdatedAt = e.now()
	if _, err := e.store.Update(ctx, updated, updated.Version); err != nil {
		return err
	}

	e.audit(ctx, audit.TypeLogout, p.TenantID, c.ID, c.Username)
	return nil
}

// challenge verifies a username/password pair. It returns nil for a
// successful superdog challenge and a credential otherwise. Every failure
// is the same InvalidCredentials, whichever check tripped.
func (e *Engine) challenge(ctx context.Context, tnt tenant.Tenant, username, password string) (*credential.Credential, error) {
	if username == credential.RoleSuperdog {
		if e.superdogSecret == "" ||
			subtle.ConstantTimeCompare([]byte(password), []byte(e.superdogSecret)) != 1 {
			e.audit(ctx, audit.TypeLoginFailed, tnt.ID, "", username)
			return nil, errs.InvalidCredentials()
		}
		return nil, nil
	}

	c, err := e.store.GetByUsername(ctx, tnt.ID, username)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			e.audit(ctx, audit.TypeLoginFailed, tnt.ID, "", username)
			return nil, errs.InvalidCredentials()
		}
		return nil, err
	}

	ok := false
	if c.PasswordHash != "" {
		ok, err = e.hasher.Verify(password, c.PasswordHash)
		if err != nil {
			ok = false
		}
	}
	if !ok {
		e.recordInvalidChallenge(ctx, tnt, c)
		e.audit(ctx, audit.TypeLoginFailed, tnt.ID, c.ID, username)
		return nil, errs.InvalidCredentials()
	}

	return &c, nil
}

// recordInvalidChallenge runs the lockout update after a failed password
// challenge. This is the one mutation allowed on a failed authentication;
// a persistence failure here is logged and never masks the
// InvalidCredentials outcome.
func (e *Engine) recordInvalidChallenge(ctx context.Context, tnt tenant.Tenant, c credential.Credential) {
	policy, err := e.policies.CredentialsPolicy(ctx, tnt.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load credentials policy for lockout update",
			slog.String("tenant_id", tnt.ID), slog.Any("error", err))
		return
	}
	if policy.MaximumInvalidChallenges == 0 {
		return
	}

	now := e.now()
	updated := c.RecordInvalidChallenge(now, policy.InvalidChallengeResetWindow())
	if updated.InvalidChallenges >= policy.MaximumInvalidChallenges {
		updated = updated.Disable()
		e.audit(ctx, audit.TypeCredentialDisabled, tnt.ID, c.ID, c.Username)
	}
	updated.UpdatedAt = now

	if _, err := e.store.Update(ctx, updated, updated.Version); err != nil {
		slog.ErrorContext(ctx, "failed to persist lockout update",
			slog.String("tenant_id", tnt.ID),
			slog.String("credential_id", c.ID),
			slog.Any("error", err))
	}
}

func (e *Engine) authenticateToken(ctx context.Context, tnt tenant.Tenant, token string, passwordChangeOp bool) (Principal, error) {
	now := e.now()

	if _, found, expired := e.superdog.lookup(token, now); found || expired {
		if expired {
			return Principal{}, errs.AccessTokenExpired()
		}
		return Superdog(tnt.ID, token), nil
	}

	c, err := e.store.GetByToken(ctx, tnt.ID, token)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return Principal{}, errs.AccessTokenInvalid()
		}
		return Principal{}, err
	}

	session, ok := c.SessionByToken(token)
	if !ok {
		return Principal{}, errs.AccessTokenInvalid()
	}
	if session.Expired(now) {
		return Principal{}, errs.AccessTokenExpired()
	}

	if err := e.checkUsable(c, passwordChangeOp); err != nil {
		return Principal{}, err
	}
	return fromCredential(c, token), nil
}

// checkUsable applies the post-challenge gates shared by basic and bearer
// authentication.
func (e *Engine) checkUsable(c credential.Credential, passwordChangeOp bool) error {
	if !c.EnabledAt(e.now()) {
		return errs.AccountDisabled(c.Username)
	}
	if c.PasswordMustChange && !passwordChangeOp {
		return errs.MustChangePassword(c.Username)
	}
	return nil
}

func (e *Engine) audit(ctx context.Context, eventType, tenantID, actorID, resource string) {
	e.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: resource,
	})
}
