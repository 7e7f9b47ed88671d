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
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/hivebase/hivebase/internal/audit"
	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/id"
)

// Notifier delivers out-of-band messages triggered by credential
// operations, such as password reset codes. Mail delivery lives outside
// this core; the default implementation only logs.
type Notifier interface {
	PasswordResetRequested(ctx context.Context, c Credential, resetCode string) error
}

// LogNotifier logs notifications instead of delivering them.
type LogNotifier struct{}

// PasswordResetRequested implements Notifier.
func (LogNotifier) PasswordResetRequested(ctx context.Context, c Credential, resetCode string) error {
	slog.InfoContext(ctx, "password reset requested",
		slog.String("tenant_id", c.TenantID),
		slog.String("credential_id", c.ID),
		slog.String("username", c.Username),
	)
	return nil
}

// Service provides credential-related business logic. All mutations go
// through save, which prunes sessions to the tenant policy's maximum,
// refreshes updatedAt, and writes through the store's compare-and-swap.
type Service struct {
	store       Store
	hasher      *PasswordHasher
	policies    PolicySource
	notifier    Notifier
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new credential service.
func NewService(
	store Store,
	hasher *PasswordHasher,
	policies PolicySource,
	notifier Notifier,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		store:       store,
		hasher:      hasher,
		policies:    policies,
		notifier:    notifier,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// CreateRequest carries the fields a caller may set when creating a
// credential.
type CreateRequest struct {
	Username string
	Password string
	Email    string
	Roles    []string
}

// Create creates a credential in a tenant. Username uniqueness is checked
// here only; the unique index in the store backs it up under races. When no
// password is given the credential starts with a reset code instead, to be
// exchanged for a password later. Requested roles beyond the default
// require the requester to outrank the role's managing level.
func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest, requester Level) (Credential, error) {
	policy, err := s.policies.CredentialsPolicy(ctx, tenantID)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to load credentials policy: %w", err)
	}

	if err := validate(req.Username, policy.UsernameRegex, "username"); err != nil {
		return Credential{}, err
	}

	if _, err := s.store.GetByUsername(ctx, tenantID, req.Username); err == nil {
		return Credential{}, errs.AlreadyExists("username", req.Username)
	} else if !errs.IsKind(err, errs.KindNotFound) {
		return Credential{}, err
	}

	for _, role := range req.Roles {
		if !requester.CanManageRole(role) {
			return Credential{}, errs.InsufficientPrivilege("role %q requires a higher privilege to assign", role)
		}
	}

	now := s.now()
	c := New(tenantID, req.Username)
	c.ID = id.NewUUIDv7()
	c.Email = req.Email
	c.Roles = req.Roles
	if len(c.Roles) == 0 {
		c.Roles = []string{RoleUser}
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	if req.Password != "" {
		if err := validate(req.Password, policy.PasswordRegex, "password"); err != nil {
			return Credential{}, err
		}
		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return Credential{}, fmt.Errorf("failed to hash password: %w", err)
		}
		c.PasswordHash = hash
	} else {
		c.PasswordResetCode = id.NewResetCode()
	}

	created, err := s.store.Create(ctx, c)
	if err != nil {
		return Credential{}, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCredentialCreated,
		TenantID: tenantID,
		ActorID:  created.ID,
		Resource: created.Username,
	})
	return created, nil
}

// GetByID retrieves a credential by id within a tenant.
func (s *Service) GetByID(ctx context.Context, tenantID, credentialID string) (Credential, error) {
	return s.store.GetByID(ctx, tenantID, credentialID)
}

// GetByUsername retrieves a credential by username within a tenant.
func (s *Service) GetByUsername(ctx context.Context, tenantID, username string) (Credential, error) {
	return s.store.GetByUsername(ctx, tenantID, username)
}

// List pages through a tenant's credentials, returning the page and the
// total count.
func (s *Service) List(ctx context.Context, tenantID string, from, size int) ([]Credential, int, error) {
	if from < 0 {
		from = 0
	}
	if size <= 0 {
		size = 10
	}
	return s.store.List(ctx, tenantID, from, size)
}

// Delete deletes a credential. A tenant's last superadmin cannot be
// deleted; the tenant would become unmanageable.
func (s *Service) Delete(ctx context.Context, tenantID, credentialID string) error {
	c, err := s.store.GetByID(ctx, tenantID, credentialID)
	if err != nil {
		return err
	}

	if c.HasRole(RoleSuperadmin) {
		count, err := s.store.CountSuperadmins(ctx, tenantID)
		if err != nil {
			return err
		}
		if count <= 1 {
			return errs.Forbidden("cannot delete the last superadmin of tenant %q", tenantID)
		}
	}

	if err := s.store.Delete(ctx, tenantID, credentialID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCredentialDeleted,
		TenantID: tenantID,
		ActorID:  credentialID,
		Resource: c.Username,
	})
	return nil
}

// SetPassword replaces a credential's password, revoking sessions and the
// reset code in the process.
func (s *Service) SetPassword(ctx context.Context, tenantID, credentialID, password string) (Credential, error) {
	c, err := s.store.GetByID(ctx, tenantID, credentialID)
	if err != nil {
		return Credential{}, err
	}
	return s.setPassword(ctx, c, password)
}

// SetPasswordWithCode replaces a credential's password after checking the
// single-use reset code.
func (s *Service) SetPasswordWithCode(ctx context.Context, tenantID, credentialID, resetCode, password string) (Credential, error) {
	c, err := s.store.GetByID(ctx, tenantID, credentialID)
	if err != nil {
		return Credential{}, err
	}
	if c.PasswordResetCode == "" || c.PasswordResetCode != resetCode {
		return Credential{}, errs.Forbidden("invalid password reset code")
	}
	return s.setPassword(ctx, c, password)
}

func (s *Service) setPassword(ctx context.Context, c Credential, password string) (Credential, error) {
	policy, err := s.policies.CredentialsPolicy(ctx, c.TenantID)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to load credentials policy: %w", err)
	}
	if err := validate(password, policy.PasswordRegex, "password"); err != nil {
		return Credential{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to hash password: %w", err)
	}

	updated, err := s.save(ctx, c.WithPasswordHash(hash))
	if err != nil {
		return Credential{}, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordChanged,
		TenantID: c.TenantID,
		ActorID:  c.ID,
		Resource: c.Username,
	})
	return updated, nil
}

// ResetPassword clears a credential's password and returns a fresh reset
// code. Admin operation; the code is handed to the user out of band.
func (s *Service) ResetPassword(ctx context.Context, tenantID, credentialID string) (Credential, string, error) {
	c, err := s.store.GetByID(ctx, tenantID, credentialID)
	if err != nil {
		return Credential{}, "", err
	}

	code := id.NewResetCode()
	updated, err := s.save(ctx, c.WithResetCode(code))
	if err != nil {
		return Credential{}, "", err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordReset,
		TenantID: tenantID,
		ActorID:  credentialID,
		Resource: c.Username,
	})
	return updated, code, nil
}

// ForgotPassword installs a fresh reset code and hands it to the notifier.
// Looks up by username since the caller is unauthenticated.
func (s *Service) ForgotPassword(ctx context.Context, tenantID, username string) error {
	c, err := s.store.GetByUsername(ctx, tenantID, username)
	if err != nil {
		return err
	}

	code := id.NewResetCode()
	updated, err := s.save(ctx, c.WithResetCode(code))
	if err != nil {
		return err
	}

	if err := s.notifier.PasswordResetRequested(ctx, updated, code); err != nil {
		return fmt.Errorf("failed to notify password reset: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordReset,
		TenantID: tenantID,
		ActorID:  c.ID,
		Resource: c.Username,
	})
	return nil
}

// SetPasswordMustChange soft-locks the credential until its password is
// changed.
func (s *Service) SetPasswordMustChange(ctx context.Context, tenantID, credentialID string) (Credential, error) {
	c, err := s.store.GetByID(ctx, tenantID, credentialID)
	if err != nil {
		return Credential{}, err
	}
	return s.save(ctx, c.WithPasswordMustChange())
}

// SetEnabled enables or disables a credential. Enabling also clears the
// lockout counters so a locked-out account becomes usable again.
func (s *Service) SetEnabled(ctx context.Context, tenantID, credentialID string, enabled bool) (Credential, error) {
	c, err := s.store.GetByID(ctx, tenantID, credentialID)
	if err != nil {
		return Credential{}, err
	}

	eventType := audit.TypeCredentialDisabled
	if enabled {
		c = c.Enable()
		eventType = audit.TypeCredentialEnabled
	} else {
		c = c.Disable()
	}

	updated, err := s.save(ctx, c)
	if err != nil {
		return Credential{}, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		TenantID: tenantID,
		ActorID:  credentialID,
		Resource: c.Username,
	})
	return updated, nil
}

// SetSchedule updates the enable-after/disable-after window.
func (s *Service) SetSchedule(ctx context.Context, tenantID, credentialID string, enableAfter, disableAfter *time.Time) (Credential, error) {
	c, err := s.store.GetByID(ctx, tenantID, credentialID)
	if err != nil {
		return Credential{}, err
	}
	return s.save(ctx, c.WithSchedule(enableAfter, disableAfter))
}

// AddRole grants a role. The requester must outrank the role's managing
// level.
func (s *Service) AddRole(ctx context.Context, tenantID, credentialID, role string, requester Level) (Credential, error) {
	if !requester.CanManageRole(role) {
		return Credential{}, errs.InsufficientPrivilege("role %q requires a higher privilege to assign", role)
	}

	c, err := s.store.GetByID(ctx, tenantID, credentialID)
	if err != nil {
		return Credential{}, err
	}

	updated, err := s.save(ctx, c.WithRole(role))
	if err != nil {
		return Credential{}, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		TenantID: tenantID,
		ActorID:  credentialID,
		Resource: c.Username,
		Metadata: map[string]any{audit.AttrRole: role},
	})
	return updated, nil
}

// RemoveRole revokes a role under the same privilege rule as AddRole.
func (s *Service) RemoveRole(ctx context.Context, tenantID, credentialID, role string, requester Level) (Credential, error) {
	if !requester.CanManageRole(role) {
		return Credential{}, errs.InsufficientPrivilege("role %q requires a higher privilege to revoke", role)
	}

	c, err := s.store.GetByID(ctx, tenantID, credentialID)
	if err != nil {
		return Credential{}, err
	}

	updated, err := s.save(ctx, c.WithoutRole(role))
	if err != nil {
		return Credential{}, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		TenantID: tenantID,
		ActorID:  credentialID,
		Resource: c.Username,
		Metadata: map[string]any{audit.AttrRole: role},
	})
	return updated, nil
}

// Save persists an already mutated credential through the policy-pruning
// write path. Collaborators such as the authentication engine use it for
// session mutations.
func (s *Service) Save(ctx context.Context, c Credential) (Credential, error) {
	return s.save(ctx, c)
}

func (s *Service) save(ctx context.Context, c Credential) (Credential, error) {
	policy, err := s.policies.CredentialsPolicy(ctx, c.TenantID)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to load credentials policy: %w", err)
	}
	c = c.PruneSessions(policy.SessionsSizeMax)
	c.UpdatedAt = s.now()
	return s.store.Update(ctx, c, c.Version)
}

func validate(value, pattern, field string) error {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return errs.IntegrityViolation("invalid %s policy pattern", field)
	}
	if !re.MatchString(value) {
		return errs.New(errs.KindInvalidInput, "invalid %s", field)
	}
	return nil
}
