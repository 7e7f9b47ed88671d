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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hivebase/hivebase/internal/credential"
	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/tenant"
)

const credentialColumns = `
	id, tenant_id, username, email, enabled, enable_after, disable_after,
	roles, group_id, tags, password_must_change, invalid_challenges,
	last_invalid_challenge_at, password_hash, password_reset_code, sessions,
	created_at, updated_at, version`

// CredentialRepository implements credential.Store on PostgreSQL. Every
// row carries the physical namespace resolved through the tenant catalog,
// so a namespace repoint leaves old rows queryable during a migration.
type CredentialRepository struct {
	db      *DB
	catalog *tenant.Catalog
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(db *DB, catalog *tenant.Catalog) *CredentialRepository {
	return &CredentialRepository{db: db, catalog: catalog}
}

func (r *CredentialRepository) namespace(tenantID string) string {
	return r.catalog.Resolve(tenant.Tenant{ID: tenantID}, "", "credentials").PhysicalID
}

// Create inserts a credential. The unique index on (tenant_id, username)
// backs up the service-level uniqueness check under races.
func (r *CredentialRepository) Create(ctx context.Context, c credential.Credential) (credential.Credential, error) {
	c.Version = 1
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO credentials (
			id, tenant_id, namespace, username, email, enabled, enable_after,
			disable_after, roles, group_id, tags, password_must_change,
			invalid_challenges, last_invalid_challenge_at, password_hash,
			password_reset_code, sessions, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		c.ID, c.TenantID, r.namespace(c.TenantID), c.Username, c.Email, c.Enabled,
		c.EnableAfter, c.DisableAfter, rolesOrEmpty(c.Roles), c.GroupID, c.Tags,
		c.PasswordMustChange, c.InvalidChallenges, c.LastInvalidChallengeAt,
		c.PasswordHash, c.PasswordResetCode, sessionsOrEmpty(c.Sessions),
		c.CreatedAt, c.UpdatedAt, c.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return credential.Credential{}, errs.AlreadyExists("username", c.Username)
		}
		return credential.Credential{}, fmt.Errorf("failed to insert credential: %w", err)
	}
	return c, nil
}

// GetByID retrieves a credential by id within a tenant.
func (r *CredentialRepository) GetByID(ctx context.Context, tenantID, id string) (credential.Credential, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	c, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return credential.Credential{}, errs.NotFound("credential", id)
		}
		return credential.Credential{}, fmt.Errorf("failed to get credential: %w", err)
	}
	return c, nil
}

// GetByUsername retrieves a credential by username within a tenant. More
// than one match means the unique index is broken and is reported as an
// integrity violation.
func (r *CredentialRepository) GetByUsername(ctx context.Context, tenantID, username string) (credential.Credential, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE tenant_id = $1 AND username = $2
	`, tenantID, username)
	if err != nil {
		return credential.Credential{}, fmt.Errorf("failed to query credential: %w", err)
	}
	matches, err := collectCredentials(rows)
	if err != nil {
		return credential.Credential{}, err
	}
	switch len(matches) {
	case 0:
		return credential.Credential{}, errs.NotFound("credential with username", username)
	case 1:
		return matches[0], nil
	default:
		return credential.Credential{}, errs.IntegrityViolation(
			"more than one credential with username [%s] in tenant [%s]", username, tenantID)
	}
}

// GetByToken retrieves the credential holding a session with the token.
func (r *CredentialRepository) GetByToken(ctx context.Context, tenantID, token string) (credential.Credential, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE tenant_id = $1
		  AND sessions @> jsonb_build_array(jsonb_build_object('token', $2::text))
	`, tenantID, token)
	if err != nil {
		return credential.Credential{}, fmt.Errorf("failed to query credential by token: %w", err)
	}
	matches, err := collectCredentials(rows)
	if err != nil {
		return credential.Credential{}, err
	}
	switch len(matches) {
	case 0:
		return credential.Credential{}, errs.NotFound("credential with token", "***")
	case 1:
		return matches[0], nil
	default:
		return credential.Credential{}, errs.IntegrityViolation(
			"more than one credential holds the same access token in tenant [%s]", tenantID)
	}
}

// Update writes a credential through the version compare-and-swap. A
// version mismatch on an existing row is a Conflict; the caller re-reads
// and retries.
func (r *CredentialRepository) Update(ctx context.Context, c credential.Credential, expectedVersion int64) (credential.Credential, error) {
	c.Version = expectedVersion + 1
	result, err := r.db.pool.Exec(ctx, `
		UPDATE credentials SET
			username = $4, email = $5, enabled = $6, enable_after = $7,
			disable_after = $8, roles = $9, group_id = $10, tags = $11,
			password_must_change = $12, invalid_challenges = $13,
			last_invalid_challenge_at = $14, password_hash = $15,
			password_reset_code = $16, sessions = $17, updated_at = $18,
			version = $19
		WHERE tenant_id = $1 AND id = $2 AND version = $3
	`,
		c.TenantID, c.ID, expectedVersion,
		c.Username, c.Email, c.Enabled, c.EnableAfter, c.DisableAfter,
		rolesOrEmpty(c.Roles), c.GroupID, c.Tags, c.PasswordMustChange,
		c.InvalidChallenges, c.LastInvalidChallengeAt, c.PasswordHash,
		c.PasswordResetCode, sessionsOrEmpty(c.Sessions), c.UpdatedAt, c.Version,
	)
	if err != nil {
		return credential.Credential{}, fmt.Errorf("failed to update credential: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, c.TenantID, c.ID); err != nil {
			return credential.Credential{}, err
		}
		return credential.Credential{}, errs.Conflict("credential", c.ID)
	}
	return c, nil
}

// Delete removes a credential.
func (r *CredentialRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM credentials WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.NotFound("credential", id)
	}
	return nil
}

// CountSuperadmins counts the tenant's superadmin credentials.
func (r *CredentialRepository) CountSuperadmins(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM credentials
		WHERE tenant_id = $1 AND roles @> $2
	`, tenantID, []string{credential.RoleSuperadmin}).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count superadmins: %w", err)
	}
	return count, nil
}

// List pages through a tenant's credentials ordered by username.
func (r *CredentialRepository) List(ctx context.Context, tenantID string, from, size int) ([]credential.Credential, int, error) {
	var total int
	if err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM credentials WHERE tenant_id = $1
	`, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count credentials: %w", err)
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE tenant_id = $1
		ORDER BY username
		OFFSET $2 LIMIT $3
	`, tenantID, from, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list credentials: %w", err)
	}
	matches, err := collectCredentials(rows)
	if err != nil {
		return nil, 0, err
	}
	return matches, total, nil
}

// PurgeExpiredSessions drops expired sessions from every credential and
// returns the number of credentials touched. Run periodically by the
// cleanup job; the version bump keeps concurrent CAS writers honest.
func (r *CredentialRepository) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE credentials SET
			sessions = (
				SELECT COALESCE(jsonb_agg(s), '[]'::jsonb)
				FROM jsonb_array_elements(sessions) s
				WHERE (s->>'expiresAt')::timestamptz > $1
			),
			updated_at = $1,
			version = version + 1
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(sessions) s
			WHERE (s->>'expiresAt')::timestamptz <= $1
		)
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (credential.Credential, error) {
	var c credential.Credential
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Username, &c.Email, &c.Enabled,
		&c.EnableAfter, &c.DisableAfter, &c.Roles, &c.GroupID, &c.Tags,
		&c.PasswordMustChange, &c.InvalidChallenges, &c.LastInvalidChallengeAt,
		&c.PasswordHash, &c.PasswordResetCode, &c.Sessions,
		&c.CreatedAt, &c.UpdatedAt, &c.Version,
	)
	return c, err
}

func collectCredentials(rows pgx.Rows) ([]credential.Credential, error) {
	defer rows.Close()
	var out []credential.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	return out, nil
}

func rolesOrEmpty(roles []string) []string {
	if roles == nil {
		return []string{}
	}
	return roles
}

func sessionsOrEmpty(sessions []credential.Session) []credential.Session {
	if sessions == nil {
		return []credential.Session{}
	}
	return sessions
}
