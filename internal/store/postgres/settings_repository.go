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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/settings"
)

// SettingsRepository implements settings.Store on PostgreSQL.
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves a settings document.
func (r *SettingsRepository) Get(ctx context.Context, tenantID, name string) (settings.Document, error) {
	doc := settings.Document{TenantID: tenantID, Name: name}
	err := r.db.pool.QueryRow(ctx, `
		SELECT data, version, created_at, updated_at
		FROM settings
		WHERE tenant_id = $1 AND name = $2
	`, tenantID, name).Scan(&doc.Data, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settings.Document{}, errs.NotFound("settings", name)
		}
		return settings.Document{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return doc, nil
}

// Put writes a settings document through the version compare-and-swap.
// expectedVersion 0 creates the document.
func (r *SettingsRepository) Put(ctx context.Context, doc settings.Document, expectedVersion int64) (settings.Document, error) {
	if expectedVersion == 0 {
		doc.Version = 1
		_, err := r.db.pool.Exec(ctx, `
			INSERT INTO settings (tenant_id, name, data, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, doc.TenantID, doc.Name, doc.Data, doc.Version, doc.CreatedAt, doc.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return settings.Document{}, errs.AlreadyExists("settings", doc.Name)
			}
			return settings.Document{}, fmt.Errorf("failed to insert settings: %w", err)
		}
		return doc, nil
	}

	doc.Version = expectedVersion + 1
	result, err := r.db.pool.Exec(ctx, `
		UPDATE settings SET data = $4, version = $5, updated_at = $6
		WHERE tenant_id = $1 AND name = $2 AND version = $3
	`, doc.TenantID, doc.Name, expectedVersion, doc.Data, doc.Version, doc.UpdatedAt)
	if err != nil {
		return settings.Document{}, fmt.Errorf("failed to update settings: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.Get(ctx, doc.TenantID, doc.Name); err != nil {
			return settings.Document{}, err
		}
		return settings.Document{}, errs.Conflict("settings", doc.Name)
	}
	return doc, nil
}

// Delete removes a settings document.
func (r *SettingsRepository) Delete(ctx context.Context, tenantID, name string) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM settings WHERE tenant_id = $1 AND name = $2
	`, tenantID, name)
	if err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.NotFound("settings", name)
	}
	return nil
}

// List returns the tenant's settings documents ordered by name.
func (r *SettingsRepository) List(ctx context.Context, tenantID string) ([]settings.Document, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT name, data, version, created_at, updated_at
		FROM settings
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var docs []settings.Document
	for rows.Next() {
		doc := settings.Document{TenantID: tenantID}
		if err := rows.Scan(&doc.Name, &doc.Data, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settings: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return docs, nil
}
