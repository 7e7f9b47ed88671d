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
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hivebase/hivebase/internal/auth"
	"github.com/hivebase/hivebase/internal/credential"
	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/permission"
)

// ListCredentials pages through the tenant's credentials. Admin and above
// only, through the permission engine's administrative bypass.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	rc, ok := GetRequestContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "request context missing")
		return
	}

	if err := h.permEngine.Check(rc.Principal.Subject(), permission.TypeCredentials,
		permission.Resource{}, permission.Search); err != nil {
		respondWithError(w, err)
		return
	}

	from, _ := strconv.Atoi(r.URL.Query().Get("from"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	results, total, err := h.credService.List(r.Context(), rc.Tenant.ID, from, size)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if results == nil {
		results = []credential.Credential{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total":   total,
		"results": results,
	})
}

// CreateCredential creates a credential. Anonymous signup is allowed only
// when the tenant policy enables it; requested roles require a requester
// that outranks the role's managing level.
func (h *Handler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	rc, ok := GetRequestContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "request context missing")
		return
	}

	if rc.Principal.IsGuest() {
		policy, err := h.policies.CredentialsPolicy(r.Context(), rc.Tenant.ID)
		if err != nil {
			respondWithError(w, err)
			return
		}
		if !policy.GuestSignUpEnabled {
			respondWithError(w, errs.Forbidden("guest sign up is disabled in tenant [%s]", rc.Tenant.ID))
			return
		}
	}

	var body struct {
		Username string   `json:"username"`
		Password string   `json:"password"`
		Email    string   `json:"email"`
		Roles    []string `json:"roles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.credService.Create(r.Context(), rc.Tenant.ID, credential.CreateRequest{
		Username: body.Username,
		Password: body.Password,
		Email:    body.Email,
		Roles:    body.Roles,
	}, rc.Principal.Level)
	if err != nil {
		respondWithError(w, err)
		return
	}

	resp := map[string]any{"id": created.ID, "credentials": created}
	if created.PasswordResetCode != "" {
		resp["passwordResetCode"] = created.PasswordResetCode
	}
	respondJSON(w, http.StatusCreated, resp)
}

// ForgotPassword installs a fresh reset code and triggers the external
// notification collaborator. Anonymous by design.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	rc, ok := GetRequestContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "request context missing")
		return
	}

	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.credService.ForgotPassword(r.Context(), rc.Tenant.ID, body.Username); err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetCredential returns a credential's public view, for its owner or a
// reader the permission matrix allows.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	rc, target, err := h.resolveTarget(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	if err := h.permEngine.Check(rc.Principal.Subject(), permission.TypeCredentials,
		permission.Resource{OwnerID: target.ID, GroupID: target.GroupID},
		permission.Read, permission.ReadMine); err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, target)
}

// UpdateCredential updates a credential's mutable profile fields.
func (h *Handler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	rc, target, err := h.resolveTarget(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	if err := h.permEngine.Check(rc.Principal.Subject(), permission.TypeCredentials,
		permission.Resource{OwnerID: target.ID, GroupID: target.GroupID},
		permission.Update, permission.UpdateMine); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.requireManage(rc.Principal, target); err != nil {
		respondWithError(w, err)
		return
	}

	var body struct {
		Email   *string            `json:"email"`
		GroupID *string            `json:"groupId"`
		Tags    *map[string]string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated := target.Clone()
	if body.Email != nil {
		updated.Email = *body.Email
	}
	if body.GroupID != nil {
		updated.GroupID = *body.GroupID
	}
	if body.Tags != nil {
		updated.Tags = *body.Tags
	}

	saved, err := h.credService.Save(r.Context(), updated)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

// DeleteCredential deletes a credential, honoring the last-superadmin
// guard.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	rc, target, err := h.resolveTarget(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	if err := h.permEngine.Check(rc.Principal.Subject(), permission.TypeCredentials,
		permission.Resource{OwnerID: target.ID, GroupID: target.GroupID},
		permission.Delete, permission.DeleteMine); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.requireManage(rc.Principal, target); err != nil {
		respondWithError(w, err)
		return
	}

	if err := h.credService.Delete(r.Context(), rc.Tenant.ID, target.ID); err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SetPassword changes a credential's password. With a reset code the
// caller needs no session; otherwise the caller must be the owner or an
// admin able to manage the target.
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	rc, target, err := h.resolveTarget(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	var body struct {
		Password  string `json:"password"`
		ResetCode string `json:"resetCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var updated credential.Credential
	if body.ResetCode != "" {
		updated, err = h.credService.SetPasswordWithCode(
			r.Context(), rc.Tenant.ID, target.ID, body.ResetCode, body.Password)
	} else {
		if rc.Principal.IsGuest() {
			respondWithError(w, errs.Forbidden("a password reset code or an authenticated session is required"))
			return
		}
		if err := h.requireManage(rc.Principal, target); err != nil {
			respondWithError(w, err)
			return
		}
		updated, err = h.credService.SetPassword(r.Context(), rc.Tenant.ID, target.ID, body.Password)
	}
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// ResetPassword clears the password and returns a fresh reset code. Admin
// only.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	rc, target, err := h.resolveTarget(r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.requireAdminManage(rc.Principal, target); err != nil {
		respondWithError(w, err)
		return
	}

	_, code, err := h.credService.ResetPassword(r.Context(), rc.Tenant.ID, target.ID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"passwordResetCode": code})
}

// SetPasswordMustChange soft-locks a credential until its next password
// change. Admin only.
func (h *Handler) SetPasswordMustChange(w http.ResponseWriter, r *http.Request) {
	rc, target, err := h.resolveTarget(r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.requireAdminManage(rc.Principal, target); err != nil {
		respondWithError(w, err)
		return
	}

	if _, err := h.credService.SetPasswordMustChange(r.Context(), rc.Tenant.ID, target.ID); err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SetEnabled enables or disables a credential, optionally with an
// enable-after/disable-after schedule. Admin only.
func (h *Handler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	rc, target, err := h.resolveTarget(r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.requireAdminManage(rc.Principal, target); err != nil {
		respondWithError(w, err)
		return
	}

	var body struct {
		Enabled      *bool      `json:"enabled"`
		EnableAfter  *time.Time `json:"enableAfter"`
		DisableAfter *time.Time `json:"disableAfter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		respondError(w, http.StatusBadRequest, "invalid request body: enabled is required")
		return
	}

	updated, err := h.credService.SetEnabled(r.Context(), rc.Tenant.ID, target.ID, *body.Enabled)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if body.EnableAfter != nil || body.DisableAfter != nil {
		updated, err = h.credService.SetSchedule(
			r.Context(), rc.Tenant.ID, target.ID, body.EnableAfter, body.DisableAfter)
		if err != nil {
			respondWithError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, updated)
}

// GetRoles returns a credential's roles.
func (h *Handler) GetRoles(w http.ResponseWriter, r *http.Request) {
	rc, target, err := h.resolveTarget(r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.permEngine.Check(rc.Principal.Subject(), permission.TypeCredentials,
		permission.Resource{OwnerID: target.ID, GroupID: target.GroupID},
		permission.Read, permission.ReadMine); err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, target.Roles)
}

// AddRole grants a role. Admin only, subject to the role's managing level.
func (h *Handler) AddRole(w http.ResponseWriter, r *http.Request) {
	rc, target, err := h.resolveTarget(r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.requireAdminManage(rc.Principal, target); err != nil {
		respondWithError(w, err)
		return
	}

	updated, err := h.credService.AddRole(
		r.Context(), rc.Tenant.ID, target.ID, chi.URLParam(r, "role"), rc.Principal.Level)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated.Roles)
}

// RemoveRole revokes a role. Admin only, subject to the role's managing
// level.
func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	rc, target, err := h.resolveTarget(r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.requireAdminManage(rc.Principal, target); err != nil {
		respondWithError(w, err)
		return
	}

	updated, err := h.credService.RemoveRole(
		r.Context(), rc.Tenant.ID, target.ID, chi.URLParam(r, "role"), rc.Principal.Level)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated.Roles)
}

// resolveTarget loads the credential a /1/credentials/{id} route acts on,
// mapping the "me" alias to the authenticated principal.
func (h *Handler) resolveTarget(r *http.Request) (auth.RequestContext, credential.Credential, error) {
	rc, ok := GetRequestContext(r.Context())
	if !ok {
		return auth.RequestContext{}, credential.Credential{},
			errs.IntegrityViolation("request context missing")
	}

	id := chi.URLParam(r, "id")
	if id == "me" {
		if rc.Principal.IsGuest() || rc.Principal.ID == "" {
			return rc, credential.Credential{},
				errs.New(errs.KindInvalidCredentials, "authentication required")
		}
		id = rc.Principal.ID
	}

	target, err := h.credService.GetByID(r.Context(), rc.Tenant.ID, id)
	if err != nil {
		return rc, credential.Credential{}, err
	}
	return rc, target, nil
}

// requireManage enforces the hierarchy rule on mutations: acting on
// oneself is always allowed, acting on another requires admin level and a
// target at or below the requester's level.
func (h *Handler) requireManage(p auth.Principal, target credential.Credential) error {
	if p.ID != "" && p.ID == target.ID {
		return nil
	}
	if !p.AtLeast(credential.LevelAdmin) {
		return errs.InsufficientPrivilege("administrator privilege required")
	}
	if !p.CanManage(target) {
		return errs.InsufficientPrivilege(
			"cannot manage a credential of level [%s]", target.Level())
	}
	return nil
}

// requireAdminManage is requireManage without the self shortcut: even on
// oneself these operations need admin level.
func (h *Handler) requireAdminManage(p auth.Principal, target credential.Credential) error {
	if !p.AtLeast(credential.LevelAdmin) {
		return errs.InsufficientPrivilege("administrator privilege required")
	}
	if !p.CanManage(target) {
		return errs.InsufficientPrivilege(
			"cannot manage a credential of level [%s]", target.Level())
	}
	return nil
}
