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
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hivebase/hivebase/internal/auth"
	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/settings"
)

// ListSettings returns the settings documents the caller may read.
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	rc, ok := GetRequestContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "request context missing")
		return
	}

	docs, err := h.settingsService.List(r.Context(), rc.Principal.Subject(), rc.Tenant.ID)
	if err != nil {
		respondWithError(w, err)
		return
	}

	out := map[string]any{}
	for _, doc := range docs {
		out[doc.Name] = doc.Data
	}
	respondJSON(w, http.StatusOK, out)
}

// GetSettings returns one settings document.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	rc, ok := GetRequestContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "request context missing")
		return
	}

	doc, err := h.settingsService.Get(r.Context(), rc.Principal.Subject(), rc.Tenant.ID, chi.URLParam(r, "name"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondSettings(w, doc)
}

// SetSettings writes a settings document through the version CAS. The
// expected version comes from the version query parameter; when absent,
// the current version is used so plain PUTs upsert.
func (h *Handler) SetSettings(w http.ResponseWriter, r *http.Request) {
	rc, ok := GetRequestContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "request context missing")
		return
	}

	name := chi.URLParam(r, "name")
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	expectedVersion, err := h.expectedSettingsVersion(r, rc, name)
	if err != nil {
		respondWithError(w, err)
		return
	}

	doc, err := h.settingsService.Set(
		r.Context(), rc.Principal.Subject(), rc.Tenant.ID, name, data, expectedVersion)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondSettings(w, doc)
}

// DeleteSettings removes a settings document.
func (h *Handler) DeleteSettings(w http.ResponseWriter, r *http.Request) {
	rc, ok := GetRequestContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "request context missing")
		return
	}

	if err := h.settingsService.Delete(
		r.Context(), rc.Principal.Subject(), rc.Tenant.ID, chi.URLParam(r, "name")); err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) expectedSettingsVersion(r *http.Request, rc auth.RequestContext, name string) (int64, error) {
	if raw := r.URL.Query().Get("version"); raw != "" {
		version, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || version < 0 {
			return 0, errs.New(errs.KindInvalidInput, "invalid version parameter")
		}
		return version, nil
	}

	doc, err := h.settingsService.Get(r.Context(), rc.Principal.Subject(), rc.Tenant.ID, name)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return doc.Version, nil
}

func respondSettings(w http.ResponseWriter, doc settings.Document) {
	respondJSON(w, http.StatusOK, map[string]any{
		"name":    doc.Name,
		"data":    doc.Data,
		"version": doc.Version,
	})
}
