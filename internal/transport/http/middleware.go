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
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hivebase/hivebase/internal/auth"
	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/observability/logger"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// TenantMiddleware resolves the request's tenant from the Host header
// before any authentication runs. Resolution is total: hosts outside the
// platform domain fall back to the default tenant.
func (h *Handler) TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := h.resolver.Resolve(r.Host)
		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), t)))
	})
}

// AuthMiddleware authenticates the request and installs the per-request
// context. Requests without an Authorization header proceed as guest;
// handlers enforce their own privilege floor.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, ok := GetTenant(r.Context())
		if !ok {
			respondError(w, http.StatusInternalServerError, "tenant not resolved")
			return
		}

		data, err := parseAuthorization(r)
		if err != nil {
			respondWithError(w, err)
			return
		}

		principal, err := h.engine.Authenticate(r.Context(), t, data, isPasswordChange(r))
		if err != nil {
			respondWithError(w, err)
			return
		}

		rc := auth.RequestContext{
			Tenant:    t,
			Principal: principal,
			Debug:     r.URL.Query().Get("debug") == "true",
		}
		next.ServeHTTP(w, r.WithContext(withRequestContext(r.Context(), rc)))
	})
}

// isPasswordChange marks the one operation a password-must-change
// credential is still allowed to perform. Only the credential password
// route qualifies; other resources ending in "password" do not.
func isPasswordChange(r *http.Request) bool {
	if r.Method != http.MethodPut {
		return false
	}
	rest, found := strings.CutPrefix(r.URL.Path, "/1/credentials/")
	if !found {
		return false
	}
	id, action, found := strings.Cut(rest, "/")
	return found && id != "" && action == "password"
}

// parseAuthorization parses the Authorization header into engine input.
// A missing header is not an error; it becomes a guest request.
func parseAuthorization(r *http.Request) (auth.Data, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Data{}, nil
	}

	scheme, value, found := strings.Cut(header, " ")
	if !found {
		return auth.Data{}, errs.AccessTokenInvalid()
	}

	switch strings.ToLower(scheme) {
	case "basic":
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return auth.Data{}, errs.InvalidCredentials()
		}
		username, password, found := strings.Cut(string(decoded), ":")
		if !found || username == "" {
			return auth.Data{}, errs.InvalidCredentials()
		}
		return auth.Data{Scheme: auth.SchemeBasic, Username: username, Password: password}, nil
	case "bearer":
		if value == "" {
			return auth.Data{}, errs.AccessTokenInvalid()
		}
		return auth.Data{Scheme: auth.SchemeBearer, Token: value}, nil
	default:
		return auth.Data{}, errs.AccessTokenInvalid()
	}
}
