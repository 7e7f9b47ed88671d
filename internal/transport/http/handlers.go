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
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hivebase/hivebase/internal/audit"
	"github.com/hivebase/hivebase/internal/auth"
	"github.com/hivebase/hivebase/internal/credential"
	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/permission"
	"github.com/hivebase/hivebase/internal/settings"
	"github.com/hivebase/hivebase/internal/tenant"
)

// Handler carries the wired services behind the /1 surface.
type Handler struct {
	resolver        *tenant.Resolver
	engine          *auth.Engine
	credService     *credential.Service
	permEngine      *permission.Engine
	settingsService *settings.Service
	policies        credential.PolicySource
	auditLogger     audit.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	resolver *tenant.Resolver,
	engine *auth.Engine,
	credService *credential.Service,
	permEngine *permission.Engine,
	settingsService *settings.Service,
	policies credential.PolicySource,
	auditLogger audit.Logger,
) *Handler {
	return &Handler{
		resolver:        resolver,
		engine:          engine,
		credService:     credService,
		permEngine:      permEngine,
		settingsService: settingsService,
		policies:        policies,
		auditLogger:     auditLogger,
	}
}

// NewRouter creates the HTTP router for the /1 surface.
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/1", func(r chi.Router) {
		r.Use(h.TenantMiddleware)

		// Login parses its own Authorization header so the password
		// challenge runs exactly once per request.
		r.Post("/login", h.Login)
		r.Get("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Post("/logout", h.Logout)
			r.Get("/logout", h.Logout)

			r.Route("/credentials", func(r chi.Router) {
				r.Get("/", h.ListCredentials)
				r.Post("/", h.CreateCredential)
				r.Post("/forgotPassword", h.ForgotPassword)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetCredential)
					r.Put("/", h.UpdateCredential)
					r.Delete("/", h.DeleteCredential)

					r.Put("/password", h.SetPassword)
					r.Delete("/password", h.ResetPassword)
					r.Put("/passwordMustChange", h.SetPasswordMustChange)
					r.Put("/enabled", h.SetEnabled)

					r.Get("/roles", h.GetRoles)
					r.Put("/roles/{role}", h.AddRole)
					r.Delete("/roles/{role}", h.RemoveRole)
				})
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", h.ListSettings)
				r.Get("/{name}", h.GetSettings)
				r.Put("/{name}", h.SetSettings)
				r.Delete("/{name}", h.DeleteSettings)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Login authenticates with a password challenge and issues a new bearer
// session, or reports the session behind an offered bearer token. The
// requested lifetime comes from the lifetime body field or query
// parameter, in seconds.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
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

	switch data.Scheme {
	case auth.SchemeBasic:
		lifetime, err := requestedLifetime(r)
		if err != nil {
			respondWithError(w, err)
			return
		}
		principal, session, err := h.engine.Login(r.Context(), t, data, lifetime)
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, loginResponse(principal, session))
	case auth.SchemeBearer:
		principal, err := h.engine.Authenticate(r.Context(), t, data, false)
		if err != nil {
			respondWithError(w, err)
			return
		}
		session, ok := h.engine.SessionOf(principal)
		if !ok {
			respondWithError(w, errs.AccessTokenInvalid())
			return
		}
		respondJSON(w, http.StatusOK, loginResponse(principal, session))
	default:
		respondWithError(w, errs.InvalidCredentials())
	}
}

func loginResponse(p auth.Principal, s credential.Session) map[string]any {
	resp := map[string]any{
		"accessToken": s.Token,
		"expiresIn":   s.ExpiresIn(time.Now()),
	}
	if c, ok := p.Credential(); ok {
		resp["credentials"] = c
	}
	return resp
}

func requestedLifetime(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("lifetime")
	if raw == "" && r.Body != nil && r.ContentLength > 0 {
		var body struct {
			Lifetime int64 `json:"lifetime"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return 0, errs.New(errs.KindInvalidInput, "invalid request body")
		}
		if body.Lifetime < 0 {
			return 0, errs.New(errs.KindInvalidInput, "lifetime must be positive")
		}
		return time.Duration(body.Lifetime) * time.Second, nil
	}
	if raw == "" {
		return 0, nil
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds < 0 {
		return 0, errs.New(errs.KindInvalidInput, "invalid lifetime parameter")
	}
	return time.Duration(seconds) * time.Second, nil
}

// Logout removes exactly the session that authenticated the request.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	rc, ok := GetRequestContext(r.Context())
	if !ok || rc.Principal.IsGuest() {
		respondWithError(w, errs.New(errs.KindInvalidCredentials, "authentication required"))
		return
	}

	if err := h.engine.Logout(r.Context(), rc.Principal); err != nil {
		respondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondWithError maps typed error kinds to wire statuses. Integrity
// violations are logged loudly; they mean a unique key is broken.
func respondWithError(w http.ResponseWriter, err error) {
	if errs.IsKind(err, errs.KindIntegrityViolation) {
		slog.Error("integrity violation", slog.Any("error", err))
	}
	status := errs.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError && !errs.IsKind(err, errs.KindIntegrityViolation) {
		message = "internal server error"
	}
	respondError(w, status, message)
}
