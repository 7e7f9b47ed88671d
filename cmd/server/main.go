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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hivebase/hivebase/internal/audit"
	"github.com/hivebase/hivebase/internal/auth"
	"github.com/hivebase/hivebase/internal/config"
	"github.com/hivebase/hivebase/internal/credential"
	"github.com/hivebase/hivebase/internal/errs"
	"github.com/hivebase/hivebase/internal/observability/logger"
	"github.com/hivebase/hivebase/internal/observability/metrics"
	"github.com/hivebase/hivebase/internal/observability/tracing"
	"github.com/hivebase/hivebase/internal/permission"
	"github.com/hivebase/hivebase/internal/settings"
	"github.com/hivebase/hivebase/internal/store/memory"
	"github.com/hivebase/hivebase/internal/store/postgres"
	"github.com/hivebase/hivebase/internal/tenant"
	transportHTTP "github.com/hivebase/hivebase/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting hivebase credential service")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	if tracer != nil {
		defer tracer.Shutdown(ctx)
	}

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Tenant resolution and namespace catalog
	resolver := tenant.NewResolver(cfg.Tenant.DomainSuffix, cfg.Tenant.DefaultTenantID)
	catalog := tenant.NewCatalog()

	// Initialize stores
	var (
		credStore     credential.Store
		settingsStore settings.Store
		purger        *postgres.CredentialRepository
	)
	switch cfg.Database.Driver {
	case "memory":
		credStore = memory.NewCredentialStore()
		settingsStore = memory.NewSettingsStore()
		slog.Info("using in-memory stores")
	default:
		db, err := postgres.New(ctx, postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			Database:     cfg.Database.Database,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			slog.Error("failed to connect to database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to database")

		credRepo := postgres.NewCredentialRepository(db, catalog)
		credStore = credRepo
		settingsStore = postgres.NewSettingsRepository(db)
		purger = credRepo
	}

	// Audit sink: structured log plus an otel counter
	auditLogger := audit.Logger(audit.NewSlogLogger())
	if metricsLogger, err := audit.NewMetricsLogger(meter.GetMeter()); err != nil {
		slog.Error("failed to initialize audit metrics", logger.Error(err))
	} else {
		auditLogger = audit.Multi{auditLogger, metricsLogger}
	}

	passwordHasher := credential.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	// Permission matrix and settings service
	permEngine := permission.NewEngine(permission.DefaultMatrix())
	registry := settings.NewRegistry()
	settings.RegisterCredentialsPolicy(registry)
	settingsService := settings.NewService(settingsStore, permEngine, registry)

	// Per-tenant policy: config defaults overlaid by the tenant's
	// "credentials" settings document.
	defaults := credential.DefaultPolicy()
	defaults.GuestSignUpEnabled = cfg.Credentials.GuestSignUpEnabled
	defaults.SessionMaximumLifetimeSeconds = int64(cfg.Credentials.SessionMaximumLifetime / time.Second)
	defaults.SessionsSizeMax = cfg.Credentials.SessionsSizeMax
	defaults.MaximumInvalidChallenges = cfg.Credentials.MaximumInvalidChallenges
	defaults.ResetInvalidChallengesAfterMinute = int64(cfg.Credentials.ResetInvalidChallengesAfter / time.Minute)
	policies := settings.NewCredentialsPolicySource(settingsService, defaults)

	// Initialize services
	credService := credential.NewService(
		credStore,
		passwordHasher,
		policies,
		credential.LogNotifier{},
		auditLogger,
	)
	authEngine := auth.NewEngine(
		credStore,
		policies,
		passwordHasher,
		cfg.Credentials.SuperdogSecret,
		auditLogger,
	)

	// Bootstrap (ENV driven)
	if err := bootstrapSuperadmin(ctx, cfg, credService); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
		os.Exit(1)
	}

	// Rate limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		resolver,
		authEngine,
		credService,
		permEngine,
		settingsService,
		policies,
		auditLogger,
	)
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Expired sessions accumulate inside the credential documents; sweep
	// them hourly when a postgres store backs the service.
	if purger != nil {
		go func() {
			ticker := time.NewTicker(1 * time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				n, err := purger.PurgeExpiredSessions(ctx, time.Now())
				if err != nil {
					slog.ErrorContext(ctx, "failed to purge expired sessions", logger.Error(err))
					continue
				}
				if n > 0 {
					slog.InfoContext(ctx, "purged expired sessions", slog.Int64("credentials", n))
				}
			}
		}()
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

// bootstrapSuperadmin creates the initial superadmin in the default tenant
// when the BOOTSTRAP_SUPERADMIN_* variables are set. Re-runs are no-ops.
func bootstrapSuperadmin(ctx context.Context, cfg *config.Config, svc *credential.Service) error {
	username := cfg.Credentials.BootstrapSuperadminUsername
	if username == "" {
		return nil
	}

	tenantID := cfg.Tenant.DefaultTenantID
	_, err := svc.GetByUsername(ctx, tenantID, username)
	if err == nil {
		slog.Info("bootstrap superadmin already exists",
			logger.TenantID(tenantID), logger.Username(username))
		return nil
	}
	if !errs.IsKind(err, errs.KindNotFound) {
		return err
	}

	c, err := svc.Create(ctx, tenantID, credential.CreateRequest{
		Username: username,
		Password: cfg.Credentials.BootstrapSuperadminPassword,
		Email:    cfg.Credentials.BootstrapSuperadminEmail,
		Roles:    []string{credential.RoleSuperadmin},
	}, credential.LevelSuperdog)
	if err != nil {
		return err
	}
	slog.Info("bootstrap superadmin created",
		logger.TenantID(tenantID), logger.CredentialID(c.ID))
	return nil
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
