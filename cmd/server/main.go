package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"orgauthz/internal/api"
	"orgauthz/internal/api/handlers"
	"orgauthz/internal/api/middleware"
	"orgauthz/internal/engine/authz"
	"orgauthz/internal/engine/catalog"
	"orgauthz/internal/engine/invitations"
	"orgauthz/internal/engine/quota"
	"orgauthz/internal/engine/roles"
	"orgauthz/internal/pkg/logger"
	"orgauthz/internal/platform/audit"
	"orgauthz/internal/platform/auth"
	"orgauthz/internal/platform/cache"
	"orgauthz/internal/platform/config"
	"orgauthz/internal/platform/database"
	"orgauthz/internal/platform/metrics"
	"orgauthz/internal/platform/notify"
	"orgauthz/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Logging)
	metrics.Init()

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	// Catalog
	catalogRepo := catalog.NewRepository(db)
	if err := catalogRepo.Seed(ctx, catalog.Builtin()); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed role templates")
	}
	templates, err := catalogRepo.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load role templates")
	}
	cat := catalog.New(templates...)

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	memberRepo := repositories.NewMemberRepository(db)
	directory := cache.NewDirectory(orgRepo, cfg.Cache.MaxEntries, cfg.Cache.OrganizationTTL)

	// Engine
	policy := quota.NewPolicy(plansFromConfig(cfg.Plans), cfg.DefaultPlan)
	registry := roles.NewRegistry(roles.NewRepository(db), directory, cat, policy)
	lifecycle := invitations.NewLifecycle(invitations.NewRepository(db), directory,
		invitations.WithValidityWindow(cfg.Invitations.ValidityWindow),
		invitations.WithResendCap(cfg.Invitations.ResendCap),
	)
	facade := authz.New(directory, cat, registry, lifecycle, memberRepo)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLog := audit.NewLogger(db)
	dispatcher := handlers.NewDispatcher(auditLog, notify.NewDispatcher(cfg.Notifications))

	deps := &api.Dependencies{
		OrgHandler:        handlers.NewOrgHandler(orgRepo, memberRepo, facade, policy, tokenSvc, dispatcher, directory),
		RoleHandler:       handlers.NewRoleHandler(facade, dispatcher),
		InvitationHandler: handlers.NewInvitationHandler(facade, dispatcher, tokenSvc),
		MemberHandler:     handlers.NewMemberHandler(facade, memberRepo),
		AuditHandler:      handlers.NewAuditHandler(auditLog),
		HealthHandler:     handlers.NewHealthHandler(db),
		AuthMiddleware:    middleware.NewAuthMiddleware(tokenSvc),
		TenantMiddleware:  middleware.NewTenantMiddleware(directory, memberRepo),
		RateLimiter:       middleware.NewRateLimiter(cfg.RateLimit.APIWritePerMinute, cfg.RateLimit.Burst),
		Authorizer:        facade,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Int("templates", len(cat.All())).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

func plansFromConfig(plans map[string]config.PlanConfig) []quota.Plan {
	if len(plans) == 0 {
		return quota.DefaultPlans()
	}
	out := make([]quota.Plan, 0, len(plans))
	for id, p := range plans {
		out = append(out, quota.Plan{
			ID:                id,
			MaxCustomRoles:    quota.Limit(p.MaxCustomRoles),
			MaxTemplateUsages: quota.Limit(p.MaxTemplateUsages),
		})
	}
	return out
}
