package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/referral-api/internal/email"
	facilityHandler "github.com/jwalitptl/referral-api/internal/handler/facility"
	"github.com/jwalitptl/referral-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/referral-api/internal/handler/patient"
	promHandler "github.com/jwalitptl/referral-api/internal/handler/prometheus"
	referralHandler "github.com/jwalitptl/referral-api/internal/handler/referral"
	userHandler "github.com/jwalitptl/referral-api/internal/handler/user"
	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/repository/postgres"
	"github.com/jwalitptl/referral-api/internal/router"
	auditService "github.com/jwalitptl/referral-api/internal/service/audit"
	authService "github.com/jwalitptl/referral-api/internal/service/auth"
	eventService "github.com/jwalitptl/referral-api/internal/service/event"
	facilityService "github.com/jwalitptl/referral-api/internal/service/facility"
	followupService "github.com/jwalitptl/referral-api/internal/service/followup"
	patientService "github.com/jwalitptl/referral-api/internal/service/patient"
	rbacService "github.com/jwalitptl/referral-api/internal/service/rbac"
	readingService "github.com/jwalitptl/referral-api/internal/service/reading"
	referralService "github.com/jwalitptl/referral-api/internal/service/referral"
	roleService "github.com/jwalitptl/referral-api/internal/service/role"
	userService "github.com/jwalitptl/referral-api/internal/service/user"
	"github.com/jwalitptl/referral-api/pkg/auth"
	"github.com/jwalitptl/referral-api/pkg/security"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

const roleCacheTTL = 10 * time.Minute

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*configPath)
		},
	}
}

func runServer(configPath string) error {
	cfg, log, err := bootstrap(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error(err, "failed to run migrations")
		return err
	}

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	tx := postgres.NewTransactor(base)
	userRepo := postgres.NewUserRepository(base)
	roleRepo := postgres.NewRoleRepository(base)
	patientRepo := postgres.NewPatientRepository(base)
	readingRepo := postgres.NewReadingRepository(base)
	referralRepo := postgres.NewReferralRepository(base)
	followUpRepo := postgres.NewFollowUpRepository(base)
	facilityRepo := postgres.NewFacilityRepository(base)
	auditRepo := postgres.NewAuditRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	reg, m := newMetrics()

	v := validator.New()
	middleware.UseValidator(v)

	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		AccessTTL:     time.Duration(cfg.JWT.ExpiryMinutes) * time.Minute,
		RefreshTTL:    time.Duration(cfg.JWT.RefreshExpiryHours) * time.Hour,
	})
	hasher := security.NewBcryptHasher(cfg.JWT.BcryptCost)

	mailer := email.NewNoopService()
	if cfg.SMTP.Host != "" {
		mailer = email.NewService(cfg.SMTP)
	}

	// Initialize services
	auditor := auditService.NewService(auditRepo, log)
	emitter := eventService.NewEventService(outboxRepo)
	roles := roleService.NewService(roleRepo, roleCacheTTL)
	policy := rbacService.NewPolicy(userRepo)

	users := userService.NewService(tx, userRepo, roles, policy, hasher, v, mailer, auditor, log)
	authn := authService.NewService(userRepo, policy, hasher, jwtSvc, v, auditor)
	patients := patientService.NewService(tx, patientRepo, readingRepo, v, auditor)
	referrals := referralService.NewService(tx, referralRepo, patientRepo, readingRepo, facilityRepo, emitter, v, auditor)
	readings := readingService.NewService(tx, readingRepo, patientRepo, patients, referrals, emitter, v, m, auditor)
	followUps := followupService.NewService(tx, followUpRepo, referralRepo, emitter, v, auditor)
	facilities := facilityService.NewService(facilityRepo, v)

	checks := map[string]health.Pinger{"database": db}
	if cfg.Worker.InProcess {
		stopWorkers, err := startWorkers(ctx, cfg, log, m, outboxRepo, auditRepo, checks)
		if err != nil {
			return err
		}
		defer stopWorkers()
	}

	// Initialize handlers
	authMW := middleware.NewAuthMiddleware(jwtSvc)

	var limit rate.Limit
	if cfg.RateLimit.Enabled {
		limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}
	mode := gin.DebugMode
	if cfg.IsProduction() {
		mode = gin.ReleaseMode
	}

	r := router.NewRouter(router.RouterConfig{
		Mode:       mode,
		RateLimit:  limit,
		RateBurst:  cfg.RateLimit.Burst,
		Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		CORSConfig: middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins),
		Metrics:    m,
	},
		health.NewHandler(checks),
		promHandler.New(reg),
		userHandler.NewHandler(users, authn, authMW),
		patientHandler.NewHandler(patients, readings, authMW),
		referralHandler.NewHandler(referrals, followUps, authMW),
		facilityHandler.NewHandler(facilities, authMW),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return serveUntilDone(ctx, srv, log)
}
