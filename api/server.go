package api

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/db"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/repository"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/risk"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/service"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/verification"
	"github.com/MeridianTrust/MeridianTrust-Backend/middleware"
	"github.com/MeridianTrust/MeridianTrust-Backend/models"
	"github.com/MeridianTrust/MeridianTrust-Backend/providers"
	"github.com/MeridianTrust/MeridianTrust-Backend/providers/verify"
	"github.com/MeridianTrust/MeridianTrust-Backend/services"
	admin_service "github.com/MeridianTrust/MeridianTrust-Backend/services/admin"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/audit"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/monitoring/logging"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/monitoring/tasks"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/notification"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/security"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/storage"
	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// / If there's a better place to access this
// / TODO, I feel the config should be the one accessible like this
var TokenController *utils.JWTToken

const auditRetentionDays = 90

type Server struct {
	router     *gin.Engine
	config     *utils.Config
	logger     *logging.Logger
	store      *db.Store
	redis      *services.RedisService
	scheduler  *tasks.TaskScheduler
	onboarding *service.OnboardingService
	admin      *admin_service.AdminService
	audit      *audit.AuditService
	provider   *providers.ProviderService
	storage    storage.ObjectStore
	analyzer   verification.DocumentAnalyzer
	matcher    verification.FaceMatcher
}

func NewServer(envPath string) *Server {
	c, err := utils.LoadConfig(envPath)
	if err != nil {
		panic(fmt.Sprintf("Could not load config: %v", err))
	}

	conn, err := sql.Open(c.DBDriver, utils.GetDBSource(c, c.DBName))
	if err != nil {
		panic(fmt.Sprintf("Could not load DB: %v", err))
	}

	m, err := migrate.New(
		"file://db/migrations",
		utils.GetDBSource(c, c.DBName),
	)
	if err != nil {
		log.Fatalf("Unable to instantiate the database schema migrator - %v", err)
	}

	if err := m.Up(); err != nil {
		if err != migrate.ErrNoChange {
			log.Fatalf("Unable to migrate up to the latest database schema - %v", err)
		}
	}

	store := db.NewStore(conn)
	g := gin.Default()
	l := logging.NewLogger()

	if err := security.NewCache().Start(); err != nil {
		log.Fatalf("Unable to start the token revocation cache - %v", err)
	}

	TokenController = utils.NewJWTToken(c)

	repo := repository.NewSQLSessionRepository(store)

	// Redis failures leave the resend limiter and stats cache disabled, the
	// service runs without them rather than refusing to boot
	rdb, err := services.NewRedisService(&services.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
	})
	if err != nil {
		l.Warn(fmt.Sprintf("redis unavailable, continuing without cache: %v", err))
		rdb = nil
	}
	var limiter service.ResendLimiter
	if rdb != nil {
		limiter = rdb
	}

	auditService := audit.NewAuditService(store, l)
	notifier := notification.NewNotificationService(c, l, repo)
	scorer := risk.NewWeightedScorer()

	onboardingService := service.NewOnboardingServiceWithCollaborators(repo, scorer, l, notifier, limiter, auditService)
	adminService := admin_service.NewAdminService(store, repo, rdb, l, notifier, auditService)

	if err := adminService.Bootstrap(context.Background(), c.AdminEmail, c.AdminPassword, c.AdminName); err != nil {
		l.Error(fmt.Sprintf("admin bootstrap failed: %v", err))
	}

	// Verification engines run against TrustLens when credentials are
	// present, otherwise the simulated engines carry dev and test traffic
	p := providers.NewProviderService()
	vp := verify.NewVerifyProvider(l)
	var analyzer verification.DocumentAnalyzer = verification.NewSimulatedAnalyzer()
	var matcher verification.FaceMatcher = verification.NewSimulatedFaceMatcher()
	if vp.Configured() {
		p.AddProvider(vp)
		analyzer = verification.NewVendorAnalyzer(vp)
		matcher = verification.NewVendorFaceMatcher(vp)
	}

	scheduler := tasks.NewTaskScheduler(l)
	registerScheduledTasks(scheduler, adminService, auditService)

	g.Use(CORSMiddleware())
	g.Use(l.LoggingMiddleWare())
	g.Use(middleware.NewAuditMiddleware(auditService).RequestAuditor())

	return &Server{
		router:     g,
		config:     c,
		logger:     l,
		store:      store,
		redis:      rdb,
		scheduler:  scheduler,
		onboarding: onboardingService,
		admin:      adminService,
		audit:      auditService,
		provider:   p,
		storage:    storage.NewS3Storage(c, l),
		analyzer:   analyzer,
		matcher:    matcher,
	}
}

func registerScheduledTasks(scheduler *tasks.TaskScheduler, adminService *admin_service.AdminService, auditService *audit.AuditService) {
	_, err := scheduler.AddTask("stats_refresh", "Dashboard stats refresh", func(ctx context.Context) error {
		return adminService.RefreshStats(ctx)
	}, time.Minute)
	if err == nil {
		_ = scheduler.ScheduleTask("stats_refresh", time.Minute)
	}

	_, err = scheduler.AddTask("audit_retention", "Audit log retention sweep", func(ctx context.Context) error {
		_, err := auditService.DeleteBefore(ctx, time.Now().UTC().AddDate(0, 0, -auditRetentionDays))
		return err
	}, 24*time.Hour)
	if err == nil {
		_ = scheduler.ScheduleTask("audit_retention", time.Hour)
	}
}

func (s *Server) Start() {

	dr := models.SuccessResponse{
		Status:  "success",
		Message: "Welcome to Meridian Trust!",
		Version: utils.REVISION,
	}

	s.router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, dr)
	})

	s.router.GET("/health", func(ctx *gin.Context) {
		if err := s.store.DB.PingContext(ctx); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, models.NewError("database unreachable"))
			return
		}
		verificationMode := "simulated"
		if _, ok := s.provider.GetProvider(providers.TrustLens); ok {
			verificationMode = "vendor"
		}
		ctx.JSON(http.StatusOK, models.NewSuccess("healthy", gin.H{
			"version":      utils.REVISION,
			"verification": verificationMode,
		}))
	})

	/// Register Object Routers Below
	Onboarding{}.router(s)
	Admin{}.router(s)

	s.router.Run(fmt.Sprintf(":%v", s.config.ServerPort))
}

// Stop releases background workers, used by tests and graceful shutdown.
func (s *Server) Stop() {
	s.scheduler.StopTasks()
	if s.redis != nil {
		_ = s.redis.Close()
	}
}
