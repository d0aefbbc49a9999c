package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nsmonitor/apiserver/config"
	"github.com/nsmonitor/apiserver/internal/cache"
	"github.com/nsmonitor/apiserver/internal/db"
	"github.com/nsmonitor/apiserver/internal/handlers"
	"github.com/nsmonitor/apiserver/internal/logging"
	"github.com/nsmonitor/apiserver/internal/metrics"
	"github.com/nsmonitor/apiserver/internal/mq"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/internal/storage"
	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	permissionCacheSize = 64
	permissionCacheTTL  = 5 * time.Minute
	revokedTokenLimit   = 10000
)

// Server wraps the HTTP server and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
	redis      *redis.Client
	logger     *logrus.Logger
}

// New opens every backing service named by cfg and registers the routes.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{logger: logger}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	s.db = dbConn

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return nil, fmt.Errorf("mq: %w", err)
	}
	s.events = broker

	tokenTTL := time.Duration(cfg.JWTTTLHours) * time.Hour
	var revoker handlers.Revoker
	var statsCache services.StatsCache
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		s.redis = client
		revoker = cache.NewRedisRevoker(client)
		statsCache = cache.NewStatsCache(client)
	} else {
		logger.Warn("REDIS_URL not set; token revocation is process-local and dashboard stats are not cached")
		revoker = cache.NewMemoryRevoker(revokedTokenLimit, tokenTTL)
	}

	var publisher services.EventPublisher
	if broker != nil {
		publisher = broker
	}
	events := services.NewEvents(publisher, logger)
	meter := metrics.New()

	userRepo := store.NewUserRepository(dbConn)
	roleRepo := store.NewRoleRepository(dbConn)
	permissionRepo := store.NewPermissionRepository(dbConn)
	projectRepo := store.NewProjectRepository(dbConn)
	updateRepo := store.NewProjectUpdateRepository(dbConn)
	attachmentRepo := store.NewAttachmentRepository(dbConn)
	locationRepo := store.NewLocationRepository(dbConn)
	workPlanRepo := store.NewWorkPlanRepository(dbConn)
	indicatorRepo := store.NewOutputIndicatorRepository(dbConn)
	dashboardRepo := store.NewDashboardRepository(dbConn)

	authz := services.NewAuthorizer(roleRepo, permissionCacheSize, permissionCacheTTL)
	userService := services.NewUserService(userRepo, roleRepo)
	roleService := services.NewRoleService(roleRepo, permissionRepo, authz)
	permissionService := services.NewPermissionService(permissionRepo, authz)
	projectService := services.NewProjectService(projectRepo, userRepo, locationRepo, attachmentRepo, objects, logger)
	updateService := services.NewUpdateService(updateRepo, projectRepo, attachmentRepo, objects, events, logger)
	attachmentService := services.NewAttachmentService(
		attachmentRepo, projectRepo, updateRepo, objects, authz, events, meter, logger, cfg.PublicBaseURL,
	)
	locationService := services.NewLocationService(locationRepo)
	workPlanService := services.NewWorkPlanService(workPlanRepo, projectRepo)
	indicatorService := services.NewIndicatorService(indicatorRepo, projectRepo)
	dashboardService := services.NewDashboardService(
		dashboardRepo, statsCache, time.Duration(cfg.Redis.StatsTTLSeconds)*time.Second, logger,
	)

	reporter := handlers.NewErrorReporter(logger, cfg.Debug)
	tokens := handlers.NewTokens(cfg.JWTSecret, tokenTTL)
	auth := handlers.NewAuthenticator(tokens, revoker, userService, reporter)
	guard := handlers.NewGuard(authz, reporter)

	authHandler := handlers.NewAuthHandler(userService, tokens, revoker, reporter)
	projectHandler := handlers.NewProjectHandler(projectService, reporter)
	updateHandler := handlers.NewUpdateHandler(updateService, attachmentService, reporter)
	attachmentHandler := handlers.NewAttachmentHandler(attachmentService, reporter)
	workPlanHandler := handlers.NewWorkPlanHandler(workPlanService, reporter)
	indicatorHandler := handlers.NewIndicatorHandler(indicatorService, reporter)
	locationHandler := handlers.NewLocationHandler(locationService, reporter)
	formDataHandler := handlers.NewFormDataHandler(userService, reporter)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, reporter)
	userHandler := handlers.NewUserHandler(userService, roleService, reporter)
	roleHandler := handlers.NewRoleHandler(roleService, permissionService, reporter)
	permissionHandler := handlers.NewPermissionHandler(permissionService, reporter)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(logger),
		middleware.Recoverer,
		meter.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", meter.Handler())

	handlers.AuthRouter(router, authHandler, auth)

	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Route("/projects", func(r chi.Router) {
			handlers.ProjectRouter(r, projectHandler, guard)
			r.Route("/{projectID}/updates", func(r chi.Router) {
				handlers.UpdateRouter(r, updateHandler, guard)
			})
			r.Route("/{projectID}/attachments", func(r chi.Router) {
				handlers.ProjectAttachmentRouter(r, attachmentHandler, guard)
			})
			r.Route("/{projectID}/work-plan-activities", func(r chi.Router) {
				handlers.WorkPlanRouter(r, workPlanHandler, guard)
			})
			r.Route("/{projectID}/output-indicators", func(r chi.Router) {
				handlers.IndicatorRouter(r, indicatorHandler, guard)
			})
		})
		r.Route("/attachments", func(r chi.Router) {
			handlers.AttachmentRouter(r, attachmentHandler)
		})
		handlers.LocationRouter(r, locationHandler)
		r.Route("/form-data", func(r chi.Router) {
			handlers.FormDataRouter(r, formDataHandler)
		})
		r.Route("/dashboard", func(r chi.Router) {
			handlers.DashboardRouter(r, dashboardHandler, guard)
		})

		r.Group(func(r chi.Router) {
			r.Use(guard.RequireRole(types.RoleGovernor, types.RoleSuperAdmin, types.RoleAdmin))
			r.Route("/users", func(r chi.Router) {
				handlers.UserRouter(r, userHandler)
			})
			r.Route("/roles", func(r chi.Router) {
				handlers.RoleRouter(r, roleHandler)
			})
			r.Route("/permissions", func(r chi.Router) {
				handlers.PermissionRouter(r, permissionHandler)
			})
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	ok = true
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes owned connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			s.logger.WithError(err).Warn("close mq")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
