package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/controller"
	"lingua_voice_backend/internal/repository"
	"lingua_voice_backend/internal/service"
	"lingua_voice_backend/pkg/database"
	"lingua_voice_backend/pkg/logger"
	"lingua_voice_backend/pkg/monitoring"
	"lingua_voice_backend/pkg/security"
	"lingua_voice_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user    *repository.UserRepository
	session *repository.SessionRepository
	turn    *repository.TurnRepository
	eval    *repository.EvaluationRepository
	xp      *repository.XPRepository
	streak  *repository.StreakRepository
	mastery *repository.SkillMasteryRepository
	badge   *repository.BadgeRepository
	summary *repository.SummaryRepository
	mode    *repository.TeachingModeRepository
	lang    *repository.LanguageRepository
	cache   *repository.SessionCache
}

type services struct {
	session  *service.SessionService
	ledger   *service.LedgerService
	progress *service.ProgressService
	archive  *service.ArchiveService
	hub      *service.SessionHub
}

type controllers struct {
	auth     *controller.AuthController
	session  *controller.SessionController
	progress *controller.ProgressController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig propagates a reloaded config to registered listeners.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config = cfg
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
	logger.Log.Info("configuration reloaded")
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	return &repositories{
		user:    repository.NewUserRepository(db),
		session: repository.NewSessionRepository(db),
		turn:    repository.NewTurnRepository(db),
		eval:    repository.NewEvaluationRepository(db),
		xp:      repository.NewXPRepository(db),
		streak:  repository.NewStreakRepository(db),
		mastery: repository.NewSkillMasteryRepository(db),
		badge:   repository.NewBadgeRepository(db),
		summary: repository.NewSummaryRepository(db),
		mode:    repository.NewTeachingModeRepository(db),
		lang:    repository.NewLanguageRepository(db),
		cache:   repository.NewSessionCache(rdb, cfg.Session.CacheTTL),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB) *services {
	s := &services{}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Log.Warn("invalid timezone, falling back to UTC", zap.String("timezone", cfg.Timezone))
		location = time.UTC
	}
	clock := service.SystemClock{}

	archive, err := service.NewArchiveService(cfg.Storage, cfg.Engine.SendSampleRate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize audio archive", zap.Error(err))
	}
	s.archive = archive

	s.ledger = &service.LedgerService{
		DB:               db,
		XPRepo:           repos.xp,
		StreakRepo:       repos.streak,
		MasteryRepo:      repos.mastery,
		BadgeRepo:        repos.badge,
		SummaryRepo:      repos.summary,
		EvalRepo:         repos.eval,
		SessionRepo:      repos.session,
		Cache:            repos.cache,
		XPCfg:            cfg.XP,
		ExpectedDuration: cfg.Session.ExpectedDuration,
		Clock:            clock,
		Location:         location,
	}

	s.session = &service.SessionService{
		UserRepo:    repos.user,
		SessionRepo: repos.session,
		TurnRepo:    repos.turn,
		EvalRepo:    repos.eval,
		SummaryRepo: repos.summary,
		ModeRepo:    repos.mode,
		LangRepo:    repos.lang,
		Cache:       repos.cache,
		Ledger:      s.ledger,
		Archive:     s.archive,
		SessionCfg:  cfg.Session,
		XPCfg:       cfg.XP,
		Clock:       clock,
		Location:    location,
	}

	s.progress = &service.ProgressService{
		XPRepo:      repos.xp,
		StreakRepo:  repos.streak,
		MasteryRepo: repos.mastery,
		BadgeRepo:   repos.badge,
		XPCfg:       cfg.XP,
		Clock:       clock,
		Location:    location,
	}

	dialer := service.NewEngineDialer(cfg.Engine)
	s.hub = service.NewSessionHub(s.session, dialer, cfg.Engine, cfg.Session, clock)
	go s.hub.Run()

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB, rdb *redis.Client, cfg *config.Config) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(repos.user, cfg.JWT),
		session:  controller.NewSessionController(s.session, s.hub),
		progress: controller.NewProgressController(s.progress),
		health:   controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb, cfg)
	services := app.initServices(repos, cfg, db)
	app.services = services
	controllers := app.initControllers(services, repos, db, rdb, cfg)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("lingua-voice-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, os.ModePerm)
		}
		router.Static("/archive", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// live sessions settle before the listener goes away
	if a.services != nil && a.services.hub != nil {
		a.services.hub.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Log.Sync()
	log.Println("Server exiting")
}
