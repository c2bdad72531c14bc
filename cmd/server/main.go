package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sazar-neudorff/productmanager/internal/application/finder"
	orderingapp "github.com/sazar-neudorff/productmanager/internal/application/ordering"
	salesexportapp "github.com/sazar-neudorff/productmanager/internal/application/salesexport"
	"github.com/sazar-neudorff/productmanager/internal/domain/catalog"
	"github.com/sazar-neudorff/productmanager/internal/domain/ordering"
	"github.com/sazar-neudorff/productmanager/internal/domain/salesexport"
	"github.com/sazar-neudorff/productmanager/internal/domain/shared/valueobject"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/auth"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/cache"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/catalogsource"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/config"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/event"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/exportfile"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/logger"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/persistence"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/scheduler"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/submission"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/telemetry"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/weclapp"
	"github.com/sazar-neudorff/productmanager/internal/interfaces/http/handler"
	"github.com/sazar-neudorff/productmanager/internal/interfaces/http/middleware"
	"github.com/sazar-neudorff/productmanager/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Bestell-Cockpit API
//	@version		1.0
//	@description	Order entry for the customer portal: product finder, address validation and submission.
//	@BasePath		/api/v1/cockpit

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token issued by the portal. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			bootLog.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	// Once the log provider exists, entries are also exported over OTLP.
	log, err := logger.New(logCfg, providers.ZapCore(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()
	zap.ReplaceGlobals(log)

	profCfg := cfg.Telemetry.Profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           profCfg.Enabled,
		ServerAddress:     profCfg.ServerAddress,
		ApplicationName:   profCfg.ApplicationName,
		BasicAuthUser:     profCfg.BasicAuthUser,
		BasicAuthPassword: profCfg.BasicAuthPassword,
		ProfileTypes:      profCfg.ProfileTypes,
		SpanProfiles:      profCfg.SpanProfiles,
	}, providers, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	log.Info("Starting Bestell-Cockpit",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if providers.Enabled() {
		if err := telemetry.InstrumentGorm(db.DB, telemetry.DBTracingConfig{
			DBSystem:      "postgresql",
			WithVariables: cfg.App.Env == "development",
		}, log); err != nil {
			log.Fatal("Failed to instrument database", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = redisClient.Close()
		}()
	}

	source, closeSource, err := buildOptionSource(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to initialize catalog source", zap.Error(err))
	}
	defer closeSource()

	submitter, err := buildSubmitter(cfg.Submission, log)
	if err != nil {
		log.Fatal("Failed to initialize order submitter", zap.Error(err))
	}

	verifier, err := buildVerifier(cfg.JWT, redisClient, log)
	if err != nil {
		log.Fatal("Failed to initialize token verification", zap.Error(err))
	}

	metrics, err := telemetry.NewOrderMetrics(providers.Meter("productmanager/ordering"))
	if err != nil {
		log.Fatal("Failed to create order metrics", zap.Error(err))
	}

	fee, err := valueobject.NewMoney(cfg.Order.ShippingFeeDecimal(), valueobject.Currency(cfg.Order.Currency))
	if err != nil {
		log.Fatal("Invalid shipping fee", zap.Error(err))
	}

	drafts := persistence.NewGormDraftRepository(db.DB)
	bus := event.NewAsyncEventBus(256, log.Named("events"))
	bus.Subscribe(orderingapp.NewDraftCleanupHandler(drafts, log.Named("draft-cleanup")))
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	forms := orderingapp.NewFormService(
		orderingapp.Config{
			Finder: finder.Config{
				Debounce:     cfg.Finder.Debounce,
				PageSize:     cfg.Finder.PageSize,
				DefaultLimit: cfg.Finder.DefaultLimit,
			},
			ShippingFee: fee,
			SessionTTL:  cfg.Order.SessionTTL,
			SweepPeriod: cfg.Order.SweepPeriod,
		},
		source,
		submitter,
		drafts,
		orderingapp.WithLogger(log.Named("ordering")),
		orderingapp.WithMetrics(metrics),
		orderingapp.WithEventPublisher(bus),
		orderingapp.WithProfileLabels(profiler.LabelFunc()),
	)
	forms.Start()

	var exportTrigger *scheduler.WeeklyTrigger
	if cfg.Export.Enabled {
		exportTrigger, err = buildExportTrigger(cfg.Export, db, log.Named("export"))
		if err != nil {
			log.Fatal("Failed to initialize weekly export", zap.Error(err))
		}
		if err := exportTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start weekly export", zap.Error(err))
		}
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.EngineConfig{
		HTTP:        cfg.HTTP,
		ServiceName: cfg.Telemetry.ServiceName,
		Tracing:     providers.Enabled(),
		Logger:      log,
	})
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}

	healthHandler := handler.NewHealthHandler(db, version)
	engine.GET("/health", healthHandler.Health)

	router.NewRouter(engine).
		Register("cockpit", handler.NewFormHandler(forms)).
		Setup(middleware.JWTAuth(middleware.JWTMiddlewareConfig{
			Verifier: verifier,
			Required: cfg.JWT.Required,
			Logger:   log,
		}))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	forms.Stop()
	if exportTrigger != nil {
		if err := exportTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Weekly export did not stop", zap.Error(err))
		}
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Event bus did not drain", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// buildOptionSource selects the catalog backend and wraps it in the page
// cache when enabled. The returned func releases the cache store.
func buildOptionSource(cfg *config.Config, db *persistence.Database, log *zap.Logger) (catalog.OptionSource, func(), error) {
	var source catalog.OptionSource
	switch cfg.Catalog.Source {
	case "database":
		source = persistence.NewGormCatalogSource(db.DB)
	default:
		httpSource, err := catalogsource.NewHTTPSource(catalogsource.Config{
			BaseURL:  cfg.Catalog.BaseURL,
			APIToken: cfg.Catalog.APIToken,
			Timeout:  cfg.Catalog.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		source = httpSource
	}
	log.Info("Catalog source selected", zap.String("source", cfg.Catalog.Source))

	if !cfg.Catalog.CacheEnabled {
		return source, func() {}, nil
	}
	store, err := cache.NewPageStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore()
	if err != nil {
		return nil, nil, fmt.Errorf("catalog cache: %w", err)
	}
	cached := cache.NewCachedOptionSource(source, store, cfg.Catalog.CacheTTL, cfg.Catalog.CacheKeyPrefix, log.Named("catalog-cache"))
	return cached, func() {
		if err := store.Close(); err != nil {
			log.Warn("Error closing catalog cache", zap.Error(err))
		}
	}, nil
}

func buildSubmitter(cfg config.SubmissionConfig, log *zap.Logger) (ordering.Submitter, error) {
	if cfg.URL == "" {
		log.Warn("No submission URL configured, orders are only logged")
		return submission.NewLogSubmitter(log.Named("submission")), nil
	}
	return submission.NewHTTPSubmitter(submission.Config{
		URL:      cfg.URL,
		APIToken: cfg.APIToken,
		Timeout:  cfg.Timeout,
	}, log.Named("submission"))
}

// buildVerifier returns nil when no secret is configured; requests then
// need the development identity header.
func buildVerifier(cfg config.JWTConfig, redisClient *redis.Client, log *zap.Logger) (middleware.TokenVerifier, error) {
	if cfg.Secret == "" {
		if cfg.Required {
			return nil, errors.New("jwt.required is set but jwt.secret is empty")
		}
		log.Warn("JWT verification disabled, callers identify with the X-User-ID header")
		return nil, nil
	}

	var revocation auth.RevocationList
	if redisClient != nil {
		revocation = auth.NewRedisRevocationList(redisClient, "")
	} else {
		revocation = auth.NewInMemoryRevocationList()
	}
	verifier, err := auth.NewVerifier(cfg, revocation)
	if err != nil {
		return nil, err
	}
	return verifier, nil
}

// buildExportTrigger wires the weclapp export into the job scheduler. Job
// state is kept in scheduler_jobs so a slot missed during downtime is
// caught up on the next start.
func buildExportTrigger(cfg config.ExportConfig, db *persistence.Database, log *zap.Logger) (*scheduler.WeeklyTrigger, error) {
	schedule, err := scheduler.ParseWeeklySchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	exporter, err := buildExporter(cfg, log)
	if err != nil {
		return nil, err
	}

	jobs := scheduler.NewJobRepository(db.DB)
	sched := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig(), scheduler.ExecutorFunc(func(ctx context.Context, job *scheduler.Job) error {
		start, end := job.PeriodStart, job.PeriodEnd
		_, err := exporter.Export(ctx, salesexportapp.Request{Start: &start, End: &end})
		return err
	}), jobs, log)

	period := func(now time.Time) (time.Time, time.Time) {
		w := salesexport.ReportingWindow(now, cfg.OffsetWeeks)
		return w.Start, w.End
	}
	return scheduler.NewWeeklyTrigger(scheduler.WeeklyTriggerConfig{
		Schedule:   schedule,
		Kind:       scheduler.JobKindWeeklyOrderExport,
		MaxRetries: cfg.MaxRetries,
	}, sched, period, jobs, log), nil
}

func buildExporter(cfg config.ExportConfig, log *zap.Logger) (*salesexportapp.Exporter, error) {
	client, err := weclapp.NewClient(weclapp.Config{
		BaseURL:  cfg.BaseURL,
		APIToken: cfg.APIToken,
		Timeout:  cfg.Timeout,
		PageSize: cfg.PageSize,
	})
	if err != nil {
		return nil, err
	}
	rules := salesexport.DefaultRules()
	rules.Channels = cfg.Channels
	rules.ExcludedKeywords = cfg.ExcludedKeywords
	rules.PositionStatus = cfg.PositionStatus

	return salesexportapp.NewExporter(client, exportfile.NewWriter(cfg.OutputDir),
		salesexportapp.WithRules(rules),
		salesexportapp.WithOffsetWeeks(cfg.OffsetWeeks),
		salesexportapp.WithLogger(log),
	), nil
}
