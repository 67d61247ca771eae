package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"keygate/internal/commands"
	"keygate/internal/config"
	"keygate/internal/db"
	"keygate/internal/http/handlers"
	appmw "keygate/internal/http/middleware"
	"keygate/internal/license"
	"keygate/internal/payload"
	ui "keygate/web"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	var (
		store  license.Store
		audit  handlers.AuditRecorder
		events handlers.AuditReader
	)
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Connect(cfg)
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		store = db.KeyStore{DB: sqlDB}
		auditLog := db.NewAuditLog(sqlDB, cfg.AuditRetentionDays, 0)
		auditLog.Start(ctx)
		audit, events = auditLog, auditLog
		db.StartRetentionWorker(sqlDB)
	} else {
		log.Printf("APP_DATABASE_URL not set: keys are kept in memory only")
	}

	reg := license.NewRegistry(store)
	n, err := reg.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load keys: %v", err)
	}
	log.Printf("loaded %d keys", n)

	lc := license.NewLifecycle(reg, time.Now, logger)
	lc.NewID = license.RandomIDs(cfg.KeyPrefix)
	lc.MaxGenerate = cfg.MaxGenerate
	validator := license.NewValidator(reg, time.Now, license.DeriveFingerprint, logger)

	sweeper := &license.Sweeper{
		Registry:  reg,
		Now:       time.Now,
		Retention: time.Duration(cfg.KeyRetentionDays) * 24 * time.Hour,
		Logger:    logger.With("component", "sweeper"),
	}
	sweeper.Start(ctx, cfg.SweepInterval)

	dispatcher := &commands.Dispatcher{
		Issuer:    lc,
		Lookup:    reg,
		IsAdmin:   cfg.IsAdminID,
		PublicURL: cfg.PublicURL,
	}
	payloads := payload.DirStore{Root: cfg.PayloadDir}

	handlers.InitPrometheusMetrics(reg)

	r := router.New()

	// Global middleware chain: request logger, then request id, then router
	handler := handlers.RequestLogger(appmw.RequestID(r.Handler))

	admin := appmw.AdminAuth(cfg)
	bot := appmw.BearerAuth(cfg.BotToken)
	limiter := appmw.NewRateLimiter(cfg.AuthRate, cfg.AuthBurst)

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
	r.GET("/metrics", handlers.MetricsHandler(prometheus.DefaultGatherer, ""))

	r.ServeFS("/static/{filepath:*}", ui.StaticFS())

	r.GET("/", handlers.Home(reg, cfg))
	r.GET("/stats", handlers.Stats(reg))

	authorize := limiter.Handler(handlers.Authorize(validator, payloads, audit, handlers.MachineIDSource(cfg), cfg))
	r.GET("/auth", authorize)
	r.POST("/auth", authorize)

	r.POST("/v1/keys/activate", bot(handlers.ActivateKey(lc)))
	r.POST("/v1/keys/generate", admin(handlers.GenerateKeys(lc)))
	r.GET("/v1/keys/describe", admin(handlers.DescribeKey(validator)))
	r.GET("/v1/keys/{id}", admin(handlers.GetKey(reg)))
	r.GET("/v1/keys/{id}/events", admin(handlers.KeyEvents(events)))

	r.POST("/v1/commands", bot(handlers.Commands(dispatcher)))

	if cfg.EnableTestEndpoint {
		r.GET("/test", handlers.Test(cfg))
	}

	log.Printf("keygate (%s) listening on %s", cfg.ProductName, cfg.ListenAddr)
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
