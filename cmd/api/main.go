package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/warung-ops/backend-warung/internal/auth"
	"github.com/warung-ops/backend-warung/internal/cart"
	"github.com/warung-ops/backend-warung/internal/cashbox"
	"github.com/warung-ops/backend-warung/internal/catalog"
	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/config"
	"github.com/warung-ops/backend-warung/internal/coupon"
	"github.com/warung-ops/backend-warung/internal/db"
	"github.com/warung-ops/backend-warung/internal/events"
	"github.com/warung-ops/backend-warung/internal/health"
	"github.com/warung-ops/backend-warung/internal/obs"
	"github.com/warung-ops/backend-warung/internal/order"
	"github.com/warung-ops/backend-warung/internal/promo"
	"github.com/warung-ops/backend-warung/internal/ratelimit"
	"github.com/warung-ops/backend-warung/internal/recipes"
	"github.com/warung-ops/backend-warung/internal/settings"
	"github.com/warung-ops/backend-warung/internal/storage"
	"github.com/warung-ops/backend-warung/internal/tasks"
	"github.com/warung-ops/backend-warung/internal/tenant"
)

func main() {
	cfg := config.MustLoad()

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "warung")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "warung-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := db.NewPool(initCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(initCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(initCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	validate := validator.New()

	var signer catalog.ImageSigner
	presigner, err := storage.NewPresigner(initCtx, storage.Options{
		Bucket:   cfg.S3Bucket,
		Region:   cfg.S3Region,
		Endpoint: cfg.S3Endpoint,
		TTL:      cfg.PresignTTL,
	}, logger)
	switch {
	case err == nil:
		signer = presigner
	case errors.Is(err, storage.ErrNotConfigured):
		logger.Info().Msg("object storage disabled, image uploads unavailable")
	default:
		logger.Fatal().Err(err).Msg("initialise object storage")
	}

	catalogStore := &catalog.Store{Pool: pool}
	catalogSvc := &catalog.Service{
		Store: catalogStore,
		Cache: catalog.NewCache(redisClient, cfg.MenuCacheTTL),
	}
	catalogHandler := &catalog.Handler{Store: catalogStore, Svc: catalogSvc, Signer: signer, Validate: validate}

	settingsStore := &settings.Store{Pool: pool, Cache: redisClient}
	settingsHandler := &settings.Handler{Store: settingsStore, Validate: validate}

	couponStore := &coupon.Store{Pool: pool}
	couponSvc := &coupon.Service{Store: couponStore}
	couponHandler := &coupon.Handler{Store: couponStore, Svc: couponSvc, Validate: validate}

	promoStore := &promo.Store{Pool: pool}
	promoSvc := &promo.Service{Store: promoStore}
	promoHandler := &promo.Handler{Store: promoStore, Validate: validate}

	cartStore := &cart.Store{Pool: pool}
	cartHandler := &cart.Handler{Store: cartStore, Catalog: catalogSvc, Validate: validate}

	bus := &events.Bus{Store: &events.Store{Pool: pool}}

	calculator := &order.Calculator{
		Catalog:  catalogSvc,
		Settings: settingsStore,
		Coupons:  couponSvc,
		Promos:   promoSvc,
	}
	orderSvc := &order.Service{
		Store:  &order.Store{Pool: pool},
		Calc:   calculator,
		Carts:  cartStore,
		Stock:  catalogStore,
		Bus:    bus,
		Logger: logger,
	}
	orderHandler := &order.Handler{Svc: orderSvc, Validate: validate}

	authStore := &auth.Store{Pool: pool}
	authSvc, err := auth.NewService(auth.Config{
		Store:     authStore,
		Secret:    cfg.JWTSecret,
		AccessTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Svc: authSvc, Store: authStore, Validate: validate}
	authMiddleware := auth.Middleware{Service: authSvc}

	cashboxSvc := &cashbox.Service{Store: &cashbox.Store{Pool: pool}, Bus: bus, Logger: logger}
	cashboxHandler := &cashbox.Handler{Svc: cashboxSvc, Validate: validate}

	recipeStore := &recipes.Store{Pool: pool}
	recipeHandler := &recipes.Handler{Store: recipeStore, Validate: validate}

	taskClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()
	taskHandler := &tasks.Handler{Store: &tasks.Store{Pool: pool}, Enqueue: taskClient, Validate: validate}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	rate, err := ratelimit.ParseRate(cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.RateLimit).Msg("parse rate limit")
	}
	limiter := ratelimit.Middleware{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:"},
		Rate:    rate,
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
	}

	resolver := tenant.NewResolver(cfg.TenantHeader, cfg.RootDomain, cfg.DefaultTenant)

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", cfg.TenantHeader, "X-Cart-Key", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(resolver.Middleware)
	r.Use(authMiddleware.Authenticate)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(limiter.Handler)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.PprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Deps{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/menu", catalogHandler.Menu)
		v.Get("/products", catalogHandler.List)
		v.Get("/products/{id}", catalogHandler.Get)
		v.Get("/categories", catalogHandler.Categories)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/login", authHandler.Login)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/items", cartHandler.AddItem)
				g.Put("/items/{productId}", cartHandler.SetQty)
				g.Delete("/items/{productId}", cartHandler.RemoveItem)
				g.Delete("/", cartHandler.Clear)
			})
		})

		v.Post("/orders/calculate", orderHandler.Calculate)
		v.With(idem.Middleware).Post("/orders", orderHandler.Create)
		v.Get("/orders", orderHandler.List)
		v.Get("/orders/{id}", orderHandler.Get)
		v.Put("/orders/{id}", orderHandler.Update)
		v.Post("/orders/{id}/cancel", orderHandler.Cancel)

		v.Group(func(staff chi.Router) {
			staff.Use(authMiddleware.RequireAuth)
			staff.Get("/tasks", taskHandler.List)
			staff.Post("/tasks/{id}/complete", taskHandler.Complete)
			staff.Route("/cashbox/sessions", func(cb chi.Router) {
				cb.Post("/", cashboxHandler.Open)
				cb.Post("/{id}/entries", cashboxHandler.AddEntry)
				cb.Post("/{id}/close", cashboxHandler.Close)
				cb.Get("/{id}/summary", cashboxHandler.Summary)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireRole(auth.RoleOwner, auth.RoleManager))

			admin.Post("/products", catalogHandler.Create)
			admin.Put("/products/{id}", catalogHandler.Update)
			admin.Delete("/products/{id}", catalogHandler.Delete)
			admin.Post("/uploads/presign", catalogHandler.UploadURL)

			admin.Get("/settings/pricing", settingsHandler.Get)
			admin.Put("/settings/pricing", settingsHandler.Put)

			admin.Get("/coupons", couponHandler.List)
			admin.Post("/coupons", couponHandler.Create)
			admin.Put("/coupons/{code}", couponHandler.Update)
			admin.Delete("/coupons/{code}", couponHandler.Delete)
			admin.Post("/coupons/preview", couponHandler.Preview)

			admin.Get("/promos", promoHandler.List)
			admin.Post("/promos", promoHandler.Create)
			admin.Put("/promos/{id}", promoHandler.Update)
			admin.Delete("/promos/{id}", promoHandler.Delete)

			admin.Get("/orders", orderHandler.ListAll)
			admin.Patch("/orders/{id}/status", orderHandler.SetStatus)

			admin.Get("/staff", authHandler.ListStaff)
			admin.Post("/staff", authHandler.CreateStaff)
			admin.Patch("/staff/{id}/active", authHandler.SetStaffActive)

			admin.Get("/materials", recipeHandler.ListMaterials)
			admin.Post("/materials", recipeHandler.CreateMaterial)
			admin.Put("/materials/{id}", recipeHandler.UpdateMaterial)

			admin.Get("/recipes", recipeHandler.List)
			admin.Post("/recipes", recipeHandler.Create)
			admin.Get("/recipes/{id}", recipeHandler.Get)
			admin.Put("/recipes/{id}", recipeHandler.Update)
			admin.Delete("/recipes/{id}", recipeHandler.Delete)
			admin.Get("/recipes/{id}/cost", recipeHandler.Cost)

			admin.Post("/day-plans", taskHandler.CreatePlan)
			admin.Post("/day-plans/generate", taskHandler.Generate)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
