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
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/agromarket/internal/cart"
	"github.com/noah-isme/agromarket/internal/checkout"
	"github.com/noah-isme/agromarket/internal/common"
	"github.com/noah-isme/agromarket/internal/config"
	"github.com/noah-isme/agromarket/internal/events"
	"github.com/noah-isme/agromarket/internal/health"
	"github.com/noah-isme/agromarket/internal/identity"
	"github.com/noah-isme/agromarket/internal/lock"
	"github.com/noah-isme/agromarket/internal/migrations"
	"github.com/noah-isme/agromarket/internal/obs"
	"github.com/noah-isme/agromarket/internal/payment"
	"github.com/noah-isme/agromarket/internal/pendingorder"
	"github.com/noah-isme/agromarket/internal/ratelimit"
	"github.com/noah-isme/agromarket/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "agromarket")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "agromarket-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.MigrateOnStart {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "agromarket-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
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
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	verifier, err := identity.NewVerifier(identity.VerifierConfig{
		Secret:    cfg.AuthJWTSecret,
		Issuer:    cfg.AuthJWTIssuer,
		Audience:  cfg.AuthJWTAudience,
		ClockSkew: cfg.AuthClockSkew,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}
	authMiddleware := identity.Middleware{Verifier: verifier, AccessCookie: cfg.AuthAccessCookie}
	retailers := identity.PostgresRetailers{DB: pool}

	displayPrices, orderPrices := priceLookups(pool, redisClient, cfg.PriceCacheTTL)
	orders := checkout.PostgresStore{DB: pool}
	carts := cart.NewRepository(redisClient, cfg.CartTTL)
	pending := pendingorder.NewRedisStore(redisClient, cfg.PendingOrderTTL)

	asynqClient := asynq.NewClient(asynqRedisOpt(redisOpts))
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close asynq client")
		}
	}()
	bus := &events.Bus{
		Client:    asynqClient,
		Queue:     cfg.QueueName,
		MaxRetry:  cfg.QueueMaxRetry,
		Notifiers: []events.Notifier{obs.EventMetrics{}},
	}

	checkoutSvc := newCheckoutService(checkoutDeps{
		Retailers: retailers,
		Prices:    orderPrices,
		Orders:    orders,
		Locker:    lock.Locker{R: redisClient, Prefix: "lock:", RetryBackoff: cfg.LockRetryBackoff, MaxWait: cfg.CheckoutLockTTL},
		LockTTL:   cfg.CheckoutLockTTL,
		Events:    bus,
		Log:       logger.With().Str("component", "checkout").Logger(),
	})
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Orders: orders, Retailers: retailers}

	cartHandler := &cart.Handler{
		Repo:    carts,
		Catalog: displayPrices,
		Log:     logger.With().Str("component", "cart").Logger(),
	}

	reconciler := &pendingorder.Reconciler{
		Store:  pending,
		Events: bus,
		Log:    logger.With().Str("component", "pendingorder").Logger(),
	}
	pendingHandler := &pendingorder.Handler{Store: pending, Retailers: retailers}

	widgetBaseURL := cfg.PaymentWidgetBaseURL
	paymentHandler := &payment.Handler{
		Orders:     checkoutSvc,
		Carts:      carts,
		Pending:    pending,
		Reconciler: reconciler,
		Retailers:  retailers,
		NewWidget:  func() payment.Widget { return &payment.RedirectWidget{BaseURL: widgetBaseURL} },
		Config: payment.HandlerConfig{
			ClientKey:  cfg.PaymentClientKey,
			Currency:   cfg.Currency,
			SuccessURL: cfg.PaymentSuccessURL,
			FailURL:    cfg.PaymentFailURL,
		},
		Log: logger.With().Str("component", "payment").Logger(),
	}

	limiterStore, err := ratelimit.NewRedisStore(redisClient, "ratelimit:checkout")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	checkoutLimiter, err := ratelimit.New(limiterStore, cfg.CheckoutRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	rateLimit := ratelimit.Handler{
		Limiter: checkoutLimiter,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limit store unavailable") },
	}.Middleware

	// Cart writes reject replayed keys; order creation replays through the service instead.
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
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
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:                envBool("SECURE_HEADERS_ENABLE", true),
		EnableHSTS:            envBool("SECURE_HSTS_ENABLE", cfg.AppEnv == "production"),
		HSTSMaxAge:            envInt("SECURE_HSTS_MAX_AGE", 31536000),
		HSTSIncludeSubdomains: envBool("SECURE_HSTS_INCLUDE_SUBDOMAINS", false),
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", common.IdempotencyHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Probes: map[string]health.Probe{
			"postgres": health.Postgres(pool),
			"redis":    health.Redis(redisClient),
		},
		Timeout: envDurationMillis("HEALTH_READY_TIMEOUT_MS", 500),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: int64(envInt("HTTP_MAX_BODY_BYTES", 64<<10))}.Middleware)
		v.Use(authMiddleware.RequireAuth)
		v.Use(security.CSRF{Cookie: envOrDefault("SECURE_CSRF_COOKIE", "csrf_token")}.Middleware)

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/items", cartHandler.AddItem)
				g.Patch("/items/{itemID}", cartHandler.UpdateItem)
				g.Delete("/items/{itemID}", cartHandler.RemoveItem)
				g.Delete("/", cartHandler.Clear)
			})
		})

		v.Route("/checkout", func(c chi.Router) {
			c.With(rateLimit).Post("/orders", checkoutHandler.Create)
			c.Get("/orders/{orderID}", checkoutHandler.Get)
			c.Get("/pending", pendingHandler.Get)
		})

		v.Route("/payments", func(p chi.Router) {
			p.With(rateLimit).Post("/request", paymentHandler.Request)
			p.Get("/success", paymentHandler.Success)
			p.Get("/fail", paymentHandler.Fail)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runServer(srv, logger, envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
}

// runServer serves until SIGINT/SIGTERM, then flips readiness and drains.
func runServer(srv *http.Server, logger zerolog.Logger, drain time.Duration) {
	stop, release := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer release()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-stop.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func asynqRedisOpt(opts *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
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
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
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
