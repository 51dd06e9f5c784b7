package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/comp"
	"github.com/greenroute/fieldcrm/internal/config"
	"github.com/greenroute/fieldcrm/internal/db"
	"github.com/greenroute/fieldcrm/internal/events"
	"github.com/greenroute/fieldcrm/internal/health"
	"github.com/greenroute/fieldcrm/internal/lead"
	"github.com/greenroute/fieldcrm/internal/lock"
	"github.com/greenroute/fieldcrm/internal/notify"
	"github.com/greenroute/fieldcrm/internal/obs"
	"github.com/greenroute/fieldcrm/internal/payroll"
	"github.com/greenroute/fieldcrm/internal/points"
	"github.com/greenroute/fieldcrm/internal/sale"
	"github.com/greenroute/fieldcrm/internal/shift"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "crm")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "fieldcrm-api",
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
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "fieldcrm-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	queries := db.New(pool)

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

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	bus := &events.Bus{
		Store: queries,
		Notifiers: []events.Notifier{
			&notify.Enqueuer{Client: taskClient, Queue: cfg.NotifyQueue, Log: logger},
		},
	}

	bonuses, err := comp.ParseBonusSchedule(cfg.BonusSchedule)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse bonus schedule")
	}
	mileage := comp.MileageRates{
		VehicleCentsPerMile: cfg.VehicleMileageRateCents,
		TransitCentsPerMile: cfg.TransitMileageRateCents,
	}
	rateStore := shift.NewRateStore(loadRateTable(ctx, queries, cfg, logger))

	validate := validator.New()
	locker := lock.Locker{R: redisClient, RetryBackoff: cfg.LockRetryBackoff}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	pointsSvc := &points.Service{
		Pool:    pool,
		Q:       queries,
		Locker:  locker,
		LockTTL: cfg.LockTTL,
	}
	pointsHandler := points.NewHandler(points.HandlerConfig{Queries: queries})

	leadSvc := &lead.Service{
		Q:      queries,
		Points: pointsSvc,
		Bus:    bus,
		Log:    logger,
		Window: cfg.ExclusivityWindow,
	}
	leadHandler := lead.NewHandler(lead.HandlerConfig{Service: leadSvc, Validator: validate})

	saleSvc := &sale.Service{
		Q:             queries,
		Points:        pointsSvc,
		Bus:           bus,
		Log:           logger,
		CommissionBps: cfg.RepCommissionBps,
		Window:        cfg.ExclusivityWindow,
	}
	saleHandler := sale.NewHandler(sale.HandlerConfig{Service: saleSvc, Validator: validate})

	shiftSvc := &shift.Service{
		Q:     queries,
		Rates: mileage,
		Table: rateStore,
		Bus:   bus,
		Log:   logger,
	}
	shiftHandler := shift.NewHandler(shift.HandlerConfig{Service: shiftSvc, Validator: validate})

	payrollSvc := &payroll.Service{
		Q:               queries,
		Cache:           payroll.NewCache(redisClient, cfg.PayrollCacheTTL),
		Log:             logger,
		HourlyRateCents: cfg.RepHourlyRateCents,
		CommissionBps:   cfg.RepCommissionBps,
		SalesRevenueBps: cfg.CompanySalesRevenueBps,
		Bonuses:         bonuses,
		WindowDays:      cfg.PayrollWindowDays,
	}
	payrollHandler := payroll.NewHandler(payroll.HandlerConfig{Service: payrollSvc})

	writeLimit := newWriteLimiter(cfg, redisClient, logger)

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
	r.Use(common.RepAuth{}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", common.RepIDHeader, "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/leads", func(l chi.Router) {
			l.Get("/", leadHandler.List)
			l.Get("/{id}", leadHandler.Get)
			l.Group(func(g chi.Router) {
				g.Use(common.RequireRep)
				g.Use(writeLimit)
				g.With(idem.Middleware).Post("/", leadHandler.Resolve)
				g.Patch("/{id}/status", leadHandler.UpdateStatus)
			})
		})

		v.With(common.RequireRep, writeLimit, idem.Middleware).Post("/sales", saleHandler.Record)
		v.Get("/sales/{id}", saleHandler.Get)
		v.With(common.RequireRep, writeLimit, idem.Middleware).Post("/shifts", shiftHandler.Record)
		v.Get("/shifts/{id}", shiftHandler.Get)

		v.Get("/payroll/summary", payrollHandler.Summary)
		v.Get("/payroll/bonus-tiers", payrollHandler.BonusTiers)
		v.Get("/reps/{id}/points", pointsHandler.RepPoints)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(common.RequireRep)
			admin.Post("/sales/mark-paid", saleHandler.MarkPaid)
			admin.Post("/shifts/mark-paid", shiftHandler.MarkPaid)
			admin.Put("/brand-rates/{brandID}", shiftHandler.UpsertRate)
			admin.Post("/reps/{id}/points/rebuild", pointsHandler.Rebuild)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func loadRateTable(ctx context.Context, queries *db.Queries, cfg *config.Config, logger zerolog.Logger) comp.RateTable {
	rates := map[string]comp.Cents{}
	rows, err := queries.ListBrandRates(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("load brand rates")
	}
	for _, row := range rows {
		rates[row.BrandID] = row.HourlyRateCents
	}
	return comp.NewRateTable(cfg.DefaultActivationRate, rates)
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
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func newWriteLimiter(cfg *config.Config, client *redis.Client, logger zerolog.Logger) func(http.Handler) http.Handler {
	rate, err := limiter.NewRateFromFormatted(cfg.RateLimitWrites)
	if err != nil {
		logger.Error().Err(err).Msg("parse write rate limit; limiting disabled")
		return passthrough
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "crm:ratelimit",
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise rate limit store; limiting disabled")
		return passthrough
	}
	mw := limiterstdlib.NewMiddleware(limiter.New(store, rate))
	return mw.Handler
}

func passthrough(next http.Handler) http.Handler {
	return next
}
