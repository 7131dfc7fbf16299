// Command server runs the multi-tenant platform gateway: request ids,
// tenant resolution, storage isolation and entitlement enforcement in
// front of the business API.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/oneclass-zw/platform/pkg/config"
	"github.com/oneclass-zw/platform/pkg/httpserver"
	"github.com/oneclass-zw/platform/pkg/identity"
	"github.com/oneclass-zw/platform/pkg/logger"
	"github.com/oneclass-zw/platform/pkg/pg"
	"github.com/oneclass-zw/platform/pkg/requestid"
	"github.com/oneclass-zw/platform/pkg/tenant"
	"github.com/oneclass-zw/platform/svc/directory"
)

type appConfig struct {
	Env        string `env:"APP_ENV" envDefault:"development"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"json"`
	SigningKey string `env:"AUTH_SIGNING_KEY,required"`

	BaseDomain       string        `env:"TENANT_BASE_DOMAIN,required"`
	DevDefaultTenant string        `env:"TENANT_DEV_DEFAULT"`
	CacheTTL         time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	LookupTimeout    time.Duration `env:"TENANT_LOOKUP_TIMEOUT" envDefault:"3s"`
	AdminRole        string        `env:"PLATFORM_ADMIN_ROLE" envDefault:"platform_admin"`

	RedisURL string `env:"REDIS_URL"`
}

// modulesByPrefix is the static entitlement table: the module a path
// prefix requires. Unmapped paths always pass.
var modulesByPrefix = map[string]string{
	"/api/v1/students":   "sis",
	"/api/v1/attendance": "attendance",
	"/api/v1/grading":    "grading",
	"/api/v1/finance":    "finance_management",
	"/api/v1/analytics":  "analytics",
}

func main() {
	ctx := context.Background()

	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithService("platform-gateway"),
		logger.WithAttrs(slog.String("env", cfg.Env)),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			tenant.LoggerExtractor(),
		),
	)
	slog.SetDefault(log)

	var pgCfg pg.Config
	config.MustLoad(&pgCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.ErrorContext(ctx, "database connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if pgCfg.MigrationsPath != "" {
		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			log.ErrorContext(ctx, "migrations failed", logger.Error(err))
			os.Exit(1)
		}
	}

	cache := buildCache(ctx, cfg, log)
	defer cache.Close()

	store := directory.New(pool)
	resolver := tenant.NewResolver(
		tenant.NewClassifier(cfg.BaseDomain, cfg.DevDefaultTenant),
		store,
		tenant.WithCache(cache),
		tenant.WithCacheTTL(cfg.CacheTTL),
		tenant.WithLookupTimeout(cfg.LookupTimeout),
	)

	verifier, err := identity.NewJWTVerifier([]byte(cfg.SigningKey))
	if err != nil {
		log.ErrorContext(ctx, "verifier setup failed", logger.Error(err))
		os.Exit(1)
	}
	extractor := identity.NewExtractor(verifier)

	scoped := pg.NewScopedPool(pool)

	router := chi.NewRouter()
	router.Use(requestid.Middleware)
	router.Use(tenant.Middleware(resolver, extractor,
		tenant.WithPublicPrefixes("/healthz", "/readyz"),
		tenant.WithPlatformAdminPrefixes("/api/v1/platform"),
		tenant.WithPlatformAdminRole(cfg.AdminRole),
		tenant.WithModuleMap(modulesByPrefix),
		tenant.WithLogger(log),
	))

	router.Get("/healthz", httpserver.HealthCheckHandler(log))
	router.Get("/readyz", httpserver.HealthCheckHandler(log, pg.Healthcheck(pool)))

	router.Post("/api/v1/platform/tenants/{tenantID}/cache/invalidate", func(w http.ResponseWriter, r *http.Request) {
		resolver.InvalidateTenant(r.Context(), chi.URLParam(r, "tenantID"))
		w.WriteHeader(http.StatusNoContent)
	})

	// Minimal business surface; real handlers consume the resolved
	// context and the scoped pool the same way.
	router.Get("/api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		tc := tenant.MustFromContext(r.Context())
		conn, err := scoped.Acquire(r.Context())
		if err != nil {
			tenant.WriteError(w, r, err)
			return
		}
		defer conn.Release()

		var isolated string
		if err := conn.QueryRow(r.Context(), "select current_setting('app.tenant_id')").Scan(&isolated); err != nil {
			tenant.WriteError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tenant_id": tc.Resolution.ID,
			"isolation": isolated,
			"modules":   tc.Resolution.Modules,
		})
	})

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)

	if err := httpserver.New(httpCfg, log).Run(ctx, router); err != nil {
		log.ErrorContext(ctx, "server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// buildCache picks the shared Redis cache when REDIS_URL is set and the
// in-process cache otherwise.
func buildCache(ctx context.Context, cfg appConfig, log *slog.Logger) tenant.Cache {
	if cfg.RedisURL == "" {
		return tenant.NewMemoryCache(ctx)
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.ErrorContext(ctx, "invalid redis url, falling back to memory cache", logger.Error(err))
		return tenant.NewMemoryCache(ctx)
	}
	return tenant.NewRedisCache(redis.NewClient(opts), "tenant", log)
}
