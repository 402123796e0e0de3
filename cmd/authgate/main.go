// Package main is AuthGate's entry point: an out-of-band forward-auth
// authorization decision service for HTTP reverse proxies.
//
// # Architecture
//
// main wires, in order:
//  1. Process settings (Koanf v2: defaults -> environment variables)
//  2. Logging (zerolog, via internal/logging)
//  3. Config Provider (C1): file-backed or Postgres-backed, chosen by
//     AUTHGATE_CONFIG_BACKEND
//  4. Session Cache (C3): in-process or Redis-backed, chosen by
//     AUTHGATE_CACHE_BACKEND
//  5. Session Resolver (C4), wrapping the cache and the outbound
//     session-endpoint HTTP call
//  6. Forward-Auth Endpoint (C6), the request handler proxies call
//  7. Admin API (C7), mounted at /admin/* only when the config backend
//     is Postgres and AUTHGATE_ENABLE_ADMIN_API is true
//
// The HTTP server is supervised by a suture tree so a panic recovered
// by net/http or a future additional background service restarts
// independently of process lifetime.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/redis/go-redis/v9"

	"github.com/authgate/authgate/internal/adminapi"
	"github.com/authgate/authgate/internal/adminauth"
	"github.com/authgate/authgate/internal/authz"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/forwardauth"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/sessioncache"
	"github.com/authgate/authgate/internal/sessionresolve"
	"github.com/authgate/authgate/internal/supervisor"
)

// settings holds process-level bootstrap configuration, distinct from
// the AuthConfig snapshot (C1) which governs per-request behavior.
type settings struct {
	Port int `koanf:"port"`

	ConfigBackend string `koanf:"authgate_config_backend"`
	ConfigPath    string `koanf:"authgate_config"`
	DatabaseURL   string `koanf:"database_url"`

	CacheEnabled bool   `koanf:"authgate_cache_enabled"`
	CacheBackend string `koanf:"authgate_cache_backend"`
	RedisURL     string `koanf:"authgate_redis_url"`

	EnableAdminAPI    bool   `koanf:"authgate_enable_admin_api"`
	AdminToken        string `koanf:"authgate_admin_token"`
	SessionCookie     string `koanf:"authgate_session_cookie"`
	AdminSessionRoles string `koanf:"authgate_admin_session_roles"`

	LogLevel string `koanf:"authgate_log_level"`
}

func defaultSettings() settings {
	return settings{
		Port:          4181,
		ConfigBackend: "json",
		ConfigPath:    "authgate.json",
		CacheEnabled:  true,
		CacheBackend:  "memory",
		SessionCookie: "session",
		LogLevel:      "info",
	}
}

func loadSettings() (settings, error) {
	k := koanf.New(".")

	defaults := defaultSettings()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return settings{}, err
	}
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return settings{}, err
	}

	var s settings
	if err := k.Unmarshal("", &s); err != nil {
		return settings{}, err
	}
	return s, nil
}

func main() {
	s, err := loadSettings()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load process settings")
	}

	logging.Init(logging.Config{Level: s.LogLevel, Format: "json"})
	logging.Info().Msg("starting authgate")

	provider, err := newConfigProvider(s)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize config provider")
	}
	defer provider.Close()

	cache, err := newSessionCache(s)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize session cache")
	}
	if cache != nil {
		defer cache.Close()
	}

	resolver := sessionresolve.New(cache)
	auditLogger := authz.NewAuditLogger(authz.DefaultAuditLoggerConfig())
	defer auditLogger.Close()

	fwdHandler := &forwardauth.Handler{
		ConfigProvider: provider,
		Resolver:       resolver,
		AuditLogger:    auditLogger,
	}

	mux := http.NewServeMux()
	mux.Handle("/", fwdHandler)

	mutableProvider, isMutable := provider.(config.MutableProvider)
	if s.EnableAdminAPI && isMutable {
		adminRouter := buildAdminRouter(s, mutableProvider, resolver)
		mux.Handle("/admin/", http.StripPrefix("/admin", adminRouter))
		logging.Info().Msg("admin api mounted at /admin")
	} else {
		if s.EnableAdminAPI {
			logging.Warn().Msg("AUTHGATE_ENABLE_ADMIN_API requires the postgres config backend; admin api not mounted")
		}
		// Admin API disabled: /admin/* must never fall through to the
		// forward-auth catch-all, which would treat it as an ordinary
		// proxied path.
		mux.Handle("/admin/", http.HandlerFunc(adminAPIDisabled))
	}

	httpServer := &http.Server{
		Addr:              portAddr(s.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.Add(supervisor.NewHTTPServerService("http-server", httpServer, 10*time.Second))

	logging.Info().Int("port", s.Port).Msg("listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("supervisor tree exited with error")
	}
	logging.Info().Msg("authgate stopped")
}

func newConfigProvider(s settings) (config.Provider, error) {
	switch s.ConfigBackend {
	case "postgres":
		if s.DatabaseURL == "" {
			return nil, errors.New("AUTHGATE_CONFIG_BACKEND=postgres requires DATABASE_URL")
		}
		return config.NewPostgresProvider(context.Background(), s.DatabaseURL)
	case "json", "":
		return config.NewFileProvider(s.ConfigPath)
	default:
		return nil, errors.New("unknown AUTHGATE_CONFIG_BACKEND: " + s.ConfigBackend)
	}
}

func newSessionCache(s settings) (sessioncache.Cache, error) {
	if !s.CacheEnabled {
		return nil, nil
	}
	switch s.CacheBackend {
	case "redis":
		if s.RedisURL == "" {
			return nil, errors.New("AUTHGATE_CACHE_BACKEND=redis requires AUTHGATE_REDIS_URL")
		}
		opts, err := redis.ParseURL(s.RedisURL)
		if err != nil {
			return nil, err
		}
		return sessioncache.NewRedisCache(redis.NewClient(opts)), nil
	case "memory", "":
		return sessioncache.NewMemoryCache(time.Minute), nil
	default:
		return nil, errors.New("unknown AUTHGATE_CACHE_BACKEND: " + s.CacheBackend)
	}
}

// adminAuthResolver adapts sessionresolve.Resolver to adminauth's narrower
// SessionResolver interface, fetching SessionURL/CookieName from the
// live config snapshot on each call so the admin API tracks config
// reloads the same way the forward-auth path does.
type adminAuthResolver struct {
	provider config.Provider
	resolver *sessionresolve.Resolver
}

func (a adminAuthResolver) Resolve(ctx context.Context, cookieValue string) (adminauth.Session, error) {
	cfg, err := a.provider.Current(ctx)
	if err != nil {
		return adminauth.Session{}, err
	}
	session, err := a.resolver.Resolve(ctx, cfg.SessionURL, cfg.CookieName, cookieValue)
	if err != nil {
		return adminauth.Session{}, err
	}
	return adminauth.Session{UserID: session.User.ID, Roles: session.User.Roles}, nil
}

func buildAdminRouter(s settings, provider config.MutableProvider, resolver *sessionresolve.Resolver) http.Handler {
	var chain adminauth.Chain
	if s.AdminToken != "" {
		chain = append(chain, adminauth.BearerAuthenticator{Secret: s.AdminToken})
	}
	if roles := splitRoles(s.AdminSessionRoles); len(roles) > 0 {
		roleAuth, err := adminauth.NewSessionRoleAuthenticator(s.SessionCookie, roles, adminAuthResolver{provider: provider, resolver: resolver})
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to build admin session-role authenticator")
		}
		chain = append(chain, roleAuth)
	}

	cfg := adminapi.DefaultConfig()
	cfg.Auth = chain
	return adminapi.NewRouter(provider, cfg)
}

func splitRoles(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// adminAPIDisabled answers every /admin/* request with 403 when the
// Admin API is not mounted, per spec.md §4.6.
func adminAPIDisabled(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "admin api disabled", http.StatusForbidden)
}

func portAddr(port int) string {
	if port <= 0 {
		port = 4181
	}
	return ":" + strconv.Itoa(port)
}
