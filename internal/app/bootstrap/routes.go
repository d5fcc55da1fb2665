// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	auditlogfeature "github.com/dalemusser/chipdash/internal/app/features/auditlog"
	dashboardfeature "github.com/dalemusser/chipdash/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/chipdash/internal/app/features/errors"
	healthfeature "github.com/dalemusser/chipdash/internal/app/features/health"
	heartbeatfeature "github.com/dalemusser/chipdash/internal/app/features/heartbeat"
	homefeature "github.com/dalemusser/chipdash/internal/app/features/home"
	loginfeature "github.com/dalemusser/chipdash/internal/app/features/login"
	logoutfeature "github.com/dalemusser/chipdash/internal/app/features/logout"
	metricsfeature "github.com/dalemusser/chipdash/internal/app/features/metrics"
	userinfofeature "github.com/dalemusser/chipdash/internal/app/features/userinfo"
	loginstore "github.com/dalemusser/chipdash/internal/app/store/logins"
	"github.com/dalemusser/chipdash/internal/app/system/auditlog"
	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"github.com/dalemusser/chipdash/internal/app/system/authclient"
	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/geoorg"
	"github.com/dalemusser/chipdash/internal/app/system/ratelimit"
	"github.com/dalemusser/chipdash/internal/app/system/selection"
	"github.com/dalemusser/chipdash/internal/app/system/sessionstate"
	"github.com/dalemusser/chipdash/internal/app/system/userdir"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It builds the backend clients, the
// session-state registry and session manager, boots the template engine,
// and mounts the feature routers: login, logout, dashboard, selector,
// sign in activity, heartbeat, user info, health and metrics.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	secure := coreCfg.Env == "prod"

	// Metrics registry for the backend client and the Go runtime.
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	backendMetrics, err := chipapi.NewMetrics(promReg)
	if err != nil {
		logger.Error("backend metrics init failed", zap.Error(err))
		return nil, err
	}

	// CHIP backend clients.
	api, err := chipapi.New(appCfg.BackendBaseURL, nil, logger)
	if err != nil {
		logger.Error("backend client init failed", zap.Error(err))
		return nil, err
	}
	api.Metrics = backendMetrics

	hash, err := authclient.ParseHashAlgorithm(appCfg.PasswordHash)
	if err != nil {
		return nil, err
	}
	authClient := authclient.New(api, hash, logger)
	authClient.OTPSendPath = appCfg.OTPSendPath
	authClient.OTPVerifyPath = appCfg.OTPVerifyPath

	geo := geoorg.New(api, logger)

	users := userdir.New(api, logger)
	if appCfg.UsersPath != "" {
		users.Path = appCfg.UsersPath
	}

	// Server-side session state; the cookie only carries its id.
	registry := sessionstate.NewRegistry(sessionstate.Options{
		IdleTTL: appCfg.StateIdleTTL,
		NewSelector: func() *selection.Selector {
			return selection.NewSelector(geo, logger)
		},
	}, logger)
	appClosers.add(registry.Close)

	sessionMgr, err := auth.NewSessionManager(auth.SessionConfig{
		Key:           appCfg.SessionKey,
		EncryptionKey: appCfg.SessionEncKey,
		Name:          appCfg.SessionName,
		Domain:        appCfg.SessionDomain,
		MaxAge:        appCfg.SessionMaxAge,
		Secure:        secure,
	}, registry, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	limiter := ratelimit.NewLoginLimiterWithConfig(appCfg.LoginRateIP, time.Minute, appCfg.LoginRateID, 5*time.Minute)
	appClosers.add(limiter.Close)

	var logins *loginstore.Store
	if deps.MongoDatabase != nil {
		logins = loginstore.New(deps.MongoDatabase)
	}
	audit := auditlog.New(logins, logger, auditlog.Config{Auth: appCfg.AuditLogAuth})

	// Initialize and boot the template engine once at startup.
	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	errorsHandler := errorsfeature.NewHandler()

	r := chi.NewRouter()

	// Health and metrics sit outside CSRF and session handling.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, api, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Mount("/metrics", metricsfeature.Routes(promReg, logger))

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	r.Group(func(r chi.Router) {
		if !secure {
			r.Use(plaintextCSRF)
		}
		r.Use(csrf.Protect([]byte(appCfg.CSRFKey),
			csrf.Secure(secure),
			csrf.Path("/"),
			csrf.ErrorHandler(http.HandlerFunc(errorsHandler.Forbidden)),
		))

		// Global auth middleware: loads the session state and SessionUser
		// into context when present.
		r.Use(sessionMgr.LoadSessionUser)

		homeHandler := homefeature.NewHandler(logger)
		r.Mount("/", homefeature.Routes(homeHandler))

		loginHandler := loginfeature.NewHandler(sessionMgr, errLog, authClient, audit, limiter, logger)
		r.Mount("/login", loginfeature.Routes(loginHandler))

		logoutHandler := logoutfeature.NewHandler(sessionMgr, audit, logger)
		r.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

		dashboardHandler := dashboardfeature.NewHandler(users, logins, errLog, logger)
		r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))
		r.Mount("/selector", dashboardfeature.SelectorRoutes(dashboardHandler, sessionMgr))

		auditHandler := auditlogfeature.NewHandler(logins, errLog, logger)
		r.Mount("/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

		heartbeatHandler := heartbeatfeature.NewHandler(sessionMgr, logger)
		r.Mount("/api/heartbeat", heartbeatfeature.Routes(heartbeatHandler, sessionMgr))

		userinfofeature.MountRoutes(r, userinfofeature.NewHandler())

		// Error pages
		r.Get("/forbidden", errorsHandler.Forbidden)
		r.Get("/unauthorized", errorsHandler.Unauthorized)
	})

	return r, nil
}

// plaintextCSRF marks requests as plain HTTP so gorilla/csrf skips its
// HTTPS-only referer check during local development.
func plaintextCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}
