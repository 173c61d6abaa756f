package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/crewgate/crewgate/internal/audit"
	"github.com/crewgate/crewgate/internal/cache"
	memcache "github.com/crewgate/crewgate/internal/cache/memory"
	rediscache "github.com/crewgate/crewgate/internal/cache/redis"
	"github.com/crewgate/crewgate/internal/config"
	"github.com/crewgate/crewgate/internal/email"
	authctrl "github.com/crewgate/crewgate/internal/http/controllers/auth"
	healthctrl "github.com/crewgate/crewgate/internal/http/controllers/health"
	maintctrl "github.com/crewgate/crewgate/internal/http/controllers/maintenance"
	secctrl "github.com/crewgate/crewgate/internal/http/controllers/security"
	sessctrl "github.com/crewgate/crewgate/internal/http/controllers/session"
	"github.com/crewgate/crewgate/internal/http/router"
	authsvc "github.com/crewgate/crewgate/internal/http/services/auth"
	healthsvc "github.com/crewgate/crewgate/internal/http/services/health"
	maintsvc "github.com/crewgate/crewgate/internal/http/services/maintenance"
	securitysvc "github.com/crewgate/crewgate/internal/http/services/security"
	sessionsvc "github.com/crewgate/crewgate/internal/http/services/session"
	jwtx "github.com/crewgate/crewgate/internal/jwt"
	"github.com/crewgate/crewgate/internal/metrics"
	"github.com/crewgate/crewgate/internal/observability/logger"
	"github.com/crewgate/crewgate/internal/rate"
	"github.com/crewgate/crewgate/internal/security/lockout"
	"github.com/crewgate/crewgate/internal/security/threat"
	"github.com/crewgate/crewgate/internal/store"
	memstore "github.com/crewgate/crewgate/internal/store/memory"
	pgstore "github.com/crewgate/crewgate/internal/store/pg"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using system environment")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		if _, err := os.Stat("configs/config.yaml"); err == nil {
			cfgPath = "configs/config.yaml"
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("LOG_LEVEL"),
		ServiceName: "crewgate",
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.L().With(logger.Component("main"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Store ───
	var st store.Store
	switch cfg.Storage.Driver {
	case "memory":
		st = memstore.New()
		lg.Warn("using in-memory store, data will not survive restarts")
	default:
		pg, err := pgstore.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			lg.Fatal("store open failed", logger.Err(err))
		}
		if os.Getenv("MIGRATE") == "true" {
			if err := pg.RunMigrations(ctx); err != nil {
				lg.Fatal("migrations failed", logger.Err(err))
			}
			lg.Info("migrations applied")
		}
		st = pg
	}
	defer st.Close()

	// ─── Cache y rate limiters ───
	var (
		cacheClient cache.Client
		authLimiter rate.Limiter
		apiLimiter  rate.Limiter
	)
	authWindow := config.Duration(cfg.Rate.Auth.Window)
	apiWindow := config.Duration(cfg.Rate.API.Window)

	switch cfg.Cache.Kind {
	case "redis":
		client := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		cacheClient = rediscache.NewFromClient(client, cfg.Cache.Redis.Prefix)
		if !cfg.Rate.Disabled {
			authLimiter = rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix+":rl:", cfg.Rate.Auth.Limit, authWindow)
			apiLimiter = rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix+":rl:", cfg.Rate.API.Limit, apiWindow)
		}
	default:
		cacheClient = memcache.New(config.Duration(cfg.Cache.Memory.DefaultTTL))
		if !cfg.Rate.Disabled {
			authLimiter = rate.NewMemoryLimiter(cfg.Rate.Auth.Limit, authWindow)
			apiLimiter = rate.NewMemoryLimiter(cfg.Rate.API.Limit, apiWindow)
		}
	}
	if cfg.Rate.Disabled {
		lg.Warn("rate limiting disabled by config")
	}
	defer cacheClient.Close()

	// ─── Core ───
	issuer, err := jwtx.NewIssuer(cfg.JWT.Secret, config.Duration(cfg.JWT.AccessTTL))
	if err != nil {
		lg.Fatal("jwt issuer", logger.Err(err))
	}
	refreshTTL := config.Duration(cfg.JWT.RefreshTTL)

	auditLogger := audit.NewLogger(st.Audit())
	defer auditLogger.Close()

	lockoutPolicy := lockout.New(st.Lockouts())
	detector := threat.New(cfg.Server.CORSAllowedOrigins, cfg.Server.CORSTrustedOrigins)

	escalator := securitysvc.NewEscalatorService(securitysvc.EscalatorDeps{
		Events:    st.Events(),
		Incidents: st.Incidents(),
		Audit:     auditLogger,
	})
	recorder := securitysvc.NewRecorderService(securitysvc.RecorderDeps{
		Events:    st.Events(),
		Cache:     cacheClient,
		Escalator: escalator,
	})

	// ─── Email ───
	var sender email.Sender
	if cfg.MagicLink.DebugEcho || cfg.SMTP.Host == "" {
		sender = email.EchoSender{}
		lg.Warn("magic links will be logged, not emailed")
	} else {
		smtp := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		smtp.TLSMode = cfg.SMTP.TLS
		smtp.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
		sender = smtp
	}
	mailer, err := email.NewMagicLinkMailer(sender, cfg.MagicLink.BaseURL)
	if err != nil {
		lg.Fatal("mailer", logger.Err(err))
	}

	// ─── Services ───
	services := authsvc.Services{
		Login: authsvc.NewLoginService(authsvc.LoginDeps{
			Store:      st,
			Issuer:     issuer,
			Lockout:    lockoutPolicy,
			Recorder:   recorder,
			Audit:      auditLogger,
			RefreshTTL: refreshTTL,
		}),
		MagicLink: authsvc.NewMagicLinkService(authsvc.MagicLinkDeps{
			Store:      st,
			Issuer:     issuer,
			Lockout:    lockoutPolicy,
			Recorder:   recorder,
			Audit:      auditLogger,
			Mailer:     mailer,
			LinkTTL:    config.Duration(cfg.MagicLink.TTL),
			RefreshTTL: refreshTTL,
		}),
		Refresh: authsvc.NewRefreshService(authsvc.RefreshDeps{
			Store:      st,
			Issuer:     issuer,
			Recorder:   recorder,
			Audit:      auditLogger,
			RefreshTTL: refreshTTL,
		}),
		Logout: authsvc.NewLogoutService(authsvc.LogoutDeps{
			Store:  st,
			Issuer: issuer,
			Audit:  auditLogger,
		}),
	}

	sessionManager := sessionsvc.NewManager(sessionsvc.ManagerDeps{Store: st, Audit: auditLogger})
	healthService := healthsvc.NewService(healthsvc.Deps{Store: st, Cache: cacheClient})
	sweeper := maintsvc.NewSweeper(maintsvc.SweepDeps{
		Store:      st,
		SweepAfter: config.Duration(cfg.Retention.SweepAfter),
	})

	// ─── Metrics ───
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		lg.Warn("metrics register", logger.Err(err))
	}

	// ─── HTTP ───
	handler := router.New(router.Deps{
		Auth:        authctrl.NewControllers(services),
		Sessions:    sessctrl.NewController(sessionManager),
		Security:    secctrl.NewControllers(recorder, escalator),
		Health:      healthctrl.NewController(healthService),
		Maintenance: maintctrl.NewController(sweeper),

		Issuer:   issuer,
		Store:    st,
		Detector: detector,
		Recorder: recorder,

		AuthLimiter: authLimiter,
		APILimiter:  apiLimiter,
		AuthLimit:   cfg.Rate.Auth.Limit,
		APILimit:    cfg.Rate.API.Limit,

		CronSecret: cfg.CronSecret,
		Registry:   registry,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		lg.Fatal("server failed", logger.Err(err))
	}
	lg.Info("bye")
}
