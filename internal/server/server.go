// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects the database, the mail
// dispatcher, the services, the handlers and the routes, and decides
// which middleware runs where.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → sqldb.DB (SQLite or Postgres) → stores
//	  → redisstore.Denylist           (only when REDIS_URL is set)
//	  → mail.Renderer + Sender → Dispatcher
//	  → services → handlers → NewRouter
//
// This is the "composition root" pattern: all dependencies are wired in
// one place (New), rather than scattered across the codebase. The
// management commands in cmd/snippetshare reuse OpenDatabase and
// NewMailSender so they talk to the same database and mail server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/snippetshare/internal/auth"
	"github.com/sakif/snippetshare/internal/config"
	"github.com/sakif/snippetshare/internal/docs"
	"github.com/sakif/snippetshare/internal/handler"
	"github.com/sakif/snippetshare/internal/janitor"
	"github.com/sakif/snippetshare/internal/mail"
	"github.com/sakif/snippetshare/internal/metrics"
	"github.com/sakif/snippetshare/internal/middleware"
	"github.com/sakif/snippetshare/internal/repository"
	"github.com/sakif/snippetshare/internal/repository/redisstore"
	"github.com/sakif/snippetshare/internal/repository/sqldb"
	"github.com/sakif/snippetshare/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns every long-lived resource: the database pool, the optional
// Redis client, the mail workers and the purge schedule. Run starts them
// and releases them all when it returns.
type Server struct {
	http       *http.Server
	db         *sqldb.DB
	redis      *redis.Client // nil without REDIS_URL
	dispatcher *mail.Dispatcher
	janitor    *janitor.Janitor
	logger     *slog.Logger
}

// OpenDatabase connects to the configured database. It does not migrate.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sqldb.DB, error) {
	dialect, err := sqldb.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	return sqldb.Open(ctx, dialect, cfg.DatabaseURL)
}

// NewMailSender delivers through SMTP when SMTP_HOST is set and otherwise
// logs each message, which is what development wants.
func NewMailSender(cfg *config.Config, logger *slog.Logger) mail.Sender {
	if !cfg.SMTPEnabled() {
		logger.Warn("SMTP_HOST not set, emails will be logged instead of sent")
		return mail.NewLogSender(logger)
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.DefaultFromEmail,
	})
}

// New opens the database (creating missing tables), connects to Redis
// when configured and wires the router. Nothing is listening until Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Server, err error) {
	s := &Server{logger: logger}
	defer func() {
		// Undo whatever was opened if a later step fails.
		if err != nil {
			s.close()
		}
	}()

	// === DATABASE ===
	s.db, err = OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err = s.db.Migrate(ctx); err != nil {
		return nil, err
	}

	// === METRICS ===
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// === TOKEN DENYLIST ===
	// Redis expires entries on its own; the SQL table needs the janitor.
	checks := map[string]handler.Check{"database": s.db.Conn().PingContext}
	purge := map[string]repository.Purger{"password_reset_tokens": s.db.ResetTokens()}

	var revoked repository.RevokedTokenStore
	if cfg.RedisURL != "" {
		s.redis, err = redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		denylist := redisstore.New(s.redis)
		revoked = denylist
		checks["redis"] = denylist.Ping
		logger.Info("using Redis for revoked tokens")
	} else {
		store := s.db.RevokedTokens()
		revoked = store
		purge["revoked_tokens"] = store
	}

	// === AUTH ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret,
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithTTLs(cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
	)
	if err != nil {
		return nil, err
	}
	passwords := auth.NewPasswordService()
	guard := auth.NewGuard(tokens, revoked, logger)

	// === MAIL ===
	renderer, err := mail.NewRenderer(cfg.SiteName, cfg.FrontendURL)
	if err != nil {
		return nil, err
	}
	sender := NewMailSender(cfg, logger)
	s.dispatcher = mail.NewDispatcher(sender, logger, m, cfg.MailWorkers, cfg.MailQueueSize)

	// === SERVICES ===
	users := s.db.Users()
	authSvc := service.NewAuthService(service.AuthDeps{
		Users:         users,
		Resets:        s.db.ResetTokens(),
		Revoked:       revoked,
		Tokens:        tokens,
		Passwords:     passwords,
		Renderer:      renderer,
		Mail:          s.dispatcher,
		Metrics:       m,
		Logger:        logger,
		ResetTokenTTL: cfg.ResetTokenTTL,
	})
	userSvc := service.NewUserService(users, passwords, logger)
	snippetSvc := service.NewSnippetService(s.db.Snippets(), m, logger)

	contactTo := cfg.ContactEmail
	if contactTo == "" {
		contactTo = cfg.DefaultFromEmail
	}
	contactSvc := service.NewContactService(renderer, sender, contactTo, logger)

	// === HANDLERS ===
	var github handler.GitHubAuthenticator
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURL)
	}

	docsHandler, err := docs.New(logger)
	if err != nil {
		return nil, err
	}

	var limiter *middleware.RateLimiter
	if cfg.AuthRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)
	}

	router := NewRouter(Routes{
		Auth: handler.NewAuthHandler(authSvc, userSvc, handler.AuthHandlerConfig{
			GitHub:        github,
			FrontendURL:   cfg.FrontendURL,
			SecureCookies: cfg.IsProduction(),
		}, logger),
		Snippets:    handler.NewSnippetHandler(snippetSvc, logger),
		Users:       handler.NewUserHandler(userSvc, logger),
		Contact:     handler.NewContactHandler(contactSvc, logger),
		Health:      handler.NewHealthHandler(checks, logger),
		Docs:        docsHandler,
		Guard:       guard,
		Metrics:     m,
		Registry:    registry,
		AuthLimiter: limiter,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Logger:      logger,
	})

	// === BACKGROUND PURGE ===
	s.janitor, err = janitor.New(janitor.DefaultSchedule, purge, m, logger)
	if err != nil {
		return nil, err
	}

	s.http = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// everything down.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections and wait for in-flight requests
//  2. Stop the purge schedule, waiting for a running purge
//  3. Drain the mail queue so queued welcome/reset emails still go out
//  4. Close Redis and the database pool
//
// Everything shares one 30 second budget. The caller cancels ctx on
// SIGINT/SIGTERM (see signal.NotifyContext in main).
func (s *Server) Run(ctx context.Context) error {
	s.dispatcher.Start()
	s.janitor.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting", slog.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listening: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server: http shutdown: %w", err))
		}
		if err := s.janitor.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server: stopping janitor: %w", err))
		}
		if err := s.dispatcher.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server: draining mail: %w", err))
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	s.close()
	if err == nil {
		s.logger.Info("server stopped gracefully")
	}
	return err
}

func (s *Server) close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing redis", slog.String("error", err.Error()))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("closing database", slog.String("error", err.Error()))
		}
	}
}
